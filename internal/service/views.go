package service

import (
	"net/url"
	"strings"
	"time"

	"ataryouth/internal/media/imaging"
	"ataryouth/internal/models"
)

const (
	defaultFullName   = "User"
	defaultRegion     = "Unknown"
	dateOfBirthLayout = "2006-01-02"
)

type ProfileView struct {
	FullName                 string  `json:"fullName"`
	Gender                   string  `json:"gender"`
	DateOfBirth              *string `json:"dateOfBirth"`
	County                   string  `json:"county"`
	Payam                    string  `json:"payam"`
	Bio                      string  `json:"bio"`
	ProfilePhotoURL          string  `json:"profilePhotoUrl"`
	ProfilePhotoThumbnailURL string  `json:"profilePhotoThumbnailUrl"`
}

type UserView struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Role      string      `json:"role"`
	Phone     string      `json:"phone"`
	Status    string      `json:"status"`
	FirstName string      `json:"firstName"`
	Profile   ProfileView `json:"profile"`
}

// SessionUser is the short summary returned on login.
type SessionUser struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Role            string `json:"role"`
	FirstName       string `json:"firstName"`
	ProfilePhotoURL string `json:"profilePhotoUrl"`
}

// MemberRow is one line of the admin user listing.
type MemberRow struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
	FullName    *string    `json:"full_name"`
	Gender      *string    `json:"gender"`
	DateOfBirth *string    `json:"date_of_birth"`
	County      *string    `json:"county"`
	Payam       *string    `json:"payam"`
	Bio         *string    `json:"bio"`
}

// FirstName is the first word of fullName, or "User" when there is none.
func FirstName(fullName string) string {
	if fields := strings.Fields(fullName); len(fields) > 0 {
		return fields[0]
	}
	return defaultFullName
}

// PlaceholderAvatar is the generated avatar shown when no photo is stored.
func PlaceholderAvatar(firstName string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(firstName) + "&background=0ea5e9&color=fff&size=150"
}

// PhotoResolver turns stored photo paths into servable URLs.
type PhotoResolver struct {
	urls URLBuilder
}

func NewPhotoResolver(urls URLBuilder) PhotoResolver {
	return PhotoResolver{urls: urls}
}

// Resolve returns the primary and thumbnail URLs for stored. External URLs are
// passed through and a missing photo yields the placeholder avatar.
func (r PhotoResolver) Resolve(stored *string, firstName string) (primary, thumbnail string) {
	if stored == nil || *stored == "" {
		avatar := PlaceholderAvatar(firstName)
		return avatar, avatar
	}
	if imaging.IsExternal(*stored) {
		return *stored, *stored
	}
	primary = r.urls.URL(*stored)
	if thumb, ok := imaging.ThumbnailFor(*stored); ok {
		return primary, r.urls.URL(thumb)
	}
	return primary, primary
}

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateOfBirthLayout)
	return &s
}

func (r PhotoResolver) userView(up models.UserProfile) UserView {
	fullName := deref(up.FullName, defaultFullName)
	firstName := FirstName(deref(up.FullName, ""))
	primary, thumb := r.Resolve(up.ProfilePhotoURL, firstName)

	return UserView{
		ID:        up.ID,
		Email:     up.Email,
		Role:      string(up.Role),
		Phone:     up.Phone,
		Status:    string(up.Status),
		FirstName: firstName,
		Profile: ProfileView{
			FullName:                 fullName,
			Gender:                   deref(up.Gender, string(models.GenderUnspecified)),
			DateOfBirth:              formatDate(up.DateOfBirth),
			County:                   deref(up.County, defaultRegion),
			Payam:                    deref(up.Payam, defaultRegion),
			Bio:                      deref(up.Bio, ""),
			ProfilePhotoURL:          primary,
			ProfilePhotoThumbnailURL: thumb,
		},
	}
}

func (r PhotoResolver) sessionUser(up models.UserProfile) SessionUser {
	firstName := FirstName(deref(up.FullName, ""))
	primary, _ := r.Resolve(up.ProfilePhotoURL, firstName)
	return SessionUser{
		ID:              up.ID,
		Email:           up.Email,
		Role:            string(up.Role),
		FirstName:       firstName,
		ProfilePhotoURL: primary,
	}
}

func memberRow(up models.UserProfile) MemberRow {
	return MemberRow{
		ID:          up.ID,
		Email:       up.Email,
		Phone:       up.Phone,
		Role:        string(up.Role),
		Status:      string(up.Status),
		CreatedAt:   up.CreatedAt,
		LastLoginAt: up.LastLoginAt,
		FullName:    up.FullName,
		Gender:      up.Gender,
		DateOfBirth: formatDate(up.DateOfBirth),
		County:      up.County,
		Payam:       up.Payam,
		Bio:         up.Bio,
	}
}
