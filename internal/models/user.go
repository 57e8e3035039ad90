package models

import "time"

type UserRole string

const (
	UserRoleUser    UserRole = "user"
	UserRoleOfficer UserRole = "officer"
	UserRoleAdmin   UserRole = "admin"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusPending  UserStatus = "pending"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"

	// GenderUnspecified is only ever rendered, never stored.
	GenderUnspecified Gender = "prefer_not_to_say"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

type User struct {
	ID               string
	Email            string
	Phone            string
	PasswordHash     string
	Role             UserRole
	Status           UserStatus
	IsEmailVerified  bool
	IsPhoneVerified  bool
	CreatedAt        time.Time
	LastLoginAt      *time.Time
	TokensValidAfter *time.Time
}

type Profile struct {
	UserID          string
	FullName        string
	Gender          Gender
	DateOfBirth     time.Time
	County          string
	Payam           string
	Bio             *string
	ProfilePhotoURL *string
}

// UserProfile is an account joined with its profile. Profile columns are
// nullable because the join is a LEFT JOIN.
type UserProfile struct {
	User
	FullName        *string
	Gender          *string
	DateOfBirth     *time.Time
	County          *string
	Payam           *string
	Bio             *string
	ProfilePhotoURL *string
}

// ProfilePatch is the full set of fields a member can change on their own
// record. Email, Phone and PhotoPath are left untouched when nil.
type ProfilePatch struct {
	FullName    string
	Gender      Gender
	DateOfBirth time.Time
	County      string
	Payam       string
	Bio         string

	Email     *string
	Phone     *string
	PhotoPath *string
}

type ApprovalAction string

const (
	ApprovalActionApproved ApprovalAction = "approved"
	ApprovalActionRejected ApprovalAction = "rejected"
)

type ApprovalLog struct {
	ID         string
	UserID     string
	Action     ApprovalAction
	ApprovedBy string
	Notes      string
	CreatedAt  time.Time
}
