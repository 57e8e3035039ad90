// Package repotest provides in-memory stores for service and handler tests.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"ataryouth/internal/models"
	"ataryouth/internal/repository"
)

type record struct {
	user    models.User
	profile models.Profile
}

// Users is an in-memory credential store with the same unique email and
// phone rules as the database.
type Users struct {
	mu      sync.Mutex
	records map[string]*record
	order   []string

	Logs   []models.ApprovalLog
	Writes int
	// Err, when set for a method name, is returned by that method.
	Err map[string]error
}

func NewUsers() *Users {
	return &Users{records: map[string]*record{}, Err: map[string]error{}}
}

func (u *Users) fail(method string) error {
	return u.Err[method]
}

func (u *Users) conflict(email, phone, exclude string) error {
	for id, r := range u.records {
		if id == exclude {
			continue
		}
		if email != "" && r.user.Email == email {
			return repository.ErrDuplicateEmail
		}
		if phone != "" && r.user.Phone == phone {
			return repository.ErrDuplicatePhone
		}
	}
	return nil
}

func (u *Users) Create(_ context.Context, user models.User, profile models.Profile) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.fail("Create"); err != nil {
		return err
	}
	if err := u.conflict(user.Email, user.Phone, ""); err != nil {
		return err
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().Add(time.Duration(len(u.order)) * time.Millisecond)
	}
	profile.UserID = user.ID
	u.records[user.ID] = &record{user: user, profile: profile}
	u.order = append(u.order, user.ID)
	u.Writes++
	return nil
}

func (u *Users) FindByLogin(_ context.Context, identifier string) (models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.fail("FindByLogin"); err != nil {
		return models.User{}, err
	}
	for _, id := range u.order {
		r := u.records[id]
		if r.user.Email == identifier || r.user.Phone == identifier {
			return r.user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (u *Users) GetByID(_ context.Context, id string) (models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.fail("GetByID"); err != nil {
		return models.User{}, err
	}
	r, ok := u.records[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return r.user, nil
}

func (u *Users) GetProfile(_ context.Context, id string) (models.UserProfile, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.fail("GetProfile"); err != nil {
		return models.UserProfile{}, err
	}
	r, ok := u.records[id]
	if !ok {
		return models.UserProfile{}, repository.ErrUserNotFound
	}
	return joined(r), nil
}

func joined(r *record) models.UserProfile {
	p := r.profile
	gender := string(p.Gender)
	dob := p.DateOfBirth
	return models.UserProfile{
		User:            r.user,
		FullName:        &p.FullName,
		Gender:          &gender,
		DateOfBirth:     &dob,
		County:          &p.County,
		Payam:           &p.Payam,
		Bio:             p.Bio,
		ProfilePhotoURL: p.ProfilePhotoURL,
	}
}

func (u *Users) Taken(_ context.Context, email, phone, excludeID string) (bool, bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.fail("Taken"); err != nil {
		return false, false, err
	}
	var emailTaken, phoneTaken bool
	for id, r := range u.records {
		if id == excludeID {
			continue
		}
		emailTaken = emailTaken || (email != "" && r.user.Email == email)
		phoneTaken = phoneTaken || (phone != "" && r.user.Phone == phone)
	}
	return emailTaken, phoneTaken, nil
}

func (u *Users) TouchLastLogin(_ context.Context, id string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.fail("TouchLastLogin"); err != nil {
		return err
	}
	if r, ok := u.records[id]; ok {
		now := time.Now()
		r.user.LastLoginAt = &now
		u.Writes++
	}
	return nil
}

func (u *Users) UpdatePassword(_ context.Context, id, passwordHash string, validAfter time.Time) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.fail("UpdatePassword"); err != nil {
		return err
	}
	r, ok := u.records[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	r.user.PasswordHash = passwordHash
	r.user.LastLoginAt = nil
	r.user.TokensValidAfter = &validAfter
	u.Writes++
	return nil
}

func (u *Users) PhotoPath(_ context.Context, id string) (*string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.fail("PhotoPath"); err != nil {
		return nil, err
	}
	r, ok := u.records[id]
	if !ok {
		return nil, nil
	}
	return r.profile.ProfilePhotoURL, nil
}

func (u *Users) ApplyProfilePatch(_ context.Context, id string, patch models.ProfilePatch) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.fail("ApplyProfilePatch"); err != nil {
		return err
	}
	r, ok := u.records[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	var email, phone string
	if patch.Email != nil {
		email = *patch.Email
	}
	if patch.Phone != nil {
		phone = *patch.Phone
	}
	if err := u.conflict(email, phone, id); err != nil {
		return err
	}

	if patch.Email != nil {
		r.user.Email = *patch.Email
	}
	if patch.Phone != nil {
		r.user.Phone = *patch.Phone
	}
	r.profile.FullName = patch.FullName
	r.profile.Gender = patch.Gender
	r.profile.DateOfBirth = patch.DateOfBirth
	r.profile.County = patch.County
	r.profile.Payam = patch.Payam
	if patch.Bio == "" {
		r.profile.Bio = nil
	} else {
		bio := patch.Bio
		r.profile.Bio = &bio
	}
	if patch.PhotoPath != nil {
		path := *patch.PhotoPath
		r.profile.ProfilePhotoURL = &path
	}
	u.Writes++
	return nil
}

func (u *Users) List(_ context.Context, page models.Page) ([]models.UserProfile, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.fail("List"); err != nil {
		return nil, err
	}
	ids := append([]string(nil), u.order...)
	sort.SliceStable(ids, func(i, j int) bool {
		return u.records[ids[i]].user.CreatedAt.After(u.records[ids[j]].user.CreatedAt)
	})

	if page.Limited() {
		start := min(page.Offset(), len(ids))
		end := min(start+page.PerPage, len(ids))
		ids = ids[start:end]
	}

	out := make([]models.UserProfile, 0, len(ids))
	for _, id := range ids {
		out = append(out, joined(u.records[id]))
	}
	return out, nil
}

func (u *Users) Count(context.Context) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.fail("Count"); err != nil {
		return 0, err
	}
	return int64(len(u.records)), nil
}

func (u *Users) SetStatus(_ context.Context, id string, status models.UserStatus, entry models.ApprovalLog) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.fail("SetStatus"); err != nil {
		return err
	}
	r, ok := u.records[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	r.user.Status = status
	entry.UserID = id
	entry.CreatedAt = time.Now()
	u.Logs = append(u.Logs, entry)
	u.Writes++
	return nil
}

// Put stores a record directly, bypassing uniqueness checks.
func (u *Users) Put(user models.User, profile models.Profile) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().Add(time.Duration(len(u.order)) * time.Millisecond)
	}
	profile.UserID = user.ID
	if _, ok := u.records[user.ID]; !ok {
		u.order = append(u.order, user.ID)
	}
	u.records[user.ID] = &record{user: user, profile: profile}
}

// Record returns a copy of the stored account and profile.
func (u *Users) Record(id string) (models.User, models.Profile, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	r, ok := u.records[id]
	if !ok {
		return models.User{}, models.Profile{}, false
	}
	return r.user, r.profile, true
}
