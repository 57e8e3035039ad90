package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ataryouth/internal/database"
	"ataryouth/internal/ids"
	"ataryouth/internal/models"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrDuplicateAccount = errors.New("account already registered")
	ErrDuplicateEmail   = fmt.Errorf("%w: email", ErrDuplicateAccount)
	ErrDuplicatePhone   = fmt.Errorf("%w: phone", ErrDuplicateAccount)
)

const (
	emailConstraint = "users_email_key"
	phoneConstraint = "users_phone_key"
)

type UserRepository struct {
	db database.Querier
}

func NewUserRepository(db database.Querier) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts the account and its profile in one transaction.
func (r *UserRepository) Create(ctx context.Context, user models.User, profile models.Profile) error {
	const insertUser = `
		INSERT INTO users (
			id, email, phone, password_hash, role, status, is_email_verified, is_phone_verified, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW()
		)
	`
	const insertProfile = `
		INSERT INTO profiles (
			user_id, full_name, gender, date_of_birth, county, payam, bio
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertUser,
			user.ID,
			user.Email,
			user.Phone,
			user.PasswordHash,
			user.Role,
			user.Status,
			user.IsEmailVerified,
			user.IsPhoneVerified,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, insertProfile,
			user.ID,
			profile.FullName,
			profile.Gender,
			profile.DateOfBirth,
			profile.County,
			profile.Payam,
			profile.Bio,
		)
		return err
	})
	return translateUnique(err)
}

func (r *UserRepository) FindByLogin(ctx context.Context, identifier string) (models.User, error) {
	const query = `
		SELECT id, email, phone, password_hash, role, status, is_email_verified, is_phone_verified,
		       created_at, last_login_at, tokens_valid_after
		FROM users
		WHERE email = $1 OR phone = $1
		ORDER BY created_at
		LIMIT 1
	`
	return r.scanUser(r.db.QueryRow(ctx, query, identifier))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	const query = `
		SELECT id, email, phone, password_hash, role, status, is_email_verified, is_phone_verified,
		       created_at, last_login_at, tokens_valid_after
		FROM users WHERE id = $1
	`
	return r.scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *UserRepository) scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Phone,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.IsEmailVerified,
		&user.IsPhoneVerified,
		&user.CreatedAt,
		&user.LastLoginAt,
		&user.TokensValidAfter,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

const userProfileColumns = `
	u.id, u.email, u.phone, u.role, u.status, u.created_at, u.last_login_at,
	p.full_name, p.gender, p.date_of_birth, p.county, p.payam, p.bio, p.profile_photo_url
`

func scanUserProfile(row pgx.Row) (models.UserProfile, error) {
	var up models.UserProfile
	err := row.Scan(
		&up.ID,
		&up.Email,
		&up.Phone,
		&up.Role,
		&up.Status,
		&up.CreatedAt,
		&up.LastLoginAt,
		&up.FullName,
		&up.Gender,
		&up.DateOfBirth,
		&up.County,
		&up.Payam,
		&up.Bio,
		&up.ProfilePhotoURL,
	)
	return up, err
}

func (r *UserRepository) GetProfile(ctx context.Context, id string) (models.UserProfile, error) {
	query := `SELECT ` + userProfileColumns + `
		FROM users u
		LEFT JOIN profiles p ON u.id = p.user_id
		WHERE u.id = $1
	`
	up, err := scanUserProfile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.UserProfile{}, ErrUserNotFound
		}
		return models.UserProfile{}, err
	}
	return up, nil
}

// List returns accounts newest first. A zero page returns every row.
func (r *UserRepository) List(ctx context.Context, page models.Page) ([]models.UserProfile, error) {
	query := `SELECT ` + userProfileColumns + `
		FROM users u
		LEFT JOIN profiles p ON u.id = p.user_id
		ORDER BY u.created_at DESC
		LIMIT $1 OFFSET $2
	`
	var limit *int
	if page.Limited() {
		limit = &page.PerPage
	}

	rows, err := r.db.Query(ctx, query, limit, page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.UserProfile, 0)
	for rows.Next() {
		up, err := scanUserProfile(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, up)
	}
	return users, rows.Err()
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM users`
	var total int64
	err := r.db.QueryRow(ctx, query).Scan(&total)
	return total, err
}

// Taken reports whether email or phone belong to an account other than
// excludeID. An empty value is never taken.
func (r *UserRepository) Taken(ctx context.Context, email, phone, excludeID string) (emailTaken, phoneTaken bool, err error) {
	const query = `
		SELECT
			EXISTS (SELECT 1 FROM users WHERE $1 <> '' AND email = $1 AND id <> $3),
			EXISTS (SELECT 1 FROM users WHERE $2 <> '' AND phone = $2 AND id <> $3)
	`
	err = r.db.QueryRow(ctx, query, email, phone, excludeID).Scan(&emailTaken, &phoneTaken)
	return emailTaken, phoneTaken, err
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id string) error {
	const query = `UPDATE users SET last_login_at = NOW() WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

// UpdatePassword stores the new digest, clears last login and revokes every
// token issued before validAfter.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, validAfter time.Time) error {
	const query = `
		UPDATE users
		SET password_hash = $2,
		    last_login_at = NULL,
		    tokens_valid_after = $3
		WHERE id = $1
	`
	cmd, err := r.db.Exec(ctx, query, id, passwordHash, validAfter)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) PhotoPath(ctx context.Context, id string) (*string, error) {
	const query = `SELECT profile_photo_url FROM profiles WHERE user_id = $1`
	var path *string
	if err := r.db.QueryRow(ctx, query, id).Scan(&path); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return path, nil
}

// ApplyProfilePatch writes contact and profile fields together.
func (r *UserRepository) ApplyProfilePatch(ctx context.Context, id string, patch models.ProfilePatch) error {
	const updateContact = `
		UPDATE users
		SET email = COALESCE($2, email),
		    phone = COALESCE($3, phone)
		WHERE id = $1
	`
	const updateProfile = `
		UPDATE profiles
		SET full_name = $2,
		    gender = $3,
		    date_of_birth = $4,
		    county = $5,
		    payam = $6,
		    bio = NULLIF($7, ''),
		    profile_photo_url = COALESCE($8, profile_photo_url)
		WHERE user_id = $1
	`

	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, updateContact, id, patch.Email, patch.Phone)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		_, err = tx.Exec(ctx, updateProfile,
			id,
			patch.FullName,
			patch.Gender,
			patch.DateOfBirth,
			patch.County,
			patch.Payam,
			patch.Bio,
			patch.PhotoPath,
		)
		return err
	})
	return translateUnique(err)
}

// SetStatus changes the account status and appends the audit entry in the
// same transaction.
func (r *UserRepository) SetStatus(ctx context.Context, id string, status models.UserStatus, entry models.ApprovalLog) error {
	const updateStatus = `UPDATE users SET status = $2 WHERE id = $1`
	const insertLog = `
		INSERT INTO approval_logs (id, user_id, action, approved_by, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`

	if entry.ID == "" {
		entry.ID = ids.New()
	}

	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, updateStatus, id, status)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		_, err = tx.Exec(ctx, insertLog, entry.ID, id, entry.Action, entry.ApprovedBy, entry.Notes)
		return err
	})
}

func translateUnique(err error) error {
	switch database.UniqueViolation(err) {
	case "":
		return err
	case emailConstraint:
		return ErrDuplicateEmail
	case phoneConstraint:
		return ErrDuplicatePhone
	default:
		return fmt.Errorf("%w: %v", ErrDuplicateAccount, err)
	}
}
