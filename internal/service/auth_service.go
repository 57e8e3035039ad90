package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ataryouth/internal/apperror"
	"ataryouth/internal/config"
	"ataryouth/internal/ids"
	"ataryouth/internal/models"
	"ataryouth/internal/repository"
	"ataryouth/internal/security"
	"ataryouth/internal/validation"
)

const (
	minPasswordLength = 6
	maxPasswordLength = 72

	msgInvalidCredentials = "Invalid credentials"
	msgUserNotFound       = "User not found"
	msgInvalidPhone       = "Invalid South Sudan phone format (+211XXXXXXXXX)"
)

type AuthService struct {
	users              UserStore
	hasher             *security.PasswordHasher
	tokens             *security.TokenIssuer
	throttle           LoginThrottle
	photos             PhotoResolver
	registrationStatus models.UserStatus
	now                func() time.Time
	log                zerolog.Logger
}

func NewAuthService(
	users UserStore,
	hasher *security.PasswordHasher,
	tokens *security.TokenIssuer,
	throttle LoginThrottle,
	photos PhotoResolver,
	cfg config.AuthConfig,
	log zerolog.Logger,
) *AuthService {
	if throttle == nil {
		throttle = allowAll{}
	}
	status := models.UserStatus(cfg.RegistrationStatus)
	if status != models.UserStatusPending {
		status = models.UserStatusActive
	}
	return &AuthService{
		users:              users,
		hasher:             hasher,
		tokens:             tokens,
		throttle:           throttle,
		photos:             photos,
		registrationStatus: status,
		now:                time.Now,
		log:                log,
	}
}

type allowAll struct{}

func (allowAll) Allow(context.Context, string) (bool, error) { return true, nil }
func (allowAll) RecordFailure(context.Context, string) error { return nil }
func (allowAll) Reset(context.Context, string) error         { return nil }

type RegisterInput struct {
	Email       string
	Phone       string
	Password    string
	FullName    string
	Gender      string
	DateOfBirth string
	County      string
	Payam       string
}

type RegisterResult struct {
	UserID string
	Status models.UserStatus
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	input.Email = normalizeEmail(input.Email)
	input.Phone = strings.TrimSpace(input.Phone)
	input.FullName = strings.TrimSpace(input.FullName)
	input.County = strings.TrimSpace(input.County)
	input.Payam = strings.TrimSpace(input.Payam)

	if input.Email == "" || input.Phone == "" || input.Password == "" || input.FullName == "" ||
		input.Gender == "" || input.DateOfBirth == "" || input.County == "" || input.Payam == "" {
		return RegisterResult{}, apperror.Validation("All fields are required")
	}
	if !validation.ValidPhone(input.Phone) {
		return RegisterResult{}, apperror.Validation(msgInvalidPhone)
	}
	if err := checkPasswordLength(input.Password, "Password"); err != nil {
		return RegisterResult{}, err
	}
	gender, dob, err := parseDemographics(input.Gender, input.DateOfBirth)
	if err != nil {
		return RegisterResult{}, err
	}

	emailTaken, phoneTaken, err := s.users.Taken(ctx, input.Email, input.Phone, "")
	if err != nil {
		return RegisterResult{}, apperror.Wrap(apperror.KindUnexpected, "Registration failed", err)
	}
	if emailTaken || phoneTaken {
		return RegisterResult{}, apperror.Conflict("Email or phone already registered")
	}

	digest, err := s.hasher.Hash(input.Password)
	if err != nil {
		return RegisterResult{}, apperror.Wrap(apperror.KindUnexpected, "Registration failed", err)
	}

	user := models.User{
		ID:              ids.New(),
		Email:           input.Email,
		Phone:           input.Phone,
		PasswordHash:    digest,
		Role:            models.UserRoleUser,
		Status:          s.registrationStatus,
		IsEmailVerified: s.registrationStatus == models.UserStatusActive,
	}
	profile := models.Profile{
		UserID:      user.ID,
		FullName:    input.FullName,
		Gender:      gender,
		DateOfBirth: dob,
		County:      input.County,
		Payam:       input.Payam,
	}

	if err := s.users.Create(ctx, user, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicateAccount) {
			return RegisterResult{}, apperror.Conflict("Email or phone already registered")
		}
		return RegisterResult{}, apperror.Wrap(apperror.KindUnexpected, "Registration failed", err)
	}

	s.log.Info().Str("user_id", user.ID).Str("status", string(user.Status)).Msg("account registered")
	return RegisterResult{UserID: user.ID, Status: user.Status}, nil
}

type LoginInput struct {
	// Identifier is an email address or a phone number.
	Identifier string
	Password   string
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      SessionUser
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	identifier := normalizeEmail(input.Identifier)
	if identifier == "" || input.Password == "" {
		return LoginResult{}, apperror.Validation("Email and password required")
	}

	allowed, err := s.throttle.Allow(ctx, identifier)
	if err != nil {
		s.log.Warn().Err(err).Msg("login throttle unavailable")
	}
	if !allowed {
		return LoginResult{}, apperror.New(apperror.KindTooManyRequests, "Too many failed login attempts. Try again later.")
	}

	user, err := s.users.FindByLogin(ctx, identifier)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return LoginResult{}, apperror.Wrap(apperror.KindUnexpected, "Login failed", err)
		}
		s.hasher.Burn(input.Password)
		s.recordFailure(ctx, identifier)
		return LoginResult{}, apperror.Auth(msgInvalidCredentials)
	}

	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		s.recordFailure(ctx, identifier)
		return LoginResult{}, apperror.Auth(msgInvalidCredentials)
	}

	switch user.Status {
	case models.UserStatusActive:
	case models.UserStatusPending:
		return LoginResult{}, apperror.Forbidden("Account is pending approval. Contact administrator.")
	default:
		return LoginResult{}, apperror.Forbidden("Account is deactivated. Contact administrator.")
	}

	if err := s.throttle.Reset(ctx, identifier); err != nil {
		s.log.Warn().Err(err).Msg("reset login throttle failed")
	}

	token, expiresAt, err := s.tokens.Issue(security.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	}, 0)
	if err != nil {
		return LoginResult{}, apperror.Wrap(apperror.KindUnexpected, "Login failed", err)
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		return LoginResult{}, apperror.Wrap(apperror.KindUnexpected, "Login failed", err)
	}

	up, err := s.users.GetProfile(ctx, user.ID)
	if err != nil {
		return LoginResult{}, apperror.Wrap(apperror.KindUnexpected, "Login failed", err)
	}

	return LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      s.photos.sessionUser(up),
	}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, identifier string) {
	if err := s.throttle.RecordFailure(ctx, identifier); err != nil {
		s.log.Warn().Err(err).Msg("record login failure failed")
	}
}

// Authenticate validates a bearer token and rejects tokens issued before the
// account's last password change. Tokens for vanished accounts pass so the
// caller can answer 404.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*security.AccessClaims, error) {
	claims, _, err := s.authenticate(ctx, token)
	return claims, err
}

// AuthenticateAccount is Authenticate for routes that act on behalf of a
// live account. Tokens for deleted accounts are rejected and the role is
// taken from the stored account rather than the token.
func (s *AuthService) AuthenticateAccount(ctx context.Context, token string) (*security.AccessClaims, error) {
	claims, user, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.Auth("Account no longer exists")
	}
	claims.Role = string(user.Role)
	return claims, nil
}

func (s *AuthService) authenticate(ctx context.Context, token string) (*security.AccessClaims, *models.User, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, nil, apperror.Wrap(apperror.KindAuth, "Invalid or expired token", err)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return claims, nil, nil
		}
		return nil, nil, apperror.Wrap(apperror.KindUnexpected, "Authentication failed", err)
	}

	if user.TokensValidAfter != nil {
		if claims.IssuedAt == nil || claims.IssuedAt.Time.Before(*user.TokensValidAfter) {
			return nil, nil, apperror.Auth("Token has been revoked. Please login again.")
		}
	}
	return claims, &user, nil
}

func (s *AuthService) GetProfile(ctx context.Context, userID string) (UserView, error) {
	up, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return UserView{}, apperror.NotFound(msgUserNotFound)
		}
		return UserView{}, apperror.Wrap(apperror.KindUnexpected, "Failed to fetch profile", err)
	}
	return s.photos.userView(up), nil
}

func (s *AuthService) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return apperror.Validation("Current and new password required")
	}
	if err := checkPasswordLength(newPassword, "New password"); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperror.NotFound(msgUserNotFound)
		}
		return apperror.Wrap(apperror.KindUnexpected, "Failed to update password", err)
	}

	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return apperror.Auth("Current password is incorrect")
	}
	if s.hasher.Verify(newPassword, user.PasswordHash) {
		return apperror.Validation("New password must be different from current password")
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperror.Wrap(apperror.KindUnexpected, "Failed to update password", err)
	}

	// Token iat has second precision, so the cut-off is truncated to match.
	validAfter := s.now().Truncate(time.Second)
	if err := s.users.UpdatePassword(ctx, userID, digest, validAfter); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperror.NotFound(msgUserNotFound)
		}
		return apperror.Wrap(apperror.KindUnexpected, "Failed to update password", err)
	}

	s.log.Info().Str("user_id", userID).Msg("password changed, earlier tokens revoked")
	return nil
}

// SeedAdmin creates the default administrator unless the email is already
// registered. It reports whether an account was created.
func (s *AuthService) SeedAdmin(ctx context.Context, cfg config.SeedConfig) (bool, error) {
	if cfg.AdminPassword == "" {
		return false, errors.New("seed.adminpassword is required")
	}
	email := normalizeEmail(cfg.AdminEmail)
	if _, err := s.users.FindByLogin(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return false, err
	}

	digest, err := s.hasher.Hash(cfg.AdminPassword)
	if err != nil {
		return false, err
	}

	bio := "Default administrator account for Atar Youth Association"
	user := models.User{
		ID:              ids.New(),
		Email:           email,
		Phone:           cfg.AdminPhone,
		PasswordHash:    digest,
		Role:            models.UserRoleAdmin,
		Status:          models.UserStatusActive,
		IsEmailVerified: true,
		IsPhoneVerified: true,
	}
	profile := models.Profile{
		UserID:      user.ID,
		FullName:    "System Administrator",
		Gender:      models.GenderMale,
		DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		County:      "Central Equatoria",
		Payam:       "Juba",
		Bio:         &bio,
	}
	if err := s.users.Create(ctx, user, profile); err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func checkPasswordLength(password, label string) error {
	if len(password) < minPasswordLength {
		return apperror.Validation(fmt.Sprintf("%s must be at least %d characters", label, minPasswordLength))
	}
	if len(password) > maxPasswordLength {
		return apperror.Validation(fmt.Sprintf("%s must be at most %d characters", label, maxPasswordLength))
	}
	return nil
}

func parseDemographics(gender, dateOfBirth string) (models.Gender, time.Time, error) {
	g := models.Gender(strings.ToLower(strings.TrimSpace(gender)))
	if !g.Valid() {
		return "", time.Time{}, apperror.Validation("Valid gender required")
	}
	dob, err := time.Parse(dateOfBirthLayout, strings.TrimSpace(dateOfBirth))
	if err != nil {
		return "", time.Time{}, apperror.Validation("Valid date required")
	}
	return g, dob, nil
}
