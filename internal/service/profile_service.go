package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"ataryouth/internal/apperror"
	"ataryouth/internal/media/imaging"
	"ataryouth/internal/media/sniffer"
	"ataryouth/internal/models"
	"ataryouth/internal/repository"
	"ataryouth/internal/validation"
)

// PhotoStage is the outcome of the photo part of a profile update.
type PhotoStage int

const (
	PhotoSkipped PhotoStage = iota
	PhotoAccepted
	PhotoRejected
	PhotoFailed
)

func (s PhotoStage) String() string {
	switch s {
	case PhotoAccepted:
		return "accepted"
	case PhotoRejected:
		return "rejected"
	case PhotoFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// PhotoUpload is a raw upload already written to a temp file by the caller.
type PhotoUpload struct {
	Path string
	Size int64
}

type ProfileInput struct {
	FullName    string
	Gender      string
	DateOfBirth string
	County      string
	Payam       string
	Bio         string
	// Email and Phone are only changed when non-empty.
	Email string
	Phone string
	Photo *PhotoUpload
}

type ProfileUpdateResult struct {
	User       UserView
	PhotoStage PhotoStage
	Warning    string
}

type photoOutcome struct {
	stage   PhotoStage
	result  imaging.Result
	warning string
}

type ProfileService struct {
	users          UserStore
	photos         PhotoProcessor
	cleanup        CleanupScheduler
	resolver       PhotoResolver
	maxUploadBytes int64
	log            zerolog.Logger
}

func NewProfileService(
	users UserStore,
	photos PhotoProcessor,
	cleanup CleanupScheduler,
	resolver PhotoResolver,
	maxUploadBytes int64,
	log zerolog.Logger,
) *ProfileService {
	return &ProfileService{
		users:          users,
		photos:         photos,
		cleanup:        cleanup,
		resolver:       resolver,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// UpdateProfile saves the member's own fields. A photo that is rejected or
// fails to process never fails the update: the text fields are still saved
// and the result carries a warning.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (ProfileUpdateResult, error) {
	patch, err := s.buildPatch(input)
	if err != nil {
		s.discard(input.Photo)
		return ProfileUpdateResult{}, err
	}

	if err := s.checkContacts(ctx, userID, &patch); err != nil {
		s.discard(input.Photo)
		return ProfileUpdateResult{}, err
	}

	photo := s.processPhoto(ctx, userID, input.Photo)

	var oldPath *string
	if photo.stage == PhotoAccepted {
		patch.PhotoPath = &photo.result.PrimaryPath
		if oldPath, err = s.users.PhotoPath(ctx, userID); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("read previous photo failed")
			oldPath = nil
		}
	}

	if err := s.users.ApplyProfilePatch(ctx, userID, patch); err != nil {
		if photo.stage == PhotoAccepted {
			s.photos.Cleanup(ctx, photo.result.PrimaryPath)
		}
		switch {
		case errors.Is(err, repository.ErrDuplicateAccount):
			return ProfileUpdateResult{}, apperror.Conflict("Email or phone already in use by another account")
		case errors.Is(err, repository.ErrUserNotFound):
			return ProfileUpdateResult{}, apperror.NotFound(msgUserNotFound)
		default:
			return ProfileUpdateResult{}, apperror.Wrap(apperror.KindUnexpected, "Failed to update profile", err)
		}
	}

	if oldPath != nil && *oldPath != photo.result.PrimaryPath && !imaging.IsExternal(*oldPath) {
		s.cleanup.ScheduleCleanup(ctx, *oldPath)
	}

	up, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return ProfileUpdateResult{}, apperror.Wrap(apperror.KindUnexpected, "Failed to update profile", err)
	}

	return ProfileUpdateResult{
		User:       s.resolver.userView(up),
		PhotoStage: photo.stage,
		Warning:    photo.warning,
	}, nil
}

func (s *ProfileService) buildPatch(input ProfileInput) (models.ProfilePatch, error) {
	fullName := strings.TrimSpace(input.FullName)
	county := strings.TrimSpace(input.County)
	payam := strings.TrimSpace(input.Payam)
	if fullName == "" || input.Gender == "" || input.DateOfBirth == "" || county == "" || payam == "" {
		return models.ProfilePatch{}, apperror.Validation("Missing required fields")
	}

	gender, dob, err := parseDemographics(input.Gender, input.DateOfBirth)
	if err != nil {
		return models.ProfilePatch{}, err
	}

	patch := models.ProfilePatch{
		FullName:    fullName,
		Gender:      gender,
		DateOfBirth: dob,
		County:      county,
		Payam:       payam,
		Bio:         strings.TrimSpace(input.Bio),
	}

	if phone := strings.TrimSpace(input.Phone); phone != "" {
		if !validation.ValidPhone(phone) {
			return models.ProfilePatch{}, apperror.Validation(msgInvalidPhone)
		}
		patch.Phone = &phone
	}
	if email := normalizeEmail(input.Email); email != "" {
		patch.Email = &email
	}
	return patch, nil
}

// checkContacts drops unchanged email and phone from the patch and rejects
// values owned by another account.
func (s *ProfileService) checkContacts(ctx context.Context, userID string, patch *models.ProfilePatch) error {
	if patch.Email == nil && patch.Phone == nil {
		return nil
	}

	current, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperror.NotFound(msgUserNotFound)
		}
		return apperror.Wrap(apperror.KindUnexpected, "Failed to update profile", err)
	}
	if patch.Email != nil && *patch.Email == current.Email {
		patch.Email = nil
	}
	if patch.Phone != nil && *patch.Phone == current.Phone {
		patch.Phone = nil
	}
	if patch.Email == nil && patch.Phone == nil {
		return nil
	}

	var email, phone string
	if patch.Email != nil {
		email = *patch.Email
	}
	if patch.Phone != nil {
		phone = *patch.Phone
	}
	emailTaken, phoneTaken, err := s.users.Taken(ctx, email, phone, userID)
	if err != nil {
		return apperror.Wrap(apperror.KindUnexpected, "Failed to update profile", err)
	}
	if emailTaken || phoneTaken {
		return apperror.Conflict("Email or phone already in use by another account")
	}
	return nil
}

// processPhoto runs validate then process on a received upload.
func (s *ProfileService) processPhoto(ctx context.Context, userID string, upload *PhotoUpload) photoOutcome {
	if upload == nil {
		return photoOutcome{stage: PhotoSkipped}
	}

	if out, ok := s.validatePhoto(upload); !ok {
		s.discard(upload)
		s.log.Warn().Str("user_id", userID).Str("reason", out.warning).Msg("profile photo rejected")
		return out
	}

	result, err := s.photos.Optimize(ctx, upload.Path, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("profile photo update skipped due to processing error")
		return photoOutcome{
			stage:   PhotoFailed,
			warning: "Profile photo could not be processed; other changes were saved",
		}
	}
	return photoOutcome{stage: PhotoAccepted, result: result}
}

func (s *ProfileService) validatePhoto(upload *PhotoUpload) (photoOutcome, bool) {
	if s.maxUploadBytes > 0 && upload.Size > s.maxUploadBytes {
		return photoOutcome{
			stage:   PhotoRejected,
			warning: fmt.Sprintf("Profile photo exceeds the %dMB limit; other changes were saved", s.maxUploadBytes>>20),
		}, false
	}
	if _, err := sniffer.DetectFile(upload.Path); err != nil {
		return photoOutcome{
			stage:   PhotoRejected,
			warning: "Only JPEG, PNG and WebP images are accepted; other changes were saved",
		}, false
	}
	return photoOutcome{}, true
}

func (s *ProfileService) discard(upload *PhotoUpload) {
	if upload == nil {
		return
	}
	if err := os.Remove(upload.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn().Err(err).Str("path", upload.Path).Msg("remove rejected upload failed")
	}
}
