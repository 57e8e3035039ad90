package service

import (
	"context"
	"time"

	"ataryouth/internal/media/imaging"
	"ataryouth/internal/models"
)

// UserStore is the credential store as seen by the services.
type UserStore interface {
	Create(ctx context.Context, user models.User, profile models.Profile) error
	FindByLogin(ctx context.Context, identifier string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetProfile(ctx context.Context, id string) (models.UserProfile, error)
	Taken(ctx context.Context, email, phone, excludeID string) (emailTaken, phoneTaken bool, err error)
	TouchLastLogin(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string, validAfter time.Time) error
	PhotoPath(ctx context.Context, id string) (*string, error)
	ApplyProfilePatch(ctx context.Context, id string, patch models.ProfilePatch) error
	List(ctx context.Context, page models.Page) ([]models.UserProfile, error)
	Count(ctx context.Context) (int64, error)
	SetStatus(ctx context.Context, id string, status models.UserStatus, entry models.ApprovalLog) error
}

type StatsStore interface {
	UserStats(ctx context.Context) (models.UserStats, error)
	TopCounties(ctx context.Context) ([]models.CountyCount, error)
	IssueStats(ctx context.Context) (models.IssueStats, error)
	NewsStats(ctx context.Context) (models.NewsStats, error)
	ActivityStats(ctx context.Context) (models.ActivityStats, error)
	RecentIssues(ctx context.Context) ([]models.RecentIssue, error)
	RecentMembers(ctx context.Context) ([]models.RecentMember, error)
}

type PhotoProcessor interface {
	Optimize(ctx context.Context, rawPath, ownerID string) (imaging.Result, error)
	Cleanup(ctx context.Context, photoPath string)
}

type CleanupScheduler interface {
	ScheduleCleanup(ctx context.Context, photoPath string)
}

type LoginThrottle interface {
	Allow(ctx context.Context, identifier string) (bool, error)
	RecordFailure(ctx context.Context, identifier string) error
	Reset(ctx context.Context, identifier string) error
}

// URLBuilder maps a stored relative photo path to a public URL.
type URLBuilder interface {
	URL(relPath string) string
}
