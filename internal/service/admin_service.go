package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ataryouth/internal/apperror"
	"ataryouth/internal/models"
	"ataryouth/internal/repository"
)

const maxPerPage = 100

type AdminService struct {
	users UserStore
	stats StatsStore
	log   zerolog.Logger
}

func NewAdminService(users UserStore, stats StatsStore, log zerolog.Logger) *AdminService {
	return &AdminService{users: users, stats: stats, log: log}
}

// DashboardStats runs every rollup concurrently. The first failure cancels
// the rest and fails the whole call.
func (s *AdminService) DashboardStats(ctx context.Context) (models.DashboardStats, error) {
	var out models.DashboardStats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		out.Users, err = s.stats.UserStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Counties, err = s.stats.TopCounties(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Issues, err = s.stats.IssueStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.News, err = s.stats.NewsStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Activities, err = s.stats.ActivityStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.RecentIssues, err = s.stats.RecentIssues(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.RecentUsers, err = s.stats.RecentMembers(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return models.DashboardStats{}, apperror.Wrap(apperror.KindUnexpected, "Failed to load dashboard data", err)
	}
	return out, nil
}

type UserList struct {
	Users   []MemberRow
	Total   int64
	Page    int
	PerPage int
}

// ListUsers returns accounts newest first. Without a page every account is
// returned.
func (s *AdminService) ListUsers(ctx context.Context, page models.Page) (UserList, error) {
	if page.PerPage < 0 || page.Number < 0 {
		return UserList{}, apperror.Validation("Invalid pagination")
	}
	if page.PerPage > maxPerPage {
		page.PerPage = maxPerPage
	}
	if page.Limited() && page.Number == 0 {
		page.Number = 1
	}

	users, err := s.users.List(ctx, page)
	if err != nil {
		return UserList{}, apperror.Wrap(apperror.KindUnexpected, "Failed to fetch users", err)
	}

	list := UserList{
		Users:   make([]MemberRow, 0, len(users)),
		Total:   int64(len(users)),
		Page:    page.Number,
		PerPage: page.PerPage,
	}
	for _, up := range users {
		list.Users = append(list.Users, memberRow(up))
	}

	if page.Limited() {
		if list.Total, err = s.users.Count(ctx); err != nil {
			return UserList{}, apperror.Wrap(apperror.KindUnexpected, "Failed to fetch users", err)
		}
	}
	return list, nil
}

// SetUserStatus activates or deactivates an account and records who did it.
// The status is validated before anything is written.
func (s *AdminService) SetUserStatus(ctx context.Context, adminID, userID, status string) (string, error) {
	target := models.UserStatus(status)
	var action models.ApprovalAction
	var verb string
	switch target {
	case models.UserStatusActive:
		action, verb = models.ApprovalActionApproved, "activated"
	case models.UserStatusInactive:
		action, verb = models.ApprovalActionRejected, "deactivated"
	default:
		return "", apperror.Validation("Invalid status")
	}
	if userID == "" {
		return "", apperror.Validation("User id required")
	}
	if userID == adminID && target == models.UserStatusInactive {
		return "", apperror.Validation("You cannot deactivate your own account")
	}

	err := s.users.SetStatus(ctx, userID, target, models.ApprovalLog{
		UserID:     userID,
		Action:     action,
		ApprovedBy: adminID,
		Notes:      fmt.Sprintf("Status changed to %s", target),
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", apperror.NotFound(msgUserNotFound)
		}
		return "", apperror.Wrap(apperror.KindUnexpected, "Failed to update user status", err)
	}

	s.log.Info().
		Str("admin_id", adminID).
		Str("user_id", userID).
		Str("status", status).
		Msg("user status changed")
	return fmt.Sprintf("User %s successfully", verb), nil
}
