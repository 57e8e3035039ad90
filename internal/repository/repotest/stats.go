package repotest

import (
	"context"

	"ataryouth/internal/models"
)

// Stats returns canned dashboard figures. Err fails the named method.
type Stats struct {
	Data models.DashboardStats
	Err  map[string]error
}

func NewStats(data models.DashboardStats) *Stats {
	return &Stats{Data: data, Err: map[string]error{}}
}

func (s *Stats) UserStats(ctx context.Context) (models.UserStats, error) {
	return s.Data.Users, s.check(ctx, "UserStats")
}

func (s *Stats) TopCounties(ctx context.Context) ([]models.CountyCount, error) {
	return s.Data.Counties, s.check(ctx, "TopCounties")
}

func (s *Stats) IssueStats(ctx context.Context) (models.IssueStats, error) {
	return s.Data.Issues, s.check(ctx, "IssueStats")
}

func (s *Stats) NewsStats(ctx context.Context) (models.NewsStats, error) {
	return s.Data.News, s.check(ctx, "NewsStats")
}

func (s *Stats) ActivityStats(ctx context.Context) (models.ActivityStats, error) {
	return s.Data.Activities, s.check(ctx, "ActivityStats")
}

func (s *Stats) RecentIssues(ctx context.Context) ([]models.RecentIssue, error) {
	return s.Data.RecentIssues, s.check(ctx, "RecentIssues")
}

func (s *Stats) RecentMembers(ctx context.Context) ([]models.RecentMember, error) {
	return s.Data.RecentUsers, s.check(ctx, "RecentMembers")
}

func (s *Stats) check(ctx context.Context, method string) error {
	if err := s.Err[method]; err != nil {
		return err
	}
	return ctx.Err()
}
