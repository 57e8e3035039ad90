package repository

import (
	"context"

	"ataryouth/internal/database"
	"ataryouth/internal/models"
)

const (
	topCountiesLimit  = 5
	recentIssuesLimit = 5
	recentUsersLimit  = 5
)

// StatsRepository runs the read-only dashboard rollups. Each method is a
// single statement, so every figure is a point-in-time snapshot.
type StatsRepository struct {
	db database.Querier
}

func NewStatsRepository(db database.Querier) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) UserStats(ctx context.Context) (models.UserStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'inactive'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE role = 'officer')
		FROM users
	`
	var s models.UserStats
	err := r.db.QueryRow(ctx, query).Scan(&s.Total, &s.Active, &s.Inactive, &s.Pending, &s.Officers)
	return s, err
}

func (r *StatsRepository) TopCounties(ctx context.Context) ([]models.CountyCount, error) {
	const query = `
		SELECT county, COUNT(*) AS count
		FROM profiles
		GROUP BY county
		ORDER BY count DESC, county
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, topCountiesLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counties := make([]models.CountyCount, 0, topCountiesLimit)
	for rows.Next() {
		var c models.CountyCount
		if err := rows.Scan(&c.County, &c.Count); err != nil {
			return nil, err
		}
		counties = append(counties, c)
	}
	return counties, rows.Err()
}

func (r *StatsRepository) IssueStats(ctx context.Context) (models.IssueStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'new'),
			COUNT(*) FILTER (WHERE status = 'under_review'),
			COUNT(*) FILTER (WHERE status = 'resolved')
		FROM issues
	`
	var s models.IssueStats
	err := r.db.QueryRow(ctx, query).Scan(&s.Total, &s.New, &s.Reviewing, &s.Resolved)
	return s, err
}

func (r *StatsRepository) NewsStats(ctx context.Context) (models.NewsStats, error) {
	const query = `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'published')
		FROM news
	`
	var s models.NewsStats
	err := r.db.QueryRow(ctx, query).Scan(&s.Total, &s.Published)
	return s, err
}

func (r *StatsRepository) ActivityStats(ctx context.Context) (models.ActivityStats, error) {
	const query = `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'ongoing')
		FROM activities
	`
	var s models.ActivityStats
	err := r.db.QueryRow(ctx, query).Scan(&s.Total, &s.Ongoing)
	return s, err
}

func (r *StatsRepository) RecentIssues(ctx context.Context) ([]models.RecentIssue, error) {
	const query = `
		SELECT i.id, i.description, i.location, i.status, i.created_at,
		       it.type_name, p.full_name
		FROM issues i
		LEFT JOIN issue_types it ON i.issue_type_id = it.id
		LEFT JOIN profiles p ON i.user_id = p.user_id
		ORDER BY i.created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, recentIssuesLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	issues := make([]models.RecentIssue, 0, recentIssuesLimit)
	for rows.Next() {
		var i models.RecentIssue
		if err := rows.Scan(
			&i.ID,
			&i.Description,
			&i.Location,
			&i.Status,
			&i.CreatedAt,
			&i.TypeName,
			&i.Reporter,
		); err != nil {
			return nil, err
		}
		issues = append(issues, i)
	}
	return issues, rows.Err()
}

func (r *StatsRepository) RecentMembers(ctx context.Context) ([]models.RecentMember, error) {
	const query = `
		SELECT u.id, u.email, u.phone, u.status, u.created_at,
		       p.full_name, p.county, p.payam
		FROM users u
		LEFT JOIN profiles p ON u.id = p.user_id
		WHERE u.role = 'user'
		ORDER BY u.created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, recentUsersLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]models.RecentMember, 0, recentUsersLimit)
	for rows.Next() {
		var m models.RecentMember
		if err := rows.Scan(
			&m.ID,
			&m.Email,
			&m.Phone,
			&m.Status,
			&m.CreatedAt,
			&m.FullName,
			&m.County,
			&m.Payam,
		); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
