package models

import "time"

type UserStats struct {
	Total    int64 `json:"total_users"`
	Active   int64 `json:"active_users"`
	Inactive int64 `json:"inactive_users"`
	Pending  int64 `json:"pending_users"`
	Officers int64 `json:"officers"`
}

type CountyCount struct {
	County string `json:"county"`
	Count  int64  `json:"count"`
}

type IssueStats struct {
	Total     int64 `json:"total_issues"`
	New       int64 `json:"new_issues"`
	Reviewing int64 `json:"reviewing_issues"`
	Resolved  int64 `json:"resolved_issues"`
}

type NewsStats struct {
	Total     int64 `json:"total_news"`
	Published int64 `json:"published_news"`
}

type ActivityStats struct {
	Total   int64 `json:"total_activities"`
	Ongoing int64 `json:"ongoing_activities"`
}

type RecentIssue struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	Location    *string   `json:"location"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	TypeName    *string   `json:"type_name"`
	Reporter    *string   `json:"reporter"`
}

type RecentMember struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	FullName  *string   `json:"full_name"`
	County    *string   `json:"county"`
	Payam     *string   `json:"payam"`
}

type DashboardStats struct {
	Users        UserStats      `json:"users"`
	Counties     []CountyCount  `json:"counties"`
	Issues       IssueStats     `json:"issues"`
	News         NewsStats      `json:"news"`
	Activities   ActivityStats  `json:"activities"`
	RecentIssues []RecentIssue  `json:"recent_issues"`
	RecentUsers  []RecentMember `json:"recent_users"`
}

// Page selects a window of a listing. A zero Page means no limit.
type Page struct {
	Number  int
	PerPage int
}

func (p Page) Limited() bool {
	return p.PerPage > 0
}

func (p Page) Offset() int {
	if !p.Limited() || p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.PerPage
}
