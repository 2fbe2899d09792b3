package core

import "time"

// InsightRecord is a stored insight line of a weekly digest.
type InsightRecord struct {
	Kind     string `json:"kind"`
	Category string `json:"category"`
	Message  string `json:"message"`
	Action   string `json:"action,omitempty"`
}

// Digest is the stored summary of one user's week.
type Digest struct {
	ID        int64
	UserID    string
	WeekStart Date
	Spent     Money
	Saved     Money
	Insights  []InsightRecord
	CreatedAt time.Time
}
