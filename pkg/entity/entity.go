package entity

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID
	Name         string
	PasswordHash string
}

// Activity statuses. An activity starts pending, runs active, ends done.
// Pending activities left over from a previous day become expired.
const (
	ActivityStatusPending = "pending"
	ActivityStatusActive  = "active"
	ActivityStatusDone    = "done"
	ActivityStatusExpired = "expired"
)

type Activity struct {
	ID     uuid.UUID  `json:"id"`
	UserID uuid.UUID  `json:"uid"`
	GoalID *uuid.UUID `json:"goal_id,omitempty"`
	Title  string     `json:"title"`
	Points int        `json:"points"`
	Status string     `json:"status"`
	// Completed is the user's checkbox, independent of Status:
	// an activity can be done without being checked off.
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	// Duration holds active seconds accumulated across all sessions.
	Duration  int       `json:"duration"`
	CreatedAt time.Time `json:"created_at"`
}

type Goal struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"uid"`
	Title        string    `json:"title"`
	Description  string    `json:"desc"`
	TargetPoints int       `json:"target_points"`
	Status       string    `json:"status"`
	EndDate      time.Time `json:"end_date"`
	CreatedAt    time.Time `json:"created_at"`
}
