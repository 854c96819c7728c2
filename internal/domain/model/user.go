package model

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"` // Not exposed
	Role           string    `json:"role"`

	// Score state. Points is the canonical ledger and only ever grows via
	// the scorer's delta rule; the per-category pools on the leaderboard
	// are derived from submissions, not stored here.
	Points           int        `json:"points"`
	StreakDays       int        `json:"streak_days"`
	LastActivity     *time.Time `json:"last_activity,omitempty"`
	ChallengesSolved int        `json:"challenges_solved"`
	BattlesWon       int        `json:"battles_won"`
	BattlesLost      int        `json:"battles_lost"`
	BattlesDrawn     int        `json:"battles_drawn"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
