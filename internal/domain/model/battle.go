package model

import "time"

type BattleStatus string

const (
	BattleWaiting    BattleStatus = "waiting"
	BattleInvited    BattleStatus = "invited"
	BattleInProgress BattleStatus = "in_progress"
	BattleCompleted  BattleStatus = "completed"
)

// Battle records are never deleted and only change through the state
// machine transitions in the battle service. WinnerID stays nil on a
// draw even after completion.
type Battle struct {
	ID              string       `json:"id"`
	CreatorID       string       `json:"creator_id"`
	OpponentID      *string      `json:"opponent_id,omitempty"`
	InvitedUserID   *string      `json:"invited_user_id,omitempty"`
	ChallengeID     *string      `json:"challenge_id,omitempty"`
	Status          BattleStatus `json:"status"`
	DurationMinutes int          `json:"duration_minutes"`
	PrizePoints     int          `json:"prize_points"`
	WinnerID        *string      `json:"winner_id,omitempty"`
	StartedAt       *time.Time   `json:"started_at,omitempty"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// IsParticipant reports whether the user is the creator or the bound
// opponent. Invited users are not participants until they accept.
func (b *Battle) IsParticipant(userID string) bool {
	if b.CreatorID == userID {
		return true
	}
	return b.OpponentID != nil && *b.OpponentID == userID
}

// Opponent returns the other participant's ID, if one is bound.
func (b *Battle) Opponent(userID string) (string, bool) {
	if b.OpponentID == nil {
		return "", false
	}
	if b.CreatorID == userID {
		return *b.OpponentID, true
	}
	if *b.OpponentID == userID {
		return b.CreatorID, true
	}
	return "", false
}
