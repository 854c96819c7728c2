package model

type LeaderboardEntry struct {
	Rank             int    `json:"rank"`
	UserID           string `json:"user_id"`
	Username         string `json:"username"`
	TotalPoints      int    `json:"total_points"`
	ChallengePoints  int    `json:"challenge_points"`
	BattlePoints     int    `json:"battle_points"`
	OtherPoints      int    `json:"other_points"`
	StreakDays       int    `json:"streak_days"`
	ChallengesSolved int    `json:"challenges_solved"`
}

type BattleLeaderboardEntry struct {
	Rank         int    `json:"rank"`
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	BattlePoints int    `json:"battle_points"`
	BattlesWon   int    `json:"battles_won"`
	BattlesLost  int    `json:"battles_lost"`
}
