package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"codeclash/internal/domain/model"
)

type SubmissionRepository interface {
	// Insert appends a submission; records are never updated afterwards.
	Insert(ctx context.Context, tx *sql.Tx, sub *model.Submission) error

	// BestChallengeScore returns the user's best accepted score for a
	// challenge, and whether any prior acceptance exists. Battle
	// submissions are excluded.
	BestChallengeScore(ctx context.Context, tx *sql.Tx, userID, challengeID string) (int, bool, error)

	// BestBattleScore returns the user's best score across their
	// submissions to a battle, and whether any submission exists at all.
	BestBattleScore(ctx context.Context, tx *sql.Tx, userID, battleID string) (int, bool, error)

	// ChallengePointsByUser sums each user's best accepted score per
	// distinct challenge (battle submissions excluded).
	ChallengePointsByUser(ctx context.Context) (map[string]int, error)

	// BattlePointsByUser sums each user's best score per distinct battle.
	BattlePointsByUser(ctx context.Context) (map[string]int, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) Insert(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	results, err := json.Marshal(sub.TestResults)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Insert marshal results: %w", err)
	}

	query := `INSERT INTO submissions (id, user_id, challenge_id, battle_id, language, code, status, score, test_results, submitted_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	args := []interface{}{
		sub.ID, sub.UserID, sub.ChallengeID, sub.BattleID, sub.Language,
		sub.Code, sub.Status, sub.Score, results, sub.SubmittedAt,
	}

	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Insert: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) BestChallengeScore(ctx context.Context, tx *sql.Tx, userID, challengeID string) (int, bool, error) {
	query := `SELECT COALESCE(MAX(score), 0), COUNT(*) FROM submissions
	          WHERE user_id = $1 AND challenge_id = $2 AND battle_id IS NULL AND status = $3`

	var best, count int
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, userID, challengeID, model.StatusAccepted).Scan(&best, &count)
	} else {
		err = r.db.QueryRowContext(ctx, query, userID, challengeID, model.StatusAccepted).Scan(&best, &count)
	}
	if err != nil {
		return 0, false, fmt.Errorf("pgSubmissionRepository.BestChallengeScore: %w", err)
	}
	return best, count > 0, nil
}

func (r *pgSubmissionRepository) BestBattleScore(ctx context.Context, tx *sql.Tx, userID, battleID string) (int, bool, error) {
	query := `SELECT COALESCE(MAX(score), 0), COUNT(*) FROM submissions
	          WHERE user_id = $1 AND battle_id = $2`

	var best, count int
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, userID, battleID).Scan(&best, &count)
	} else {
		err = r.db.QueryRowContext(ctx, query, userID, battleID).Scan(&best, &count)
	}
	if err != nil {
		return 0, false, fmt.Errorf("pgSubmissionRepository.BestBattleScore: %w", err)
	}
	return best, count > 0, nil
}

func (r *pgSubmissionRepository) ChallengePointsByUser(ctx context.Context) (map[string]int, error) {
	query := `SELECT user_id, SUM(best) FROM (
	            SELECT user_id, challenge_id, MAX(score) AS best FROM submissions
	            WHERE battle_id IS NULL AND status = $1
	            GROUP BY user_id, challenge_id
	          ) per_challenge GROUP BY user_id`
	return r.sumByUser(ctx, query, model.StatusAccepted)
}

func (r *pgSubmissionRepository) BattlePointsByUser(ctx context.Context) (map[string]int, error) {
	query := `SELECT user_id, SUM(best) FROM (
	            SELECT user_id, battle_id, MAX(score) AS best FROM submissions
	            WHERE battle_id IS NOT NULL
	            GROUP BY user_id, battle_id
	          ) per_battle GROUP BY user_id`
	return r.sumByUser(ctx, query)
}

func (r *pgSubmissionRepository) sumByUser(ctx context.Context, query string, args ...interface{}) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.sumByUser query: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var userID string
		var sum int
		if err := rows.Scan(&userID, &sum); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.sumByUser scan: %w", err)
		}
		totals[userID] = sum
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.sumByUser rows.Err: %w", err)
	}
	return totals, nil
}
