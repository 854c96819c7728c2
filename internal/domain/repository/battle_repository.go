package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"codeclash/internal/common"
	"codeclash/internal/domain/model"
)

// BattleUpdate carries the fields set alongside a status transition.
// Nil fields are left untouched; ClearInvite nulls the pending invite.
type BattleUpdate struct {
	OpponentID  *string
	ClearInvite bool
	StartedAt   *time.Time
	WinnerID    *string
	CompletedAt *time.Time
}

type BattleRepository interface {
	Create(ctx context.Context, battle *model.Battle) error
	FindByID(ctx context.Context, id string) (*model.Battle, error)

	// CompareAndSetStatus commits the transition only if the record's
	// status still equals expected; it reports whether the row matched.
	// This is the sole guard against two users racing to join the same
	// open battle.
	CompareAndSetStatus(ctx context.Context, id string, expected, next model.BattleStatus, upd BattleUpdate) (bool, error)
}

type pgBattleRepository struct {
	db *sql.DB
}

func NewPgBattleRepository(db *sql.DB) BattleRepository {
	return &pgBattleRepository{db: db}
}

func (r *pgBattleRepository) Create(ctx context.Context, b *model.Battle) error {
	query := `INSERT INTO battles (id, creator_id, opponent_id, invited_user_id, challenge_id, status, duration_minutes, prize_points)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.CreatorID, b.OpponentID, b.InvitedUserID, b.ChallengeID,
		b.Status, b.DurationMinutes, b.PrizePoints)
	if err != nil {
		return fmt.Errorf("pgBattleRepository.Create: %w", err)
	}
	return nil
}

func (r *pgBattleRepository) FindByID(ctx context.Context, id string) (*model.Battle, error) {
	query := `SELECT id, creator_id, opponent_id, invited_user_id, challenge_id, status,
	                 duration_minutes, prize_points, winner_id, started_at, completed_at, created_at
	          FROM battles WHERE id = $1`

	b := &model.Battle{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.CreatorID, &b.OpponentID, &b.InvitedUserID, &b.ChallengeID, &b.Status,
		&b.DurationMinutes, &b.PrizePoints, &b.WinnerID, &b.StartedAt, &b.CompletedAt, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgBattleRepository.FindByID: %w", err)
	}
	return b, nil
}

func (r *pgBattleRepository) CompareAndSetStatus(ctx context.Context, id string, expected, next model.BattleStatus, upd BattleUpdate) (bool, error) {
	sets := []string{"status = $1"}
	args := []interface{}{next}
	argID := 2

	if upd.OpponentID != nil {
		sets = append(sets, fmt.Sprintf("opponent_id = $%d", argID))
		args = append(args, *upd.OpponentID)
		argID++
	}
	if upd.ClearInvite {
		sets = append(sets, "invited_user_id = NULL")
	}
	if upd.StartedAt != nil {
		sets = append(sets, fmt.Sprintf("started_at = $%d", argID))
		args = append(args, *upd.StartedAt)
		argID++
	}
	if upd.WinnerID != nil {
		sets = append(sets, fmt.Sprintf("winner_id = $%d", argID))
		args = append(args, *upd.WinnerID)
		argID++
	}
	if upd.CompletedAt != nil {
		sets = append(sets, fmt.Sprintf("completed_at = $%d", argID))
		args = append(args, *upd.CompletedAt)
		argID++
	}

	query := fmt.Sprintf("UPDATE battles SET %s WHERE id = $%d AND status = $%d",
		strings.Join(sets, ", "), argID, argID+1)
	args = append(args, id, expected)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("pgBattleRepository.CompareAndSetStatus: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgBattleRepository.CompareAndSetStatus rows affected: %w", err)
	}
	return affected == 1, nil
}
