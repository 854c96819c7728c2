package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"codeclash/internal/common"
	"codeclash/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

// UserCounterDeltas is applied atomically to a user's score state. All
// fields are increments; the scorer guarantees they are never negative.
type UserCounterDeltas struct {
	Points           int
	ChallengesSolved int
	BattlesWon       int
	BattlesLost      int
	BattlesDrawn     int
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByIDForUpdate takes a row lock so concurrent submissions from
	// the same user serialize on their read-then-write of score state.
	FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.User, error)
	IncrementCounters(ctx context.Context, tx *sql.Tx, userID string, d UserCounterDeltas) error
	UpdateStreak(ctx context.Context, tx *sql.Tx, userID string, streakDays int, lastActivity time.Time) error

	// ListByRank returns users ordered points desc, streak desc, id asc.
	ListByRank(ctx context.Context, limit int) ([]model.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.User, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, username, email, hashed_password, role, points, streak_days, last_activity,
	challenges_solved, battles_won, battles_lost, battles_drawn, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.HashedPassword, &user.Role,
		&user.Points, &user.StreakDays, &user.LastActivity,
		&user.ChallengesSolved, &user.BattlesWon, &user.BattlesLost, &user.BattlesDrawn,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, username, email, hashed_password, role)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.Email, user.HashedPassword, user.Role)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint violation
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("pgUserRepository.FindByEmail: %w", err)
	}
	return user, err
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("pgUserRepository.FindByUsername: %w", err)
	}
	return user, err
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("pgUserRepository.FindByID: %w", err)
	}
	return user, err
}

func (r *pgUserRepository) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	user, err := scanUser(tx.QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("pgUserRepository.FindByIDForUpdate: %w", err)
	}
	return user, err
}

func (r *pgUserRepository) IncrementCounters(ctx context.Context, tx *sql.Tx, userID string, d UserCounterDeltas) error {
	query := `UPDATE users SET
	            points = points + $1,
	            challenges_solved = challenges_solved + $2,
	            battles_won = battles_won + $3,
	            battles_lost = battles_lost + $4,
	            battles_drawn = battles_drawn + $5,
	            updated_at = CURRENT_TIMESTAMP
	          WHERE id = $6`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, d.Points, d.ChallengesSolved, d.BattlesWon, d.BattlesLost, d.BattlesDrawn, userID)
	} else {
		_, err = r.db.ExecContext(ctx, query, d.Points, d.ChallengesSolved, d.BattlesWon, d.BattlesLost, d.BattlesDrawn, userID)
	}
	if err != nil {
		return fmt.Errorf("pgUserRepository.IncrementCounters: %w", err)
	}
	return nil
}

func (r *pgUserRepository) UpdateStreak(ctx context.Context, tx *sql.Tx, userID string, streakDays int, lastActivity time.Time) error {
	query := `UPDATE users SET streak_days = $1, last_activity = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, streakDays, lastActivity, userID)
	} else {
		_, err = r.db.ExecContext(ctx, query, streakDays, lastActivity, userID)
	}
	if err != nil {
		return fmt.Errorf("pgUserRepository.UpdateStreak: %w", err)
	}
	return nil
}

func (r *pgUserRepository) ListByRank(ctx context.Context, limit int) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
	          ORDER BY points DESC, streak_days DESC, id ASC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.ListByRank query: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("pgUserRepository.ListByRank scan: %w", err)
		}
		users = append(users, *user)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgUserRepository.ListByRank rows.Err: %w", err)
	}
	return users, nil
}

func (r *pgUserRepository) ListByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.ListByIDs query: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("pgUserRepository.ListByIDs scan: %w", err)
		}
		users = append(users, *user)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgUserRepository.ListByIDs rows.Err: %w", err)
	}
	return users, nil
}
