package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"codeclash/internal/common"
	"codeclash/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type ChallengeRepository interface {
	Create(ctx context.Context, challenge *model.Challenge) error
	FindByID(ctx context.Context, id string) (*model.Challenge, error)
	FindBySlug(ctx context.Context, slug string) (*model.Challenge, error)
}

type pgChallengeRepository struct {
	db *sql.DB
}

func NewPgChallengeRepository(db *sql.DB) ChallengeRepository {
	return &pgChallengeRepository{db: db}
}

func (r *pgChallengeRepository) Create(ctx context.Context, c *model.Challenge) error {
	testCases, err := json.Marshal(c.TestCases)
	if err != nil {
		return fmt.Errorf("pgChallengeRepository.Create marshal test cases: %w", err)
	}
	languages, err := json.Marshal(c.Languages)
	if err != nil {
		return fmt.Errorf("pgChallengeRepository.Create marshal languages: %w", err)
	}

	query := `INSERT INTO challenges (id, title, slug, description, difficulty, points, languages, test_cases, is_daily, publish_date, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.db.ExecContext(ctx, query,
		c.ID, c.Title, c.Slug, c.Description, c.Difficulty, c.Points,
		languages, testCases, c.IsDaily, c.PublishDate, c.CreatedByID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint for slug
			return fmt.Errorf("challenge with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgChallengeRepository.Create: %w", err)
	}
	return nil
}

func (r *pgChallengeRepository) FindByID(ctx context.Context, id string) (*model.Challenge, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

func (r *pgChallengeRepository) FindBySlug(ctx context.Context, slug string) (*model.Challenge, error) {
	return r.findOne(ctx, `WHERE slug = $1`, slug)
}

func (r *pgChallengeRepository) findOne(ctx context.Context, where string, arg interface{}) (*model.Challenge, error) {
	query := `SELECT id, title, slug, description, difficulty, points, languages, test_cases,
	                 is_daily, publish_date, created_by, created_at, updated_at
	          FROM challenges ` + where

	c := &model.Challenge{}
	var languages, testCases []byte
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&c.ID, &c.Title, &c.Slug, &c.Description, &c.Difficulty, &c.Points,
		&languages, &testCases, &c.IsDaily, &c.PublishDate, &c.CreatedByID,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgChallengeRepository.findOne: %w", err)
	}
	if err := json.Unmarshal(languages, &c.Languages); err != nil {
		return nil, fmt.Errorf("pgChallengeRepository.findOne unmarshal languages: %w", err)
	}
	if err := json.Unmarshal(testCases, &c.TestCases); err != nil {
		return nil, fmt.Errorf("pgChallengeRepository.findOne unmarshal test cases: %w", err)
	}
	return c, nil
}
