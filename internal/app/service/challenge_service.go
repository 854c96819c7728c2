package service

import (
	"context"
	"time"

	"codeclash/internal/app/executor"
	"codeclash/internal/common"
	"codeclash/internal/domain/model"
	"codeclash/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type ChallengeService struct {
	challengeRepo repository.ChallengeRepository
}

func NewChallengeService(challengeRepo repository.ChallengeRepository) *ChallengeService {
	return &ChallengeService{challengeRepo: challengeRepo}
}

type CreateChallengeRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Difficulty  model.Difficulty `json:"difficulty"`
	Points      int              `json:"points"`
	Languages   []string         `json:"languages"`
	TestCases   []model.TestCase `json:"test_cases"`
	IsDaily     bool             `json:"is_daily"`
	PublishDate *time.Time       `json:"publish_date,omitempty"`
}

func (s *ChallengeService) CreateChallenge(ctx context.Context, userID string, req CreateChallengeRequest) (*model.Challenge, error) {
	if req.Title == "" || req.Description == "" || req.Difficulty == "" || len(req.TestCases) == 0 {
		return nil, common.Errorf("missing required fields for challenge creation: %w", common.ErrBadRequest)
	}
	switch req.Difficulty {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
	default:
		return nil, common.Errorf("unknown difficulty %q: %w", req.Difficulty, common.ErrBadRequest)
	}
	for _, lang := range req.Languages {
		if _, ok := executor.RuntimeVersion(lang); !ok {
			return nil, common.Errorf("unsupported language %q: %w", lang, common.ErrBadRequest)
		}
	}

	challenge := &model.Challenge{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Slug:        slug.Make(req.Title),
		Description: req.Description,
		Difficulty:  req.Difficulty,
		Points:      req.Points,
		Languages:   req.Languages,
		TestCases:   req.TestCases,
		IsDaily:     req.IsDaily,
		PublishDate: req.PublishDate,
		CreatedByID: &userID,
	}
	if challenge.Points == 0 {
		challenge.Points = challenge.PointValue()
	}

	if err := s.challengeRepo.Create(ctx, challenge); err != nil {
		return nil, common.Errorf("failed to create challenge: %w", err)
	}
	return challenge, nil
}

func (s *ChallengeService) GetChallenge(ctx context.Context, id string) (*model.Challenge, error) {
	challenge, err := s.challengeRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Hidden from non-admin surfaces; the submission pipeline reads test
	// cases through the repository directly.
	challenge.TestCases = nil
	return challenge, nil
}
