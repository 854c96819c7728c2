package service

import (
	"context"
	"database/sql"
	"time"

	"codeclash/internal/app/evaluator"
	"codeclash/internal/app/executor"
	"codeclash/internal/common"
	"codeclash/internal/domain/model"
	"codeclash/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SubmissionService owns the challenge-path scoring pipeline: evaluate,
// derive a status, persist the submission, and apply the best-score delta
// rule to the user's point ledger.
type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	challengeRepo  repository.ChallengeRepository
	userRepo       repository.UserRepository
	eval           *evaluator.Evaluator
	exec           executor.Client
	streak         *StreakTracker
	db             *sql.DB
	log            zerolog.Logger
	now            func() time.Time
}

func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	challengeRepo repository.ChallengeRepository,
	userRepo repository.UserRepository,
	eval *evaluator.Evaluator,
	exec executor.Client,
	streak *StreakTracker,
	db *sql.DB,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: subRepo,
		challengeRepo:  challengeRepo,
		userRepo:       userRepo,
		eval:           eval,
		exec:           exec,
		streak:         streak,
		db:             db,
		log:            log,
		now:            time.Now,
	}
}

type SubmitRequest struct {
	ChallengeID string `json:"challenge_id"`
	Language    string `json:"language"`
	Code        string `json:"code"`
}

type SubmitResponse struct {
	SubmissionID string             `json:"submission_id"`
	Status       model.SubmissionStatus `json:"status"`
	Score        int                `json:"score"`
	TestResults  []model.TestResult `json:"test_results"`
	ErrorMessage string             `json:"error_message,omitempty"`
}

// Submit evaluates the code against the challenge's test cases and
// records the result. Challenge-path scoring is all-or-nothing: full
// points on acceptance, zero otherwise. The delta applied to the user's
// cumulative points is max(0, newScore - previousBestScore), so
// re-solving never double-credits.
func (s *SubmissionService) Submit(ctx context.Context, userID string, req SubmitRequest) (*SubmitResponse, error) {
	if req.ChallengeID == "" || req.Language == "" || req.Code == "" {
		return nil, common.Errorf("challenge_id, language and code are required: %w", common.ErrBadRequest)
	}

	challenge, err := s.challengeRepo.FindByID(ctx, req.ChallengeID)
	if err != nil {
		return nil, common.Errorf("challenge not found: %w", err)
	}
	if !challenge.AllowsLanguage(req.Language) {
		return nil, common.Errorf("language %q is not allowed for this challenge: %w", req.Language, common.ErrBadRequest)
	}

	evalResult, err := s.eval.Evaluate(ctx, req.Code, req.Language, challenge.TestCases)
	if err != nil {
		return nil, err
	}

	status, score := scoreEvaluation(challenge, evalResult, len(challenge.TestCases))

	submission := &model.Submission{
		ID:          uuid.NewString(),
		UserID:      userID,
		ChallengeID: &challenge.ID,
		Language:    req.Language,
		Code:        req.Code,
		Status:      status,
		Score:       score,
		TestResults: evalResult.Results,
		SubmittedAt: s.now(),
	}

	// The prior-best read and the counter updates must see a consistent
	// snapshot; the user row lock serializes concurrent submissions from
	// the same user (e.g. two browser tabs). Repositories accept a nil
	// transaction, so in-memory implementations coordinate internally.
	var tx *sql.Tx
	if s.db != nil {
		tx, err = s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, common.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()
	}

	user, err := s.userRepo.FindByIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, common.Errorf("failed to load user: %w", err)
	}

	prevBest, hadAccepted, err := s.submissionRepo.BestChallengeScore(ctx, tx, userID, challenge.ID)
	if err != nil {
		return nil, common.Errorf("failed to look up prior best score: %w", err)
	}

	if err := s.submissionRepo.Insert(ctx, tx, submission); err != nil {
		return nil, common.Errorf("failed to record submission: %w", err)
	}

	if status == model.StatusAccepted {
		deltas := repository.UserCounterDeltas{Points: score - prevBest}
		if deltas.Points < 0 {
			deltas.Points = 0
		}
		if !hadAccepted {
			deltas.ChallengesSolved = 1
		}
		if err := s.userRepo.IncrementCounters(ctx, tx, userID, deltas); err != nil {
			return nil, common.Errorf("failed to update user counters: %w", err)
		}

		now := s.now()
		streakDays := s.streak.Next(user.LastActivity, now, user.StreakDays)
		if err := s.userRepo.UpdateStreak(ctx, tx, userID, streakDays, now); err != nil {
			return nil, common.Errorf("failed to update streak: %w", err)
		}
	}

	if tx != nil {
		if err := tx.Commit(); err != nil {
			return nil, common.Errorf("failed to commit submission: %w", err)
		}
	}

	s.log.Info().
		Str("submission_id", submission.ID).
		Str("challenge_id", challenge.ID).
		Str("user_id", userID).
		Str("status", string(status)).
		Int("score", score).
		Msg("submission recorded")

	return &SubmitResponse{
		SubmissionID: submission.ID,
		Status:       status,
		Score:        score,
		TestResults:  evalResult.Results,
		ErrorMessage: evalResult.ErrorText,
	}, nil
}

// scoreEvaluation derives the submission status and score. Accepted iff
// every case passed; otherwise the evaluator's failure kind wins, else
// wrong_answer.
func scoreEvaluation(challenge *model.Challenge, res *evaluator.Result, total int) (model.SubmissionStatus, int) {
	if res.AllPassed(total) {
		return model.StatusAccepted, challenge.PointValue()
	}
	if res.Failure != "" {
		return res.Failure, 0
	}
	return model.StatusWrongAnswer, 0
}

type RunCodeRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Input    string `json:"input"`
}

type RunCodeResponse struct {
	Output          string `json:"output"`
	Error           string `json:"error,omitempty"`
	ExecutionTimeMs int    `json:"execution_time_ms"`
	Status          string `json:"status"`
}

// RunCode executes code against ad-hoc input with no scoring and no
// persisted submission.
func (s *SubmissionService) RunCode(ctx context.Context, userID string, req RunCodeRequest) (*RunCodeResponse, error) {
	if req.Language == "" || req.Code == "" {
		return nil, common.Errorf("language and code are required: %w", common.ErrBadRequest)
	}

	outcome, err := s.exec.Execute(ctx, req.Code, req.Language, req.Input)
	if err != nil {
		return nil, err
	}

	s.log.Debug().Str("user_id", userID).Str("language", req.Language).Str("kind", string(outcome.Kind)).Msg("run code finished")

	return &RunCodeResponse{
		Output:          outcome.Stdout,
		Error:           outcome.ErrorText,
		ExecutionTimeMs: outcome.TimeMs,
		Status:          string(outcome.Kind),
	}, nil
}
