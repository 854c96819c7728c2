package service

import (
	"context"
	"database/sql"
	"time"

	"codeclash/internal/app/evaluator"
	"codeclash/internal/common"
	"codeclash/internal/domain/model"
	"codeclash/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BattleService drives the battle lifecycle. All transitions go through
// the repository's compare-and-set so racing requests resolve to exactly
// one winner without locking.
type BattleService struct {
	battleRepo     repository.BattleRepository
	submissionRepo repository.SubmissionRepository
	challengeRepo  repository.ChallengeRepository
	userRepo       repository.UserRepository
	eval           *evaluator.Evaluator
	db             *sql.DB
	log            zerolog.Logger
	now            func() time.Time
}

func NewBattleService(
	battleRepo repository.BattleRepository,
	subRepo repository.SubmissionRepository,
	challengeRepo repository.ChallengeRepository,
	userRepo repository.UserRepository,
	eval *evaluator.Evaluator,
	db *sql.DB,
	log zerolog.Logger,
) *BattleService {
	return &BattleService{
		battleRepo:     battleRepo,
		submissionRepo: subRepo,
		challengeRepo:  challengeRepo,
		userRepo:       userRepo,
		eval:           eval,
		db:             db,
		log:            log,
		now:            time.Now,
	}
}

type CreateBattleRequest struct {
	ChallengeID     string  `json:"challenge_id"`
	OpponentID      *string `json:"opponent_id,omitempty"`
	DurationMinutes int     `json:"duration_minutes"`
	PrizePoints     int     `json:"prize_points"`
}

// CreateBattle opens a battle in waiting, or invited when an opponent is
// named. A user may hold any number of open battles; no limit is
// enforced.
func (s *BattleService) CreateBattle(ctx context.Context, creatorID string, req CreateBattleRequest) (*model.Battle, error) {
	if req.ChallengeID == "" {
		return nil, common.Errorf("challenge_id is required: %w", common.ErrBadRequest)
	}
	challenge, err := s.challengeRepo.FindByID(ctx, req.ChallengeID)
	if err != nil {
		return nil, common.Errorf("challenge not found: %w", err)
	}

	battle := &model.Battle{
		ID:              uuid.NewString(),
		CreatorID:       creatorID,
		ChallengeID:     &challenge.ID,
		Status:          model.BattleWaiting,
		DurationMinutes: req.DurationMinutes,
		PrizePoints:     req.PrizePoints,
	}
	if battle.PrizePoints == 0 {
		battle.PrizePoints = challenge.PointValue()
	}

	if req.OpponentID != nil && *req.OpponentID != "" {
		if *req.OpponentID == creatorID {
			return nil, common.Errorf("cannot invite yourself: %w", common.ErrBadRequest)
		}
		if _, err := s.userRepo.FindByID(ctx, *req.OpponentID); err != nil {
			return nil, common.Errorf("invited user not found: %w", err)
		}
		battle.Status = model.BattleInvited
		battle.InvitedUserID = req.OpponentID
	}

	if err := s.battleRepo.Create(ctx, battle); err != nil {
		return nil, common.Errorf("failed to create battle: %w", err)
	}

	s.log.Info().Str("battle_id", battle.ID).Str("creator_id", creatorID).Str("status", string(battle.Status)).Msg("battle created")
	return battle, nil
}

func (s *BattleService) GetBattle(ctx context.Context, id string) (*model.Battle, error) {
	return s.battleRepo.FindByID(ctx, id)
}

// Join moves an open battle to in_progress. The transition only commits
// if the record is still waiting; the losing racer gets
// ErrBattleNotJoinable instead of corrupting state.
func (s *BattleService) Join(ctx context.Context, userID, battleID string) (*model.Battle, error) {
	battle, err := s.battleRepo.FindByID(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if battle.CreatorID == userID {
		return nil, common.Errorf("cannot join your own battle: %w", common.ErrBadRequest)
	}
	if battle.Status != model.BattleWaiting {
		return nil, common.ErrBattleNotJoinable
	}

	startedAt := s.now()
	ok, err := s.battleRepo.CompareAndSetStatus(ctx, battleID, model.BattleWaiting, model.BattleInProgress, repository.BattleUpdate{
		OpponentID: &userID,
		StartedAt:  &startedAt,
	})
	if err != nil {
		return nil, common.Errorf("failed to join battle: %w", err)
	}
	if !ok {
		return nil, common.ErrBattleNotJoinable
	}

	s.log.Info().Str("battle_id", battleID).Str("opponent_id", userID).Msg("battle joined")
	return s.battleRepo.FindByID(ctx, battleID)
}

// Accept binds the invited user as opponent and starts the battle.
func (s *BattleService) Accept(ctx context.Context, userID, battleID string) (*model.Battle, error) {
	battle, err := s.battleRepo.FindByID(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if battle.Status != model.BattleInvited {
		return nil, common.ErrBattleNotInvited
	}
	if battle.InvitedUserID == nil || *battle.InvitedUserID != userID {
		return nil, common.Errorf("only the invited user may accept: %w", common.ErrForbidden)
	}

	startedAt := s.now()
	ok, err := s.battleRepo.CompareAndSetStatus(ctx, battleID, model.BattleInvited, model.BattleInProgress, repository.BattleUpdate{
		OpponentID:  &userID,
		ClearInvite: true,
		StartedAt:   &startedAt,
	})
	if err != nil {
		return nil, common.Errorf("failed to accept battle: %w", err)
	}
	if !ok {
		return nil, common.ErrBattleNotInvited
	}

	s.log.Info().Str("battle_id", battleID).Str("opponent_id", userID).Msg("battle invite accepted")
	return s.battleRepo.FindByID(ctx, battleID)
}

// Decline returns an invited battle to waiting with the invite cleared.
func (s *BattleService) Decline(ctx context.Context, userID, battleID string) (*model.Battle, error) {
	battle, err := s.battleRepo.FindByID(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if battle.Status != model.BattleInvited {
		return nil, common.ErrBattleNotInvited
	}
	if battle.InvitedUserID == nil || *battle.InvitedUserID != userID {
		return nil, common.Errorf("only the invited user may decline: %w", common.ErrForbidden)
	}

	ok, err := s.battleRepo.CompareAndSetStatus(ctx, battleID, model.BattleInvited, model.BattleWaiting, repository.BattleUpdate{
		ClearInvite: true,
	})
	if err != nil {
		return nil, common.Errorf("failed to decline battle: %w", err)
	}
	if !ok {
		return nil, common.ErrBattleNotInvited
	}

	s.log.Info().Str("battle_id", battleID).Str("user_id", userID).Msg("battle invite declined")
	return s.battleRepo.FindByID(ctx, battleID)
}

type BattleSubmitRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

type BattleSubmitResponse struct {
	SubmissionID    string                 `json:"submission_id"`
	Status          model.SubmissionStatus `json:"status"`
	Points          int                    `json:"points"`
	Passed          int                    `json:"passed"`
	Total           int                    `json:"total"`
	TestResults     []model.TestResult     `json:"test_results"`
	BattleCompleted bool                   `json:"battle_completed,omitempty"`
	WinnerID        *string                `json:"winner_id,omitempty"`
}

// Submit scores a participant's code against the battle's linked
// challenge. Battle scoring is proportional to passed cases, so two
// participants can finish with different scores on the same challenge.
// Once both participants have a submission on record the battle is
// finalized exactly once.
func (s *BattleService) Submit(ctx context.Context, userID, battleID string, req BattleSubmitRequest) (*BattleSubmitResponse, error) {
	if req.Language == "" || req.Code == "" {
		return nil, common.Errorf("language and code are required: %w", common.ErrBadRequest)
	}

	battle, err := s.battleRepo.FindByID(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if !battle.IsParticipant(userID) {
		return nil, common.Errorf("only battle participants may submit: %w", common.ErrForbidden)
	}
	if battle.Status != model.BattleInProgress {
		return nil, common.ErrBattleNotActive
	}
	if battle.ChallengeID == nil {
		return nil, common.Errorf("battle has no linked challenge: %w", common.ErrConflict)
	}

	challenge, err := s.challengeRepo.FindByID(ctx, *battle.ChallengeID)
	if err != nil {
		return nil, common.Errorf("battle challenge not found: %w", err)
	}
	if !challenge.AllowsLanguage(req.Language) {
		return nil, common.Errorf("language %q is not allowed for this challenge: %w", req.Language, common.ErrBadRequest)
	}

	total := len(challenge.TestCases)
	evalResult, err := s.eval.Evaluate(ctx, req.Code, req.Language, challenge.TestCases)
	if err != nil {
		return nil, err
	}

	status, _ := scoreEvaluation(challenge, evalResult, total)
	passed := evalResult.PassedCount()
	score := 0
	if total > 0 {
		score = challenge.PointValue() * passed / total
	}

	submission := &model.Submission{
		ID:          uuid.NewString(),
		UserID:      userID,
		ChallengeID: &challenge.ID,
		BattleID:    &battle.ID,
		Language:    req.Language,
		Code:        req.Code,
		Status:      status,
		Score:       score,
		TestResults: evalResult.Results,
		SubmittedAt: s.now(),
	}
	if err := s.submissionRepo.Insert(ctx, nil, submission); err != nil {
		return nil, common.Errorf("failed to record battle submission: %w", err)
	}

	resp := &BattleSubmitResponse{
		SubmissionID: submission.ID,
		Status:       status,
		Points:       score,
		Passed:       passed,
		Total:        total,
		TestResults:  evalResult.Results,
	}

	completed, winnerID, err := s.maybeFinalize(ctx, battle, userID)
	if err != nil {
		// The submission is already recorded; finalization will be
		// retried on the next submission from either side.
		s.log.Error().Err(err).Str("battle_id", battle.ID).Msg("battle finalization failed")
		return resp, nil
	}
	resp.BattleCompleted = completed
	resp.WinnerID = winnerID
	return resp, nil
}

// maybeFinalize completes the battle once both participants have at
// least one submission. The in_progress -> completed compare-and-set
// guarantees the prize is credited exactly once even when both
// participants submit concurrently.
func (s *BattleService) maybeFinalize(ctx context.Context, battle *model.Battle, userID string) (bool, *string, error) {
	opponentID, ok := battle.Opponent(userID)
	if !ok {
		return false, nil, nil
	}

	myBest, mine, err := s.submissionRepo.BestBattleScore(ctx, nil, userID, battle.ID)
	if err != nil {
		return false, nil, err
	}
	theirBest, theirs, err := s.submissionRepo.BestBattleScore(ctx, nil, opponentID, battle.ID)
	if err != nil {
		return false, nil, err
	}
	if !mine || !theirs {
		return false, nil, nil
	}

	var winnerID, loserID *string
	switch {
	case myBest > theirBest:
		winnerID, loserID = &userID, &opponentID
	case theirBest > myBest:
		winnerID, loserID = &opponentID, &userID
	}

	completedAt := s.now()
	committed, err := s.battleRepo.CompareAndSetStatus(ctx, battle.ID, model.BattleInProgress, model.BattleCompleted, repository.BattleUpdate{
		WinnerID:    winnerID,
		CompletedAt: &completedAt,
	})
	if err != nil {
		return false, nil, err
	}
	if !committed {
		// A concurrent submission finalized first; report its outcome.
		final, err := s.battleRepo.FindByID(ctx, battle.ID)
		if err != nil {
			return false, nil, err
		}
		return final.Status == model.BattleCompleted, final.WinnerID, nil
	}

	if err := s.creditOutcome(ctx, battle, winnerID, loserID); err != nil {
		return true, winnerID, err
	}

	event := s.log.Info().Str("battle_id", battle.ID)
	if winnerID != nil {
		event = event.Str("winner_id", *winnerID)
	} else {
		event = event.Bool("draw", true)
	}
	event.Msg("battle completed")

	return true, winnerID, nil
}

func (s *BattleService) creditOutcome(ctx context.Context, battle *model.Battle, winnerID, loserID *string) error {
	var tx *sql.Tx
	var err error
	if s.db != nil {
		tx, err = s.db.BeginTx(ctx, nil)
		if err != nil {
			return common.Errorf("failed to begin transaction for battle outcome: %w", err)
		}
		defer tx.Rollback()
	}

	if winnerID == nil {
		// Draw: both participants get a drawn counter, nobody is credited
		// points.
		for _, id := range []string{battle.CreatorID, *battle.OpponentID} {
			if err := s.userRepo.IncrementCounters(ctx, tx, id, repository.UserCounterDeltas{BattlesDrawn: 1}); err != nil {
				return err
			}
		}
	} else {
		if err := s.userRepo.IncrementCounters(ctx, tx, *winnerID, repository.UserCounterDeltas{
			Points:     battle.PrizePoints,
			BattlesWon: 1,
		}); err != nil {
			return err
		}
		if err := s.userRepo.IncrementCounters(ctx, tx, *loserID, repository.UserCounterDeltas{BattlesLost: 1}); err != nil {
			return err
		}
	}

	if tx != nil {
		return tx.Commit()
	}
	return nil
}
