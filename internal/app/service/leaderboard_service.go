package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"codeclash/internal/domain/model"
	"codeclash/internal/domain/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// LeaderboardService derives ranked standings from the canonical point
// ledger plus per-category pools computed off the submission log.
// Rankings are cached in redis with a short TTL; a cache outage only
// costs recomputation.
type LeaderboardService struct {
	userRepo       repository.UserRepository
	submissionRepo repository.SubmissionRepository
	rdb            *redis.Client
	cacheTTL       time.Duration
	log            zerolog.Logger
}

func NewLeaderboardService(
	userRepo repository.UserRepository,
	subRepo repository.SubmissionRepository,
	rdb *redis.Client,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		userRepo:       userRepo,
		submissionRepo: subRepo,
		rdb:            rdb,
		cacheTTL:       cacheTTL,
		log:            log,
	}
}

// Rank returns the main leaderboard. The primary key is the user's raw
// cumulative points (the canonical ledger), with challenge/battle pools
// exposed as a breakdown; ties break on streak, then user ID, so
// repeated queries over unchanged data order identically.
func (s *LeaderboardService) Rank(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	cacheKey := fmt.Sprintf("leaderboard:main:%d", limit)
	var cached []model.LeaderboardEntry
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	users, err := s.userRepo.ListByRank(ctx, limit)
	if err != nil {
		return nil, err
	}
	challengePoints, err := s.submissionRepo.ChallengePointsByUser(ctx)
	if err != nil {
		return nil, err
	}
	battlePoints, err := s.submissionRepo.BattlePointsByUser(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]model.LeaderboardEntry, 0, len(users))
	for i, u := range users {
		cp := challengePoints[u.ID]
		bp := battlePoints[u.ID]
		other := u.Points - cp - bp
		if other < 0 {
			other = 0
		}
		entries = append(entries, model.LeaderboardEntry{
			Rank:             i + 1,
			UserID:           u.ID,
			Username:         u.Username,
			TotalPoints:      u.Points,
			ChallengePoints:  cp,
			BattlePoints:     bp,
			OtherPoints:      other,
			StreakDays:       u.StreakDays,
			ChallengesSolved: u.ChallengesSolved,
		})
	}

	s.cacheSet(ctx, cacheKey, entries)
	return entries, nil
}

// BattleRank returns the battles-only view, ranked purely by summed
// best-per-battle score, independent of the main ledger.
func (s *LeaderboardService) BattleRank(ctx context.Context, limit int) ([]model.BattleLeaderboardEntry, error) {
	cacheKey := fmt.Sprintf("leaderboard:battles:%d", limit)
	var cached []model.BattleLeaderboardEntry
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	battlePoints, err := s.submissionRepo.BattlePointsByUser(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(battlePoints))
	for id := range battlePoints {
		ids = append(ids, id)
	}
	users, err := s.userRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]model.BattleLeaderboardEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, model.BattleLeaderboardEntry{
			UserID:       u.ID,
			Username:     u.Username,
			BattlePoints: battlePoints[u.ID],
			BattlesWon:   u.BattlesWon,
			BattlesLost:  u.BattlesLost,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].BattlePoints != entries[j].BattlePoints {
			return entries[i].BattlePoints > entries[j].BattlePoints
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	s.cacheSet(ctx, cacheKey, entries)
	return entries, nil
}

func (s *LeaderboardService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.rdb == nil {
		return false
	}
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn().Err(err).Str("key", key).Msg("leaderboard cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("leaderboard cache entry malformed")
		return false
	}
	return true
}

func (s *LeaderboardService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("leaderboard cache write failed")
	}
}
