package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"codeclash/internal/app/executor"
	"codeclash/internal/common"
	"codeclash/internal/domain/model"
	"codeclash/internal/domain/repository"
)

// In-memory repository implementations. They ignore the *sql.Tx argument
// and guard their state with a mutex instead, which is enough for the
// concurrency the services exercise.

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemUserRepo(users ...*model.User) *memUserRepo {
	r := &memUserRepo{users: make(map[string]*model.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUserRepo) findBy(match func(*model.User) bool) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findBy(func(u *model.User) bool { return u.Email == email })
}

func (r *memUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findBy(func(u *model.User) bool { return u.Username == username })
}

func (r *memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findBy(func(u *model.User) bool { return u.ID == id })
}

func (r *memUserRepo) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.User, error) {
	return r.FindByID(ctx, id)
}

func (r *memUserRepo) IncrementCounters(ctx context.Context, tx *sql.Tx, userID string, d repository.UserCounterDeltas) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return common.ErrNotFound
	}
	u.Points += d.Points
	u.ChallengesSolved += d.ChallengesSolved
	u.BattlesWon += d.BattlesWon
	u.BattlesLost += d.BattlesLost
	u.BattlesDrawn += d.BattlesDrawn
	return nil
}

func (r *memUserRepo) UpdateStreak(ctx context.Context, tx *sql.Tx, userID string, streakDays int, lastActivity time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return common.ErrNotFound
	}
	u.StreakDays = streakDays
	la := lastActivity
	u.LastActivity = &la
	return nil
}

func (r *memUserRepo) ListByRank(ctx context.Context, limit int) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Points != users[j].Points {
			return users[i].Points > users[j].Points
		}
		if users[i].StreakDays != users[j].StreakDays {
			return users[i].StreakDays > users[j].StreakDays
		}
		return users[i].ID < users[j].ID
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (r *memUserRepo) ListByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []model.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			users = append(users, *u)
		}
	}
	return users, nil
}

type memChallengeRepo struct {
	mu         sync.Mutex
	challenges map[string]*model.Challenge
}

func newMemChallengeRepo(challenges ...*model.Challenge) *memChallengeRepo {
	r := &memChallengeRepo{challenges: make(map[string]*model.Challenge)}
	for _, c := range challenges {
		r.challenges[c.ID] = c
	}
	return r
}

func (r *memChallengeRepo) Create(ctx context.Context, c *model.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.challenges {
		if existing.Slug == c.Slug {
			return fmt.Errorf("challenge with this slug already exists: %w", common.ErrConflict)
		}
	}
	cp := *c
	r.challenges[c.ID] = &cp
	return nil
}

func (r *memChallengeRepo) FindByID(ctx context.Context, id string) (*model.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memChallengeRepo) FindBySlug(ctx context.Context, slug string) (*model.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.challenges {
		if c.Slug == slug {
			cp := *c
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

type memSubmissionRepo struct {
	mu   sync.Mutex
	subs []*model.Submission
}

func (r *memSubmissionRepo) Insert(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sub
	r.subs = append(r.subs, &cp)
	return nil
}

func (r *memSubmissionRepo) BestChallengeScore(ctx context.Context, tx *sql.Tx, userID, challengeID string) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	best, found := 0, false
	for _, s := range r.subs {
		if s.UserID != userID || s.BattleID != nil || s.Status != model.StatusAccepted {
			continue
		}
		if s.ChallengeID == nil || *s.ChallengeID != challengeID {
			continue
		}
		found = true
		if s.Score > best {
			best = s.Score
		}
	}
	return best, found, nil
}

func (r *memSubmissionRepo) BestBattleScore(ctx context.Context, tx *sql.Tx, userID, battleID string) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	best, found := 0, false
	for _, s := range r.subs {
		if s.UserID != userID || s.BattleID == nil || *s.BattleID != battleID {
			continue
		}
		found = true
		if s.Score > best {
			best = s.Score
		}
	}
	return best, found, nil
}

func (r *memSubmissionRepo) ChallengePointsByUser(ctx context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	best := make(map[string]map[string]int) // user -> challenge -> best
	for _, s := range r.subs {
		if s.BattleID != nil || s.Status != model.StatusAccepted || s.ChallengeID == nil {
			continue
		}
		if best[s.UserID] == nil {
			best[s.UserID] = make(map[string]int)
		}
		if s.Score > best[s.UserID][*s.ChallengeID] {
			best[s.UserID][*s.ChallengeID] = s.Score
		}
	}
	return sumPools(best), nil
}

func (r *memSubmissionRepo) BattlePointsByUser(ctx context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	best := make(map[string]map[string]int) // user -> battle -> best
	for _, s := range r.subs {
		if s.BattleID == nil {
			continue
		}
		if best[s.UserID] == nil {
			best[s.UserID] = make(map[string]int)
		}
		if s.Score > best[s.UserID][*s.BattleID] {
			best[s.UserID][*s.BattleID] = s.Score
		}
	}
	return sumPools(best), nil
}

func sumPools(best map[string]map[string]int) map[string]int {
	totals := make(map[string]int, len(best))
	for userID, pool := range best {
		for _, score := range pool {
			totals[userID] += score
		}
	}
	return totals
}

type memBattleRepo struct {
	mu      sync.Mutex
	battles map[string]*model.Battle
}

func newMemBattleRepo() *memBattleRepo {
	return &memBattleRepo{battles: make(map[string]*model.Battle)}
}

func (r *memBattleRepo) Create(ctx context.Context, b *model.Battle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.battles[b.ID] = &cp
	return nil
}

func (r *memBattleRepo) FindByID(ctx context.Context, id string) (*model.Battle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.battles[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memBattleRepo) CompareAndSetStatus(ctx context.Context, id string, expected, next model.BattleStatus, upd repository.BattleUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.battles[id]
	if !ok || b.Status != expected {
		return false, nil
	}
	b.Status = next
	if upd.OpponentID != nil {
		b.OpponentID = upd.OpponentID
	}
	if upd.ClearInvite {
		b.InvitedUserID = nil
	}
	if upd.StartedAt != nil {
		b.StartedAt = upd.StartedAt
	}
	if upd.WinnerID != nil {
		b.WinnerID = upd.WinnerID
	}
	if upd.CompletedAt != nil {
		b.CompletedAt = upd.CompletedAt
	}
	return true, nil
}

// stubExec interprets the submitted "code" as instructions instead of
// calling out anywhere. "solve:1,3" passes the cases whose input is 1 or
// 3; "boom" raises a runtime error; anything else fails every case. Test
// cases are expected to use expected output "out-" + input.
type stubExec struct{}

func (stubExec) Execute(ctx context.Context, code, language, stdin string) (*executor.Outcome, error) {
	if code == "boom" {
		return &executor.Outcome{Kind: executor.KindRuntimeError, ErrorText: "boom", TimeMs: 5}, nil
	}
	if rest, ok := strings.CutPrefix(code, "solve:"); ok {
		for _, input := range strings.Split(rest, ",") {
			if input == stdin {
				return &executor.Outcome{Kind: executor.KindSuccess, Stdout: "out-" + stdin, TimeMs: 10}, nil
			}
		}
	}
	return &executor.Outcome{Kind: executor.KindSuccess, Stdout: "wrong", TimeMs: 10}, nil
}

// numberedChallenge builds a challenge with test cases whose inputs are
// "1".."n" and expected outputs "out-1".."out-n".
func numberedChallenge(id string, points, cases int) *model.Challenge {
	c := &model.Challenge{
		ID:         id,
		Title:      "Challenge " + id,
		Slug:       "challenge-" + id,
		Difficulty: model.DifficultyMedium,
		Points:     points,
	}
	for i := 1; i <= cases; i++ {
		input := fmt.Sprintf("%d", i)
		c.TestCases = append(c.TestCases, model.TestCase{Input: input, ExpectedOutput: "out-" + input})
	}
	return c
}

func strPtr(s string) *string { return &s }
