package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"codeclash/internal/app/evaluator"
	"codeclash/internal/common"
	"codeclash/internal/domain/model"

	"github.com/rs/zerolog"
)

type battleFixture struct {
	users   *memUserRepo
	battles *memBattleRepo
	subs    *memSubmissionRepo
	svc     *BattleService
}

func newBattleFixture(t *testing.T) *battleFixture {
	t.Helper()
	users := newMemUserRepo(
		&model.User{ID: "alice", Username: "alice"},
		&model.User{ID: "bob", Username: "bob"},
		&model.User{ID: "carol", Username: "carol"},
	)
	challenges := newMemChallengeRepo(numberedChallenge("ch1", 100, 5))
	battles := newMemBattleRepo()
	subs := &memSubmissionRepo{}

	eval := evaluator.New(stubExec{}, zerolog.Nop())
	svc := NewBattleService(battles, subs, challenges, users, eval, nil, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	return &battleFixture{users: users, battles: battles, subs: subs, svc: svc}
}

func (f *battleFixture) openBattle(t *testing.T) *model.Battle {
	t.Helper()
	b, err := f.svc.CreateBattle(context.Background(), "alice", CreateBattleRequest{ChallengeID: "ch1"})
	if err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}
	return b
}

func (f *battleFixture) activeBattle(t *testing.T) *model.Battle {
	t.Helper()
	b := f.openBattle(t)
	joined, err := f.svc.Join(context.Background(), "bob", b.ID)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	return joined
}

func (f *battleFixture) user(t *testing.T, id string) *model.User {
	t.Helper()
	u, err := f.users.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindByID(%s): %v", id, err)
	}
	return u
}

func TestCreateBattleOpen(t *testing.T) {
	f := newBattleFixture(t)
	b := f.openBattle(t)

	if b.Status != model.BattleWaiting {
		t.Errorf("status = %q, want waiting", b.Status)
	}
	if b.PrizePoints != 100 {
		t.Errorf("prize = %d, want the challenge's point value by default", b.PrizePoints)
	}
	if b.OpponentID != nil {
		t.Error("open battle must have no opponent yet")
	}
}

func TestCreateBattleWithInvite(t *testing.T) {
	f := newBattleFixture(t)
	b, err := f.svc.CreateBattle(context.Background(), "alice", CreateBattleRequest{
		ChallengeID: "ch1", OpponentID: strPtr("bob"), PrizePoints: 40,
	})
	if err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}
	if b.Status != model.BattleInvited {
		t.Errorf("status = %q, want invited", b.Status)
	}
	if b.InvitedUserID == nil || *b.InvitedUserID != "bob" {
		t.Errorf("invited user = %v, want bob", b.InvitedUserID)
	}
	if b.PrizePoints != 40 {
		t.Errorf("prize = %d, want explicit 40", b.PrizePoints)
	}
}

func TestCreateBattleRejectsSelfInvite(t *testing.T) {
	f := newBattleFixture(t)
	_, err := f.svc.CreateBattle(context.Background(), "alice", CreateBattleRequest{
		ChallengeID: "ch1", OpponentID: strPtr("alice"),
	})
	if !errors.Is(err, common.ErrBadRequest) {
		t.Fatalf("err = %v, want bad request", err)
	}
}

func TestCreateBattleRejectsUnknownOpponent(t *testing.T) {
	f := newBattleFixture(t)
	_, err := f.svc.CreateBattle(context.Background(), "alice", CreateBattleRequest{
		ChallengeID: "ch1", OpponentID: strPtr("nobody"),
	})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestJoinStartsBattle(t *testing.T) {
	f := newBattleFixture(t)
	b := f.openBattle(t)

	joined, err := f.svc.Join(context.Background(), "bob", b.ID)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if joined.Status != model.BattleInProgress {
		t.Errorf("status = %q, want in_progress", joined.Status)
	}
	if joined.OpponentID == nil || *joined.OpponentID != "bob" {
		t.Errorf("opponent = %v, want bob", joined.OpponentID)
	}
	if joined.StartedAt == nil {
		t.Error("started_at not set")
	}
}

func TestJoinOwnBattleRejected(t *testing.T) {
	f := newBattleFixture(t)
	b := f.openBattle(t)

	if _, err := f.svc.Join(context.Background(), "alice", b.ID); !errors.Is(err, common.ErrBadRequest) {
		t.Fatalf("err = %v, want bad request", err)
	}
}

func TestJoinStartedBattleRejected(t *testing.T) {
	f := newBattleFixture(t)
	b := f.activeBattle(t)

	if _, err := f.svc.Join(context.Background(), "carol", b.ID); !errors.Is(err, common.ErrBattleNotJoinable) {
		t.Fatalf("err = %v, want not joinable", err)
	}
}

// Two users racing to join the same open battle: exactly one wins the
// slot, the other gets a clean conflict.
func TestJoinRaceResolvesToOneOpponent(t *testing.T) {
	f := newBattleFixture(t)
	b := f.openBattle(t)

	errs := make(map[string]error, 2)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, userID := range []string{"bob", "carol"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.svc.Join(context.Background(), id, b.ID)
			mu.Lock()
			errs[id] = err
			mu.Unlock()
		}(userID)
	}
	wg.Wait()

	var winners, losers int
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, common.ErrBattleNotJoinable):
			losers++
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}
	if winners != 1 || losers != 1 {
		t.Fatalf("winners = %d, losers = %d, want exactly one of each", winners, losers)
	}

	final, err := f.battles.FindByID(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if final.Status != model.BattleInProgress || final.OpponentID == nil {
		t.Errorf("final battle = %+v, want in_progress with a bound opponent", final)
	}
	if errs[*final.OpponentID] != nil {
		t.Errorf("bound opponent %q is not the user whose join succeeded", *final.OpponentID)
	}
}

func TestInviteAcceptStartsBattle(t *testing.T) {
	f := newBattleFixture(t)
	b, err := f.svc.CreateBattle(context.Background(), "alice", CreateBattleRequest{
		ChallengeID: "ch1", OpponentID: strPtr("bob"),
	})
	if err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}

	accepted, err := f.svc.Accept(context.Background(), "bob", b.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != model.BattleInProgress {
		t.Errorf("status = %q, want in_progress", accepted.Status)
	}
	if accepted.InvitedUserID != nil {
		t.Error("invite must be cleared on accept")
	}
	if accepted.OpponentID == nil || *accepted.OpponentID != "bob" {
		t.Errorf("opponent = %v, want bob", accepted.OpponentID)
	}
}

func TestInviteDeclineReopensBattle(t *testing.T) {
	f := newBattleFixture(t)
	b, err := f.svc.CreateBattle(context.Background(), "alice", CreateBattleRequest{
		ChallengeID: "ch1", OpponentID: strPtr("bob"),
	})
	if err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}

	declined, err := f.svc.Decline(context.Background(), "bob", b.ID)
	if err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if declined.Status != model.BattleWaiting {
		t.Errorf("status = %q, want waiting (open to anyone)", declined.Status)
	}
	if declined.InvitedUserID != nil {
		t.Error("invite must be cleared on decline")
	}

	// Anyone can now join the reopened battle.
	if _, err := f.svc.Join(context.Background(), "carol", b.ID); err != nil {
		t.Errorf("Join after decline: %v", err)
	}
}

func TestInviteOnlyInvitedUserMayRespond(t *testing.T) {
	f := newBattleFixture(t)
	b, err := f.svc.CreateBattle(context.Background(), "alice", CreateBattleRequest{
		ChallengeID: "ch1", OpponentID: strPtr("bob"),
	})
	if err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}

	if _, err := f.svc.Accept(context.Background(), "carol", b.ID); !errors.Is(err, common.ErrForbidden) {
		t.Errorf("Accept by outsider: err = %v, want forbidden", err)
	}
	if _, err := f.svc.Decline(context.Background(), "carol", b.ID); !errors.Is(err, common.ErrForbidden) {
		t.Errorf("Decline by outsider: err = %v, want forbidden", err)
	}
}

func TestBattleSubmitRequiresParticipant(t *testing.T) {
	f := newBattleFixture(t)
	b := f.activeBattle(t)

	_, err := f.svc.Submit(context.Background(), "carol", b.ID, BattleSubmitRequest{
		Language: "python", Code: "solve:1,2,3,4,5",
	})
	if !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestBattleSubmitRequiresInProgress(t *testing.T) {
	f := newBattleFixture(t)
	b := f.openBattle(t)

	_, err := f.svc.Submit(context.Background(), "alice", b.ID, BattleSubmitRequest{
		Language: "python", Code: "solve:1,2,3,4,5",
	})
	if !errors.Is(err, common.ErrBattleNotActive) {
		t.Fatalf("err = %v, want not active", err)
	}
}

func TestBattleScoringIsProportional(t *testing.T) {
	f := newBattleFixture(t)
	b := f.activeBattle(t)

	// 4 of 5 cases on a 100 point challenge.
	resp, err := f.svc.Submit(context.Background(), "alice", b.ID, BattleSubmitRequest{
		Language: "python", Code: "solve:1,2,3,4",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Points != 80 {
		t.Errorf("points = %d, want 80", resp.Points)
	}
	if resp.Passed != 4 || resp.Total != 5 {
		t.Errorf("passed/total = %d/%d, want 4/5", resp.Passed, resp.Total)
	}
	if resp.Status != model.StatusWrongAnswer {
		t.Errorf("status = %q, want wrong_answer (not all cases passed)", resp.Status)
	}
	if resp.BattleCompleted {
		t.Error("battle must not complete before the opponent submits")
	}
}

func TestBattleCompletesWithWinner(t *testing.T) {
	f := newBattleFixture(t)
	b := f.activeBattle(t)
	ctx := context.Background()

	if _, err := f.svc.Submit(ctx, "alice", b.ID, BattleSubmitRequest{
		Language: "python", Code: "solve:1,2,3,4", // 80
	}); err != nil {
		t.Fatalf("alice Submit: %v", err)
	}

	resp, err := f.svc.Submit(ctx, "bob", b.ID, BattleSubmitRequest{
		Language: "python", Code: "solve:1,2,3", // 60
	})
	if err != nil {
		t.Fatalf("bob Submit: %v", err)
	}
	if !resp.BattleCompleted {
		t.Fatal("battle should complete once both sides have submitted")
	}
	if resp.WinnerID == nil || *resp.WinnerID != "alice" {
		t.Fatalf("winner = %v, want alice", resp.WinnerID)
	}

	final, err := f.battles.FindByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if final.Status != model.BattleCompleted || final.CompletedAt == nil {
		t.Errorf("final battle = %+v, want completed with timestamp", final)
	}

	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	if alice.Points != 100 || alice.BattlesWon != 1 {
		t.Errorf("alice = %d points / %d won, want 100 / 1", alice.Points, alice.BattlesWon)
	}
	if bob.Points != 0 || bob.BattlesLost != 1 {
		t.Errorf("bob = %d points / %d lost, want 0 / 1", bob.Points, bob.BattlesLost)
	}
}

func TestBattleEqualScoresDraw(t *testing.T) {
	f := newBattleFixture(t)
	b := f.activeBattle(t)
	ctx := context.Background()

	for _, userID := range []string{"alice", "bob"} {
		if _, err := f.svc.Submit(ctx, userID, b.ID, BattleSubmitRequest{
			Language: "python", Code: "solve:1,2,3,4", // both 80
		}); err != nil {
			t.Fatalf("%s Submit: %v", userID, err)
		}
	}

	final, err := f.battles.FindByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if final.Status != model.BattleCompleted {
		t.Fatalf("status = %q, want completed", final.Status)
	}
	if final.WinnerID != nil {
		t.Errorf("winner = %v, want nil on a draw", final.WinnerID)
	}

	for _, userID := range []string{"alice", "bob"} {
		u := f.user(t, userID)
		if u.BattlesDrawn != 1 {
			t.Errorf("%s drawn = %d, want 1", userID, u.BattlesDrawn)
		}
		if u.Points != 0 {
			t.Errorf("%s points = %d, want 0 (no prize on a draw)", userID, u.Points)
		}
	}
}

func TestBattleUsesBestSubmissionPerSide(t *testing.T) {
	f := newBattleFixture(t)
	b := f.activeBattle(t)
	ctx := context.Background()

	// Alice improves from 60 to 80 before bob shows up with 60.
	for _, code := range []string{"solve:1,2,3", "solve:1,2,3,4"} {
		if _, err := f.svc.Submit(ctx, "alice", b.ID, BattleSubmitRequest{Language: "python", Code: code}); err != nil {
			t.Fatalf("alice Submit: %v", err)
		}
	}
	resp, err := f.svc.Submit(ctx, "bob", b.ID, BattleSubmitRequest{Language: "python", Code: "solve:1,2,3"})
	if err != nil {
		t.Fatalf("bob Submit: %v", err)
	}

	if !resp.BattleCompleted || resp.WinnerID == nil || *resp.WinnerID != "alice" {
		t.Fatalf("completed = %v winner = %v, want alice winning on her best score", resp.BattleCompleted, resp.WinnerID)
	}
}

func TestBattleSubmitAfterCompletionRejected(t *testing.T) {
	f := newBattleFixture(t)
	b := f.activeBattle(t)
	ctx := context.Background()

	for _, userID := range []string{"alice", "bob"} {
		if _, err := f.svc.Submit(ctx, userID, b.ID, BattleSubmitRequest{
			Language: "python", Code: "solve:1,2,3,4,5",
		}); err != nil {
			t.Fatalf("%s Submit: %v", userID, err)
		}
	}

	_, err := f.svc.Submit(ctx, "alice", b.ID, BattleSubmitRequest{
		Language: "python", Code: "solve:1,2,3,4,5",
	})
	if !errors.Is(err, common.ErrBattleNotActive) {
		t.Fatalf("err = %v, want not active after completion", err)
	}
}
