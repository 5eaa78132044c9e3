package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"trivia-round-service/internal/catalog"
	"trivia-round-service/internal/domain"
	"trivia-round-service/internal/infra/memory"
	"trivia-round-service/internal/logger"
	"trivia-round-service/internal/testutil/mocks"
)

// countingStore counts settlements committed to the store.
type countingStore struct {
	*memory.SessionStore
	marks atomic.Int32
}

func (s *countingStore) CommitSettlement(ctx context.Context, userID, questionID string, progress domain.PlayerProgress) error {
	s.marks.Add(1)
	return s.SessionStore.CommitSettlement(ctx, userID, questionID, progress)
}

func (s *RoundService) lookup(userID string) *player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[userID]
}

func (s *RoundService) playerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

func TestTimeoutAndAnswerRaceSettlesOnce(t *testing.T) {
	entry := domain.QuestionEntry{
		Category: "science", Difficulty: "easy", Prompt: "H2O is?", Options: []string{"Water", "Salt", "Air"}, Answer: "Water",
	}
	c := catalog.Build(catalog.DefaultCategories, []domain.QuestionEntry{entry}, logger.Discard())

	for i := 0; i < 200; i++ {
		store := &countingStore{SessionStore: memory.NewSessionStore()}
		presenter := mocks.NewRecordingPresenter()
		s := NewRoundService(c, store, presenter, WithLogger(logger.Discard()), WithTickInterval(time.Hour))
		ctx := context.Background()
		user := fmt.Sprintf("u%d", i)

		if _, err := s.Start(ctx, user, "science", domain.Easy); err != nil {
			t.Fatalf("start: %v", err)
		}
		p := s.lookup(user)
		p.mu.Lock()
		r := p.round
		r.remaining = 1
		p.mu.Unlock()

		var wg sync.WaitGroup
		var answer domain.AnswerOutcome
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.onTick(s.baseCtx, p, r)
		}()
		go func() {
			defer wg.Done()
			var err error
			answer, err = s.SubmitAnswer(ctx, user, "Water")
			if err != nil {
				t.Errorf("submit: %v", err)
			}
		}()
		wg.Wait()
		s.Close()

		if got := store.marks.Load(); got != 1 {
			t.Fatalf("iteration %d: expected exactly one settlement, got %d", i, got)
		}
		settlements := presenter.Settlements()
		if len(settlements) != 1 {
			t.Fatalf("iteration %d: expected one rendered settlement, got %d", i, len(settlements))
		}

		progress, _ := store.LoadProgress(ctx, user)
		winner := settlements[0]
		if progress.Score != winner.PointsDelta {
			t.Fatalf("iteration %d: score %d does not match the single settlement %+v", i, progress.Score, winner)
		}
		if winner.TimedOut {
			if answer.Signal != domain.SignalNoActiveRound {
				t.Fatalf("iteration %d: losing answer should be a no-op, got %+v", i, answer)
			}
		} else if winner.PointsDelta != 5 {
			t.Fatalf("iteration %d: answer settlement should award 5, got %+v", i, winner)
		}
	}
}

func TestCountdownStopIsNonBlocking(t *testing.T) {
	var ticks atomic.Int32
	cd := startCountdown(context.Background(), time.Millisecond, func(context.Context) bool {
		ticks.Add(1)
		return true
	}, nil)
	time.Sleep(10 * time.Millisecond)
	cd.stop()

	select {
	case <-cd.wait():
	case <-time.After(time.Second):
		t.Fatalf("countdown did not exit after stop")
	}
	after := ticks.Load()
	time.Sleep(10 * time.Millisecond)
	if ticks.Load() != after {
		t.Fatalf("ticks fired after stop")
	}
}

func TestCountdownEndsWhenTickReturnsFalse(t *testing.T) {
	var ticks atomic.Int32
	var exited atomic.Bool
	cd := startCountdown(context.Background(), time.Millisecond, func(context.Context) bool {
		return ticks.Add(1) < 3
	}, func() { exited.Store(true) })

	select {
	case <-cd.wait():
	case <-time.After(time.Second):
		t.Fatalf("countdown did not finish")
	}
	if got := ticks.Load(); got != 3 {
		t.Fatalf("expected 3 ticks, got %d", got)
	}
	if !exited.Load() {
		t.Fatalf("exit hook did not run")
	}
}

func TestIdlePlayersArePruned(t *testing.T) {
	entry := domain.QuestionEntry{
		Category: "science", Difficulty: "easy", Prompt: "H2O is?", Options: []string{"Water", "Salt", "Air"}, Answer: "Water",
	}
	c := catalog.Build(catalog.DefaultCategories, []domain.QuestionEntry{entry}, logger.Discard())
	s := NewRoundService(c, memory.NewSessionStore(), mocks.NewRecordingPresenter(), WithLogger(logger.Discard()), WithTickInterval(time.Hour))
	defer s.Close()
	ctx := context.Background()

	if _, err := s.Start(ctx, "u1", "science", domain.Easy); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.playerCount() != 1 {
		t.Fatalf("an active round must keep its player slot")
	}
	if _, err := s.SubmitAnswer(ctx, "u1", "Water"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, _ = s.ApplyHint(ctx, "u2")

	deadline := time.Now().Add(time.Second)
	for s.playerCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected idle players to be dropped, %d left", s.playerCount())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCloseWaitsForCountdowns(t *testing.T) {
	entry := domain.QuestionEntry{
		Category: "science", Difficulty: "easy", Prompt: "H2O is?", Options: []string{"Water", "Salt", "Air"}, Answer: "Water",
	}
	c := catalog.Build(catalog.DefaultCategories, []domain.QuestionEntry{entry}, logger.Discard())
	s := NewRoundService(c, memory.NewSessionStore(), mocks.NewRecordingPresenter(), WithLogger(logger.Discard()), WithTickInterval(time.Hour))
	ctx := context.Background()

	if _, err := s.Start(ctx, "u1", "science", domain.Easy); err != nil {
		t.Fatalf("start: %v", err)
	}
	p := s.lookup("u1")
	p.mu.Lock()
	cd := p.round.countdown
	p.mu.Unlock()

	s.Close()
	select {
	case <-cd.wait():
	default:
		t.Fatalf("Close returned before the countdown exited")
	}

	if _, err := s.Start(ctx, "u2", "science", domain.Easy); !errors.Is(err, domain.ErrClosed) {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
}
