package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"trivia-round-service/internal/domain"
)

func newTestStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionStore(client), mr
}

func TestSessionStoreCreatesZeroedRecord(t *testing.T) {
	store, mr := newTestStore(t)

	progress, err := store.LoadProgress(context.Background(), "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if progress.Score != 0 || progress.Streak != 0 || len(progress.Used) != 0 {
		t.Fatalf("expected zeroed progress, got %+v", progress)
	}
	if !mr.Exists("quiz:progress:u1") {
		t.Fatalf("expected redis hash to be created")
	}
}

func TestSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	progress, _ := store.LoadProgress(ctx, "u1")
	progress.Score, progress.Streak = -10, 0
	if err := store.SaveProgress(ctx, "u1", progress); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.MarkUsed(ctx, "u1", "q1"); err != nil {
		t.Fatalf("mark used: %v", err)
	}
	if err := store.MarkUsed(ctx, "u1", "q1"); err != nil {
		t.Fatalf("mark used twice: %v", err)
	}

	if got := mr.HGet("quiz:progress:u1", "score"); got != "-10" {
		t.Fatalf("expected score -10 in redis, got %q", got)
	}
	used, err := store.IsUsed(ctx, "u1", "q1")
	if err != nil || !used {
		t.Fatalf("expected q1 used, got %v err=%v", used, err)
	}
	if used, _ := store.IsUsed(ctx, "u2", "q1"); used {
		t.Fatalf("used set leaked across users")
	}

	reloaded, err := store.LoadProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Score != -10 || len(reloaded.Used) != 1 || !reloaded.IsUsed("q1") {
		t.Fatalf("unexpected reload %+v", reloaded)
	}
}

func TestSessionStoreSurfacesConnectionErrors(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	if _, err := store.LoadProgress(context.Background(), "u1"); err == nil {
		t.Fatalf("expected error when redis is down")
	}
	if err := store.MarkUsed(context.Background(), "u1", "q1"); err == nil {
		t.Fatalf("expected error when redis is down")
	}
	if err := store.CommitSettlement(context.Background(), "u1", "q1", domain.NewPlayerProgress("u1")); err == nil {
		t.Fatalf("expected error when redis is down")
	}
}

func TestSessionStoreCommitSettlement(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	progress, _ := store.LoadProgress(ctx, "u1")
	progress.Score, progress.Streak = 25, 3
	if err := store.CommitSettlement(ctx, "u1", "q4", progress); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if got := mr.HGet("quiz:progress:u1", "score"); got != "25" {
		t.Fatalf("expected score 25, got %q", got)
	}
	if got := mr.HGet("quiz:progress:u1", "streak"); got != "3" {
		t.Fatalf("expected streak 3, got %q", got)
	}
	if ok, _ := mr.SIsMember("quiz:used:u1", "q4"); !ok {
		t.Fatalf("expected q4 in the used set")
	}
}

func TestSessionStoreLastPick(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	fresh, _ := store.LoadProgress(ctx, "u1")
	if !fresh.LastPick.IsZero() {
		t.Fatalf("expected no pick for a new user, got %+v", fresh.LastPick)
	}

	pick := domain.Pick{Category: "cinema", Difficulty: domain.Medium}
	if err := store.SaveLastPick(ctx, "u1", pick); err != nil {
		t.Fatalf("save pick: %v", err)
	}
	reloaded, err := store.LoadProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.LastPick != pick {
		t.Fatalf("expected %+v, got %+v", pick, reloaded.LastPick)
	}
}
