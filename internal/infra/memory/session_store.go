package memory

import (
	"context"
	"sync"

	"trivia-round-service/internal/domain"
)

type progressRecord struct {
	score  int
	streak int
	used   map[string]struct{}
	pick   domain.Pick
}

// SessionStore is an in-memory implementation of app.SessionStore. Progress is
// lost on restart; use it for tests and demos.
type SessionStore struct {
	mu      sync.RWMutex
	records map[string]*progressRecord
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		records: make(map[string]*progressRecord),
	}
}

func (s *SessionStore) recordLocked(userID string) *progressRecord {
	rec, ok := s.records[userID]
	if !ok {
		rec = &progressRecord{used: make(map[string]struct{})}
		s.records[userID] = rec
	}
	return rec
}

func (s *SessionStore) LoadProgress(_ context.Context, userID string) (domain.PlayerProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordLocked(userID)

	progress := domain.NewPlayerProgress(userID)
	progress.Score = rec.score
	progress.Streak = rec.streak
	progress.LastPick = rec.pick
	for id := range rec.used {
		progress.Used[id] = struct{}{}
	}
	return progress, nil
}

func (s *SessionStore) SaveProgress(_ context.Context, userID string, progress domain.PlayerProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordLocked(userID)
	rec.score = progress.Score
	rec.streak = progress.Streak
	return nil
}

func (s *SessionStore) IsUsed(_ context.Context, userID, questionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[userID]
	if !ok {
		return false, nil
	}
	_, used := rec.used[questionID]
	return used, nil
}

func (s *SessionStore) MarkUsed(_ context.Context, userID, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(userID).used[questionID] = struct{}{}
	return nil
}

// CommitSettlement records the outcome and spends the question under one lock.
func (s *SessionStore) CommitSettlement(_ context.Context, userID, questionID string, progress domain.PlayerProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordLocked(userID)
	rec.score = progress.Score
	rec.streak = progress.Streak
	rec.used[questionID] = struct{}{}
	return nil
}

func (s *SessionStore) SaveLastPick(_ context.Context, userID string, pick domain.Pick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(userID).pick = pick
	return nil
}
