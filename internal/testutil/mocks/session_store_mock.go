package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"trivia-round-service/internal/domain"
)

// MockSessionStore is a mock implementation of app.SessionStore
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) LoadProgress(ctx context.Context, userID string) (domain.PlayerProgress, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.PlayerProgress), args.Error(1)
}

func (m *MockSessionStore) SaveProgress(ctx context.Context, userID string, progress domain.PlayerProgress) error {
	args := m.Called(ctx, userID, progress)
	return args.Error(0)
}

func (m *MockSessionStore) IsUsed(ctx context.Context, userID, questionID string) (bool, error) {
	args := m.Called(ctx, userID, questionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionStore) CommitSettlement(ctx context.Context, userID, questionID string, progress domain.PlayerProgress) error {
	args := m.Called(ctx, userID, questionID, progress)
	return args.Error(0)
}

func (m *MockSessionStore) SaveLastPick(ctx context.Context, userID string, pick domain.Pick) error {
	args := m.Called(ctx, userID, pick)
	return args.Error(0)
}
