package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"trivia-round-service/internal/domain"
)

// SessionStore keeps player progress in Redis so it survives restarts and can
// be shared by several instances.
//
//	HSET quiz:progress:{userID} score {n} streak {n} category {slug} difficulty {d}
//	SADD quiz:used:{userID} {questionID}
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) LoadProgress(ctx context.Context, userID string) (domain.PlayerProgress, error) {
	key := s.progressKey(userID)

	pipe := s.client.TxPipeline()
	pipe.HSetNX(ctx, key, "score", 0)
	pipe.HSetNX(ctx, key, "streak", 0)
	fields := pipe.HGetAll(ctx, key)
	members := pipe.SMembers(ctx, s.usedKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.PlayerProgress{}, fmt.Errorf("load progress %s: %w", userID, err)
	}

	progress := domain.NewPlayerProgress(userID)
	values := fields.Val()
	var err error
	if progress.Score, err = parseInt(values["score"]); err != nil {
		return domain.PlayerProgress{}, fmt.Errorf("decode score for %s: %w", userID, err)
	}
	if progress.Streak, err = parseInt(values["streak"]); err != nil {
		return domain.PlayerProgress{}, fmt.Errorf("decode streak for %s: %w", userID, err)
	}
	progress.LastPick = domain.Pick{Category: values["category"], Difficulty: domain.Difficulty(values["difficulty"])}
	for _, id := range members.Val() {
		progress.Used[id] = struct{}{}
	}
	return progress, nil
}

func (s *SessionStore) SaveProgress(ctx context.Context, userID string, progress domain.PlayerProgress) error {
	err := s.client.HSet(ctx, s.progressKey(userID), "score", progress.Score, "streak", progress.Streak).Err()
	if err != nil {
		return fmt.Errorf("save progress %s: %w", userID, err)
	}
	return nil
}

func (s *SessionStore) IsUsed(ctx context.Context, userID, questionID string) (bool, error) {
	used, err := s.client.SIsMember(ctx, s.usedKey(userID), questionID).Result()
	if err != nil {
		return false, fmt.Errorf("is used %s: %w", userID, err)
	}
	return used, nil
}

func (s *SessionStore) MarkUsed(ctx context.Context, userID, questionID string) error {
	if err := s.client.SAdd(ctx, s.usedKey(userID), questionID).Err(); err != nil {
		return fmt.Errorf("mark used %s: %w", userID, err)
	}
	return nil
}

// CommitSettlement writes score, streak and the used id in one MULTI/EXEC, so a
// question is never spent without its outcome.
func (s *SessionStore) CommitSettlement(ctx context.Context, userID, questionID string, progress domain.PlayerProgress) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.progressKey(userID), "score", progress.Score, "streak", progress.Streak)
		pipe.SAdd(ctx, s.usedKey(userID), questionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit settlement %s: %w", userID, err)
	}
	return nil
}

func (s *SessionStore) SaveLastPick(ctx context.Context, userID string, pick domain.Pick) error {
	err := s.client.HSet(ctx, s.progressKey(userID), "category", pick.Category, "difficulty", string(pick.Difficulty)).Err()
	if err != nil {
		return fmt.Errorf("save last pick %s: %w", userID, err)
	}
	return nil
}

func (s *SessionStore) progressKey(userID string) string {
	return "quiz:progress:" + userID
}

func (s *SessionStore) usedKey(userID string) string {
	return "quiz:used:" + userID
}

func parseInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
