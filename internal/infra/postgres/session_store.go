package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-round-service/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// SessionStore persists progress in the players and used_questions tables.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) LoadProgress(ctx context.Context, userID string) (domain.PlayerProgress, error) {
	query, args, err := psql.Insert("players").
		Columns("user_id").
		Values(userID).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id RETURNING score, streak, last_category, last_difficulty").
		ToSql()
	if err != nil {
		return domain.PlayerProgress{}, err
	}

	progress := domain.NewPlayerProgress(userID)
	var difficulty string
	err = s.pool.QueryRow(ctx, query, args...).Scan(&progress.Score, &progress.Streak, &progress.LastPick.Category, &difficulty)
	if err != nil {
		return domain.PlayerProgress{}, fmt.Errorf("load player %s: %w", userID, err)
	}
	progress.LastPick.Difficulty = domain.Difficulty(difficulty)

	query, args, err = psql.Select("question_id").
		From("used_questions").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return domain.PlayerProgress{}, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return domain.PlayerProgress{}, fmt.Errorf("load used questions %s: %w", userID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return domain.PlayerProgress{}, fmt.Errorf("scan used question: %w", err)
		}
		progress.Used[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return domain.PlayerProgress{}, fmt.Errorf("iterate used questions: %w", err)
	}
	return progress, nil
}

func (s *SessionStore) SaveProgress(ctx context.Context, userID string, progress domain.PlayerProgress) error {
	query, args, err := saveProgressQuery(userID, progress)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("save player %s: %w", userID, err)
	}
	return nil
}

// CommitSettlement updates the player and spends the question in one transaction.
func (s *SessionStore) CommitSettlement(ctx context.Context, userID, questionID string, progress domain.PlayerProgress) error {
	saveQuery, saveArgs, err := saveProgressQuery(userID, progress)
	if err != nil {
		return err
	}
	markQuery, markArgs, err := markUsedQuery(userID, questionID)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin settlement %s: %w", userID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, saveQuery, saveArgs...); err != nil {
		return fmt.Errorf("save player %s: %w", userID, err)
	}
	if _, err := tx.Exec(ctx, markQuery, markArgs...); err != nil {
		return fmt.Errorf("mark used %s: %w", userID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit settlement %s: %w", userID, err)
	}
	return nil
}

func (s *SessionStore) SaveLastPick(ctx context.Context, userID string, pick domain.Pick) error {
	query, args, err := psql.Insert("players").
		Columns("user_id", "last_category", "last_difficulty").
		Values(userID, pick.Category, string(pick.Difficulty)).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET last_category = EXCLUDED.last_category, last_difficulty = EXCLUDED.last_difficulty, updated_at = now()").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("save last pick %s: %w", userID, err)
	}
	return nil
}

func (s *SessionStore) IsUsed(ctx context.Context, userID, questionID string) (bool, error) {
	query, args, err := isUsedQuery(userID, questionID)
	if err != nil {
		return false, err
	}
	var used bool
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&used); err != nil {
		return false, fmt.Errorf("is used %s: %w", userID, err)
	}
	return used, nil
}

func (s *SessionStore) MarkUsed(ctx context.Context, userID, questionID string) error {
	query, args, err := markUsedQuery(userID, questionID)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark used %s: %w", userID, err)
	}
	return nil
}

func isUsedQuery(userID, questionID string) (string, []interface{}, error) {
	return psql.Select("1").
		Prefix("SELECT EXISTS (").
		From("used_questions").
		Where(sq.Eq{"user_id": userID, "question_id": questionID}).
		Suffix(")").
		ToSql()
}

func saveProgressQuery(userID string, progress domain.PlayerProgress) (string, []interface{}, error) {
	return psql.Insert("players").
		Columns("user_id", "score", "streak").
		Values(userID, progress.Score, progress.Streak).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET score = EXCLUDED.score, streak = EXCLUDED.streak, updated_at = now()").
		ToSql()
}

func markUsedQuery(userID, questionID string) (string, []interface{}, error) {
	return psql.Insert("used_questions").
		Columns("user_id", "question_id").
		Values(userID, questionID).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
}
