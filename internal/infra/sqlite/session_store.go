package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"trivia-round-service/internal/domain"
	"trivia-round-service/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS players (
    user_id         TEXT PRIMARY KEY,
    score           INTEGER NOT NULL DEFAULT 0,
    streak          INTEGER NOT NULL DEFAULT 0 CHECK (streak >= 0),
    last_category   TEXT NOT NULL DEFAULT '',
    last_difficulty TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS used_questions (
    user_id     TEXT NOT NULL,
    question_id TEXT NOT NULL,
    PRIMARY KEY (user_id, question_id)
);
`

// SessionStore persists progress in a local SQLite file, for single-node
// deployments without Redis or Postgres.
type SessionStore struct {
	db  *sql.DB
	log *logger.Logger
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*SessionStore, error) {
	log := logger.Default().WithPrefix("sqlite")
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL", path)
	if path == ":memory:" {
		dsn = path
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer; also keeps one shared connection for :memory:
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Info("session store ready at %s", path)
	return &SessionStore{db: db, log: log}, nil
}

func (s *SessionStore) Close() error {
	return s.db.Close()
}

func (s *SessionStore) LoadProgress(ctx context.Context, userID string) (domain.PlayerProgress, error) {
	_, err := sq.Insert("players").
		Columns("user_id").
		Values(userID).
		Options("OR IGNORE").
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return domain.PlayerProgress{}, fmt.Errorf("ensure player %s: %w", userID, err)
	}

	progress := domain.NewPlayerProgress(userID)
	var difficulty string
	err = sq.Select("score", "streak", "last_category", "last_difficulty").
		From("players").
		Where(sq.Eq{"user_id": userID}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&progress.Score, &progress.Streak, &progress.LastPick.Category, &difficulty)
	if err != nil {
		return domain.PlayerProgress{}, fmt.Errorf("load player %s: %w", userID, err)
	}
	progress.LastPick.Difficulty = domain.Difficulty(difficulty)

	rows, err := sq.Select("question_id").
		From("used_questions").
		Where(sq.Eq{"user_id": userID}).
		RunWith(s.db).
		QueryContext(ctx)
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
	return progress, rows.Err()
}

func (s *SessionStore) SaveProgress(ctx context.Context, userID string, progress domain.PlayerProgress) error {
	_, err := saveProgress(userID, progress).RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("save player %s: %w", userID, err)
	}
	return nil
}

func (s *SessionStore) IsUsed(ctx context.Context, userID, questionID string) (bool, error) {
	var n int
	err := sq.Select("COUNT(*)").
		From("used_questions").
		Where(sq.Eq{"user_id": userID, "question_id": questionID}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&n)
	if err != nil {
		return false, fmt.Errorf("is used %s: %w", userID, err)
	}
	return n > 0, nil
}

func (s *SessionStore) MarkUsed(ctx context.Context, userID, questionID string) error {
	_, err := markUsed(userID, questionID).RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("mark used %s: %w", userID, err)
	}
	return nil
}

// CommitSettlement updates the player and spends the question in one transaction.
func (s *SessionStore) CommitSettlement(ctx context.Context, userID, questionID string, progress domain.PlayerProgress) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settlement %s: %w", userID, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := saveProgress(userID, progress).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("save player %s: %w", userID, err)
	}
	if _, err := markUsed(userID, questionID).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("mark used %s: %w", userID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settlement %s: %w", userID, err)
	}
	return nil
}

func (s *SessionStore) SaveLastPick(ctx context.Context, userID string, pick domain.Pick) error {
	_, err := sq.Insert("players").
		Columns("user_id", "last_category", "last_difficulty").
		Values(userID, pick.Category, string(pick.Difficulty)).
		Suffix("ON CONFLICT(user_id) DO UPDATE SET last_category = excluded.last_category, last_difficulty = excluded.last_difficulty").
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("save last pick %s: %w", userID, err)
	}
	return nil
}

func saveProgress(userID string, progress domain.PlayerProgress) sq.InsertBuilder {
	return sq.Insert("players").
		Columns("user_id", "score", "streak").
		Values(userID, progress.Score, progress.Streak).
		Suffix("ON CONFLICT(user_id) DO UPDATE SET score = excluded.score, streak = excluded.streak")
}

func markUsed(userID, questionID string) sq.InsertBuilder {
	return sq.Insert("used_questions").
		Columns("user_id", "question_id").
		Values(userID, questionID).
		Options("OR IGNORE")
}
