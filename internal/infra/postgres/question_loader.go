package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-round-service/internal/domain"
	"trivia-round-service/internal/logger"
)

// QuestionLoader reads raw question entries from the questions table.
type QuestionLoader struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool, log: logger.Default().WithPrefix("postgres")}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.QuestionEntry, error) {
	query, args, err := psql.Select("category", "difficulty", "prompt", "options", "answer").
		From("questions").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var entries []domain.QuestionEntry
	for rows.Next() {
		var (
			entry domain.QuestionEntry
			raw   []byte
		)
		if err := rows.Scan(&entry.Category, &entry.Difficulty, &entry.Prompt, &raw, &entry.Answer); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		decodeOptions(l.log, &entry, raw)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return entries, nil
}

// decodeOptions fills entry.Options from the jsonb column. A bad document
// leaves Options empty, so catalog validation drops just this entry.
func decodeOptions(log *logger.Logger, entry *domain.QuestionEntry, raw []byte) {
	if err := json.Unmarshal(raw, &entry.Options); err != nil {
		log.Warn("question %q: undecodable options document: %v", entry.Prompt, err)
		entry.Options = nil
	}
}

// QuestionWriter imports entries into the questions table. Re-importing the
// same entries is a no-op.
type QuestionWriter struct {
	pool *pgxpool.Pool
}

func NewQuestionWriter(pool *pgxpool.Pool) *QuestionWriter {
	return &QuestionWriter{pool: pool}
}

// Import inserts entries in one transaction and returns how many were new.
func (w *QuestionWriter) Import(ctx context.Context, entries []domain.QuestionEntry) (int, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	inserted := 0
	for _, e := range entries {
		options, err := json.Marshal(e.Options)
		if err != nil {
			return 0, fmt.Errorf("encode options: %w", err)
		}
		query, args, err := psql.Insert("questions").
			Columns("category", "difficulty", "prompt", "options", "answer").
			Values(e.Category, e.Difficulty, e.Prompt, sq.Expr("?::jsonb", string(options)), e.Answer).
			Suffix("ON CONFLICT (category, difficulty, prompt, answer) DO NOTHING").
			ToSql()
		if err != nil {
			return 0, err
		}
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert question %q: %w", e.Prompt, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return inserted, nil
}
