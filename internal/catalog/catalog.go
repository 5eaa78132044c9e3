package catalog

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"trivia-round-service/internal/domain"
	"trivia-round-service/internal/logger"
)

// DefaultCategories is the menu used when configuration does not override it.
var DefaultCategories = []domain.Category{
	{Slug: "history", Title: "History"},
	{Slug: "geography", Title: "Geography"},
	{Slug: "astronomy", Title: "Astronomy"},
	{Slug: "biology", Title: "Biology"},
	{Slug: "cinema", Title: "Cinema"},
	{Slug: "music", Title: "Music"},
	{Slug: "literature", Title: "Literature"},
	{Slug: "science", Title: "Science"},
	{Slug: "art", Title: "Art"},
	{Slug: "technique", Title: "Technique"},
}

type poolKey struct {
	category   string
	difficulty domain.Difficulty
}

// Catalog is an immutable question index keyed by (category, difficulty).
// Draw is safe for concurrent use.
type Catalog struct {
	categories []domain.Category
	pools      map[poolKey][]domain.Question
	byID       map[string]domain.Question
	accepted   []domain.Question

	mu  sync.Mutex
	rnd *rand.Rand
}

// Loader reads raw question entries from a declarative source.
type Loader interface {
	LoadQuestions(ctx context.Context) ([]domain.QuestionEntry, error)
}

// Load reads every entry from loader and builds the catalog from them.
func Load(ctx context.Context, categories []domain.Category, loader Loader, log *logger.Logger) (*Catalog, error) {
	entries, err := loader.LoadQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return Build(categories, entries, log), nil
}

// Build validates entries and indexes the survivors. Malformed entries are
// logged and dropped; they never surface later.
func Build(categories []domain.Category, entries []domain.QuestionEntry, log *logger.Logger) *Catalog {
	if log == nil {
		log = logger.Default()
	}
	log = log.WithPrefix("catalog")

	c := &Catalog{
		categories: append([]domain.Category(nil), categories...),
		pools:      make(map[poolKey][]domain.Question),
		byID:       make(map[string]domain.Question),
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	resolve := categoryResolver(categories)

	dropped := 0
	for i, entry := range entries {
		q, err := validate(entry, resolve)
		if err != nil {
			log.Warn("dropping entry %d: %v", i, err)
			dropped++
			continue
		}
		if _, dup := c.byID[q.ID]; dup {
			log.Warn("dropping entry %d: duplicate of question %s", i, q.ID)
			dropped++
			continue
		}
		c.byID[q.ID] = q
		c.accepted = append(c.accepted, q)
		key := poolKey{category: q.Category, difficulty: q.Difficulty}
		c.pools[key] = append(c.pools[key], q)
	}
	log.Info("catalog built: %d questions, %d dropped", len(c.byID), dropped)
	return c
}

// WithSeed makes draws deterministic. Intended for tests.
func (c *Catalog) WithSeed(seed int64) *Catalog {
	c.mu.Lock()
	c.rnd = rand.New(rand.NewSource(seed))
	c.mu.Unlock()
	return c
}

// Draw picks uniformly among the questions of the pool not in excluded.
// ok is false when the pool is exhausted for this caller.
func (c *Catalog) Draw(category string, difficulty domain.Difficulty, excluded map[string]struct{}) (domain.Question, bool) {
	pool := c.pools[poolKey{category: category, difficulty: difficulty}]
	eligible := make([]domain.Question, 0, len(pool))
	for _, q := range pool {
		if _, skip := excluded[q.ID]; !skip {
			eligible = append(eligible, q)
		}
	}
	if len(eligible) == 0 {
		return domain.Question{}, false
	}

	c.mu.Lock()
	idx := c.rnd.Intn(len(eligible))
	c.mu.Unlock()
	return eligible[idx], true
}

// Question returns a question by id.
func (c *Catalog) Question(id string) (domain.Question, bool) {
	q, ok := c.byID[id]
	return q, ok
}

// Categories returns the registered categories in menu order.
func (c *Catalog) Categories() []domain.Category {
	return append([]domain.Category(nil), c.categories...)
}

// HasCategory reports whether slug is registered.
func (c *Catalog) HasCategory(slug string) bool {
	for _, cat := range c.categories {
		if cat.Slug == slug {
			return true
		}
	}
	return false
}

// PoolSize returns how many questions the pool holds before exclusion.
func (c *Catalog) PoolSize(category string, difficulty domain.Difficulty) int {
	return len(c.pools[poolKey{category: category, difficulty: difficulty}])
}

// Entries returns the accepted questions in source order, normalised.
func (c *Catalog) Entries() []domain.QuestionEntry {
	out := make([]domain.QuestionEntry, 0, len(c.accepted))
	for _, q := range c.accepted {
		out = append(out, domain.QuestionEntry{
			Category:   q.Category,
			Difficulty: string(q.Difficulty),
			Prompt:     q.Prompt,
			Options:    append([]string(nil), q.Options...),
			Answer:     q.Answer,
		})
	}
	return out
}

// Len returns the number of accepted questions.
func (c *Catalog) Len() int {
	return len(c.byID)
}

// categoryResolver accepts either a slug or a display title, case-insensitively.
func categoryResolver(categories []domain.Category) func(string) (string, bool) {
	lookup := make(map[string]string, len(categories)*2)
	for _, cat := range categories {
		lookup[strings.ToLower(cat.Slug)] = cat.Slug
		lookup[strings.ToLower(cat.Title)] = cat.Slug
	}
	return func(raw string) (string, bool) {
		slug, ok := lookup[strings.ToLower(strings.TrimSpace(raw))]
		return slug, ok
	}
}

func validate(entry domain.QuestionEntry, resolve func(string) (string, bool)) (domain.Question, error) {
	category, ok := resolve(entry.Category)
	if !ok {
		return domain.Question{}, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, entry.Category)
	}
	difficulty, ok := domain.ParseDifficulty(entry.Difficulty)
	if !ok {
		return domain.Question{}, fmt.Errorf("%w: %q", domain.ErrUnknownDifficulty, entry.Difficulty)
	}

	prompt := strings.TrimSpace(entry.Prompt)
	answer := strings.TrimSpace(entry.Answer)
	if prompt == "" {
		return domain.Question{}, fmt.Errorf("%w: empty prompt", domain.ErrInvalidQuestion)
	}
	if answer == "" {
		return domain.Question{}, fmt.Errorf("%w: empty answer", domain.ErrInvalidQuestion)
	}
	if len(entry.Options) < 2 {
		return domain.Question{}, fmt.Errorf("%w: need at least 2 options, got %d", domain.ErrInvalidQuestion, len(entry.Options))
	}

	options := make([]string, 0, len(entry.Options))
	seen := make(map[string]struct{}, len(entry.Options))
	hasAnswer := false
	for _, raw := range entry.Options {
		opt := strings.TrimSpace(raw)
		if opt == "" {
			return domain.Question{}, fmt.Errorf("%w: empty option", domain.ErrInvalidQuestion)
		}
		if _, dup := seen[opt]; dup {
			return domain.Question{}, fmt.Errorf("%w: duplicate option %q", domain.ErrInvalidQuestion, opt)
		}
		seen[opt] = struct{}{}
		if opt == answer {
			hasAnswer = true
		}
		options = append(options, opt)
	}
	if !hasAnswer {
		return domain.Question{}, fmt.Errorf("%w: answer %q not among options", domain.ErrInvalidQuestion, answer)
	}

	return domain.Question{
		ID:         domain.QuestionID(category, difficulty, prompt, answer),
		Category:   category,
		Difficulty: difficulty,
		Prompt:     prompt,
		Options:    options,
		Answer:     answer,
	}, nil
}
