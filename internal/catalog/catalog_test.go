package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-round-service/internal/catalog"
	"trivia-round-service/internal/domain"
	"trivia-round-service/internal/logger"
)

func historyEntries() []domain.QuestionEntry {
	return []domain.QuestionEntry{
		{Category: "history", Difficulty: "hard", Prompt: "Year of the Battle of Hastings?", Options: []string{"1066", "1215", "1415", "1492"}, Answer: "1066"},
		{Category: "History", Difficulty: "HARD", Prompt: "First Roman emperor?", Options: []string{"Augustus", "Nero", "Caesar"}, Answer: "Augustus"},
		{Category: "history", Difficulty: "hard", Prompt: "Magna Carta year?", Options: []string{"1215", "1066"}, Answer: "1215"},
		{Category: "history", Difficulty: "easy", Prompt: "Who built the pyramids?", Options: []string{"Egyptians", "Romans"}, Answer: "Egyptians"},
	}
}

func TestBuildDropsMalformedEntries(t *testing.T) {
	entries := append(historyEntries(),
		domain.QuestionEntry{Category: "sports", Difficulty: "easy", Prompt: "x", Options: []string{"a", "b"}, Answer: "a"},
		domain.QuestionEntry{Category: "history", Difficulty: "impossible", Prompt: "x", Options: []string{"a", "b"}, Answer: "a"},
		domain.QuestionEntry{Category: "history", Difficulty: "easy", Prompt: "", Options: []string{"a", "b"}, Answer: "a"},
		domain.QuestionEntry{Category: "history", Difficulty: "easy", Prompt: "x", Options: []string{"a", "b"}, Answer: "c"},
		domain.QuestionEntry{Category: "history", Difficulty: "easy", Prompt: "x", Options: []string{"a"}, Answer: "a"},
		domain.QuestionEntry{Category: "history", Difficulty: "easy", Prompt: "x", Options: []string{"a", "a"}, Answer: "a"},
		historyEntries()[0],
	)

	c := catalog.Build(catalog.DefaultCategories, entries, logger.Discard())

	assert.Equal(t, 4, c.Len())
	assert.Equal(t, 3, c.PoolSize("history", domain.Hard))
	assert.Equal(t, 1, c.PoolSize("history", domain.Easy))
}

func TestQuestionIDsAreStable(t *testing.T) {
	a := catalog.Build(catalog.DefaultCategories, historyEntries(), logger.Discard())
	b := catalog.Build(catalog.DefaultCategories, historyEntries(), logger.Discard())

	q, ok := a.Draw("history", domain.Easy, nil)
	require.True(t, ok)
	same, ok := b.Question(q.ID)
	require.True(t, ok)
	assert.Equal(t, q, same)
}

func TestDrawNeverReturnsExcluded(t *testing.T) {
	c := catalog.Build(catalog.DefaultCategories, historyEntries(), logger.Discard()).WithSeed(7)

	excluded := map[string]struct{}{}
	for i := 0; i < 3; i++ {
		q, ok := c.Draw("history", domain.Hard, excluded)
		require.True(t, ok)
		_, seen := excluded[q.ID]
		require.False(t, seen, "question %s offered twice", q.ID)
		excluded[q.ID] = struct{}{}
	}

	_, ok := c.Draw("history", domain.Hard, excluded)
	assert.False(t, ok, "pool should be exhausted")
}

func TestDrawEmptyPool(t *testing.T) {
	c := catalog.Build(catalog.DefaultCategories, historyEntries(), logger.Discard())

	_, ok := c.Draw("music", domain.Medium, nil)
	assert.False(t, ok)
}

func TestDrawIsRoughlyUniform(t *testing.T) {
	c := catalog.Build(catalog.DefaultCategories, historyEntries(), logger.Discard()).WithSeed(42)

	counts := map[string]int{}
	for i := 0; i < 3000; i++ {
		q, ok := c.Draw("history", domain.Hard, nil)
		require.True(t, ok)
		counts[q.ID]++
	}
	require.Len(t, counts, 3)
	for id, n := range counts {
		assert.InDelta(t, 1000, n, 150, "question %s drawn %d times", id, n)
	}
}

func TestEntriesAreNormalised(t *testing.T) {
	c := catalog.Build(catalog.DefaultCategories, historyEntries(), logger.Discard())

	entries := c.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, "history", entries[1].Category, "titles resolve to slugs")
	assert.Equal(t, "hard", entries[1].Difficulty)
	assert.Equal(t, "First Roman emperor?", entries[1].Prompt)
}
