package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-round-service/internal/domain"
)

func TestIsUsedQueryUsesDollarPlaceholders(t *testing.T) {
	query, args, err := isUsedQuery("u1", "q1")
	require.NoError(t, err)

	assert.Contains(t, query, "SELECT EXISTS (")
	assert.Contains(t, query, "FROM used_questions")
	assert.Contains(t, query, "$1")
	assert.Contains(t, query, "$2")
	assert.NotContains(t, query, "?")
	assert.ElementsMatch(t, []interface{}{"u1", "q1"}, args)
}

func TestSettlementQueriesTargetBothTables(t *testing.T) {
	progress := domain.NewPlayerProgress("u1")
	progress.Score, progress.Streak = 30, 3

	save, saveArgs, err := saveProgressQuery("u1", progress)
	require.NoError(t, err)
	assert.Contains(t, save, "INSERT INTO players")
	assert.Contains(t, save, "ON CONFLICT (user_id) DO UPDATE")
	assert.Equal(t, []interface{}{"u1", 30, 3}, saveArgs)

	mark, markArgs, err := markUsedQuery("u1", "q1")
	require.NoError(t, err)
	assert.Contains(t, mark, "INSERT INTO used_questions")
	assert.Contains(t, mark, "ON CONFLICT DO NOTHING")
	assert.Equal(t, []interface{}{"u1", "q1"}, markArgs)
}
