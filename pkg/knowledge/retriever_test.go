package knowledge

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRetriever(t *testing.T) *SQLiteRetriever {
	t.Helper()
	r, err := NewSQLiteRetriever(":memory:", 3)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSearch_MatchesDocument(t *testing.T) {
	r := newRetriever(t)
	ctx := context.Background()

	require.NoError(t, r.AddDocument(ctx, "Meal Policy",
		"Meals are reimbursable up to 50 dollars per day when traveling."))
	require.NoError(t, r.AddDocument(ctx, "Travel Policy",
		"Flights must be booked at least 14 days in advance."))

	result, err := r.Search(ctx, "meal reimbursement limit")
	require.NoError(t, err)
	assert.Contains(t, result, "Meal Policy")
	assert.Contains(t, result, "50 dollars")
	assert.NotContains(t, result, "Flights")
}

func TestSearch_EmptyCorpusReturnsEmpty(t *testing.T) {
	r := newRetriever(t)

	result, err := r.Search(context.Background(), "anything at all")
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestSearch_NoMatchReturnsEmpty(t *testing.T) {
	r := newRetriever(t)
	ctx := context.Background()

	require.NoError(t, r.AddDocument(ctx, "Meal Policy", "Meals are reimbursable."))

	result, err := r.Search(ctx, "quantum chromodynamics")
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestSearch_PunctuationDoesNotBreakQuery(t *testing.T) {
	r := newRetriever(t)
	ctx := context.Background()

	require.NoError(t, r.AddDocument(ctx, "Meal Policy", "Meals are reimbursable."))

	result, err := r.Search(ctx, `what's the "meal" policy? (per-day)`)
	require.NoError(t, err)
	assert.Contains(t, result, "Meal Policy")
}

func TestSearch_BlankQueryReturnsEmpty(t *testing.T) {
	r := newRetriever(t)

	result, err := r.Search(context.Background(), "  ?!  ")
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestSearch_ClosedDatabaseReturnsTaggedError(t *testing.T) {
	r := newRetriever(t)
	require.NoError(t, r.Close())

	_, err := r.Search(context.Background(), "meal policy")
	require.Error(t, err)

	var tagged *Error
	require.ErrorAs(t, err, &tagged)
	assert.Contains(t, tagged.Error(), ErrorTag)
}

func TestSearch_LimitsResults(t *testing.T) {
	r, err := NewSQLiteRetriever(":memory:", 2)
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	for _, title := range []string{"Policy A", "Policy B", "Policy C", "Policy D"} {
		require.NoError(t, r.AddDocument(ctx, title, "expense policy details"))
	}

	result, err := r.Search(ctx, "expense policy")
	require.NoError(t, err)
	// Two chunks joined by a blank line.
	assert.Len(t, strings.Split(result, "\n\n"), 2)
}
