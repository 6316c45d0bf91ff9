package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestToolset(t *testing.T) (*Toolset, *Registry) {
	t.Helper()
	ts := NewToolset(newTestStore(t))
	ts.now = func() time.Time {
		return time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	}
	reg := NewRegistry()
	ts.RegisterAll(reg)
	return ts, reg
}

func callTool(t *testing.T, reg *Registry, name string, args map[string]any) map[string]any {
	t.Helper()
	h, ok := reg.Get(name)
	require.True(t, ok, "tool %s not registered", name)

	content, err := h(context.Background(), args)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(content), &decoded))
	return decoded
}

func TestToolset_RegistersAllTools(t *testing.T) {
	_, reg := newTestToolset(t)

	assert.Equal(t, []string{
		"add_expense",
		"category_breakdown",
		"check_category_limit",
		"clear_all_expenses",
		"delete_expense",
		"get_expenses",
		"highest_spend",
		"monthly_summary",
		"set_category_limit",
		"update_expense",
	}, reg.Names())
}

func TestAddExpense_DefaultsDateToToday(t *testing.T) {
	_, reg := newTestToolset(t)

	result := callTool(t, reg, "add_expense", map[string]any{
		"amount":   float64(12.50),
		"category": "food",
	})
	assert.Equal(t, "success", result["status"])

	expense := result["expense"].(map[string]any)
	assert.Equal(t, "2026-08-20", expense["date"])
	assert.Equal(t, 12.50, expense["amount"])
}

func TestAddExpense_RejectsNonPositiveAmount(t *testing.T) {
	_, reg := newTestToolset(t)

	result := callTool(t, reg, "add_expense", map[string]any{
		"amount":   float64(-5),
		"category": "food",
	})
	assert.Equal(t, "error", result["status"])
}

func TestAddExpense_MissingAmountIsError(t *testing.T) {
	_, reg := newTestToolset(t)
	h, _ := reg.Get("add_expense")

	_, err := h(context.Background(), map[string]any{"category": "food"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount")
}

func TestGetExpenses_RangeAndEmpty(t *testing.T) {
	ts, reg := newTestToolset(t)
	seedExpenses(t, ts.store)

	result := callTool(t, reg, "get_expenses", map[string]any{
		"from_date": "2026-08-01",
		"to_date":   "2026-08-31",
	})
	assert.Equal(t, float64(3), result["count"])

	empty := callTool(t, reg, "get_expenses", map[string]any{
		"from_date": "2030-01-01",
	})
	assert.Equal(t, float64(0), empty["count"])
	// Empty list encodes as [], not null.
	assert.Equal(t, []any{}, empty["expenses"])
}

func TestUpdateExpense_Statuses(t *testing.T) {
	ts, reg := newTestToolset(t)
	seeded := seedExpenses(t, ts.store)

	updated := callTool(t, reg, "update_expense", map[string]any{
		"expense_id": float64(seeded[0].ID),
		"amount":     float64(99),
	})
	assert.Equal(t, "success", updated["status"])
	assert.Equal(t, float64(99), updated["expense"].(map[string]any)["amount"])

	noChanges := callTool(t, reg, "update_expense", map[string]any{
		"expense_id": float64(seeded[0].ID),
	})
	assert.Equal(t, "no_changes", noChanges["status"])

	notFound := callTool(t, reg, "update_expense", map[string]any{
		"expense_id": float64(999),
		"amount":     float64(1),
	})
	assert.Equal(t, "not_found", notFound["status"])
}

func TestDeleteExpense_Statuses(t *testing.T) {
	ts, reg := newTestToolset(t)
	seeded := seedExpenses(t, ts.store)

	deleted := callTool(t, reg, "delete_expense", map[string]any{
		"expense_id": float64(seeded[0].ID),
	})
	assert.Equal(t, "deleted", deleted["status"])

	notFound := callTool(t, reg, "delete_expense", map[string]any{
		"expense_id": float64(seeded[0].ID),
	})
	assert.Equal(t, "not_found", notFound["status"])
}

func TestClearAllExpenses_RequiresConfirmation(t *testing.T) {
	ts, reg := newTestToolset(t)
	seedExpenses(t, ts.store)

	refused := callTool(t, reg, "clear_all_expenses", map[string]any{})
	assert.Equal(t, "confirmation_required", refused["status"])
	assert.Equal(t, "Please set confirm=True to delete all data.", refused["message"])

	remaining, err := ts.store.List(context.Background(), "", "")
	require.NoError(t, err)
	assert.Len(t, remaining, 4)

	cleared := callTool(t, reg, "clear_all_expenses", map[string]any{"confirm": true})
	assert.Equal(t, "success", cleared["status"])
	assert.Equal(t, "Successfully deleted 4 expenses.", cleared["message"])
}

func TestMonthlySummary_DefaultsToCurrentMonth(t *testing.T) {
	ts, reg := newTestToolset(t)
	seedExpenses(t, ts.store)

	result := callTool(t, reg, "monthly_summary", map[string]any{})
	assert.Equal(t, "2026-08", result["month"])
	assert.InDelta(t, 155.49, result["total_spent"].(float64), 0.001)
	assert.Equal(t, float64(3), result["count"])
}

func TestMonthlySummary_ExplicitMonth(t *testing.T) {
	ts, reg := newTestToolset(t)
	seedExpenses(t, ts.store)

	result := callTool(t, reg, "monthly_summary", map[string]any{"month": "2026-07"})
	assert.InDelta(t, 300.00, result["total_spent"].(float64), 0.001)
	assert.Equal(t, float64(1), result["count"])
}

func TestCategoryBreakdown(t *testing.T) {
	ts, reg := newTestToolset(t)
	seedExpenses(t, ts.store)

	result := callTool(t, reg, "category_breakdown", map[string]any{"month": "2026-08"})
	breakdown := result["breakdown"].(map[string]any)
	assert.InDelta(t, 120.00, breakdown["transport"].(float64), 0.001)
	assert.InDelta(t, 35.49, breakdown["food"].(float64), 0.001)
	assert.NotContains(t, breakdown, "rent")
}

func TestHighestSpend(t *testing.T) {
	ts, reg := newTestToolset(t)
	seedExpenses(t, ts.store)

	result := callTool(t, reg, "highest_spend", map[string]any{"month": "2026-08"})
	assert.Equal(t, true, result["exists"])
	assert.Equal(t, "transport", result["expense"].(map[string]any)["category"])

	empty := callTool(t, reg, "highest_spend", map[string]any{"month": "2030-01"})
	assert.Equal(t, false, empty["exists"])
}

func TestCheckCategoryLimit(t *testing.T) {
	ts, reg := newTestToolset(t)
	seedExpenses(t, ts.store)

	noLimit := callTool(t, reg, "check_category_limit", map[string]any{"category": "food"})
	assert.Equal(t, false, noLimit["has_limit"])
	assert.InDelta(t, 35.49, noLimit["total_spent"].(float64), 0.001)
	assert.NotContains(t, noLimit, "exceeded")

	set := callTool(t, reg, "set_category_limit", map[string]any{
		"category": "food",
		"limit":    float64(30),
	})
	assert.Equal(t, "success", set["status"])

	exceeded := callTool(t, reg, "check_category_limit", map[string]any{"category": "food"})
	assert.Equal(t, true, exceeded["has_limit"])
	assert.Equal(t, float64(30), exceeded["limit"])
	assert.Equal(t, true, exceeded["exceeded"])

	underLimit := callTool(t, reg, "check_category_limit", map[string]any{
		"category": "food",
		"month":    "2030-01",
	})
	assert.Equal(t, false, underLimit["exceeded"])
}

func TestSetCategoryLimit_RejectsNonPositive(t *testing.T) {
	_, reg := newTestToolset(t)

	result := callTool(t, reg, "set_category_limit", map[string]any{
		"category": "food",
		"limit":    float64(0),
	})
	assert.Equal(t, "error", result["status"])
}
