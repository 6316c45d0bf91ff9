package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/expenseagent/pkg/llm"
)

// Toolset binds the expense tools to a store. The now function supplies
// the current time for date defaults; tests override it.
type Toolset struct {
	store *ExpenseStore
	now   func() time.Time
}

// NewToolset creates a toolset over the given store.
func NewToolset(store *ExpenseStore) *Toolset {
	return &Toolset{store: store, now: time.Now}
}

// RegisterAll registers every expense and analytics tool.
func (t *Toolset) RegisterAll(reg *Registry) {
	t.RegisterExpenseTools(reg)
	t.RegisterAnalyticsTools(reg)
}

// RegisterExpenseTools registers the CRUD tools.
func (t *Toolset) RegisterExpenseTools(reg *Registry) {
	reg.Register(llm.Tool{
		Name:        "add_expense",
		Description: "Record a new expense. Date defaults to today when omitted.",
		InputSchema: llm.Schema{
			Properties: map[string]llm.Property{
				"amount":      {Type: "number", Description: "Expense amount"},
				"category":    {Type: "string", Description: "Expense category, e.g. food, transport"},
				"description": {Type: "string", Description: "Optional free-text description"},
				"date":        {Type: "string", Description: "ISO date (YYYY-MM-DD), defaults to today"},
			},
			Required: []string{"amount", "category"},
		},
	}, t.addExpense)

	reg.Register(llm.Tool{
		Name:        "get_expenses",
		Description: "List expenses, optionally within a date range.",
		InputSchema: llm.Schema{
			Properties: map[string]llm.Property{
				"from_date": {Type: "string", Description: "Inclusive start date (YYYY-MM-DD)"},
				"to_date":   {Type: "string", Description: "Inclusive end date (YYYY-MM-DD)"},
			},
		},
	}, t.getExpenses)

	reg.Register(llm.Tool{
		Name:        "update_expense",
		Description: "Update fields of an existing expense by ID.",
		InputSchema: llm.Schema{
			Properties: map[string]llm.Property{
				"expense_id":  {Type: "integer", Description: "ID of the expense to update"},
				"amount":      {Type: "number", Description: "New amount"},
				"category":    {Type: "string", Description: "New category"},
				"description": {Type: "string", Description: "New description"},
				"date":        {Type: "string", Description: "New ISO date (YYYY-MM-DD)"},
			},
			Required: []string{"expense_id"},
		},
	}, t.updateExpense)

	reg.Register(llm.Tool{
		Name:        "delete_expense",
		Description: "Delete one expense by ID.",
		InputSchema: llm.Schema{
			Properties: map[string]llm.Property{
				"expense_id": {Type: "integer", Description: "ID of the expense to delete"},
			},
			Required: []string{"expense_id"},
		},
	}, t.deleteExpense)

	reg.Register(llm.Tool{
		Name:        "clear_all_expenses",
		Description: "Delete every expense. Requires confirm=true.",
		InputSchema: llm.Schema{
			Properties: map[string]llm.Property{
				"confirm": {Type: "boolean", Description: "Must be true to actually delete"},
			},
		},
	}, t.clearAllExpenses)
}

func (t *Toolset) addExpense(ctx context.Context, args map[string]any) (string, error) {
	amount, err := requireFloat(args, "amount")
	if err != nil {
		return "", err
	}
	if amount <= 0 {
		return encode(map[string]any{
			"status": "error",
			"error":  "amount must be positive",
		})
	}
	category, err := requireString(args, "category")
	if err != nil {
		return "", err
	}
	description, _, err := stringArg(args, "description")
	if err != nil {
		return "", err
	}
	date, ok, err := stringArg(args, "date")
	if err != nil {
		return "", err
	}
	if !ok || date == "" {
		date = t.now().Format("2006-01-02")
	}

	expense, err := t.store.Add(ctx, amount, category, description, date)
	if err != nil {
		return "", err
	}
	return encode(map[string]any{
		"status":  "success",
		"expense": expense,
	})
}

func (t *Toolset) getExpenses(ctx context.Context, args map[string]any) (string, error) {
	from, _, err := stringArg(args, "from_date")
	if err != nil {
		return "", err
	}
	to, _, err := stringArg(args, "to_date")
	if err != nil {
		return "", err
	}

	expenses, err := t.store.List(ctx, from, to)
	if err != nil {
		return "", err
	}
	if expenses == nil {
		expenses = []Expense{}
	}
	return encode(map[string]any{
		"count":    len(expenses),
		"expenses": expenses,
	})
}

func (t *Toolset) updateExpense(ctx context.Context, args map[string]any) (string, error) {
	id, err := requireInt(args, "expense_id")
	if err != nil {
		return "", err
	}

	var amount *float64
	if v, ok, err := floatArg(args, "amount"); err != nil {
		return "", err
	} else if ok {
		amount = &v
	}
	var category, description, date *string
	if v, ok, err := stringArg(args, "category"); err != nil {
		return "", err
	} else if ok {
		category = &v
	}
	if v, ok, err := stringArg(args, "description"); err != nil {
		return "", err
	} else if ok {
		description = &v
	}
	if v, ok, err := stringArg(args, "date"); err != nil {
		return "", err
	} else if ok {
		date = &v
	}

	if amount == nil && category == nil && description == nil && date == nil {
		return encode(map[string]any{
			"status":  "no_changes",
			"message": "No fields provided to update.",
		})
	}

	expense, err := t.store.Update(ctx, id, amount, category, description, date)
	if errors.Is(err, ErrExpenseNotFound) {
		return encode(map[string]any{
			"status":  "not_found",
			"message": fmt.Sprintf("No expense with ID %d.", id),
		})
	}
	if err != nil {
		return "", err
	}
	return encode(map[string]any{
		"status":  "success",
		"expense": expense,
	})
}

func (t *Toolset) deleteExpense(ctx context.Context, args map[string]any) (string, error) {
	id, err := requireInt(args, "expense_id")
	if err != nil {
		return "", err
	}

	err = t.store.Delete(ctx, id)
	if errors.Is(err, ErrExpenseNotFound) {
		return encode(map[string]any{
			"status":  "not_found",
			"message": fmt.Sprintf("No expense with ID %d.", id),
		})
	}
	if err != nil {
		return "", err
	}
	return encode(map[string]any{
		"status":  "deleted",
		"message": fmt.Sprintf("Deleted expense %d.", id),
	})
}

func (t *Toolset) clearAllExpenses(ctx context.Context, args map[string]any) (string, error) {
	confirm, _, err := boolArg(args, "confirm")
	if err != nil {
		return "", err
	}
	if !confirm {
		return encode(map[string]any{
			"status":  "confirmation_required",
			"message": "Please set confirm=True to delete all data.",
		})
	}

	count, err := t.store.Clear(ctx)
	if err != nil {
		return "", err
	}
	return encode(map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Successfully deleted %d expenses.", count),
	})
}
