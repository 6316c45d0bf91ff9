package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/expenseagent/pkg/llm"
)

// RegisterAnalyticsTools registers the aggregate reporting tools.
func (t *Toolset) RegisterAnalyticsTools(reg *Registry) {
	monthProp := llm.Property{Type: "string", Description: "Month as YYYY-MM, defaults to the current month"}

	reg.Register(llm.Tool{
		Name:        "monthly_summary",
		Description: "Total spending and expense count for a month.",
		InputSchema: llm.Schema{
			Properties: map[string]llm.Property{"month": monthProp},
		},
	}, t.monthlySummary)

	reg.Register(llm.Tool{
		Name:        "category_breakdown",
		Description: "Spending per category for a month, highest first.",
		InputSchema: llm.Schema{
			Properties: map[string]llm.Property{"month": monthProp},
		},
	}, t.categoryBreakdown)

	reg.Register(llm.Tool{
		Name:        "highest_spend",
		Description: "The single largest expense in a month.",
		InputSchema: llm.Schema{
			Properties: map[string]llm.Property{"month": monthProp},
		},
	}, t.highestSpend)

	reg.Register(llm.Tool{
		Name:        "check_category_limit",
		Description: "Compare a category's monthly spending against its configured limit.",
		InputSchema: llm.Schema{
			Properties: map[string]llm.Property{
				"category": {Type: "string", Description: "Category to check"},
				"month":    monthProp,
			},
			Required: []string{"category"},
		},
	}, t.checkCategoryLimit)

	reg.Register(llm.Tool{
		Name:        "set_category_limit",
		Description: "Set or replace the monthly spending limit for a category.",
		InputSchema: llm.Schema{
			Properties: map[string]llm.Property{
				"category": {Type: "string", Description: "Category to limit"},
				"limit":    {Type: "number", Description: "Monthly limit amount"},
			},
			Required: []string{"category", "limit"},
		},
	}, t.setCategoryLimit)
}

// monthArg resolves the optional month argument to an inclusive date
// range. ISO day strings compare lexically, so "-31" bounds every month.
func (t *Toolset) monthArg(args map[string]any) (month, from, to string, err error) {
	month, ok, err := stringArg(args, "month")
	if err != nil {
		return "", "", "", err
	}
	if !ok || month == "" {
		month = t.now().Format("2006-01")
	}
	return month, month + "-01", month + "-31", nil
}

func (t *Toolset) monthlySummary(ctx context.Context, args map[string]any) (string, error) {
	month, from, to, err := t.monthArg(args)
	if err != nil {
		return "", err
	}

	total, count, err := t.store.RangeTotal(ctx, from, to)
	if err != nil {
		return "", err
	}
	return encode(map[string]any{
		"month":       month,
		"total_spent": total,
		"count":       count,
	})
}

func (t *Toolset) categoryBreakdown(ctx context.Context, args map[string]any) (string, error) {
	month, from, to, err := t.monthArg(args)
	if err != nil {
		return "", err
	}

	summaries, err := t.store.CategoryBreakdown(ctx, from, to)
	if err != nil {
		return "", err
	}
	breakdown := make(map[string]float64, len(summaries))
	for _, s := range summaries {
		breakdown[s.Category] = s.Total
	}
	return encode(map[string]any{
		"month":     month,
		"breakdown": breakdown,
	})
}

func (t *Toolset) highestSpend(ctx context.Context, args map[string]any) (string, error) {
	month, from, to, err := t.monthArg(args)
	if err != nil {
		return "", err
	}

	expense, err := t.store.HighestExpense(ctx, from, to)
	if errors.Is(err, ErrExpenseNotFound) {
		return encode(map[string]any{
			"month":  month,
			"exists": false,
		})
	}
	if err != nil {
		return "", err
	}
	return encode(map[string]any{
		"month":   month,
		"exists":  true,
		"expense": expense,
	})
}

func (t *Toolset) checkCategoryLimit(ctx context.Context, args map[string]any) (string, error) {
	category, err := requireString(args, "category")
	if err != nil {
		return "", err
	}
	month, from, to, err := t.monthArg(args)
	if err != nil {
		return "", err
	}

	limit, hasLimit, err := t.store.CategoryLimit(ctx, category)
	if err != nil {
		return "", err
	}
	total, err := t.store.CategoryTotal(ctx, category, from, to)
	if err != nil {
		return "", err
	}

	result := map[string]any{
		"category":    category,
		"month":       month,
		"has_limit":   hasLimit,
		"total_spent": total,
	}
	if hasLimit {
		result["limit"] = limit
		result["exceeded"] = total > limit
	}
	return encode(result)
}

func (t *Toolset) setCategoryLimit(ctx context.Context, args map[string]any) (string, error) {
	category, err := requireString(args, "category")
	if err != nil {
		return "", err
	}
	limit, err := requireFloat(args, "limit")
	if err != nil {
		return "", err
	}
	if limit <= 0 {
		return encode(map[string]any{
			"status": "error",
			"error":  "limit must be positive",
		})
	}

	if err := t.store.SetCategoryLimit(ctx, category, limit); err != nil {
		return "", err
	}
	return encode(map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Monthly limit for %s set to %.2f.", category, limit),
	})
}
