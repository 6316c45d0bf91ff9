package tools

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrExpenseNotFound is returned when an expense ID does not exist.
var ErrExpenseNotFound = errors.New("expense not found")

// Expense is one recorded expense.
type Expense struct {
	ID          int64   `json:"id"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	// Date is an ISO day, e.g. "2026-08-31".
	Date string `json:"date"`
}

// CategorySummary aggregates spending for one category.
type CategorySummary struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

// ExpenseStore persists expenses and category limits in SQLite.
type ExpenseStore struct {
	db *sql.DB
}

// NewExpenseStore opens (or creates) the expense database at path.
// Use ":memory:" for testing.
func NewExpenseStore(path string) (*ExpenseStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open expense database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS expenses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			amount REAL NOT NULL,
			category TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create expenses table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS category_limits (
			category TEXT PRIMARY KEY,
			monthly_limit REAL NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create category_limits table: %w", err)
	}

	return &ExpenseStore{db: db}, nil
}

// rangeConds builds date-range WHERE conditions. Empty bounds are open.
func rangeConds(from, to string) ([]string, []any) {
	var conds []string
	var args []any
	if from != "" {
		conds = append(conds, "date >= ?")
		args = append(args, from)
	}
	if to != "" {
		conds = append(conds, "date <= ?")
		args = append(args, to)
	}
	return conds, args
}

// Add inserts a new expense and returns it with its assigned ID.
func (s *ExpenseStore) Add(ctx context.Context, amount float64, category, description, date string) (Expense, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (amount, category, description, date)
		VALUES (?, ?, ?, ?)
	`, amount, category, description, date)
	if err != nil {
		return Expense{}, fmt.Errorf("add expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Expense{}, fmt.Errorf("add expense: %w", err)
	}

	return Expense{ID: id, Amount: amount, Category: category, Description: description, Date: date}, nil
}

// List returns expenses within the date range, newest first.
// Empty bounds are open-ended.
func (s *ExpenseStore) List(ctx context.Context, from, to string) ([]Expense, error) {
	query := `SELECT id, amount, category, description, date FROM expenses`
	conds, args := rangeConds(from, to)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.Amount, &e.Category, &e.Description, &e.Date); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// Get returns one expense by ID.
func (s *ExpenseStore) Get(ctx context.Context, id int64) (Expense, error) {
	var e Expense
	err := s.db.QueryRowContext(ctx, `
		SELECT id, amount, category, description, date FROM expenses WHERE id = ?
	`, id).Scan(&e.ID, &e.Amount, &e.Category, &e.Description, &e.Date)
	if err == sql.ErrNoRows {
		return Expense{}, ErrExpenseNotFound
	}
	if err != nil {
		return Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// Update modifies the given fields of an expense. Nil fields are left
// unchanged. Returns ErrExpenseNotFound if the ID does not exist.
func (s *ExpenseStore) Update(ctx context.Context, id int64, amount *float64, category, description, date *string) (Expense, error) {
	var sets []string
	var args []any
	if amount != nil {
		sets = append(sets, "amount = ?")
		args = append(args, *amount)
	}
	if category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *category)
	}
	if description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *description)
	}
	if date != nil {
		sets = append(sets, "date = ?")
		args = append(args, *date)
	}
	if len(sets) == 0 {
		return s.Get(ctx, id)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE expenses SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return Expense{}, fmt.Errorf("update expense: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if affected == 0 {
		return Expense{}, ErrExpenseNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes an expense. Returns ErrExpenseNotFound if absent.
func (s *ExpenseStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if affected == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

// Clear removes all expenses and returns how many were deleted.
func (s *ExpenseStore) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses`)
	if err != nil {
		return 0, fmt.Errorf("clear expenses: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear expenses: %w", err)
	}
	return affected, nil
}

// RangeTotal returns the total amount and count within a date range.
func (s *ExpenseStore) RangeTotal(ctx context.Context, from, to string) (float64, int, error) {
	query := `SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM expenses`
	conds, args := rangeConds(from, to)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	var total float64
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total, &count); err != nil {
		return 0, 0, fmt.Errorf("range total: %w", err)
	}
	return total, count, nil
}

// CategoryBreakdown aggregates spending per category within a date
// range, highest total first.
func (s *ExpenseStore) CategoryBreakdown(ctx context.Context, from, to string) ([]CategorySummary, error) {
	query := `SELECT category, SUM(amount), COUNT(*) FROM expenses`
	conds, args := rangeConds(from, to)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " GROUP BY category ORDER BY SUM(amount) DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	defer rows.Close()

	var summaries []CategorySummary
	for rows.Next() {
		var cs CategorySummary
		if err := rows.Scan(&cs.Category, &cs.Total, &cs.Count); err != nil {
			return nil, fmt.Errorf("scan category summary: %w", err)
		}
		summaries = append(summaries, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category summaries: %w", err)
	}
	return summaries, nil
}

// HighestExpense returns the single largest expense within a date range.
// Returns ErrExpenseNotFound when the range is empty.
func (s *ExpenseStore) HighestExpense(ctx context.Context, from, to string) (Expense, error) {
	query := `SELECT id, amount, category, description, date FROM expenses`
	conds, args := rangeConds(from, to)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY amount DESC LIMIT 1"

	var e Expense
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&e.ID, &e.Amount, &e.Category, &e.Description, &e.Date)
	if err == sql.ErrNoRows {
		return Expense{}, ErrExpenseNotFound
	}
	if err != nil {
		return Expense{}, fmt.Errorf("highest expense: %w", err)
	}
	return e, nil
}

// CategoryTotal returns the total spent in one category within a range.
func (s *ExpenseStore) CategoryTotal(ctx context.Context, category, from, to string) (float64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE category = ?`
	args := []any{category}
	conds, rangeArgs := rangeConds(from, to)
	if len(conds) > 0 {
		query += " AND " + strings.Join(conds, " AND ")
		args = append(args, rangeArgs...)
	}

	var total float64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("category total: %w", err)
	}
	return total, nil
}

// SetCategoryLimit sets (or replaces) the monthly limit for a category.
func (s *ExpenseStore) SetCategoryLimit(ctx context.Context, category string, limit float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO category_limits (category, monthly_limit) VALUES (?, ?)
		ON CONFLICT(category) DO UPDATE SET monthly_limit = excluded.monthly_limit
	`, category, limit)
	if err != nil {
		return fmt.Errorf("set category limit: %w", err)
	}
	return nil
}

// CategoryLimit returns the monthly limit for a category.
// The bool reports whether a limit is configured.
func (s *ExpenseStore) CategoryLimit(ctx context.Context, category string) (float64, bool, error) {
	var limit float64
	err := s.db.QueryRowContext(ctx, `
		SELECT monthly_limit FROM category_limits WHERE category = ?
	`, category).Scan(&limit)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get category limit: %w", err)
	}
	return limit, true, nil
}

// Close releases the underlying database handle.
func (s *ExpenseStore) Close() error {
	return s.db.Close()
}
