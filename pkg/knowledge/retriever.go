// Package knowledge provides the expense-policy knowledge base: a
// SQLite FTS5 index of policy documents queried by the retrieval step.
package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Retriever is the knowledge-base capability used by the retrieval step.
// Implementations return matched document text, an empty string when
// nothing matches, or a *Error for any failure. They never panic past
// this boundary.
type Retriever interface {
	// Search returns the concatenated text of documents matching the query.
	Search(ctx context.Context, query string) (string, error)
	Close() error
}

// SQLiteRetriever indexes policy documents in a SQLite FTS5 table.
type SQLiteRetriever struct {
	db         *sql.DB
	maxResults int
}

// NewSQLiteRetriever opens (or creates) a knowledge base at the given
// path. Use ":memory:" for testing. maxResults bounds how many
// document chunks a single search returns; values <= 0 default to 3.
func NewSQLiteRetriever(path string, maxResults int) (*SQLiteRetriever, error) {
	if maxResults <= 0 {
		maxResults = 3
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open knowledge base: %w", err)
	}

	if _, err := db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS documents USING fts5(title, content)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create fts index: %w", err)
	}

	return &SQLiteRetriever{db: db, maxResults: maxResults}, nil
}

// AddDocument indexes one document.
func (r *SQLiteRetriever) AddDocument(ctx context.Context, title, content string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (title, content) VALUES (?, ?)
	`, title, content)
	if err != nil {
		return fmt.Errorf("index document %q: %w", title, err)
	}
	return nil
}

// Search implements Retriever. Failures, including panics from the
// driver, come back as *Error so the orchestrator can reroute.
func (r *SQLiteRetriever) Search(ctx context.Context, query string) (result string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = ""
			err = &Error{Detail: fmt.Sprintf("retrieval panic: %v", rec)}
		}
	}()

	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return "", nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT title, content
		FROM documents
		WHERE documents MATCH ?
		ORDER BY rank
		LIMIT ?
	`, ftsQuery, r.maxResults)
	if err != nil {
		return "", &Error{Detail: "query knowledge base", Err: err}
	}
	defer rows.Close()

	var chunks []string
	for rows.Next() {
		var title, content string
		if err := rows.Scan(&title, &content); err != nil {
			return "", &Error{Detail: "scan knowledge base row", Err: err}
		}
		chunks = append(chunks, fmt.Sprintf("%s\n%s", title, content))
	}
	if err := rows.Err(); err != nil {
		return "", &Error{Detail: "iterate knowledge base rows", Err: err}
	}

	return strings.Join(chunks, "\n\n"), nil
}

// Close releases the underlying database handle.
func (r *SQLiteRetriever) Close() error {
	return r.db.Close()
}

// buildFTSQuery turns free text into an FTS5 OR-query.
// Terms are quoted so user punctuation cannot break the match syntax.
func buildFTSQuery(query string) string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return !isAlphanumeric(r)
	})
	if len(fields) == 0 {
		return ""
	}

	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " OR ")
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
