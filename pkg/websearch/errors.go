package websearch

import "fmt"

// ErrorTag marks web-search failures so the orchestrator can
// pattern-match on them for fallback routing.
const ErrorTag = "WEB_ERROR"

// Error is the tagged failure shape for the web-search boundary.
type Error struct {
	// Detail describes what failed.
	Detail string
	// Err is the underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s:: %s: %v", ErrorTag, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s:: %s", ErrorTag, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}
