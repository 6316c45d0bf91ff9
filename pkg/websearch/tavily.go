// Package websearch provides the web-search capability used when the
// knowledge base cannot answer a question. Results come from the
// Tavily API and are formatted into prompt-ready snippets.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the Tavily search endpoint.
	DefaultBaseURL = "https://api.tavily.com/search"
	// DefaultTimeout bounds a single search request.
	DefaultTimeout = 20 * time.Second
	// DefaultMaxResults is how many snippets a search returns.
	DefaultMaxResults = 3
)

// Searcher is the web-search capability used by the web step.
// Implementations return formatted snippets or a *Error; they never
// panic past this boundary.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// TavilyClient implements Searcher against the Tavily API.
type TavilyClient struct {
	apiKey     string
	baseURL    string
	maxResults int
	httpClient *http.Client
}

// Option configures a TavilyClient.
type Option func(*TavilyClient)

// WithBaseURL overrides the API endpoint. Used in tests.
func WithBaseURL(url string) Option {
	return func(c *TavilyClient) {
		c.baseURL = url
	}
}

// WithTimeout overrides the HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *TavilyClient) {
		c.httpClient.Timeout = d
	}
}

// WithMaxResults bounds how many snippets a search returns.
func WithMaxResults(n int) Option {
	return func(c *TavilyClient) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// NewTavilyClient creates a Tavily search client.
func NewTavilyClient(apiKey string, opts ...Option) *TavilyClient {
	c := &TavilyClient{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		maxResults: DefaultMaxResults,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// tavilyResponse is the wire shape of a Tavily search reply.
type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Search implements Searcher. Results are formatted one snippet per
// block as "Title: ...\nContent: ...\nURL: ...", blocks separated by
// blank lines. All failures come back as *Error.
func (c *TavilyClient) Search(ctx context.Context, query string) (result string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = ""
			err = &Error{Detail: fmt.Sprintf("web search panic: %v", rec)}
		}
	}()

	if c.apiKey == "" {
		return "", &Error{Detail: "missing API key"}
	}

	// Tavily expects the API key in the body, not in headers.
	payload, err := json.Marshal(map[string]any{
		"api_key":     c.apiKey,
		"query":       query,
		"max_results": c.maxResults,
	})
	if err != nil {
		return "", &Error{Detail: "marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Detail: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Detail: "search request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Detail: "read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &Error{Detail: fmt.Sprintf("API status %d: %s", resp.StatusCode, string(body))}
	}

	var decoded tavilyResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", &Error{Detail: "parse response", Err: err}
	}

	return formatResults(decoded.Results), nil
}

// formatResults renders search results into prompt-ready snippets.
func formatResults(results []tavilyResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("Title: %s\nContent: %s\nURL: %s", r.Title, r.Content, r.URL))
	}
	return strings.Join(blocks, "\n\n")
}
