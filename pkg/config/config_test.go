package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_String(t *testing.T) {
	c := New(map[string]any{"name": "router", "count": 5})

	assert.Equal(t, "router", c.String("name", "default"))
	assert.Equal(t, "default", c.String("missing", "default"))
	assert.Equal(t, "default", c.String("count", "default")) // wrong type
}

func TestConfig_Duration(t *testing.T) {
	c := New(map[string]any{
		"str":   "30s",
		"int":   10,
		"float": 1.5,
		"bad":   "not-a-duration",
	})

	assert.Equal(t, 30*time.Second, c.Duration("str", time.Minute))
	assert.Equal(t, 10*time.Second, c.Duration("int", time.Minute))
	assert.Equal(t, 1500*time.Millisecond, c.Duration("float", time.Minute))
	assert.Equal(t, time.Minute, c.Duration("bad", time.Minute))
	assert.Equal(t, time.Minute, c.Duration("missing", time.Minute))
}

func TestConfig_Int(t *testing.T) {
	c := New(map[string]any{
		"int":        42,
		"int64":      int64(43),
		"wholeFloat": float64(44),
		"fracFloat":  44.5,
	})

	assert.Equal(t, 42, c.Int("int", 0))
	assert.Equal(t, 43, c.Int("int64", 0))
	assert.Equal(t, 44, c.Int("wholeFloat", 0))
	assert.Equal(t, 0, c.Int("fracFloat", 0)) // fractional part rejected
	assert.Equal(t, 7, c.Int("missing", 7))
}

func TestConfig_Sub(t *testing.T) {
	c := New(map[string]any{
		"llm": map[string]any{"model": "claude-sonnet-4-20250514"},
	})

	assert.Equal(t, "claude-sonnet-4-20250514", c.Sub("llm").String("model", ""))
	assert.Equal(t, "fallback", c.Sub("missing").String("model", "fallback"))
}

func TestFromYAML(t *testing.T) {
	data := []byte(`
llm:
  model: test-model
  max_tokens: 1024
conversation:
  web_search_enabled: false
`)
	c, err := FromYAML(data)
	require.NoError(t, err)

	assert.Equal(t, "test-model", c.Sub("llm").String("model", ""))
	assert.Equal(t, 1024, c.Sub("llm").Int("max_tokens", 0))
	assert.False(t, c.Sub("conversation").Bool("web_search_enabled", true))
}

func TestFromYAML_Invalid(t *testing.T) {
	_, err := FromYAML([]byte("{not yaml: ["))
	assert.Error(t, err)
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  checkpoints: ':memory:'\n"), 0o644))

	c, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":memory:", c.Sub("storage").String("checkpoints", ""))
}

func TestFromFile_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	_, err := FromFile(path)
	assert.Error(t, err)
}

func TestParseSettings_Defaults(t *testing.T) {
	s := ParseSettings(New(nil))
	d := Defaults()

	assert.Equal(t, d.Model, s.Model)
	assert.Equal(t, d.HistoryBudget, s.HistoryBudget)
	assert.Equal(t, d.MaxToolRounds, s.MaxToolRounds)
	assert.True(t, s.WebSearchEnabled)
}

func TestParseSettings_Overrides(t *testing.T) {
	c, err := FromYAML([]byte(`
llm:
  model: other-model
timeouts:
  decision: 5s
conversation:
  history_budget: 2000
  web_search_enabled: false
storage:
  expenses: ':memory:'
`))
	require.NoError(t, err)

	s := ParseSettings(c)
	assert.Equal(t, "other-model", s.Model)
	assert.Equal(t, 5*time.Second, s.DecisionTimeout)
	assert.Equal(t, 2000, s.HistoryBudget)
	assert.False(t, s.WebSearchEnabled)
	assert.Equal(t, ":memory:", s.ExpenseDBPath)
}

func TestLoadDotenv_MissingFile(t *testing.T) {
	assert.NoError(t, LoadDotenv(filepath.Join(t.TempDir(), "nope.env")))
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("EXPENSEAGENT_TEST_KEY=hello\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("EXPENSEAGENT_TEST_KEY") })

	require.NoError(t, LoadDotenv(path))
	assert.Equal(t, "hello", os.Getenv("EXPENSEAGENT_TEST_KEY"))
}
