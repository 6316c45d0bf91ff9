package config

import "time"

// Settings holds the resolved agent configuration.
// Build one with ParseSettings; zero values are filled with defaults.
type Settings struct {
	// LLM
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64

	// Per-call timeouts for external capabilities.
	DecisionTimeout time.Duration
	AnswerTimeout   time.Duration
	SearchTimeout   time.Duration
	ToolTimeout     time.Duration

	// Conversation shaping
	HistoryBudget    int // token budget for the answer-step history window
	MaxToolRounds    int // cap on answer->tools cycles per turn
	WebSearchEnabled bool
	MaxWebResults    int

	// Storage paths (":memory:" is valid for all three)
	CheckpointPath string
	ExpenseDBPath  string
	KnowledgePath  string

	// Web search
	TavilyAPIKey string
}

// Defaults returns the default settings.
func Defaults() Settings {
	return Settings{
		Model:            "claude-sonnet-4-20250514",
		MaxTokens:        2048,
		Temperature:      0.7,
		DecisionTimeout:  30 * time.Second,
		AnswerTimeout:    60 * time.Second,
		SearchTimeout:    20 * time.Second,
		ToolTimeout:      30 * time.Second,
		HistoryBudget:    4000,
		MaxToolRounds:    8,
		WebSearchEnabled: true,
		MaxWebResults:    3,
		CheckpointPath:   "agent_state.db",
		ExpenseDBPath:    "expenses.db",
		KnowledgePath:    "knowledge.db",
	}
}

// ParseSettings resolves Settings from a Config plus the environment.
// API keys come from the environment only (ANTHROPIC_API_KEY, TAVILY_API_KEY)
// so they never end up in config files.
func ParseSettings(c Config) Settings {
	s := Defaults()

	llm := c.Sub("llm")
	s.Model = llm.String("model", s.Model)
	s.MaxTokens = llm.Int("max_tokens", s.MaxTokens)
	s.Temperature = llm.Float("temperature", s.Temperature)

	timeouts := c.Sub("timeouts")
	s.DecisionTimeout = timeouts.Duration("decision", s.DecisionTimeout)
	s.AnswerTimeout = timeouts.Duration("answer", s.AnswerTimeout)
	s.SearchTimeout = timeouts.Duration("search", s.SearchTimeout)
	s.ToolTimeout = timeouts.Duration("tool", s.ToolTimeout)

	conv := c.Sub("conversation")
	s.HistoryBudget = conv.Int("history_budget", s.HistoryBudget)
	s.MaxToolRounds = conv.Int("max_tool_rounds", s.MaxToolRounds)
	s.WebSearchEnabled = conv.Bool("web_search_enabled", s.WebSearchEnabled)
	s.MaxWebResults = conv.Int("max_web_results", s.MaxWebResults)

	storage := c.Sub("storage")
	s.CheckpointPath = storage.String("checkpoints", s.CheckpointPath)
	s.ExpenseDBPath = storage.String("expenses", s.ExpenseDBPath)
	s.KnowledgePath = storage.String("knowledge", s.KnowledgePath)

	s.APIKey = Env("ANTHROPIC_API_KEY", s.APIKey)
	s.TavilyAPIKey = Env("TAVILY_API_KEY", s.TavilyAPIKey)

	return s
}
