package agent

import (
	"github.com/tiktoken-go/tokenizer"
)

// Window derives a token-bounded view of the conversation for model
// calls. Derivation is pure: it never mutates the history it reads.
type Window struct {
	budget int
	codec  tokenizer.Codec
}

// NewWindow creates a window with the given token budget. Claude's
// tokenization is approximated with the GPT-4 encoding; when the codec
// cannot be built, counting falls back to a len/4 estimate.
func NewWindow(budget int) *Window {
	w := &Window{budget: budget}
	if codec, err := tokenizer.ForModel(tokenizer.GPT4); err == nil {
		w.codec = codec
	}
	return w
}

// CountTokens returns the token count for text.
func (w *Window) CountTokens(text string) int {
	if w.codec == nil {
		return len(text) / 4
	}
	count, err := w.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// Derive selects the most recent messages that fit the budget.
// Rules, newest first accumulation:
//   - system entries are always kept
//   - the latest human message is always kept, even over budget
//   - the window starts on a human message so the model never sees a
//     dangling assistant or tool entry
func (w *Window) Derive(history []ChatMessage) []ChatMessage {
	if len(history) == 0 {
		return nil
	}

	keep := make([]bool, len(history))
	used := 0

	// System entries ride along regardless of budget.
	for i, msg := range history {
		if msg.Origin == OriginSystem {
			keep[i] = true
			used += w.CountTokens(msg.Content)
		}
	}

	lastHuman := -1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Origin == OriginHuman {
			lastHuman = i
			break
		}
	}

	cutoff := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		if keep[i] {
			continue
		}
		cost := w.CountTokens(history[i].Content)
		if used+cost > w.budget && i != lastHuman {
			break
		}
		keep[i] = true
		used += cost
		cutoff = i
	}

	// Make sure the latest human message survives even if the loop
	// stopped before reaching it.
	if lastHuman >= 0 && !keep[lastHuman] {
		keep[lastHuman] = true
		if lastHuman < cutoff {
			cutoff = lastHuman
		}
	}

	// Advance the cutoff to the first kept human message so the window
	// opens on the user's words.
	for cutoff < len(history) && (!keep[cutoff] || history[cutoff].Origin != OriginHuman) {
		if history[cutoff].Origin == OriginSystem && keep[cutoff] {
			break
		}
		keep[cutoff] = false
		cutoff++
	}

	out := make([]ChatMessage, 0, len(history))
	for i, msg := range history {
		if keep[i] {
			out = append(out, msg)
		}
	}
	return out
}
