package agent

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/randalmurphal/expenseagent/pkg/llm"
)

// Prompt templates use ${var} placeholders expanded with os.Expand.

const systemPromptTemplate = `You are a personal expense-tracking assistant.
Today's date is ${date}.

You help the user record expenses, review and update them, and answer
questions about their spending. You have tools for adding, listing,
updating, and deleting expenses, and for monthly summaries, category
breakdowns, and spending limits.

Ground factual claims in retrieved context when it is provided. Be
concise and concrete. Never invent expense records.`

const routerPromptTemplate = `Decide how to handle the user's latest message.

Routes:
- "retrieval": the message asks a factual or policy question that the
  local knowledge base may answer.
- "web": the message needs fresh external information, such as current
  rates or prices.
- "answer": the message is about the user's own expenses, or needs a
  tool action, or is ready to be answered directly from conversation.
- "end": the message is small talk or needs no work; put the complete
  reply in "reply".

Latest message:
${message}`

const judgePromptTemplate = `Question:
${question}

Retrieved context:
${context}

Decide whether the retrieved context is sufficient to fully answer the
question without searching the web.`

// expand substitutes ${var} placeholders from vars.
func expand(template string, vars map[string]string) string {
	return os.Expand(template, func(key string) string {
		return vars[key]
	})
}

// systemPrompt renders the assistant persona with the current date.
func systemPrompt(now time.Time) string {
	return expand(systemPromptTemplate, map[string]string{
		"date": now.Format("2006-01-02"),
	})
}

// routerMessages builds the decision prompt for route selection.
func routerMessages(state TurnState, now time.Time) []llm.Message {
	var recent strings.Builder
	tail := state.History
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	for _, msg := range tail {
		if msg.Origin == OriginHuman || msg.Origin == OriginAssistant {
			fmt.Fprintf(&recent, "%s: %s\n", msg.Origin, msg.Content)
		}
	}

	prompt := expand(routerPromptTemplate, map[string]string{
		"message": state.LastUserMessage(),
	})
	if recent.Len() > 0 {
		prompt = "Recent conversation:\n" + recent.String() + "\n" + prompt
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(now)},
		{Role: llm.RoleUser, Content: prompt},
	}
}

// judgeMessages builds the sufficiency prompt for retrieved context.
func judgeMessages(question, retrieved string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleUser, Content: expand(judgePromptTemplate, map[string]string{
			"question": question,
			"context":  retrieved,
		})},
	}
}

// answerMessages converts the windowed history into model messages,
// prefixing any retrieved or web context as system guidance.
func answerMessages(state TurnState, window []ChatMessage, now time.Time) []llm.Message {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(now)},
	}

	if state.Retrieved != "" {
		messages = append(messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: "Context from the knowledge base:\n" + state.Retrieved,
		})
	}
	if state.WebContext != "" {
		messages = append(messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: "Context from web search:\n" + state.WebContext,
		})
	}

	for _, msg := range window {
		switch msg.Origin {
		case OriginHuman:
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: msg.Content})
		case OriginAssistant:
			content := msg.Content
			if content == "" && len(msg.ToolCalls) > 0 {
				names := make([]string, 0, len(msg.ToolCalls))
				for _, call := range msg.ToolCalls {
					names = append(names, call.Name)
				}
				content = "[requested tools: " + strings.Join(names, ", ") + "]"
			}
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: content})
		case OriginTool:
			messages = append(messages, llm.Message{
				Role:    llm.RoleUser,
				Content: "Tool result (" + msg.ToolCallID + "): " + msg.Content,
			})
		case OriginSystem:
			messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: msg.Content})
		}
	}

	return messages
}
