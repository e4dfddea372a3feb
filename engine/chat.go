package engine

import (
	"context"
	"regexp"
	"strings"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/events"
)

// chatChunkSize is the rune count per streamed partial chunk.
const chatChunkSize = 24

// CannedChatHandler is a pattern-to-reply conversational handler. It
// streams the reply in chunks as partial events, the way a token-streaming
// backend would, and fits deployments that front the engine without an LLM.
type CannedChatHandler struct {
	rules    []chatRule
	fallback string
}

type chatRule struct {
	pattern *regexp.Regexp
	reply   string
}

// NewCannedChatHandler creates a handler with a default reply for inputs
// no rule matches.
func NewCannedChatHandler(fallback string) *CannedChatHandler {
	return &CannedChatHandler{fallback: fallback}
}

// AddRule maps an input pattern to a reply. Invalid patterns are rejected.
func (h *CannedChatHandler) AddRule(pattern, reply string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	h.rules = append(h.rules, chatRule{pattern: re, reply: reply})
	return nil
}

// Chat streams the matched reply as partial events and returns it.
func (h *CannedChatHandler) Chat(ctx context.Context, emitter *events.Emitter, input string) (string, error) {
	reply := h.fallback
	for _, rule := range h.rules {
		if rule.pattern.MatchString(input) {
			reply = rule.reply
			break
		}
	}

	var accumulated strings.Builder
	runes := []rune(reply)
	for start := 0; start < len(runes); start += chatChunkSize {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		end := start + chatChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		delta := string(runes[start:end])
		accumulated.WriteString(delta)
		_ = emitter.Partial("chat", accumulated.String(), delta)
	}
	return reply, nil
}
