package engine

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/config"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/events"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/logger"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/session"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/types"
)

// Mode is the routing decision for one request.
type Mode string

// Request modes.
const (
	ModeChat Mode = "chat"
	ModeTask Mode = "task"
)

// Planner turns a natural-language task into a pipeline specification.
// The production planner is an external NL parser; tests use fixtures.
type Planner interface {
	Plan(ctx context.Context, input string) (*types.PipelineSpec, error)
}

// PlannerFunc adapts a function to the Planner interface.
type PlannerFunc func(ctx context.Context, input string) (*types.PipelineSpec, error)

// Plan implements Planner.
func (f PlannerFunc) Plan(ctx context.Context, input string) (*types.PipelineSpec, error) {
	return f(ctx, input)
}

// ChatHandler answers conversational inputs, streaming partial content to
// the emitter and returning the final reply.
type ChatHandler interface {
	Chat(ctx context.Context, emitter *events.Emitter, input string) (string, error)
}

// Router decides per request whether to run the pipeline engine or the
// conversational short-circuit. Classification is a cheap pattern pass
// over short inputs, not NLU.
type Router struct {
	engine   *Engine
	planner  Planner
	chat     ChatHandler
	maxLen   int
	patterns []*regexp.Regexp
}

// NewRouter creates a router. chat may be nil, in which case every request
// runs as a task.
func NewRouter(engine *Engine, planner Planner, chat ChatHandler, cfg config.RouterConfig) (*Router, error) {
	r := &Router{
		engine:  engine,
		planner: planner,
		chat:    chat,
		maxLen:  cfg.MaxChatLength,
	}
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid router pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// Classify returns the mode for an input.
func (r *Router) Classify(input string) Mode {
	if r.chat == nil {
		return ModeTask
	}
	if utf8.RuneCountInString(input) > r.maxLen {
		return ModeTask
	}
	for _, re := range r.patterns {
		if re.MatchString(input) {
			return ModeChat
		}
	}
	return ModeTask
}

// Handle routes one request: conversational inputs go to the chat handler,
// tasks are planned and executed. Exactly one terminal event is emitted on
// the session sink either way.
func (r *Router) Handle(ctx context.Context, sess *session.Context, input string) error {
	mode := r.Classify(input)
	logger.InfoContext(ctx, "Request routed", "mode", string(mode), "request_id", sess.RequestID)

	if mode == ModeChat {
		return r.handleChat(ctx, sess, input)
	}

	spec, err := r.planner.Plan(ctx, input)
	if err != nil {
		emitter := events.NewEmitter(sess.Sink, r.engine.bus, sess.RequestID, 0)
		perr := fmt.Errorf("planning failed: %w", err)
		_ = emitter.Error(events.KindBadSpec, perr.Error(), "", "")
		return perr
	}
	return r.engine.Run(ctx, sess, spec)
}

func (r *Router) handleChat(ctx context.Context, sess *session.Context, input string) error {
	emitter := events.NewEmitter(sess.Sink, r.engine.bus, sess.RequestID,
		sess.Overrides.PartialsPerSecond)

	reply, err := r.chat.Chat(ctx, emitter, input)
	if err != nil {
		_ = emitter.Error(events.KindInternal, "chat handler failed: "+err.Error(), "", "")
		return err
	}
	_ = emitter.Result(reply, map[string]any{"mode": string(ModeChat)})
	return nil
}
