// Package session carries per-request identity and configuration through
// the engine: the request id, the event sink and per-request overrides.
// There is no global state; cancellation flows through context.Context.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/events"
)

// Overrides holds per-request tuning. Zero values mean "use the engine
// default".
type Overrides struct {
	// ToolTimeout bounds a single tool invocation.
	ToolTimeout time.Duration

	// PipelineTimeout bounds the whole pipeline run.
	PipelineTimeout time.Duration

	// HeartbeatInterval overrides the heartbeat cadence.
	HeartbeatInterval time.Duration

	// PartialsPerSecond caps relayed partial events. Zero disables the cap.
	PartialsPerSecond float64
}

// Context identifies one request and its event stream.
type Context struct {
	// RequestID uniquely identifies the request across events and logs.
	RequestID string

	// Sink receives every event for this request.
	Sink *events.Sink

	// Overrides are per-request tuning knobs.
	Overrides Overrides
}

// Option configures a session context.
type Option func(*Context)

// WithRequestID sets an explicit request id instead of a generated one.
func WithRequestID(id string) Option {
	return func(c *Context) {
		c.RequestID = id
	}
}

// WithOverrides sets the per-request overrides.
func WithOverrides(o Overrides) Option {
	return func(c *Context) {
		c.Overrides = o
	}
}

// New creates a session context with a generated request id.
func New(sink *events.Sink, opts ...Option) *Context {
	c := &Context{
		RequestID: uuid.NewString(),
		Sink:      sink,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
