// Package transport exposes the engine's event streams over HTTP. Three
// framings of the same per-request stream are served: NDJSON over chunked
// HTTP, Server-Sent Events and WebSocket. The stream contents are
// identical; clients pick the framing their environment supports.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/config"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/events"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/session"
)

// maxRequestBody bounds the decoded request body size.
const maxRequestBody = 1 << 20

// Runner executes one request, emitting events on the session sink and
// closing it with exactly one terminal event. engine.Router satisfies it.
type Runner interface {
	Handle(ctx context.Context, sess *session.Context, input string) error
}

// Request is the wire form of a run request.
type Request struct {
	// Input is the natural-language task or chat message.
	Input string `json:"input"`

	// RequestID correlates events and logs. Generated when empty.
	RequestID string `json:"request_id,omitempty"`

	// ToolTimeoutSeconds bounds a single tool invocation. Zero uses the
	// engine default.
	ToolTimeoutSeconds float64 `json:"tool_timeout_seconds,omitempty"`

	// PipelineTimeoutSeconds bounds the whole run. Zero uses the engine
	// default.
	PipelineTimeoutSeconds float64 `json:"pipeline_timeout_seconds,omitempty"`
}

// Server serves the streaming endpoints.
type Server struct {
	runner Runner
	cfg    config.EventsConfig
}

// NewServer creates a server over a runner.
func NewServer(runner Runner, cfg config.EventsConfig) *Server {
	return &Server{runner: runner, cfg: cfg}
}

// Handler returns the routed, trace-instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/stream", s.handleNDJSON)
	mux.HandleFunc("/v1/sse", s.handleSSE)
	mux.HandleFunc("/v1/ws", s.handleWebSocket)
	return otelhttp.NewHandler(mux, "pipeline-server")
}

// decodeRequest parses and validates a run request body.
func decodeRequest(w http.ResponseWriter, r *http.Request) (*Request, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()

	var req Request
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if req.Input == "" {
		return nil, fmt.Errorf("input is required")
	}
	return &req, nil
}

// newSession builds the per-request sink and session context.
func (s *Server) newSession(req *Request) *session.Context {
	policy := events.Block
	if s.cfg.DropNonEssential {
		policy = events.DropNonEssential
	}
	sink := events.NewSink(s.cfg.SinkBuffer, policy)

	opts := []session.Option{
		session.WithOverrides(session.Overrides{
			ToolTimeout:     secondsToDuration(req.ToolTimeoutSeconds),
			PipelineTimeout: secondsToDuration(req.PipelineTimeoutSeconds),
		}),
	}
	if req.RequestID != "" {
		opts = append(opts, session.WithRequestID(req.RequestID))
	}
	return session.New(sink, opts...)
}

// run starts the runner in the background. The sink closes after the
// terminal event regardless of the returned error.
func (s *Server) run(ctx context.Context, sess *session.Context, input string) {
	go func() {
		_ = s.runner.Handle(ctx, sess, input)
	}()
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
