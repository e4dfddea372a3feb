// Package events defines the engine's progress event schema and delivery
// primitives: a bounded per-request sink consumed by transports and a
// process-wide pub/sub bus for observability listeners.
package events

import (
	"encoding/json"
	"time"
)

// Type identifies the kind of event emitted by the engine.
type Type string

// Event types. Exactly one terminal event (TypeResult or TypeError) is
// emitted per request; after it no further events follow.
const (
	// TypeProgress reports coarse pipeline progress.
	TypeProgress Type = "progress"
	// TypeStatus reports an engine status change (planning, warnings).
	TypeStatus Type = "status"
	// TypeToolStart marks the start of a node's tool invocation.
	TypeToolStart Type = "tool_start"
	// TypeToolResult carries a node's invocation outcome and a preview.
	TypeToolResult Type = "tool_result"
	// TypePartial relays incremental content from streaming tools.
	TypePartial Type = "partial"
	// TypeHeartbeat keeps slow transports alive while a node runs.
	TypeHeartbeat Type = "heartbeat"
	// TypeResult is the successful terminal event.
	TypeResult Type = "result"
	// TypeError is the failing terminal event.
	TypeError Type = "error"
)

// Event is the uniform progress event delivered to transports. One JSON
// object is produced per event; framing (NDJSON, SSE, WebSocket) is the
// transport's responsibility.
type Event struct {
	Type    Type           `json:"type"`
	Step    string         `json:"step"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`

	// Timestamp is unix seconds. Within a request timestamps are
	// non-decreasing.
	Timestamp float64 `json:"timestamp"`

	RequestID string `json:"request_id"`
}

// IsTerminal reports whether the event closes its request's stream.
func (e *Event) IsTerminal() bool {
	return e.Type == TypeResult || e.Type == TypeError
}

// MarshalJSON ensures stable encoding of the wire schema.
func (e *Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal((*alias)(e))
}

// ErrorKind classifies terminal error events.
type ErrorKind string

// Engine-visible error kinds.
const (
	KindBadSpec               ErrorKind = "bad_spec"
	KindUnresolvedPlaceholder ErrorKind = "unresolved_placeholder"
	KindCycleDetected         ErrorKind = "cycle_detected"
	KindToolError             ErrorKind = "tool_error"
	KindDependencyIssue       ErrorKind = "dependency_issue"
	KindShapeMismatch         ErrorKind = "shape_mismatch_unrecoverable"
	KindTimeout               ErrorKind = "timeout"
	KindCancelled             ErrorKind = "cancelled"
	KindInternal              ErrorKind = "internal"
)

// now returns the current time as unix seconds.
func now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
