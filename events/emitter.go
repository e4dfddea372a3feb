package events

import (
	"golang.org/x/time/rate"
)

// partialBurst is the number of partial events allowed through in a burst
// before the rate limit applies.
const partialBurst = 20

// Emitter publishes request events with shared metadata. Every event goes
// to the request sink; a copy is mirrored to the observability bus when one
// is configured. Partial relays are rate-limited so token-streaming tools
// cannot flood slow transports.
type Emitter struct {
	sink      *Sink
	bus       *Bus
	requestID string
	partials  *rate.Limiter
}

// NewEmitter creates an emitter for one request. bus may be nil.
// partialsPerSecond caps relayed partial events; zero or negative disables
// the cap.
func NewEmitter(sink *Sink, bus *Bus, requestID string, partialsPerSecond float64) *Emitter {
	var limiter *rate.Limiter
	if partialsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(partialsPerSecond), partialBurst)
	}
	return &Emitter{
		sink:      sink,
		bus:       bus,
		requestID: requestID,
		partials:  limiter,
	}
}

// RequestID returns the request this emitter belongs to.
func (e *Emitter) RequestID() string {
	return e.requestID
}

// emit publishes an event with shared context fields.
func (e *Emitter) emit(eventType Type, step, message string, data map[string]any) error {
	if e == nil || e.sink == nil {
		return nil
	}
	event := &Event{
		Type:      eventType,
		Step:      step,
		Message:   message,
		Data:      data,
		RequestID: e.requestID,
	}
	err := e.sink.Emit(event)
	if err == nil && e.bus != nil {
		e.bus.Publish(event)
	}
	return err
}

// Progress emits a progress event.
func (e *Emitter) Progress(step, message string, data map[string]any) error {
	return e.emit(TypeProgress, step, message, data)
}

// Status emits a status event (planning info, warnings).
func (e *Emitter) Status(step, message string, data map[string]any) error {
	return e.emit(TypeStatus, step, message, data)
}

// ToolStart emits the tool_start event for a node.
func (e *Emitter) ToolStart(nodeID, toolType string) error {
	return e.emit(TypeToolStart, nodeID, "invoking "+toolType, map[string]any{
		"node_id":   nodeID,
		"tool_type": toolType,
	})
}

// ToolResult emits the tool_result event with a truncated primary preview.
func (e *Emitter) ToolResult(nodeID, status, summary string, preview any) error {
	return e.emit(TypeToolResult, nodeID, summary, map[string]any{
		"node_id": nodeID,
		"status":  status,
		"preview": previewValue(preview),
	})
}

// Partial relays incremental content from a streaming tool. Relays beyond
// the configured rate are dropped; the final accumulated content always
// arrives in the tool_result event.
func (e *Emitter) Partial(step, accumulated, delta string) error {
	if e.partials != nil && !e.partials.Allow() {
		return nil
	}
	return e.emit(TypePartial, step, "", map[string]any{
		"accumulated_content": accumulated,
		"delta":               delta,
	})
}

// Heartbeat emits a keep-alive event for the node in progress.
func (e *Emitter) Heartbeat(step string) error {
	return e.emit(TypeHeartbeat, step, "still working", nil)
}

// Result emits the successful terminal event and closes the stream.
func (e *Emitter) Result(message string, data map[string]any) error {
	return e.emit(TypeResult, "final", message, data)
}

// Error emits the failing terminal event and closes the stream.
func (e *Emitter) Error(kind ErrorKind, message, failingNode, remediation string) error {
	data := map[string]any{"kind": string(kind)}
	if failingNode != "" {
		data["failing_node"] = failingNode
	}
	if remediation != "" {
		data["remediation"] = remediation
	}
	return e.emit(TypeError, "final", message, data)
}

// DependencyIssue surfaces a classified dependency problem alongside the
// triggering tool error.
func (e *Emitter) DependencyIssue(nodeID string, issue map[string]any) error {
	return e.emit(TypeStatus, nodeID, "dependency issue detected", map[string]any{
		"dependency_issue": issue,
	})
}
