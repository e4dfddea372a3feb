// Package envelope defines the standardized result shape every tool must
// return. The envelope carries the tool's primary output, auxiliary details,
// numeric counts, produced filesystem paths and invocation metadata under a
// uniform structure so the engine can feed outputs forward between nodes
// without per-tool special cases.
package envelope

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// Status reports the outcome of a tool invocation.
type Status string

// Tool invocation statuses.
const (
	StatusSuccess        Status = "success"
	StatusPartialSuccess Status = "partial_success"
	StatusError          Status = "error"
)

// Data groups the tool's structured outputs.
type Data struct {
	// Primary is the canonical main output. Its type depends on the tool.
	Primary any `json:"primary"`

	// Secondary holds auxiliary structured details.
	Secondary map[string]any `json:"secondary,omitempty"`

	// Counts holds numeric statistics about the invocation.
	Counts map[string]float64 `json:"counts,omitempty"`
}

// Metadata records how the envelope was produced.
type Metadata struct {
	ToolName   string         `json:"tool_name"`
	Version    string         `json:"version,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`

	// ProcessingTime is the invocation duration in seconds.
	ProcessingTime float64 `json:"processing_time"`
}

// Envelope is the invariant result shape for every tool invocation.
type Envelope struct {
	Status   Status   `json:"status"`
	Data     Data     `json:"data"`
	Metadata Metadata `json:"metadata"`
	Paths    []string `json:"paths"`
	Message  string   `json:"message"`
	Error    string   `json:"error,omitempty"`
}

// New creates a success envelope for the given tool, stamping
// metadata.processing_time from the start timestamp.
func New(toolName, version string, params map[string]any, started time.Time) *Envelope {
	return &Envelope{
		Status: StatusSuccess,
		Metadata: Metadata{
			ToolName:       toolName,
			Version:        version,
			Parameters:     params,
			ProcessingTime: time.Since(started).Seconds(),
		},
		Paths: []string{},
	}
}

// NewError creates an error envelope carrying the failure summary in Message
// and the full detail in Error.
func NewError(toolName, version string, params map[string]any, started time.Time, err error) *Envelope {
	e := New(toolName, version, params, started)
	e.Status = StatusError
	if err != nil {
		e.Message = summarize(err.Error())
		e.Error = err.Error()
	}
	return e
}

// WithPrimary sets the primary output and returns the envelope for chaining.
func (e *Envelope) WithPrimary(v any) *Envelope {
	e.Data.Primary = v
	return e
}

// WithSecondary sets one auxiliary detail and returns the envelope.
func (e *Envelope) WithSecondary(key string, v any) *Envelope {
	if e.Data.Secondary == nil {
		e.Data.Secondary = make(map[string]any)
	}
	e.Data.Secondary[key] = v
	return e
}

// WithCount sets one numeric statistic and returns the envelope.
func (e *Envelope) WithCount(key string, v float64) *Envelope {
	if e.Data.Counts == nil {
		e.Data.Counts = make(map[string]float64)
	}
	e.Data.Counts[key] = v
	return e
}

// WithPaths records filesystem paths produced by the tool.
func (e *Envelope) WithPaths(paths ...string) *Envelope {
	e.Paths = append(e.Paths, paths...)
	return e
}

// WithMessage sets the human-readable one-liner.
func (e *Envelope) WithMessage(msg string) *Envelope {
	e.Message = msg
	return e
}

// IsError reports whether the envelope carries a failed invocation.
func (e *Envelope) IsError() bool {
	return e != nil && e.Status == StatusError
}

// AsMap returns the envelope as a generic map, preserving in-memory values.
// This is the shape the placeholder resolver walks with dotted key paths.
func (e *Envelope) AsMap() map[string]any {
	return map[string]any{
		"status": string(e.Status),
		"data": map[string]any{
			"primary":   e.Data.Primary,
			"secondary": e.Data.Secondary,
			"counts":    e.Data.Counts,
		},
		"metadata": map[string]any{
			"tool_name":       e.Metadata.ToolName,
			"version":         e.Metadata.Version,
			"parameters":      e.Metadata.Parameters,
			"processing_time": e.Metadata.ProcessingTime,
		},
		"paths":   e.Paths,
		"message": e.Message,
		"error":   e.Error,
	}
}

// opaqueSeq numbers opaque markers so distinct objects get distinct ids.
var opaqueSeq atomic.Uint64

// OpaqueMarker returns the serialization marker used in place of a value
// that cannot be represented as JSON, e.g. "<opaque:image.RGBA@3>".
func OpaqueMarker(v any) string {
	return fmt.Sprintf("<opaque:%T@%d>", v, opaqueSeq.Add(1))
}

// Sanitized returns a deep copy of the envelope where every value is
// JSON-serializable. Non-serializable values (in-memory images, channels,
// functions) are replaced with opaque markers. The original envelope is
// left untouched so downstream adapters can still reach the real objects.
func (e *Envelope) Sanitized() *Envelope {
	cp := *e
	cp.Data.Primary = sanitizeValue(e.Data.Primary)
	cp.Data.Secondary = sanitizeMap(e.Data.Secondary)
	if e.Metadata.Parameters != nil {
		cp.Metadata.Parameters = sanitizeMap(e.Metadata.Parameters)
	}
	return &cp
}

func sanitizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool, float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return val
	case map[string]any:
		return sanitizeMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	case []string:
		return val
	default:
		if _, err := json.Marshal(val); err != nil {
			return OpaqueMarker(val)
		}
		return val
	}
}

// summarize truncates an error string to a one-liner.
func summarize(s string) string {
	const maxLen = 200
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			s = s[:i]
			break
		}
	}
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
