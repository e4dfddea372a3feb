// Package recording captures request event streams as self-contained
// artifacts for debugging and replay. A Recorder listens on the event bus
// and groups events by request; finished recordings can be saved as JSON
// or JSON Lines and replayed into a fresh sink.
package recording

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/events"
)

// Format specifies the recording file format.
type Format string

const (
	// FormatJSON uses indented JSON (human-readable, larger files).
	FormatJSON Format = "json"
	// FormatJSONLines uses one event per line after a metadata header.
	FormatJSONLines Format = "jsonl"
)

// recordingVersion is the current format version.
const recordingVersion = "1.0"

// filePermissions for recording files.
const filePermissions = 0o600

// Metadata describes one recorded request.
type Metadata struct {
	// RequestID identifies the recorded request.
	RequestID string `json:"request_id"`

	// StartedAt and EndedAt are the first and last event timestamps in
	// unix seconds.
	StartedAt float64 `json:"started_at"`
	EndedAt   float64 `json:"ended_at"`

	// DurationSeconds is EndedAt minus StartedAt.
	DurationSeconds float64 `json:"duration_seconds"`

	// EventCount is the number of recorded events.
	EventCount int `json:"event_count"`

	// Terminal is the type of the closing event (result or error).
	Terminal events.Type `json:"terminal"`

	// Version is the recording format version.
	Version string `json:"version"`

	// CreatedAt is when the recording was exported.
	CreatedAt time.Time `json:"created_at"`
}

// Recording is a self-contained request event stream.
type Recording struct {
	Metadata Metadata       `json:"metadata"`
	Events   []events.Event `json:"events"`
}

// Recorder accumulates events per request. Register it on the bus with
// SubscribeAll; it is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	open     map[string][]events.Event
	finished map[string]*Recording
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		open:     make(map[string][]events.Event),
		finished: make(map[string]*Recording),
	}
}

// Attach subscribes the recorder to a bus.
func (r *Recorder) Attach(bus *events.Bus) {
	bus.SubscribeAll(r.Handle)
}

// Handle appends one event to its request's recording. The terminal
// event seals the recording.
func (r *Recorder) Handle(event *events.Event) {
	if event == nil || event.RequestID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, done := r.finished[event.RequestID]; done {
		return
	}
	r.open[event.RequestID] = append(r.open[event.RequestID], *event)

	if event.IsTerminal() {
		r.finished[event.RequestID] = seal(event.RequestID, r.open[event.RequestID])
		delete(r.open, event.RequestID)
	}
}

// Recording returns the sealed recording for a request, or an error if
// the request is unknown or still in flight.
func (r *Recorder) Recording(requestID string) (*Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.finished[requestID]; ok {
		return rec, nil
	}
	if _, pending := r.open[requestID]; pending {
		return nil, fmt.Errorf("request %s has not finished", requestID)
	}
	return nil, fmt.Errorf("no recording for request %s", requestID)
}

// Discard drops all state for a request.
func (r *Recorder) Discard(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.open, requestID)
	delete(r.finished, requestID)
}

func seal(requestID string, evts []events.Event) *Recording {
	meta := Metadata{
		RequestID:  requestID,
		EventCount: len(evts),
		Version:    recordingVersion,
		CreatedAt:  time.Now(),
	}
	if n := len(evts); n > 0 {
		meta.StartedAt = evts[0].Timestamp
		meta.EndedAt = evts[n-1].Timestamp
		meta.DurationSeconds = meta.EndedAt - meta.StartedAt
		meta.Terminal = evts[n-1].Type
	}
	return &Recording{Metadata: meta, Events: evts}
}

// SaveTo writes the recording to a file in the given format.
func (r *Recording) SaveTo(path string, format Format) error {
	var data []byte
	var err error

	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(r, "", "  ")
	case FormatJSONLines:
		data, err = r.marshalJSONLines()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return fmt.Errorf("marshal recording: %w", err)
	}
	if err := os.WriteFile(path, data, filePermissions); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	return nil
}

// marshalJSONLines renders a metadata header line followed by one event
// per line.
func (r *Recording) marshalJSONLines() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	if err := enc.Encode(r.Metadata); err != nil {
		return nil, err
	}
	for i := range r.Events {
		if err := enc.Encode(&r.Events[i]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// LoadFrom reads a recording written by SaveTo, detecting the format.
func LoadFrom(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("recording %s is empty", path)
	}

	// An indented JSON document and a JSONL header both start with '{';
	// try the document form first and fall back to line decoding.
	var rec Recording
	if err := json.Unmarshal(trimmed, &rec); err == nil && rec.Metadata.Version != "" {
		return &rec, nil
	}
	return unmarshalJSONLines(trimmed)
}

func unmarshalJSONLines(data []byte) (*Recording, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	var rec Recording
	if err := dec.Decode(&rec.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata line: %w", err)
	}
	for {
		var e events.Event
		if err := dec.Decode(&e); err != nil {
			break
		}
		rec.Events = append(rec.Events, e)
	}
	if len(rec.Events) != rec.Metadata.EventCount {
		return nil, fmt.Errorf("recording truncated: expected %d events, got %d",
			rec.Metadata.EventCount, len(rec.Events))
	}
	return &rec, nil
}
