package events

import (
	"errors"
	"sync"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/logger"
)

// ErrSinkClosed is returned when emitting after the terminal event.
var ErrSinkClosed = errors.New("event sink is closed")

// DropPolicy decides what happens when the sink buffer is full.
type DropPolicy int

const (
	// Block waits for the consumer to drain the buffer.
	Block DropPolicy = iota
	// DropNonEssential discards heartbeat and partial events when the
	// buffer is full. Terminal events always block until delivered.
	DropNonEssential
)

// Sink is the bounded, append-only event stream for a single request.
// It enforces the stream invariants: monotonic timestamps, exactly one
// terminal event, and no events after the terminal one. A Sink has a single
// producer (the executor) and a single consumer (the transport).
type Sink struct {
	ch     chan *Event
	policy DropPolicy

	mu       sync.Mutex
	lastTS   float64
	closed   bool
	terminal bool
	dropped  int
}

// NewSink creates a bounded sink with the given buffer size and policy.
func NewSink(buffer int, policy DropPolicy) *Sink {
	if buffer <= 0 {
		buffer = 256
	}
	return &Sink{
		ch:     make(chan *Event, buffer),
		policy: policy,
	}
}

// Events returns the consumer side of the stream. The channel closes after
// the terminal event is delivered.
func (s *Sink) Events() <-chan *Event {
	return s.ch
}

// Emit appends an event to the stream. Timestamps are forced monotonic.
// Emitting after the terminal event returns ErrSinkClosed. Under the
// DropNonEssential policy, heartbeat and partial events are discarded when
// the buffer is full; all other events block.
//
// The mutex is held across the channel send and close. Concurrent
// producers (the executor and its heartbeater) therefore serialize here,
// and no send can race the terminal close.
func (s *Sink) Emit(e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}
	if e.Timestamp == 0 {
		e.Timestamp = now()
	}
	if e.Timestamp < s.lastTS {
		e.Timestamp = s.lastTS
	}
	s.lastTS = e.Timestamp

	if e.IsTerminal() {
		s.terminal = true
		s.closed = true
		// Terminal events are never dropped.
		s.ch <- e
		close(s.ch)
		return nil
	}

	if s.policy == DropNonEssential &&
		(e.Type == TypeHeartbeat || e.Type == TypePartial) {
		select {
		case s.ch <- e:
		default:
			s.dropped++
			logger.Debug("Dropped non-essential event", "type", string(e.Type), "step", e.Step)
		}
		return nil
	}

	s.ch <- e
	return nil
}

// Dropped returns the number of events discarded under backpressure.
func (s *Sink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Terminated reports whether the terminal event has been emitted.
func (s *Sink) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal
}
