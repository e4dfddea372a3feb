package events

import (
	"context"
	"sync"
	"time"
)

// DefaultHeartbeatInterval is used when no per-request override is set.
const DefaultHeartbeatInterval = 5 * time.Second

// Heartbeater emits periodic heartbeat events while a node is in progress.
// It is owned by the engine; tools never emit heartbeats themselves.
type Heartbeater struct {
	emitter  *Emitter
	interval time.Duration
}

// NewHeartbeater creates a heartbeater with the given interval.
// Non-positive intervals fall back to DefaultHeartbeatInterval.
func NewHeartbeater(emitter *Emitter, interval time.Duration) *Heartbeater {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeater{emitter: emitter, interval: interval}
}

// Start begins emitting heartbeats for the given step until the returned
// stop function is called or ctx is cancelled. Cancellation is checked
// before each emission. Stop joins the goroutine: once it returns, no
// heartbeat emission is in flight, so the caller may emit the terminal
// event immediately.
func (h *Heartbeater) Start(ctx context.Context, step string) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				_ = h.emitter.Heartbeat(step)
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-finished
	}
}
