package recording

import (
	"context"
	"fmt"
	"time"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/events"
)

// ReplayOptions tunes playback.
type ReplayOptions struct {
	// Speed scales inter-event delays: 1 replays in real time, 2 at double
	// speed. Zero or negative replays without delays.
	Speed float64

	// RequestID rewrites the request id on replayed events. Empty keeps
	// the recorded id.
	RequestID string
}

// Replay re-emits a recording into a sink, preserving event order and
// optionally the original pacing. The sink closes after the terminal
// event exactly as it did during the live run.
func Replay(ctx context.Context, rec *Recording, sink *events.Sink, opts ReplayOptions) error {
	if len(rec.Events) == 0 {
		return fmt.Errorf("recording %s has no events", rec.Metadata.RequestID)
	}

	prev := rec.Events[0].Timestamp
	for i := range rec.Events {
		event := rec.Events[i]
		if opts.RequestID != "" {
			event.RequestID = opts.RequestID
		}

		if opts.Speed > 0 {
			delay := time.Duration((event.Timestamp - prev) / opts.Speed * float64(time.Second))
			if delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
		}
		prev = event.Timestamp

		if err := sink.Emit(&event); err != nil {
			return fmt.Errorf("replay event %d: %w", i, err)
		}
	}
	return nil
}
