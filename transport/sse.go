package transport

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/logger"
)

// handleSSE streams events as Server-Sent Events. Each event is one
// `data:` frame carrying the JSON event object; the event type travels
// inside the payload so clients need a single message listener.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, err := decodeRequest(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sess := s.newSession(req)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Request-Id", sess.RequestID)
	w.WriteHeader(http.StatusOK)

	s.run(r.Context(), sess, req.Input)

	for event := range sess.Sink.Events() {
		payload, err := json.Marshal(event)
		if err != nil {
			logger.Error("sse encode failed", "error", err, "request_id", sess.RequestID)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			logger.Debug("sse write failed", "error", err, "request_id", sess.RequestID)
			return
		}
		flusher.Flush()
	}
}
