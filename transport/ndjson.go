package transport

import (
	"encoding/json"
	"net/http"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/logger"
)

// handleNDJSON streams events as newline-delimited JSON over a chunked
// response. The stream ends when the terminal event closes the sink.
func (s *Server) handleNDJSON(w http.ResponseWriter, r *http.Request) {
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

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Request-Id", sess.RequestID)
	w.WriteHeader(http.StatusOK)

	s.run(r.Context(), sess, req.Input)

	enc := json.NewEncoder(w)
	for event := range sess.Sink.Events() {
		if err := enc.Encode(event); err != nil {
			// Client went away; the request context cancels the run.
			logger.Debug("ndjson write failed", "error", err, "request_id", sess.RequestID)
			return
		}
		flusher.Flush()
	}
}
