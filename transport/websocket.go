package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/logger"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// handleWebSocket upgrades the connection, reads one run request as the
// first text frame and streams events back as JSON text frames. The
// server closes with a normal closure frame after the terminal event;
// a client disconnect cancels the run.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessageSize)

	req, err := readRequest(conn)
	if err != nil {
		writeClose(conn, websocket.ClosePolicyViolation, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := s.newSession(req)
	s.run(ctx, sess, req.Input)

	// Drain the client side so close frames are processed; any further
	// client frame or disconnect cancels the run.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for event := range sess.Sink.Events() {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(event); err != nil {
			logger.Debug("websocket write failed", "error", err, "request_id", sess.RequestID)
			return
		}
	}
	writeClose(conn, websocket.CloseNormalClosure, "")
}

// readRequest decodes the first text frame as a run request.
func readRequest(conn *websocket.Conn) (*Request, error) {
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	if msgType != websocket.TextMessage {
		return nil, fmt.Errorf("expected a text frame, got type %d", msgType)
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid request frame: %w", err)
	}
	if req.Input == "" {
		return nil, fmt.Errorf("input is required")
	}
	return &req, nil
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
}
