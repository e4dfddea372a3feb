package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/config"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/events"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/session"
)

// echoRunner emits a short scripted stream ending in a result event.
type echoRunner struct{}

func (echoRunner) Handle(_ context.Context, sess *session.Context, input string) error {
	emitter := events.NewEmitter(sess.Sink, nil, sess.RequestID, 0)
	_ = emitter.Progress("plan", "planning", nil)
	_ = emitter.Status("plan", "execution order computed", map[string]any{"order": []any{"a"}})
	return emitter.Result("done", map[string]any{"echo": input})
}

// failingRunner ends the stream with an error event.
type failingRunner struct{}

func (failingRunner) Handle(_ context.Context, sess *session.Context, _ string) error {
	emitter := events.NewEmitter(sess.Sink, nil, sess.RequestID, 0)
	return emitter.Error(events.KindToolError, "node failed", "search_node", "")
}

func newTestServer(t *testing.T, runner Runner) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(runner, config.Default().Events).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func decodeEvents(t *testing.T, lines []string) []events.Event {
	t.Helper()
	var out []events.Event
	for _, line := range lines {
		var e events.Event
		require.NoError(t, json.Unmarshal([]byte(line), &e), "line %q", line)
		out = append(out, e)
	}
	return out
}

func TestNDJSONStreamsEvents(t *testing.T) {
	srv := newTestServer(t, echoRunner{})

	resp, err := http.Post(srv.URL+"/v1/stream", "application/json",
		strings.NewReader(`{"input": "build a report"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())

	evts := decodeEvents(t, lines)
	require.Len(t, evts, 3)
	assert.Equal(t, events.TypeProgress, evts[0].Type)
	assert.Equal(t, events.TypeResult, evts[2].Type)
	assert.Equal(t, "build a report", evts[2].Data["echo"])

	for _, e := range evts {
		assert.Equal(t, resp.Header.Get("X-Request-Id"), e.RequestID)
	}
}

func TestNDJSONErrorTerminal(t *testing.T) {
	srv := newTestServer(t, failingRunner{})

	resp, err := http.Post(srv.URL+"/v1/stream", "application/json",
		strings.NewReader(`{"input": "anything"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	evts := decodeEvents(t, lines)
	require.Len(t, evts, 1)
	assert.Equal(t, events.TypeError, evts[0].Type)
	assert.Equal(t, "tool_error", evts[0].Data["kind"])
}

func TestNDJSONRejectsMissingInput(t *testing.T) {
	srv := newTestServer(t, echoRunner{})

	resp, err := http.Post(srv.URL+"/v1/stream", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNDJSONRejectsUnknownFields(t *testing.T) {
	srv := newTestServer(t, echoRunner{})

	resp, err := http.Post(srv.URL+"/v1/stream", "application/json",
		strings.NewReader(`{"input": "x", "bogus": true}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNDJSONMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, echoRunner{})

	resp, err := http.Get(srv.URL + "/v1/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestExplicitRequestIDPropagates(t *testing.T) {
	srv := newTestServer(t, echoRunner{})

	resp, err := http.Post(srv.URL+"/v1/stream", "application/json",
		strings.NewReader(`{"input": "x", "request_id": "req-42"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "req-42", resp.Header.Get("X-Request-Id"))

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var e events.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		assert.Equal(t, "req-42", e.RequestID)
	}
}

func TestSSEFraming(t *testing.T) {
	srv := newTestServer(t, echoRunner{})

	resp, err := http.Post(srv.URL+"/v1/sse", "application/json",
		strings.NewReader(`{"input": "hello task"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var payloads []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, "data: "), "unexpected SSE line %q", line)
		payloads = append(payloads, strings.TrimPrefix(line, "data: "))
	}
	require.NoError(t, scanner.Err())

	evts := decodeEvents(t, payloads)
	require.Len(t, evts, 3)
	assert.Equal(t, events.TypeResult, evts[len(evts)-1].Type)

	// Timestamps never go backwards within a stream.
	for i := 1; i < len(evts); i++ {
		assert.GreaterOrEqual(t, evts[i].Timestamp, evts[i-1].Timestamp)
	}
}

func wsURL(httpURL, path string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + path
}

func TestWebSocketRoundTrip(t *testing.T) {
	srv := newTestServer(t, echoRunner{})

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv.URL, "/v1/ws"), nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	require.NoError(t, conn.WriteJSON(Request{Input: "ws task"}))

	var evts []events.Event
	for {
		var e events.Event
		if err := conn.ReadJSON(&e); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure),
				"expected normal closure, got %v", err)
			break
		}
		evts = append(evts, e)
	}

	require.Len(t, evts, 3)
	assert.Equal(t, events.TypeResult, evts[2].Type)
	assert.Equal(t, "ws task", evts[2].Data["echo"])
}

func TestWebSocketRejectsEmptyInput(t *testing.T) {
	srv := newTestServer(t, echoRunner{})

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv.URL, "/v1/ws"), nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	require.NoError(t, conn.WriteJSON(Request{}))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation),
		"expected policy violation closure, got %v", err)
}

func TestSecondsToDuration(t *testing.T) {
	assert.Equal(t, time.Duration(0), secondsToDuration(0))
	assert.Equal(t, time.Duration(0), secondsToDuration(-1))
	assert.Equal(t, 1500*time.Millisecond, secondsToDuration(1.5))
}
