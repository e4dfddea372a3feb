package prometheus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/adapt"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/config"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/events"
)

func resetMetrics() {
	pipelinesActive.Set(0)
	pipelineDuration.Reset()
	nodeDuration.Reset()
	nodesTotal.Reset()
	eventsTotal.Reset()
	dependencyIssuesTotal.Reset()
}

func TestRecordPipelineStartEnd(t *testing.T) {
	resetMetrics()

	RecordPipelineStart()
	RecordPipelineStart()
	if active := testutil.ToFloat64(pipelinesActive); active != 2 {
		t.Errorf("Expected 2 active pipelines, got %f", active)
	}

	RecordPipelineEnd("success", 5.0)
	RecordPipelineEnd("error", 2.0)
	if active := testutil.ToFloat64(pipelinesActive); active != 0 {
		t.Errorf("Expected 0 active pipelines after end, got %f", active)
	}

	if count := testutil.CollectAndCount(pipelineDuration); count == 0 {
		t.Error("Expected non-zero pipeline duration observations")
	}
}

func TestRecordNode(t *testing.T) {
	resetMetrics()

	RecordNode("search", "success", 0.5)
	RecordNode("search", "success", 1.0)
	RecordNode("file_writer", "error", 0.2)

	successCount := testutil.ToFloat64(nodesTotal.WithLabelValues("search", "success"))
	errorCount := testutil.ToFloat64(nodesTotal.WithLabelValues("file_writer", "error"))

	if successCount != 2 {
		t.Errorf("Expected 2 successful search nodes, got %f", successCount)
	}
	if errorCount != 1 {
		t.Errorf("Expected 1 failed file_writer node, got %f", errorCount)
	}
	if count := testutil.CollectAndCount(nodeDuration); count == 0 {
		t.Error("Expected non-zero node duration observations")
	}
}

func TestRecordEventAndDependencyIssue(t *testing.T) {
	resetMetrics()

	RecordEvent("progress")
	RecordEvent("progress")
	RecordEvent("result")
	RecordDependencyIssue("missing_package")

	if n := testutil.ToFloat64(eventsTotal.WithLabelValues("progress")); n != 2 {
		t.Errorf("Expected 2 progress events, got %f", n)
	}
	if n := testutil.ToFloat64(dependencyIssuesTotal.WithLabelValues("missing_package")); n != 1 {
		t.Errorf("Expected 1 missing_package issue, got %f", n)
	}
}

func TestMetricsListenerPipelineLifecycle(t *testing.T) {
	resetMetrics()
	listener := NewMetricsListener()

	listener.Handle(&events.Event{
		Type:      events.TypeProgress,
		RequestID: "req-1",
		Timestamp: 10.0,
	})
	if active := testutil.ToFloat64(pipelinesActive); active != 1 {
		t.Errorf("Expected 1 active pipeline after first event, got %f", active)
	}

	listener.Handle(&events.Event{
		Type:      events.TypeToolStart,
		Step:      "search_node",
		RequestID: "req-1",
		Timestamp: 10.1,
		Data:      map[string]any{"node_id": "search_node", "tool_type": "search"},
	})
	listener.Handle(&events.Event{
		Type:      events.TypeToolResult,
		Step:      "search_node",
		RequestID: "req-1",
		Timestamp: 10.6,
		Data:      map[string]any{"node_id": "search_node", "status": "success"},
	})

	if n := testutil.ToFloat64(nodesTotal.WithLabelValues("search", "success")); n != 1 {
		t.Errorf("Expected 1 successful search node, got %f", n)
	}

	listener.Handle(&events.Event{
		Type:      events.TypeResult,
		RequestID: "req-1",
		Timestamp: 11.0,
	})
	if active := testutil.ToFloat64(pipelinesActive); active != 0 {
		t.Errorf("Expected 0 active pipelines after terminal event, got %f", active)
	}

	if n := testutil.ToFloat64(eventsTotal.WithLabelValues("tool_start")); n != 1 {
		t.Errorf("Expected 1 tool_start event counted, got %f", n)
	}
}

func TestMetricsListenerErrorTerminal(t *testing.T) {
	resetMetrics()
	listener := NewMetricsListener()

	listener.Handle(&events.Event{
		Type:      events.TypeStatus,
		RequestID: "req-err",
		Timestamp: 1.0,
	})
	listener.Handle(&events.Event{
		Type:      events.TypeError,
		RequestID: "req-err",
		Timestamp: 2.0,
		Data:      map[string]any{"kind": "tool_error"},
	})

	if active := testutil.ToFloat64(pipelinesActive); active != 0 {
		t.Errorf("Expected 0 active pipelines after error, got %f", active)
	}
}

func TestMetricsListenerDependencyIssue(t *testing.T) {
	resetMetrics()
	listener := NewMetricsListener()

	listener.Handle(&events.Event{
		Type:      events.TypeStatus,
		Step:      "search_node",
		RequestID: "req-dep",
		Timestamp: 1.0,
		Data: map[string]any{
			"dependency_issue": map[string]any{
				"package": "baidusearch",
				"kind":    "missing_package",
			},
		},
	})

	if n := testutil.ToFloat64(dependencyIssuesTotal.WithLabelValues("missing_package")); n != 1 {
		t.Errorf("Expected 1 dependency issue, got %f", n)
	}
}

func TestMetricsListenerInterleavedRequests(t *testing.T) {
	resetMetrics()
	listener := NewMetricsListener()

	listener.Handle(&events.Event{Type: events.TypeProgress, RequestID: "a", Timestamp: 1.0})
	listener.Handle(&events.Event{Type: events.TypeProgress, RequestID: "b", Timestamp: 1.1})
	if active := testutil.ToFloat64(pipelinesActive); active != 2 {
		t.Errorf("Expected 2 active pipelines, got %f", active)
	}

	listener.Handle(&events.Event{Type: events.TypeResult, RequestID: "a", Timestamp: 2.0})
	if active := testutil.ToFloat64(pipelinesActive); active != 1 {
		t.Errorf("Expected 1 active pipeline, got %f", active)
	}

	listener.Handle(&events.Event{Type: events.TypeError, RequestID: "b", Timestamp: 2.5})
	if active := testutil.ToFloat64(pipelinesActive); active != 0 {
		t.Errorf("Expected 0 active pipelines, got %f", active)
	}
}

func TestMetricsListenerTolerantInput(t *testing.T) {
	listener := NewMetricsListener()

	// Must not panic.
	listener.Handle(nil)
	listener.Handle(&events.Event{Type: events.TypeToolResult, RequestID: "x"})
	listener.Handle(&events.Event{Type: events.TypeResult, RequestID: "never-started"})
}

func TestAdapterStatsCollector(t *testing.T) {
	adapter := adapt.NewOutputAdapter(config.Default())
	collector := NewAdapterStatsCollector(adapter)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collector)

	if count := testutil.CollectAndCount(collector); count != 5 {
		t.Errorf("Expected 5 adapter metrics, got %d", count)
	}
}

func TestNewExporter(t *testing.T) {
	exporter, err := NewExporter(":9091")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if exporter.Registry() == nil {
		t.Error("Expected non-nil registry")
	}
}

func TestNewExporterWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	exporter := NewExporterWithRegistry(":9092", reg)
	if exporter.Registry() != reg {
		t.Error("Expected custom registry to be used")
	}
}

func TestExporterHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "Test counter",
	})
	reg.MustRegister(counter)
	counter.Inc()

	exporter := NewExporterWithRegistry(":9093", reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, req)

	resp := rec.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "test_counter") {
		t.Error("Expected response to contain test_counter metric")
	}
}

func TestExporterRegister(t *testing.T) {
	exporter := NewExporterWithRegistry(":9094", prometheus.NewRegistry())

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "custom_counter",
		Help: "Custom counter",
	})
	if err := exporter.Register(counter); err != nil {
		t.Errorf("Expected no error registering counter, got %v", err)
	}
	if err := exporter.Register(counter); err == nil {
		t.Error("Expected error when registering duplicate counter")
	}
}

func TestExporterStartStop(t *testing.T) {
	exporter := NewExporterWithRegistry("127.0.0.1:0", prometheus.NewRegistry())

	if err := exporter.Start(); err != nil {
		t.Fatalf("Expected no error on start, got %v", err)
	}
	if err := exporter.Start(); err == nil {
		t.Error("Expected error on double start")
	}

	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exporter.Stop(ctx); err != nil {
		t.Errorf("Expected no error on stop, got %v", err)
	}

	// Stopping again is a no-op.
	if err := exporter.Stop(ctx); err != nil {
		t.Errorf("Expected nil on second stop, got %v", err)
	}
}
