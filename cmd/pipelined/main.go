// Command pipelined serves the pipeline orchestration engine over HTTP.
// Requests are JSON pipeline specifications or short conversational
// inputs; progress streams back as NDJSON, SSE or WebSocket frames.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/config"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/engine"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/events"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/logger"
	metrics "github.com/leaderwolfpipi/mcp-autogen-sub001/metrics/prometheus"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/tools"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/tools/builtin"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/transport"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/types"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/version"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		logger.Error("pipelined exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr        = flag.String("addr", ":8080", "listen address for the streaming API")
		metricsAddr = flag.String("metrics-addr", ":9090", "listen address for /metrics, empty disables")
		configPath  = flag.String("config", "", "semantic tables YAML, empty uses built-in defaults")
		workDir     = flag.String("workdir", "", "tool working directory, empty uses a temp dir")
		verbose     = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	logger.SetVerbose(*verbose)
	logger.Info("starting pipelined", "version", version.Engine, "addr", *addr)

	tables := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		tables = loaded
	}

	dir := *workDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "pipelined_*")
		if err != nil {
			return fmt.Errorf("create workdir: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	registry := tools.NewRegistry()
	if err := builtin.RegisterAll(registry, builtin.Config{WorkDir: dir}); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	bus := events.NewBus()
	bus.SubscribeAll(metrics.NewMetricsListener().Handle)

	eng := engine.New(registry, tables, engine.WithBus(bus))

	chat := engine.NewCannedChatHandler("Hello! Describe a task and I will run it as a pipeline.")
	router, err := engine.NewRouter(eng, specPlanner{}, chat, tables.Router)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	var exporter *metrics.Exporter
	if *metricsAddr != "" {
		exporter, err = metrics.NewExporter(*metricsAddr)
		if err != nil {
			return fmt.Errorf("build exporter: %w", err)
		}
		if err := exporter.Register(metrics.NewAdapterStatsCollector(eng.OutputAdapter())); err != nil {
			return fmt.Errorf("register adapter collector: %w", err)
		}
		if err := exporter.Start(); err != nil {
			return fmt.Errorf("start exporter: %w", err)
		}
		logger.Info("metrics exporter listening", "addr", *metricsAddr)
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           transport.NewServer(router, tables.Events).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if exporter != nil {
		_ = exporter.Stop(ctx)
	}
	return server.Shutdown(ctx)
}

// specPlanner accepts JSON pipeline specifications as task input. The
// production planner is an external NL parser; this binary expects the
// caller to supply the plan directly.
type specPlanner struct{}

func (specPlanner) Plan(_ context.Context, input string) (*types.PipelineSpec, error) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, fmt.Errorf("task input must be a JSON pipeline specification")
	}
	return types.ParsePipelineSpec([]byte(trimmed))
}
