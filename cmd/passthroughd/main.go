// Package main provides the entry point for the MCP passthrough proxy.
// It wires together configuration, transports, and the hook chain using
// dependency injection and manages the process lifecycle with graceful
// shutdown.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jamesprial/mcp-passthrough/internal/config"
	"github.com/jamesprial/mcp-passthrough/internal/hookchain"
	"github.com/jamesprial/mcp-passthrough/internal/metrics"
	"github.com/jamesprial/mcp-passthrough/internal/passthrough"
	"github.com/jamesprial/mcp-passthrough/internal/tracing"
	"github.com/jamesprial/mcp-passthrough/internal/transport"
	"github.com/jamesprial/mcp-passthrough/internal/transport/httptransport"
	"github.com/jamesprial/mcp-passthrough/internal/transport/wstransport"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "passthroughd",
		Short: "MCP passthrough proxy",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML configuration file")

	root.AddCommand(serveCmd(), validateConfigCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func validateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate the configuration file without starting the proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			fmt.Println(cfg.String())

			hooks, err := resolveHooks(cfg.Hooks)
			if err != nil {
				return fmt.Errorf("resolve hooks: %w", err)
			}
			warnDeadHooks(hooks)
			return nil
		},
	}
}

// warnDeadHooks prints a warning for every hook that implements no handler
// for any method family or direction: a chain built from nothing but such
// hooks would forward traffic unmodified, which is almost never what a
// configured hook name is meant to do. Each hook is checked in a
// single-hook chain so hookchain.MethodCoverage's aggregate result reports
// that hook's own coverage rather than the whole chain's.
func warnDeadHooks(hooks []hookchain.Hook) {
	for _, h := range hooks {
		solo, err := hookchain.NewChain([]hookchain.Hook{h})
		if err != nil {
			continue
		}
		cov := solo.MethodCoverage()
		if len(cov.Downstream) == 0 && len(cov.Upstream) == 0 &&
			!cov.DownstreamNotification && !cov.UpstreamNotification {
			fmt.Printf("warning: hook %q implements no handler for any method or direction\n", h.Name())
		}
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the passthrough proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		"server_addr", cfg.Server.Addr,
		"upstream_url", cfg.Upstream.URL,
		"hooks", cfg.Hooks,
	)

	hooks, err := resolveHooks(cfg.Hooks)
	if err != nil {
		return fmt.Errorf("resolve hooks: %w", err)
	}

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewRecorder(nil)
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	var tracer *tracing.Tracer
	if cfg.Tracing.Enabled {
		tracer, err = tracing.New(ctx, tracing.Config{
			ServiceName:    cfg.Tracing.ServiceName,
			OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
			SampleFraction: cfg.Tracing.SampleFraction,
		})
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracer.Shutdown(shutdownCtx); err != nil {
				logger.Error("tracer shutdown", "error", err)
			}
		}()
	} else {
		tracer = tracing.NoOp()
	}

	sessionID := uuid.NewString()

	server := httptransport.New(httptransport.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, sessionID, logger)

	// client stays a nil transport.Contract (not a typed-nil pointer) when
	// no upstream is configured, so passthrough.Connect's nil check puts
	// the context in hook-only mode rather than treating a typed nil as a
	// live transport.
	var client transport.Contract
	if cfg.Upstream.URL != "" {
		client = wstransport.New(wstransport.Config{
			URL:              cfg.Upstream.URL,
			HandshakeTimeout: cfg.Upstream.HandshakeTimeout,
		}, sessionID, logger)
	} else {
		logger.Warn("no upstream url configured; running in hook-only mode")
	}

	pctx, err := passthrough.New(hooks,
		passthrough.WithLogger(logger),
		passthrough.WithMetrics(recorder),
		passthrough.WithTracer(tracer),
		passthrough.WithOnError(func(err error) { logger.Error("passthrough error", "error", err) }),
		passthrough.WithOnClose(func() { logger.Info("passthrough context closed") }),
	)
	if err != nil {
		return fmt.Errorf("build passthrough context: %w", err)
	}

	connectCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pctx.Connect(connectCtx, server, client); err != nil {
		return fmt.Errorf("connect transports: %w", err)
	}

	logger.Info("passthrough proxy started", "addr", server.Addr())

	<-connectCtx.Done()
	logger.Info("shutdown signal received, closing proxy...")

	if err := pctx.Close(); err != nil {
		logger.Error("close error", "error", err)
		return err
	}

	logger.Info("proxy stopped successfully")
	return nil
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server stopped", "error", err)
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// hookRegistry maps a configured hook name to the factory that builds it. Concrete hook
// implementations are external to this module (spec Non-goals); a deployer
// registers its own factories here before building.
var hookRegistry = map[string]func() hookchain.Hook{}

func resolveHooks(names []string) ([]hookchain.Hook, error) {
	hooks := make([]hookchain.Hook, 0, len(names))
	for _, name := range names {
		factory, ok := hookRegistry[name]
		if !ok {
			return nil, fmt.Errorf("unknown hook %q: register it in hookRegistry before building", name)
		}
		hooks = append(hooks, factory())
	}
	return hooks, nil
}

