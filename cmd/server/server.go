package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/martinsuchenak/lifecycled/internal/api"
	"github.com/martinsuchenak/lifecycled/internal/collector"
	"github.com/martinsuchenak/lifecycled/internal/config"
	"github.com/martinsuchenak/lifecycled/internal/log"
	"github.com/martinsuchenak/lifecycled/internal/mcp"
	"github.com/martinsuchenak/lifecycled/internal/metrics"
	"github.com/martinsuchenak/lifecycled/internal/refresh"
	"github.com/martinsuchenak/lifecycled/internal/storage"
	"github.com/martinsuchenak/lifecycled/internal/worker"
	"github.com/paularlott/cli"
)

const (
	forecastTaskID = "forecast-snapshot"
	collectTaskID  = "snmp-collect"
	shutdownGrace  = 10 * time.Second
)

// ServerConfig holds everything the server wires together
type ServerConfig struct {
	Config     *config.Config
	Service    *refresh.Service
	APIHandler *api.Handler
	MCPServer  *mcp.Server
	Metrics    *metrics.Metrics
	Scheduler  *worker.Scheduler
}

// NewServerConfig builds the handlers, metrics and scheduler over svc
func NewServerConfig(cfg *config.Config, svc *refresh.Service) (*ServerConfig, error) {
	m := metrics.New(svc.Store(), svc)
	sc := &ServerConfig{
		Config:     cfg,
		Service:    svc,
		APIHandler: api.NewHandler(svc),
		MCPServer:  mcp.NewServer(svc, cfg.MCPAuthToken),
		Metrics:    m,
		Scheduler:  worker.NewScheduler(nil),
	}
	if err := registerTasks(sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// registerTasks adds the scheduled forecast snapshot and, when targets are
// configured, the SNMP inventory collection
func registerTasks(sc *ServerConfig) error {
	if schedule := sc.Config.ForecastSchedule; schedule != "" {
		err := sc.Scheduler.RegisterTask(&worker.Task{
			ID:       forecastTaskID,
			Name:     "Forecast snapshot",
			Schedule: schedule,
			Handler: func(ctx context.Context, taskID string) error {
				start := time.Now()
				_, err := sc.Service.Snapshot(ctx)
				sc.Metrics.ObserveForecast(time.Since(start), err)
				return err
			},
		})
		if err != nil {
			return err
		}
	}

	snmp := sc.Config.SNMP
	if snmp.Schedule != "" && len(snmp.Targets) > 0 {
		c := collector.New(sc.Config.CollectorConfig(), sc.Service.Store(), collector.WithObserver(sc.Metrics))
		err := sc.Scheduler.RegisterTask(&worker.Task{
			ID:       collectTaskID,
			Name:     "SNMP inventory collection",
			Schedule: snmp.Schedule,
			Handler: func(ctx context.Context, taskID string) error {
				_, err := c.Collect(ctx)
				return err
			},
		})
		if err != nil {
			return err
		}
	} else if snmp.Schedule != "" {
		log.Warn("SNMP schedule set without targets, collection disabled")
	}
	return nil
}

// Handler builds the routed, instrumented and secured HTTP handler
func (sc *ServerConfig) Handler() http.Handler {
	mux := http.NewServeMux()

	sc.APIHandler.RegisterRoutes(mux)
	api.NewTaskHandler(sc.Scheduler).RegisterRoutes(mux)

	// MCP endpoint
	mux.HandleFunc("/mcp", sc.MCPServer.GetHTTPHandler())

	mux.Handle("GET /metrics", sc.Metrics.Handler())

	var handler http.Handler = instrument(sc.Metrics, mux)
	if sc.Config.IsAPIAuthEnabled() {
		handler = api.AuthMiddleware(sc.Config.APIAuthToken, handler)
	}
	handler = api.RequestLogMiddleware(handler)
	return api.SecurityHeadersMiddleware(handler)
}

// instrument records each request under the pattern of the route it matched
func instrument(m *metrics.Metrics, mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, pattern := mux.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
		}
		m.Middleware(pattern, mux).ServeHTTP(w, r)
	})
}

// RunServer starts the scheduler and serves until ctx is cancelled or a
// termination signal arrives
func RunServer(ctx context.Context, sc *ServerConfig) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc.Scheduler.Start()
	defer sc.Scheduler.Stop()

	server := &http.Server{
		Addr:              sc.Config.ListenAddr,
		Handler:           sc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Log startup info
	log.Info("Starting lifecycled server", "addr", sc.Config.ListenAddr)
	log.Info("API available", "url", "http://localhost"+sc.Config.ListenAddr+"/api/")
	log.Info("MCP available", "url", "http://localhost"+sc.Config.ListenAddr+"/mcp")
	log.Info("Metrics available", "url", "http://localhost"+sc.Config.ListenAddr+"/metrics")
	if sc.Config.IsAPIAuthEnabled() {
		log.Info("API authentication enabled")
	}
	for _, task := range sc.Scheduler.Tasks() {
		log.Info("Scheduled task", "id", task.ID, "schedule", task.Schedule, "next_run", task.NextRun)
	}
	sc.MCPServer.LogStartup()

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("Server error", "error", err)
			return err
		}
	case <-ctx.Done():
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("Graceful shutdown failed", "error", err)
		}
	}

	log.Info("Server stopped")
	return nil
}

// Command returns the server command
func Command() *cli.Command {
	return &cli.Command{
		Name:        "server",
		Usage:       "Start the lifecycled server",
		Description: "Start the HTTP server with the planning API, MCP endpoint, metrics and scheduled tasks",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd)
			if err != nil {
				return err
			}
			log.Info("Configuration loaded", "source", cfg.String(), "data_dir", cfg.DataDir, "listen_addr", cfg.ListenAddr)

			store, err := storage.NewSQLiteStorage(cfg.DataDir)
			if err != nil {
				log.Error("Failed to initialize storage", "error", err)
				return err
			}
			defer store.Close()
			log.Info("Storage initialized", "backend", "SQLite", "path", cfg.DataDir)

			sc, err := NewServerConfig(cfg, refresh.NewService(store, cfg.ServiceOptions()))
			if err != nil {
				return err
			}
			return RunServer(ctx, sc)
		},
	}
}
