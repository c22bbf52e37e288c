package application

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/printworks/sticker-layout/internal/api"
	"github.com/printworks/sticker-layout/internal/config"
	"github.com/printworks/sticker-layout/internal/solver"
	"github.com/printworks/sticker-layout/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage storage.Storage
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	store := storage.NewMemoryStorage()
	if len(cfg.InitialStickers) > 0 {
		if err := store.SetStickers(cfg.InitialStickers); err != nil {
			return nil, fmt.Errorf("failed to apply initial sticker demands: %w", err)
		}
	}

	defaults := api.Defaults{
		LayoutCapacity: cfg.LayoutCapacity,
		MaxLayouts:     cfg.MaxLayouts,
		Options: solver.Options{
			TimeBudget:       cfg.TimeBudget,
			MaxPrintRuns:     cfg.MaxPrintRuns,
			SymmetryBreaking: cfg.SymmetryBreaking,
			Workers:          cfg.SolverWorkers,
		},
	}

	handler := api.NewHandler(store, defaults)
	router := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	server := NewServer(cfg, router)

	return &App{
		storage: store,
		handler: handler,
		router:  router,
		logger:  logger,
		server:  server,
	}, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}
