package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/printworks/sticker-layout/internal/application"
	"github.com/printworks/sticker-layout/internal/config"
	"github.com/printworks/sticker-layout/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("sticker-layout", "Sticker Layout Optimizer - assigns stickers to printing plates and minimizes the pages printed")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	port := kingpinApp.Flag("port", "HTTP port exposed by the service").String()
	layoutCapacityFlag := kingpinApp.Flag("layout-capacity", "Sticker spots per printing plate").Default("0").Int64()
	maxLayoutsFlag := kingpinApp.Flag("max-layouts", "Maximum number of distinct plates").Default("0").Int()
	timeBudgetFlag := kingpinApp.Flag("time-budget", "Solver time limit per request (e.g. 5m)").Duration()
	stickersStr := kingpinApp.Flag("stickers", "Comma-separated initial demands as name=demand pairs").String()
	rateLimitRPSFlag := kingpinApp.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}

	if *port != "" {
		overrides.Port = port
	}

	if *layoutCapacityFlag > 0 {
		overrides.LayoutCapacity = layoutCapacityFlag
	}

	if *maxLayoutsFlag > 0 {
		overrides.MaxLayouts = maxLayoutsFlag
	}

	if *timeBudgetFlag > 0 {
		overrides.TimeBudget = timeBudgetFlag
	}

	if *stickersStr != "" {
		overrides.StickersStr = stickersStr
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
