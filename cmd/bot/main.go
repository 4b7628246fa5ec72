package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eddiefleurent/schrute_wheel/internal/config"
	"github.com/eddiefleurent/schrute_wheel/internal/dashboard"
	"github.com/eddiefleurent/schrute_wheel/internal/gateway"
	"github.com/eddiefleurent/schrute_wheel/internal/journal"
	"github.com/eddiefleurent/schrute_wheel/internal/mock"
	"github.com/eddiefleurent/schrute_wheel/internal/strategy"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	var configPath string
	var once bool
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.BoolVar(&once, "once", false, "Run a single management cycle and exit")
	flag.Parse()

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := log.New(os.Stdout, "[WHEEL] ", log.LstdFlags|log.Lshortfile)

	logger.Printf("Starting wheel bot in %s mode", cfg.Environment.Mode)
	if cfg.IsPaperTrading() {
		logger.Println("PAPER TRADING MODE - No real money at risk")
	} else {
		logger.Println("LIVE TRADING MODE - Real money at risk!")
		logger.Println("Waiting 10 seconds to confirm...")
		time.Sleep(10 * time.Second)
	}

	gw := buildGateway(cfg)

	jrnl, err := journal.New(cfg.Journal.Path)
	if err != nil {
		log.Fatalf("Failed to open journal: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Dashboard.Enabled {
		startDashboard(ctx, cfg, jrnl, gw)
	}

	wheel := strategy.NewWheelStrategy(gw, cfg, logger, jrnl)

	cycleTimeout, err := cfg.CycleTimeout()
	if err != nil {
		log.Fatalf("Invalid cycle timeout: %v", err)
	}

	runCycle := func() {
		cycleCtx := ctx
		if cycleTimeout > 0 {
			var cycleCancel context.CancelFunc
			cycleCtx, cycleCancel = context.WithTimeout(ctx, cycleTimeout)
			defer cycleCancel()
		}
		if err := wheel.Manage(cycleCtx); err != nil {
			logger.Printf("Cycle failed: %v", err)
		}
	}

	if once || cfg.Schedule.Cron == "" {
		runCycle()
		logger.Println("Bot stopped successfully")
		return
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Schedule.Cron, runCycle); err != nil {
		log.Fatalf("Invalid cron schedule %q: %v", cfg.Schedule.Cron, err)
	}
	logger.Printf("Scheduling cycles with cron spec %q", cfg.Schedule.Cron)
	scheduler.Start()

	<-ctx.Done()
	logger.Println("Shutdown signal received, stopping bot...")
	<-scheduler.Stop().Done()
	logger.Println("Bot stopped successfully")
}

// buildGateway picks the market gateway for the mode: a simulator for paper
// trading, the circuit-breaker-wrapped client portal for live.
func buildGateway(cfg *config.Config) gateway.Gateway {
	if cfg.IsPaperTrading() {
		return mock.NewSimGateway()
	}
	api := gateway.NewClientPortalAPI(cfg.Broker.APIEndpoint, cfg.Broker.APIKey, cfg.Broker.AccountID)
	return gateway.NewCircuitBreakerGateway(api)
}

func startDashboard(ctx context.Context, cfg *config.Config, jrnl *journal.Journal, gw gateway.Gateway) {
	dashLogger := logrus.New()
	if cfg.Environment.LogLevel == "debug" {
		dashLogger.SetLevel(logrus.DebugLevel)
	}

	server := dashboard.NewServer(dashboard.Config{
		Port:      cfg.Dashboard.Port,
		AuthToken: cfg.Dashboard.AuthToken,
	}, jrnl, gw, dashLogger)

	go func() {
		if err := server.Start(); err != nil {
			dashLogger.WithError(err).Warn("Dashboard server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}
