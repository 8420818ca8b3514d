package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexbotov/cascade/internal/api"
	"github.com/alexbotov/cascade/internal/audit"
	"github.com/alexbotov/cascade/internal/auth"
	"github.com/alexbotov/cascade/internal/config"
	"github.com/alexbotov/cascade/internal/control"
	"github.com/alexbotov/cascade/internal/database"
	"github.com/alexbotov/cascade/internal/domain"
	"github.com/alexbotov/cascade/internal/game"
	"github.com/alexbotov/cascade/internal/limits"
	"github.com/alexbotov/cascade/internal/logger"
	"github.com/alexbotov/cascade/internal/rng"
	"github.com/alexbotov/cascade/internal/rounds"
	"github.com/alexbotov/cascade/internal/slot"
	"github.com/alexbotov/cascade/internal/wallet"
	"github.com/alexbotov/cascade/pkg/walletapi"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "cascade-rgs",
		Version:     "1.0.0",
		Environment: cfg.Log.Environment,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	db, err := database.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return err
	}

	ctx := context.Background()
	currency := cfg.Game.DefaultCurrency

	auditSvc := audit.New(db.DB, log)
	controlSvc := control.New(db.DB, auditSvc, log)
	if err := controlSvc.LoadState(ctx); err != nil {
		return fmt.Errorf("failed to load gaming control state: %w", err)
	}

	catalog := slot.DefaultCatalog()
	if cfg.Game.GamesFile != "" {
		if catalog, err = slot.LoadCatalog(cfg.Game.GamesFile); err != nil {
			return err
		}
	}

	// the engine settles against either the local ledger or the operator
	var (
		funds   game.Wallet
		cashier api.Cashier
	)
	switch cfg.Wallet.Mode {
	case config.WalletModeRemote:
		client := walletapi.NewClient(&walletapi.ClientConfig{
			BaseURL:    cfg.Wallet.BaseURL,
			APIKey:     cfg.Wallet.APIKey,
			APISecret:  cfg.Wallet.APISecret,
			Timeout:    cfg.Wallet.Timeout,
			RetryCount: cfg.Wallet.Retries,
		})
		funds = wallet.NewRemote(client, log, currency)
	case config.WalletModeLocal:
		local := wallet.New(db.DB, auditSvc, log, currency)
		funds = local
		cashier = local
	default:
		return fmt.Errorf("unknown wallet mode %q", cfg.Wallet.Mode)
	}

	// GLI-19 §3.3.3
	rngSvc := rng.New()
	health, err := rngSvc.HealthCheck()
	severity := domain.SeverityInfo
	if err != nil || !health.Healthy {
		severity = domain.SeverityCritical
		log.Warn("rng health check failed at startup", zap.Any("result", health), zap.Error(err))
	}
	auditSvc.Log(ctx, audit.EventRNGHealthCheck, severity, "Startup RNG health check", health,
		audit.WithComponent("rng"))

	// GLI-19 §2.5.5, enforced in both wallet modes since rounds are recorded locally
	limitSvc := limits.New(db.DB, auditSvc, log, currency)

	engine := game.New(catalog, funds, rounds.New(db.DB), controlSvc, auditSvc, rngSvc, log, game.Config{
		Currency:          currency,
		LargeWinThreshold: domain.NewMoney(cfg.Game.LargeWinThreshold, currency),
		Limits:            limitSvc,
	})

	handler := api.New(api.Options{
		Auth:     auth.New(db.DB, &cfg.Auth, auditSvc, log, currency),
		Funds:    funds,
		Cashier:  cashier,
		Limits:   limitSvc,
		Engine:   engine,
		RNG:      rngSvc,
		Status:   controlSvc,
		Logger:   log,
		Currency: currency,

		Operator:    controlSvc,
		OperatorKey: cfg.Operator.APIKey,
	})
	if cfg.Operator.APIKey == "" {
		log.Info("operator routes disabled, RGS_OPERATOR_KEY not set")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.SetupRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	auditSvc.Log(ctx, audit.EventSystemStartup, domain.SeverityInfo, "Cascade RGS started",
		map[string]interface{}{
			"port":        cfg.Server.Port,
			"wallet_mode": cfg.Wallet.Mode,
			"games":       len(catalog.List()),
		},
		audit.WithComponent("main"))

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("wallet_mode", cfg.Wallet.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	auditSvc.Log(shutdownCtx, audit.EventSystemShutdown, domain.SeverityInfo, "Cascade RGS stopping", nil,
		audit.WithComponent("main"))

	return srv.Shutdown(shutdownCtx)
}
