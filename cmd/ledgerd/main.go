package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"crossledger/internal/app"
	"crossledger/internal/platform/config"
	"crossledger/internal/platform/httpserver"
	"crossledger/internal/platform/logger"
)

// main wires the ledger components, serves the HTTP surface and drains the
// outbox until a shutdown signal arrives.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(config.Log{Level: "info", Format: "json"}).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)
	if err := run(cfg, log); err != nil {
		log.Error("ledgerd stopped", "error", err)
		os.Exit(1)
	}
	log.Info("ledgerd stopped")
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.CapabilityKey == config.DevCapabilityKey {
		log.Warn("using the development capability key; set CROSSLEDGER_CAPABILITY_KEY")
	}

	ledgerApp, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := ledgerApp.Close(); err != nil {
			log.Error("failed to close adapters", "error", err)
		}
	}()

	srv := httpserver.New(cfg.Server.Addr, ledgerApp.Handler())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting ledgerd",
			"addr", cfg.Server.Addr,
			"submitter", cfg.Adapters.Submitter,
			"notary", cfg.Adapters.Notary,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := ledgerApp.Dispatcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if cfg.Server.RateLimit > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.Server.RateWindow)
			defer ticker.Stop()
			for {
				select {
				case now := <-ticker.C:
					ledgerApp.SweepRateLimits(now)
				case <-gctx.Done():
					return nil
				}
			}
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		// final drain so accepted operations reach the ledger before exit
		if _, err := ledgerApp.Dispatcher.Drain(shutdownCtx); err != nil {
			log.Warn("outbox not fully drained", "error", err, "pending", ledgerApp.Outbox.PendingCount())
		}
		return nil
	})

	return g.Wait()
}
