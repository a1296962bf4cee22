package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/planetqradio/creditledger/internal/api"
	"github.com/planetqradio/creditledger/internal/auth"
	"github.com/planetqradio/creditledger/internal/config"
	"github.com/planetqradio/creditledger/internal/logging"
	"github.com/planetqradio/creditledger/internal/service"
	"github.com/planetqradio/creditledger/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "json").WithError(err).Fatal("invalid configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledgerStore, err := store.Open(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("unable to open ledger store")
	}
	defer ledgerStore.Close()

	// Initialize Layers
	ledger := service.NewLedgerService(ledgerStore, log, cfg.HistoryLimit)
	rewards := service.NewRewardService(ledgerStore, log, cfg.RewardPointsPerMinute, cfg.HistoryLimit)
	admin := service.NewAdminService(ledgerStore, ledger, log)
	handler := api.NewHandler(ledger, rewards, admin, log)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           api.NewRouter(handler, tokens),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"addr": srv.Addr, "env": cfg.Env, "driver": cfg.StoreDriver}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
