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

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/card-duel-backend/internal/catalog"
	"github.com/DoyleJ11/card-duel-backend/internal/config"
	"github.com/DoyleJ11/card-duel-backend/internal/httpapi"
	"github.com/DoyleJ11/card-duel-backend/internal/hub"
	"github.com/DoyleJ11/card-duel-backend/internal/identity"
	"github.com/DoyleJ11/card-duel-backend/internal/logging"
	"github.com/DoyleJ11/card-duel-backend/internal/pending"
	"github.com/DoyleJ11/card-duel-backend/internal/plaza"
	"github.com/DoyleJ11/card-duel-backend/internal/session"
	"github.com/DoyleJ11/card-duel-backend/internal/store"
	"github.com/DoyleJ11/card-duel-backend/internal/store/gormstore"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	var st store.Store
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, collections live in memory")
		st = store.NewMemory()
	} else {
		db, openErr := gormstore.Open(ctx, cfg.DatabaseURL, log)
		if openErr != nil {
			return fmt.Errorf("store: %w", openErr)
		}
		defer func() { err = multierr.Append(err, db.Close()) }()
		st = db
	}

	h := hub.NewHub(ctx, session.Deps{
		Store:         st,
		Catalog:       cat,
		Logger:        log,
		VictoryReward: cfg.VictoryReward,
		StoreTimeout:  cfg.StoreTimeout,
		RewardTimeout: cfg.RewardTimeout,
		IdleTimeout:   cfg.SessionIdleTimeout,
	})
	p := plaza.New(ctx, plaza.Deps{
		Registry:     pending.New(cfg.PendingDuelTTL, time.Now),
		Battles:      h,
		Store:        st,
		Logger:       log,
		Range:        cfg.ChallengeRange,
		StoreTimeout: cfg.StoreTimeout,
	})

	var origins []string
	if cfg.Dev() {
		origins = []string{"localhost:*", "127.0.0.1:*"}
	}
	handler := httpapi.SetupRoutes(httpapi.Deps{
		Hub:            h,
		Plaza:          p,
		Store:          st,
		Verifier:       identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Logger:         log,
		OriginPatterns: origins,
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		select {
		case h.Inbox() <- hub.ShutdownHub{}:
		case <-h.Done():
		}
		p.Send(plaza.Shutdown{})
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
