package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"laundry-backend/internal/config"
	"laundry-backend/internal/env"
	"laundry-backend/internal/infrastructure/midtrans"
	"laundry-backend/internal/infrastructure/repo"
	"laundry-backend/internal/logging"
	"laundry-backend/internal/server"
	"laundry-backend/internal/usecase"
)

type store interface {
	usecase.OrderRepo
	usecase.HistoryRepo
	usecase.CatalogRepo
}

func main() {
	if err := env.Load(".env", ".env.local"); err != nil {
		fmt.Fprintln(os.Stderr, "env:", err)
	}
	envDefaults := config.EnvDefaults()

	envName := flag.String("env", envDefaults.Env, "")
	port := flag.Int("port", envDefaults.Port, "")
	dsn := flag.String("database-url", envDefaults.DatabaseURL, "postgres DSN; empty uses the in-memory store")
	jwtSecret := flag.String("jwt-secret", envDefaults.JWTSecret, "")
	logJSON := flag.Bool("log-json", envDefaults.LogJSON, "")
	logLevel := flag.String("log-level", envDefaults.LogLevel, "")
	strict := flag.Bool("strict-signature", envDefaults.StrictSignature, "reject webhooks without a signature")
	flag.Parse()

	cfg := envDefaults
	cfg.Env = *envName
	cfg.Port = *port
	cfg.DatabaseURL = *dsn
	cfg.JWTSecret = *jwtSecret
	cfg.LogJSON = *logJSON
	cfg.LogLevel = *logLevel
	cfg.StrictSignature = *strict

	log := logging.New(cfg, "laundry-backend", os.Stdout)
	slog.SetDefault(log)
	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		st   store
		ping func(context.Context) error
	)
	if cfg.DatabaseURL != "" {
		pg, err := repo.NewPostgresRepo(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		st, ping = pg, pg.Ping
		log.Info("using postgres store")
	} else {
		st = repo.NewMemoryRepo()
		log.Warn("LAUNDRY_DATABASE_URL not set, using in-memory store")
	}

	gw, err := midtrans.NewClient(midtrans.Config{
		ServerKey:  cfg.MidtransServerKey,
		Production: cfg.MidtransProduction,
		BaseURL:    cfg.MidtransBaseURL,
		SnapURL:    cfg.MidtransSnapURL,
		Timeout:    cfg.GatewayTimeout,
	})
	if err != nil {
		return fmt.Errorf("midtrans: %w", err)
	}

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.New(cfg, server.Deps{
		Orders: &usecase.OrderService{
			Orders: st, History: st, Catalog: st, Logger: log,
			PickupFee: cfg.PickupFee, DeliveryFee: cfg.DeliveryFee,
		},
		Payments: &usecase.PaymentService{Orders: st, Gateway: gw, Logger: log},
		Reconciler: &usecase.Reconciler{
			Orders:          st,
			History:         st,
			Gateway:         gw,
			Logger:          log.With("component", "reconciler"),
			ServerKey:       cfg.MidtransServerKey,
			StrictSignature: cfg.StrictSignature,
			SweepWindow:     cfg.SweepWindow,
			SweepDelay:      cfg.SweepDelay,
		},
		Auth:   &usecase.AuthService{JWTSecret: cfg.JWTSecret},
		Logger: log,
		Ping:   ping,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", httpSrv.Addr, "env", cfg.Env)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
