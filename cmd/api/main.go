package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"pkstore/internal/backend"
	"pkstore/internal/config"
	"pkstore/internal/httpserver"
	"pkstore/internal/logger"
	"pkstore/internal/observe"
	productrepo "pkstore/internal/repository/product"
	tokenrepo "pkstore/internal/repository/token"
	"pkstore/internal/service/checkout"
	productsvc "pkstore/internal/service/product"
	"pkstore/internal/session"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logger.New(logger.Options{Service: "pkstore-api", Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("api stopped")
	}
	log.Info().Msg("server stopped")
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sink := observe.NewReporter(log, registry)

	products, err := backend.OpenProducts(ctx, cfg, log, false)
	if err != nil {
		return err
	}
	defer products.Close()
	ready := []httpserver.ReadyCheck{{Name: products.Name, Ping: products.Ping}}

	var tokens tokenrepo.Repository = tokenrepo.NewMemory()
	if cfg.RedisURL != "" {
		client, err := tokenrepo.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		redisTokens := tokenrepo.NewRedis(client)
		tokens = redisTokens
		ready = append(ready, httpserver.ReadyCheck{Name: "redis", Ping: redisTokens.Ping})
	} else {
		log.Warn().Msg("PKSTORE_REDIS_URL not set, session tokens are kept in memory")
	}

	hub := productrepo.NewHub(products.Repo, log, time.Second)
	sessions := session.NewManager(session.Options{
		Products:     hub,
		Tokens:       tokens,
		Sink:         sink,
		Logger:       log,
		TTL:          cfg.SessionTTL,
		Idle:         cfg.SessionIdle,
		WriteTimeout: cfg.WriteTimeout,
	})
	defer sessions.Close()

	srv, err := httpserver.New(cfg.HTTPAddr, log, httpserver.Deps{
		Sessions:    sessions,
		Products:    productsvc.New(products.Repo, log),
		Checkout:    checkout.New(cfg.CheckoutDelay, log),
		Ready:       ready,
		Gatherer:    registry,
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return sessions.Run(gctx) })
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
