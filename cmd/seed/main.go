package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"pkstore/internal/backend"
	"pkstore/internal/config"
	"pkstore/internal/logger"
	"pkstore/internal/seed"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logger.New(logger.Options{Service: "pkstore-seed", Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx := context.Background()
	products, err := backend.OpenProducts(ctx, cfg, log, true)
	if err != nil {
		log.Fatal().Err(err).Msg("open product backend")
	}
	defer products.Close()

	n, err := seed.Apply(ctx, products.Repo)
	if err != nil {
		log.Fatal().Err(err).Int("applied", n).Msg("seed apply")
	}
	log.Info().Int("products", n).Str("backend", products.Name).Msg("seed applied")
}
