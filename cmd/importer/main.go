package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"pkstore/internal/backend"
	"pkstore/internal/config"
	"pkstore/internal/importer"
	"pkstore/internal/logger"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to product CSV ("+strings.Join(importer.Columns, ",")+")")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logger.New(logger.Options{Service: "pkstore-importer", Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx := context.Background()
	products, err := backend.OpenProducts(ctx, cfg, log, true)
	if err != nil {
		log.Fatal().Err(err).Msg("open product backend")
	}
	defer products.Close()

	f, err := os.Open(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("open file")
	}
	defer f.Close()

	start := time.Now()
	count, err := importer.NewCSVImporter(f, products.Repo).Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Int("imported", count).Msg("import failed")
	}

	fmt.Printf("Imported %d products into %s in %s\n", count, products.Name, time.Since(start).Truncate(time.Millisecond))
}
