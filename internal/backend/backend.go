// Package backend opens the configured product repository for the binaries.
package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"pkstore/internal/config"
	"pkstore/internal/db"
	"pkstore/internal/migrate"
	productrepo "pkstore/internal/repository/product"
)

// Products is an open product repository with its connection lifecycle.
type Products struct {
	Repo  productrepo.Repository
	Name  string
	Ping  func(ctx context.Context) error
	Close func()
}

// OpenProducts connects to the backend named by cfg. With applyMigrations set, Postgres migrations are
// applied before the repository is returned.
func OpenProducts(ctx context.Context, cfg config.Config, logger zerolog.Logger, applyMigrations bool) (*Products, error) {
	switch cfg.Backend() {
	case config.BackendMongo:
		client, err := db.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		return &Products{
			Repo: productrepo.NewMongo(client.Database(cfg.MongoDatabase), logger),
			Name: "mongo",
			Ping: func(ctx context.Context) error { return client.Ping(ctx, nil) },
			Close: func() {
				_ = client.Disconnect(context.Background())
			},
		}, nil
	default:
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		if applyMigrations {
			if err := migrate.Apply(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		return &Products{
			Repo:  productrepo.NewPostgres(pool, logger),
			Name:  "postgres",
			Ping:  pool.Ping,
			Close: pool.Close,
		}, nil
	}
}
