package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dqmetrics/internal/config"
	"github.com/sells-group/dqmetrics/internal/store"
)

const (
	defaultSQLitePath = "dqmetrics.db"
	defaultCSVPath    = "dqmetrics_history.csv"
)

func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite", "":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, store.PostgresOptions{
			MaxConns: sc.MaxConns,
			MinConns: sc.MinConns,
			Schema:   sc.Schema,
		})
	case "csv":
		path := sc.DatabaseURL
		if path == "" {
			path = defaultCSVPath
		}
		return store.NewCSV(path), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

// openStore initializes the configured store and applies its migration.
func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	st, err := initStore(ctx, sc)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
