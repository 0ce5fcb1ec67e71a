package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bridge-cli/internal/resilience"
	"github.com/sells-group/bridge-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "bridge.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = resilience.DoVal(ctx, retryConfig(), "connect postgres", func(ctx context.Context) (store.Store, error) {
			return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
				MaxConns: cfg.Store.MaxConns,
				MinConns: cfg.Store.MinConns,
			})
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := resilience.Do(ctx, retryConfig(), "migrate", st.Migrate); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func retryConfig() resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	rc.MaxAttempts = cfg.Store.RetryAttempts
	return rc
}
