package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/trial-workload/internal/rubric"
	"github.com/sells-group/trial-workload/internal/service"
	"github.com/sells-group/trial-workload/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "workload.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initScorer() (*rubric.Scorer, error) {
	if cfg.Rubric.TablesPath == "" {
		return rubric.New(nil)
	}
	tables, err := rubric.LoadTables(cfg.Rubric.TablesPath)
	if err != nil {
		return nil, err
	}
	return rubric.New(tables)
}

// env bundles the collaborators a workload command needs.
type env struct {
	Store   store.Store
	Service *service.Service
}

func (e *env) Close() {
	_ = e.Store.Close()
}

// initEnv opens and migrates the store and builds the service on top of it.
func initEnv(ctx context.Context, mode string) (*env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	scorer, err := initScorer()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	svc, err := service.New(st, cfg, scorer)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &env{Store: st, Service: svc}, nil
}
