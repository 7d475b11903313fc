// Package app wires configuration into the provider, cache store and
// pipeline shared by the binaries.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"tradeshare/internal/config"
	"tradeshare/internal/logging"
	"tradeshare/internal/pipeline"
	"tradeshare/internal/providers"
	"tradeshare/internal/providers/comtrade"
	"tradeshare/internal/providers/wits"
	"tradeshare/internal/query"
	"tradeshare/internal/store"
	"tradeshare/internal/store/filestore"
	"tradeshare/internal/store/sqlite"
)

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Provider providers.Provider
	Store    store.Store
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	provider, err := BuildProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}
	st, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	return &App{Config: cfg, Logger: logger, Provider: provider, Store: st}, nil
}

// Load reads the config file at path (or the default locations), applies
// the command-line overrides and opens the app with a logger writing to logw.
func Load(path string, overrides Overrides, logw io.Writer) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	overrides.Apply(cfg)
	return New(cfg, logging.New(cfg.Log.Level, cfg.Log.Format, logw))
}

func (a *App) Close() error {
	return a.Store.Close()
}

func BuildProvider(providerID string) (providers.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(providerID)) {
	case config.ProviderWITS:
		return wits.New()
	case config.ProviderComtrade:
		return comtrade.New()
	default:
		return nil, fmt.Errorf("unknown provider: %s", providerID)
	}
}

func OpenStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Cache.Backend {
	case config.BackendNone:
		return &store.NopStore{}, nil
	case config.BackendSQLite:
		return sqlite.New(cfg.DBPath())
	case config.BackendFile:
		return filestore.New(cfg.Cache.Dir)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Cache.Backend)
	}
}

// Pipeline returns a pipeline for the configured provider and year.
// opts.Year is filled from the config when zero.
func (a *App) Pipeline(opts pipeline.Options) *pipeline.Pipeline {
	if opts.Year <= 0 {
		opts.Year = a.Config.Year
	}
	return pipeline.New(a.Provider, a.Store, a.Logger, opts)
}

// Engine runs the pipeline and wraps its graphs in a query engine.
func (a *App) Engine(ctx context.Context, opts pipeline.Options) (*query.Engine, *pipeline.Result, error) {
	result, err := a.Pipeline(opts).Run(ctx)
	if err != nil {
		return nil, nil, err
	}
	return query.New(result.Directory, result.Export, result.Import), result, nil
}
