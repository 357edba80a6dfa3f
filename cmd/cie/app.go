package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/Veraticus/compliance-intelligence/internal/cache"
	"github.com/Veraticus/compliance-intelligence/internal/classification"
	"github.com/Veraticus/compliance-intelligence/internal/config"
	"github.com/Veraticus/compliance-intelligence/internal/feedback"
	"github.com/Veraticus/compliance-intelligence/internal/learning"
	"github.com/Veraticus/compliance-intelligence/internal/reasoning"
	"github.com/Veraticus/compliance-intelligence/internal/storage"
)

// app bundles the wired engine components for one command invocation.
type app struct {
	cfg       *config.Config
	store     *storage.SQLiteStorage
	solutions *cache.SolutionCache
	client    reasoning.Client
	cycle     *learning.Cycle
	engine    *classification.Engine
	collector *feedback.Collector
	logger    *slog.Logger
}

// appOptions selects which components a command needs.
type appOptions struct {
	onIndexProgress func(done, total int)
	reasoning       bool
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openStorage opens and migrates the configured database.
func openStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// openApp wires every component over a migrated store and loads the
// fuzzy index. The reasoning client is only created when opts.reasoning is set.
func openApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := slog.Default()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: store, logger: logger}

	a.solutions, err = cache.New(store, cfg.CacheOptions(logger))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if _, err := a.solutions.Rebuild(ctx, opts.onIndexProgress); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to load fuzzy index: %w", err)
	}

	a.cycle, err = learning.NewCycle(store, cfg.LearningOptions(logger))
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.collector, err = feedback.NewCollector(store, a.solutions, cfg.FeedbackOptions(logger))
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	if opts.reasoning {
		a.client, err = reasoning.NewClient(cfg.ReasoningOptions())
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to create reasoning client: %w", err)
		}
		a.engine, err = classification.NewEngine(store, a.solutions, a.client, classification.Options{
			Logger:   logger,
			Learning: a.cycle,
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	return a, nil
}

// Close drains the feedback queue and releases the index and database.
func (a *app) Close() error {
	var errs []error
	if a.collector != nil {
		errs = append(errs, a.collector.Close())
	}
	if a.solutions != nil {
		errs = append(errs, a.solutions.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
