package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/solatis/ruledesk/internal/catalog"
	"github.com/solatis/ruledesk/internal/core/config"
	"github.com/solatis/ruledesk/internal/core/db"
	"github.com/solatis/ruledesk/internal/store"
	"github.com/solatis/ruledesk/internal/types"
)

// openCatalog loads the configured catalog eagerly so a broken file fails
// at startup rather than on the first request.
func openCatalog(ctx context.Context) (*catalog.Catalog, error) {
	cat := catalog.New(catalog.FileLoader{Path: cfg.CatalogPath}, logger)
	names, err := cat.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", cfg.CatalogPath, err)
	}
	logger.Debug("catalog loaded", zap.String("path", cfg.CatalogPath), zap.Int("categories", len(names)))
	return cat, nil
}

// openRepository builds the configured store. The returned func releases it.
func openRepository(ctx context.Context) (store.Repository, func(), error) {
	var seed []types.Rule
	if cfg.SeedPath != "" {
		var err error
		if seed, err = store.LoadFixtures(cfg.SeedPath); err != nil {
			return nil, nil, err
		}
	}

	switch cfg.Store {
	case config.StoreSQL:
		return openSQLRepository(ctx, seed)
	default:
		opts := []store.MemoryOption{
			store.WithLogger(logger),
			store.WithLatency(cfg.MockLatency),
			store.WithSeed(seed),
		}
		if cfg.FaultEvery > 0 {
			opts = append(opts, store.WithFaults(store.FailEvery(cfg.FaultEvery)))
		}
		logger.Info("using in-memory store",
			zap.Int("seeded", len(seed)),
			zap.Duration("mock_latency", cfg.MockLatency),
			zap.Int("fault_every", cfg.FaultEvery))
		return store.NewMemoryStore(opts...), func() {}, nil
	}
}

func openSQLRepository(ctx context.Context, seed []types.Rule) (store.Repository, func(), error) {
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	closeDB := func() { _ = database.Close() }

	migrator, err := db.NewMigrator(database, logger)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	statuses, err := migrator.Status(ctx)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			closeDB()
			return nil, nil, fmt.Errorf("migration %s not applied - run 'ruledesk migrate' first", s.ID)
		}
	}

	repo, err := store.NewSQLStore(database)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}

	if len(seed) > 0 {
		n, err := repo.Count(ctx)
		if err != nil {
			closeDB()
			return nil, nil, err
		}
		if n == 0 {
			created, err := store.Seed(ctx, repo, seed)
			if err != nil {
				closeDB()
				return nil, nil, fmt.Errorf("failed to seed store: %w", err)
			}
			logger.Info("seeded empty database", zap.Int("rules", created))
		}
	}
	return repo, closeDB, nil
}

// fieldsFor returns the field set of category. Categories whose schema is
// missing test with an empty set, matching the permissive validator.
func fieldsFor(ctx context.Context, cat *catalog.Catalog, category string) (types.FieldSet, error) {
	fields, err := cat.Fields(ctx, category)
	if errors.Is(err, types.ErrUnknownSchema) {
		return types.FieldSet{}, nil
	}
	return fields, err
}
