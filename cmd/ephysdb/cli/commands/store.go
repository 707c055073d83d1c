package commands

import (
	"context"
	"fmt"

	"github.com/mwantia/ephysdb/internal/config"
	"github.com/mwantia/ephysdb/pkg/db/migrations"
	"github.com/mwantia/ephysdb/pkg/db/store"
	"github.com/mwantia/ephysdb/pkg/log"
)

// setup loads the configuration and creates the root logger.
func setup() (*config.BaseConfig, log.LoggerService, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, log.NewLoggerService("ephysdb", cfg.Log), nil
}

// openStore connects to the configured metadata store. The database is
// migrated unless migrate is false.
func openStore(ctx context.Context, cfg *config.BaseConfig, logger log.LoggerService, migrate bool) (*store.GormStore, error) {
	level := store.ParseGormLogLevel(cfg.Metadata.LogLevel)

	st, err := store.New(store.Config{
		Type:   cfg.Metadata.Type,
		Path:   cfg.Metadata.SQLite.Path,
		DSN:    cfg.Metadata.MySQL.DSN,
		Logger: store.NewGormLogger(logger.Named("gorm"), level),
	})
	if err != nil {
		return nil, err
	}

	if err := st.Connect(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to connect to %s metadata store: %w", cfg.Metadata.Type, err)
	}

	if migrate {
		logger.Debug("Running pending migrations...")
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to migrate metadata store: %w", err)
		}
	}

	return st, nil
}

// requireSchema fails when the store has migrations left to apply, so read-only
// commands report it instead of a missing table.
func requireSchema(ctx context.Context, st *store.GormStore) error {
	pending, err := migrations.NewMigrator(st.DB()).Pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to check metadata store schema: %w", err)
	}
	if len(pending) > 0 {
		return fmt.Errorf("metadata store has %d pending migration(s), run 'ephysdb migrate up' first", len(pending))
	}
	return nil
}
