package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/graphrapids/graphapi/pkg/config"
	"github.com/graphrapids/graphapi/pkg/database"
	"github.com/graphrapids/graphapi/pkg/logger"
)

// Open returns the repository selected by STORE_DRIVER.
func Open(ctx context.Context, cfg *config.Config) (Repository, error) {
	verbose := cfg.AppEnv == "development" || cfg.AppEnv == "test"
	switch cfg.StoreDriver {
	case "memory":
		logger.L().Warn("using in-memory store; collections are lost on restart")
		return NewMemoryRepository(), nil
	case "sqlite":
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath, verbose)
		if err != nil {
			return nil, err
		}
		logger.L().Info("sqlite store opened", zap.String("path", cfg.SQLitePath))
		return NewGormRepository(db), nil
	case "postgres":
		db, err := database.OpenPostgres(ctx, cfg.DatabaseURL, verbose)
		if err != nil {
			return nil, err
		}
		logger.L().Info("postgres store opened")
		return NewGormRepository(db), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
