package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/graphrapids/graphapi/internal/registry"
	"github.com/graphrapids/graphapi/internal/repository"
	"github.com/graphrapids/graphapi/internal/store"
	"github.com/graphrapids/graphapi/pkg/config"
	"github.com/graphrapids/graphapi/pkg/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "graphapi-migrate",
		Short:        "Schema, seeding and import tasks for the graphapi collection store",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			_, err = logger.Init(cfg.LogLevel, cfg.LogFormat)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newImportThemeCmd())
	root.AddCommand(newRenderCmd())
	return root
}

// openRegistry opens the configured store, migrating its schema and loading
// every collection.
func openRegistry(ctx context.Context) (*registry.Registry, error) {
	cfg := config.Get()
	repo, err := repository.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	reg := registry.New(repo, store.Options{LockTimeout: cfg.StoreLockTimeout})
	if err := reg.Open(ctx); err != nil {
		_ = reg.Close()
		return nil, err
	}
	logger.L().Info("store ready", zap.String("driver", cfg.StoreDriver))
	return reg, nil
}
