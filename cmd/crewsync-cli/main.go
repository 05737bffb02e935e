package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/crewsync-api/internal/app"
	"github.com/noah-isme/crewsync-api/pkg/config"
	"github.com/noah-isme/crewsync-api/pkg/logger"
)

func main() {
	var container *app.Container

	rootCmd := &cobra.Command{
		Use:           "crewsync-cli",
		Short:         "CrewSync operator tooling",
		Long:          `Inspect and repair volunteer assignments directly against the configured stores.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			container, err = app.Build(cmd.Context(), cfg, logr)
			if err != nil {
				return fmt.Errorf("failed to build application: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if container != nil {
				container.Close(context.Background())
				_ = container.Logger.Sync()
			}
		},
	}

	ops := func() operator { return container.Assignments }
	rootCmd.AddCommand(reconcileCmd(ops))
	rootCmd.AddCommand(duplicatesCmd(ops))
	rootCmd.AddCommand(occupancyCmd(ops))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if container != nil {
			container.Logger.Error("command failed", zap.Error(err))
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
