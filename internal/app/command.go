package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"SentimentPipeline/internal/config"
	"SentimentPipeline/internal/logging"
)

// Builder constructs a process from loaded configuration.
type Builder func(ctx context.Context, cfg config.Config, log *slog.Logger) (*Application, error)

// NewCommand returns a root command with a single "start" subcommand that
// builds the process and runs it until SIGINT or SIGTERM.
func NewCommand(name, short string, build Builder) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           name,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (defaults to $NEWSPIPE_CONFIG)")

	root.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Run until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadFile(configPath)
			log := logging.New(cfg.Logging.Level, cfg.Logging.Format).With("process", name)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := build(ctx, cfg, log)
			if err != nil {
				log.Error("startup failed", "error", err)
				return fmt.Errorf("startup: %w", err)
			}

			if err := application.Run(ctx); err != nil {
				log.Error("process stopped with error", "error", err)
				return err
			}
			log.Info("process stopped")
			return nil
		},
	})

	return root
}

// Execute runs cmd and returns the process exit code.
func Execute(cmd *cobra.Command) int {
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
