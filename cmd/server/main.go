// Package main implements the entry point for the book swap API server,
// which lets users list the books they own and trade them with each other.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/imhighyat/book-swap-api/internal/config"
	"github.com/imhighyat/book-swap-api/internal/platform/logger"
)

var rootCmd = &cobra.Command{
	Use:   "book-swap-api",
	Short: "Book swap marketplace API",
	Long: `Runs the book swap HTTP API, applies database migrations and
repairs interrupted request transitions.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (default ./config.yaml if present)")
}

// initializeApp loads configuration and sets up structured logging.
func initializeApp(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("Server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("storage", cfg.Storage.Driver),
		slog.Bool("redis", cfg.Redis.Addr != ""),
		slog.Bool("reconcile", cfg.Reconcile.Enabled))

	return cfg, l, nil
}

// commandContext returns the command's context, or a background context
// when cobra was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
