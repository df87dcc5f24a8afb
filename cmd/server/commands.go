package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/imhighyat/book-swap-api/internal/platform/postgres"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, l, err := initializeApp(cmd)
		if err != nil {
			return err
		}

		ctx := commandContext(cmd)
		app, err := newApplication(ctx, cfg, l)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}

		return app.Run(ctx)
	},
}

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|reset|status|version]",
	Short:     "Apply or inspect database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "reset", "status", "version"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, l, err := initializeApp(cmd)
		if err != nil {
			return err
		}
		if cfg.Storage.Driver != "postgres" {
			return fmt.Errorf("migrations require the postgres storage driver, got %q", cfg.Storage.Driver)
		}

		command := "up"
		if len(args) == 1 {
			command = args[0]
		}

		ctx := commandContext(cmd)
		db, err := openDatabase(ctx, cfg.Database, l)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				l.Error("Error closing database connection", slog.String("error", err.Error()))
			}
		}()

		return postgres.Migrate(ctx, db, command, l)
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconcile sweep and exit",
	Long: `Finishes or unwinds request transitions that were interrupted part way,
declines pending requests whose books are gone and resyncs pending flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, l, err := initializeApp(cmd)
		if err != nil {
			return err
		}

		ctx := commandContext(cmd)
		app, err := newApplication(ctx, cfg, l)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer app.cleanup()

		report, err := app.reconcileService.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("reconcile sweep failed: %w", err)
		}

		attrs := make([]any, 0, len(report))
		for kind, n := range report {
			attrs = append(attrs, slog.Int(kind, n))
		}
		l.Info("Reconcile sweep completed", attrs...)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, reconcileCmd)
}
