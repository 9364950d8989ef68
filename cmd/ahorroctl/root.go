package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ahorro/internal/adapters"
	"ahorro/internal/backend"
	"ahorro/internal/cli"
	"ahorro/internal/config"
	"ahorro/internal/log"
)

var (
	flagBackend    string
	flagSQLitePath string
	flagEnvFile    string
	flagQuiet      bool
)

// Opened by the persistent pre-run and released by the post-run.
var (
	store   *adapters.SavingsStore
	cleanup backend.CleanupFunc
)

var rootCmd = &cobra.Command{
	Use:           "ahorroctl",
	Short:         "Maintenance tool for the ahorro savings store",
	Long:          "Export, import and inspect the persisted savings challenges without running the server.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return openStore(cmd.Context())
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return closeStore()
	},
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagBackend, "backend", "b", "", "Data backend (memory, sqlite, firestore); defaults to DATA_BACKEND")
	rootCmd.PersistentFlags().StringVar(&flagSQLitePath, "sqlite-path", "", "SQLite database path; defaults to SQLITE_DB_PATH")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "Load environment from this file instead of .env")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only log errors")
}

func openStore(ctx context.Context) error {
	if flagEnvFile != "" {
		cli.LoadEnvFile(flagEnvFile)
	} else {
		cli.LoadEnvFile()
	}

	level := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	if flagQuiet {
		level = log.ParseLevel("error")
	}
	logger := log.New(log.Config{Level: level, Component: log.ComponentBackup, Output: os.Stderr})

	cfg := config.Load()
	if flagBackend != "" {
		cfg.DataBackend = flagBackend
	}
	if flagSQLitePath != "" {
		cfg.SQLiteDBPath = flagSQLitePath
	}
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	// One-shot commands gain nothing from the read cache.
	backendCfg.CacheSize = 0

	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", backendCfg.Type, err)
	}
	store = adapters.NewSavingsStore(res.Store, logger.WithComponent(log.ComponentStorage))
	cleanup = res.Cleanup
	return nil
}

func closeStore() error {
	store = nil
	if cleanup == nil {
		return nil
	}
	err := cleanup()
	cleanup = nil
	return err
}

// output opens path for writing, or returns the command's stdout when path
// is empty or "-".
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, f.Close, nil
}
