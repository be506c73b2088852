package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mfg-agent/mfgagent/config"
	srv "github.com/mfg-agent/mfgagent/internal/server"
	"github.com/mfg-agent/mfgagent/internal/store"
)

func main() {
	var root = &cobra.Command{Use: "mfgagent"}

	var cfgPath string
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path")

	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if serveAddr != "" {
				cfg.General.Listen = serveAddr
			}
			return srv.Run(cfg)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")

	var migDir string
	var direction string
	var steps int
	var migrate = &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			dsn, err := cfg.Storage.Postgres.DSN()
			if err != nil {
				return err
			}
			return store.Migrate(migDir, dsn, direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source (file://migrations)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	root.AddCommand(serve, migrate)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
