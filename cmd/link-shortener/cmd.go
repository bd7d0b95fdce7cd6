package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/vadimbarashkov/link-shortener/internal/app"
	"github.com/vadimbarashkov/link-shortener/internal/config"
	"github.com/vadimbarashkov/link-shortener/pkg/postgres"
)

var (
	configPathArg  string
	migrateStepArg int
)

var rootCmd = &cobra.Command{
	Use:          "link-shortener",
	Short:        "link-shortener maps short codes to URLs and counts the redirects",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configPathArg == "" {
			configPathArg = os.Getenv("CONFIG_PATH")
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPathArg)
		if err != nil {
			return err
		}

		return app.Run(cmd.Context(), cfg)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "apply or roll back the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "apply every pending migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPathArg)
		if err != nil {
			return err
		}

		if err := postgres.MigrateUp(cfg.Postgres.DSN()); err != nil {
			return err
		}

		cmd.Println("migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "roll back migrations, all of them unless --steps is set",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPathArg)
		if err != nil {
			return err
		}

		if err := postgres.MigrateDown(cfg.Postgres.DSN(), migrateStepArg); err != nil {
			return err
		}

		cmd.Println("migrations rolled back")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPathArg, "config", "c", "", "path to the YAML config file, defaults to $CONFIG_PATH")
	migrateDownCmd.Flags().IntVarP(&migrateStepArg, "steps", "n", 0, "number of migrations to roll back")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd)
}
