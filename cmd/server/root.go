package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iliyamo/movie-catalog/internal/config"
	"github.com/iliyamo/movie-catalog/internal/logging"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	cfg        config.Config
	log        zerolog.Logger
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.New(os.Stdout, cfg.Env, cfg.LogLevel)
	return nil
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "movies",
		Short:         "Movie catalog HTTP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		// Without a subcommand the server starts, like the old binary did.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "TOML configuration file (defaults to $CONFIG_FILE)")

	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newConsumeCommand(a))
	return rootCmd
}
