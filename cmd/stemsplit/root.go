package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"stemsplit/internal/config"
)

var (
	cfgFile string
	cfg     config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "stemsplit",
	Short: "Stem-separation job proxy and audio tools.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// It's okay if .env doesn't exist, environment variables might
		// be set manually.
		_ = godotenv.Load()

		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
		slog.SetDefault(logger)

		cfg = config.FromEnv()
		if cfgFile != "" {
			if err := config.LoadFile(cfgFile, &cfg); err != nil {
				return err
			}
		}
		return cfg.Validate()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML config file (env takes defaults)")
}
