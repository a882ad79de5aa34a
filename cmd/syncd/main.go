package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grumblehq/syncd/internal/config"
	"github.com/grumblehq/syncd/internal/storage"
)

var (
	cfgPath string

	cfg   *config.Config
	store storage.Store
)

var rootCmd = &cobra.Command{
	Use:   "syncd",
	Short: "Feedback sync and analysis pipeline",
	Long: `syncd collects product feedback from GitHub, Discourse, and Twitter,
classifies and clusters it with AI, and keeps a shared store in sync.

Runs one-shot with 'syncd sync' or as a long-lived service with
'syncd serve'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfgPath != "" {
			cfg, err = config.Load(cfgPath)
		} else {
			cfg = config.Default()
		}
		if err != nil {
			return err
		}

		store, err = storage.NewStore(&storage.Config{Path: cfg.Store.Path})
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
