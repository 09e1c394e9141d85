package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seanstash/stashd/internal/config"
)

var (
	initUsername string
	initKeyLabel string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the stashd home directory, config, and an API key",
	Long: `Create ~/.seanstash with a default config file, initialize the
database, and issue an API key for the capture CLI. Safe to re-run; an
existing config file is left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := config.DefaultPaths()
		if err := paths.EnsureDirectories(); err != nil {
			return err
		}

		if _, err := os.Stat(paths.ConfigFile()); os.IsNotExist(err) {
			if err := config.DefaultConfig().Save(); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Printf("Wrote %s\n", paths.ConfigFile())
		} else {
			fmt.Printf("Config exists at %s, leaving it alone\n", paths.ConfigFile())
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		store, err := openStore(paths, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		userID, err := store.EnsureUser(cmd.Context(), initUsername)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		key, err := store.CreateAPIKey(cmd.Context(), userID, initKeyLabel)
		if err != nil {
			return fmt.Errorf("failed to create API key: %w", err)
		}

		fmt.Printf("User %q ready (id %d).\n", initUsername, userID)
		fmt.Printf("API key (store it now, it is not shown again):\n  %s\n", key)
		if !workerProviderAvailable(cfg) {
			fmt.Println("\nSet GEMINI_API_KEY before starting the daemon.")
		}
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initUsername, "user", "default", "username to create")
	initCmd.Flags().StringVar(&initKeyLabel, "label", "cli", "label for the issued API key")
}
