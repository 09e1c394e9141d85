package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/seanstash/stashd/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// Never print credentials
		if cfg.AI.APIKey != "" {
			cfg.AI.APIKey = "[set]"
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}

		paths := config.DefaultPaths()
		fmt.Printf("# %s\n%s", paths.ConfigFile(), data)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.DefaultPaths().ConfigFile())
	},
}

func init() {
	configCmd.AddCommand(configPathCmd)
}
