package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seanstash/stashd/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single enhancement pass and exit",
	Long: `Run one enhancement pass against the local database.

Useful for testing the pipeline without the daemon, or for cron-style
setups where a long-running process is unwanted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		paths := config.DefaultPaths()
		store, err := openStore(paths, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		before, err := store.CountUnprocessedRawCommands(cmd.Context())
		if err != nil {
			return err
		}
		if before == 0 {
			fmt.Println("Nothing to enhance.")
			return nil
		}

		worker := newWorker(cfg, store, logger)
		worker.RunPass(cmd.Context())

		status := worker.Status(cmd.Context())
		fmt.Printf("Pass complete: %d command(s) pending before, %d after, %d snippet(s) created.\n",
			before, status.PendingBacklog, status.SnippetsCount)
		if status.OwnersFailed > 0 {
			fmt.Printf("%d owner batch(es) failed; see logs.\n", status.OwnersFailed)
		}
		return nil
	},
}
