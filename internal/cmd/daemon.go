package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seanstash/stashd/internal/config"
	"github.com/seanstash/stashd/internal/daemon"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the enhancement daemon in the foreground",
	Long: `Run the stashd daemon.

The daemon serves the capture ingest API on localhost and runs the
enhancement worker that turns raw captured commands into documented
snippets. It exits cleanly on SIGINT or SIGTERM.`,
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

		worker := newWorker(cfg, store, logger)

		filter, err := newIngestFilter(cfg)
		if err != nil {
			return err
		}

		srv, err := daemon.NewServer(&daemon.ServerConfig{
			Store:         store,
			Worker:        worker,
			Filter:        filter,
			Sanitizer:     newSanitizer(),
			RedactSecrets: cfg.Ingest.RedactSecrets,
			Paths:         paths,
			Logger:        logger,
			ListenAddr:    cfg.Daemon.ListenAddr,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if !workerProviderAvailable(cfg) {
			fmt.Fprintln(os.Stderr, "warning: no API key configured; enhancement passes will fail until GEMINI_API_KEY is set")
		}

		return srv.Start(ctx)
	},
}
