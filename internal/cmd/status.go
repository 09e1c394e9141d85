package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/seanstash/stashd/internal/config"
	"github.com/seanstash/stashd/internal/daemon"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and enhancement pipeline status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		paths := config.DefaultPaths()
		if pid, held, err := daemon.ReadHeldPID(paths.LockFile()); err == nil && held {
			fmt.Printf("Daemon: running (PID %d)\n", pid)
		} else {
			fmt.Println("Daemon: not running")
			return nil
		}

		addr := statusAddr
		if addr == "" {
			addr = cfg.Daemon.ListenAddr
		}

		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(fmt.Sprintf("http://%s/api/v2/enhancement/status", addr))
		if err != nil {
			return fmt.Errorf("daemon unreachable at %s: %w", addr, err)
		}
		defer resp.Body.Close()

		var status struct {
			Version   string `json:"version"`
			UptimeSec int64  `json:"uptime_sec"`
			Worker    struct {
				Running        bool   `json:"running"`
				Processing     bool   `json:"processing"`
				Interval       string `json:"interval"`
				BatchSize      int    `json:"batch_size"`
				PassCount      int64  `json:"pass_count"`
				SnippetsCount  int64  `json:"snippets_created"`
				OwnersFailed   int64  `json:"owners_failed"`
				PendingBacklog int64  `json:"pending_backlog"`
			} `json:"worker"`
			Cache *struct {
				Entries int64 `json:"entries"`
				Expired int64 `json:"expired"`
				Hits    int64 `json:"hits"`
			} `json:"cache"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return fmt.Errorf("unexpected daemon response: %w", err)
		}

		fmt.Printf("Version: %s, uptime %ds\n", status.Version, status.UptimeSec)
		fmt.Printf("Worker:  interval %s, batch size %d\n", status.Worker.Interval, status.Worker.BatchSize)
		fmt.Printf("  passes: %d, snippets created: %d, failed owner batches: %d\n",
			status.Worker.PassCount, status.Worker.SnippetsCount, status.Worker.OwnersFailed)
		fmt.Printf("  pending commands: %d\n", status.Worker.PendingBacklog)
		if status.Cache != nil {
			fmt.Printf("Cache:   %d entries (%d expired), %d hits\n",
				status.Cache.Entries, status.Cache.Expired, status.Cache.Hits)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "daemon address (default from config)")
}
