package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/seanstash/stashd/internal/config"
	"github.com/seanstash/stashd/internal/history"
)

var (
	sendLimit  int
	sendAPIKey string
	sendAddr   string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send recent shell history to the daemon for enhancement",
	Long: `Read recent commands from shell history, screen out trivial and
sensitive ones, and submit the batch to a running stashd daemon.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		commands, err := history.Recent(sendLimit)
		if err != nil {
			return fmt.Errorf("failed to read shell history: %w", err)
		}
		if len(commands) == 0 {
			fmt.Println("No history to send.")
			return nil
		}

		filter, err := newIngestFilter(cfg)
		if err != nil {
			return err
		}
		commands = filter.Keep(commands)
		if len(commands) == 0 {
			fmt.Println("Nothing worth sending after filtering.")
			return nil
		}

		addr := sendAddr
		if addr == "" {
			addr = cfg.Daemon.ListenAddr
		}
		apiKey := sendAPIKey
		if apiKey == "" {
			return fmt.Errorf("--api-key is required (create one with 'stashd init')")
		}

		body, err := json.Marshal(map[string][]string{"commands": commands})
		if err != nil {
			return err
		}

		url := fmt.Sprintf("http://%s/api/v2/snippets", addr)
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", apiKey)

		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("daemon unreachable at %s: %w", addr, err)
		}
		defer resp.Body.Close()

		payload, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("daemon rejected batch (%d): %s", resp.StatusCode, bytes.TrimSpace(payload))
		}

		var result struct {
			Received int `json:"received"`
			Accepted int `json:"accepted"`
			Inserted int `json:"inserted"`
		}
		if err := json.Unmarshal(payload, &result); err != nil {
			return fmt.Errorf("unexpected daemon response: %w", err)
		}

		fmt.Printf("Sent %d command(s), %d new.\n", result.Received, result.Inserted)
		return nil
	},
}

func init() {
	sendCmd.Flags().IntVar(&sendLimit, "limit", 20, "maximum history entries to send")
	sendCmd.Flags().StringVar(&sendAPIKey, "api-key", "", "API key for the daemon ingest API")
	sendCmd.Flags().StringVar(&sendAddr, "addr", "", "daemon address (default from config)")
}
