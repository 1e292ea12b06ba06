package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/omnichat/internal/api"
	"github.com/matheus3301/omnichat/internal/config"
	"github.com/matheus3301/omnichat/internal/session"
)

var (
	dataDir    string
	socketPath string
	clientID   string
	jsonOut    bool
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "omnichatctl",
	Short:         "Control a running omnichatd",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides config data_dir)")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "daemon socket (default: <data-dir>/omnichatd.sock)")
	rootCmd.PersistentFlags().StringVarP(&clientID, "client", "c", "", "client id (default: the active client)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	rootCmd.AddCommand(listCmd, openCmd, logoutCmd, authCmd)
	rootCmd.AddCommand(contactsCmd, chatsCmd, historyCmd, sendCmd, editCmd, deleteCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func resolveSocket() string {
	if socketPath != "" {
		return socketPath
	}
	cfg, err := config.LoadOrDefault(session.NewLayout(dataDir).ConfigPath())
	if err != nil {
		cfg = nil
	}
	return session.NewLayout(config.ResolveDataDir(dataDir, cfg)).SocketPath()
}

// withClient dials the daemon and runs fn under the request timeout.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *api.Client) error) error {
	path := resolveSocket()
	c, err := api.Dial(path)
	if err != nil {
		return fmt.Errorf("cannot connect to daemon at %s: %w", path, err)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	return fn(ctx, c)
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
