package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/omnichat/internal/api"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream daemon events until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := resolveSocket()
		c, err := api.Dial(path)
		if err != nil {
			return fmt.Errorf("cannot connect to daemon at %s: %w", path, err)
		}
		defer func() { _ = c.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err = c.Watch(ctx, &api.WatchRequest{ClientID: clientID}, func(e *api.Event) error {
			if jsonOut {
				return outputJSON(e)
			}
			ts := time.UnixMilli(e.Timestamp).Format(time.TimeOnly)
			fmt.Printf("%s %-18s %-20s %s\n", ts, e.ClientID, e.Kind, e.Payload)
			return nil
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}
