package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matheus3301/omnichat/internal/api"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured clients and their auth state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			resp, err := c.ListClients(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return outputJSON(resp)
			}
			for _, cl := range resp.Clients {
				marker := " "
				if cl.Active {
					marker = "*"
				}
				fmt.Printf("%s %-24s %-10s %-14s %s\n", marker, cl.ID, cl.ProviderID, cl.AuthStatus, cl.Name)
			}
			return nil
		})
	},
}

var openCmd = &cobra.Command{
	Use:   "open <client-id>",
	Short: "Make a client active and connect it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			resp, err := c.Open(ctx, &api.OpenRequest{ClientID: args[0]})
			if err != nil {
				return err
			}
			if jsonOut {
				return outputJSON(resp)
			}
			fmt.Printf("Opened %s (%s), next screen: %s\n", resp.Client.ID, resp.Client.AuthStatus, resp.Screen)
			return printState(resp.Client)
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log the client out",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			resp, err := c.Logout(ctx, &api.LogoutRequest{ClientID: clientID})
			if err != nil {
				return err
			}
			if jsonOut {
				return outputJSON(resp)
			}
			fmt.Printf("Logged out %s (%s)\n", resp.Client.ID, resp.Client.AuthStatus)
			return nil
		})
	},
}
