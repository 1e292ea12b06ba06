package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/matheus3301/omnichat/internal/daemon"
	"github.com/matheus3301/omnichat/internal/session"
)

var params daemon.Params

var rootCmd = &cobra.Command{
	Use:           "omnichatd",
	Short:         "Run the omnichat daemon",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(_ *cobra.Command, _ []string) error {
		if params.Open != "" && params.Open != "default" {
			if err := session.ValidateClientID(params.Open); err != nil {
				return err
			}
		}
		app := fx.New(daemon.Module(params))
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&params.DataDir, "data-dir", "", "data directory (overrides config data_dir)")
	rootCmd.Flags().StringVar(&params.LogLevel, "log-level", "", "log level (overrides config log_level)")
	rootCmd.Flags().StringVar(&params.Open, "open", "", `client to open at start ("default" for default_client)`)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
