package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  "Serves the parcel proxy and buildable routes until SIGINT or SIGTERM.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config and PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		settings.Server.Port = servePort
	}

	a, err := newApp(root, settings)
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		a.Stop()
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "⚡ mapbuilder serving at %s (%s)\n", a.WebServer.URL(), a.ProviderName())

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Fprintln(out, "\n⚡ shutting down...")
	return a.Stop()
}
