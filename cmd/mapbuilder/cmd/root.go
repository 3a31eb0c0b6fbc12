package cmd

import (
	"fmt"
	"os"

	"github.com/corey/mapbuilder/internal/app"
	"github.com/corey/mapbuilder/internal/config"
	"github.com/corey/mapbuilder/internal/logging"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "mapbuilder",
	Short:        "mapbuilder: parcel lookups and buildable-area estimates",
	Long:         "Finds parcels, checks whether they are built on, and estimates what zoning allows on the empty ones.",
	SilenceUsage: true,
}

// projectRoot returns the project root (cwd by default).
func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return dir
}

// loadSettings reads --config, or .mapbuilder/config.yaml when present,
// layered over defaults and the environment.
func loadSettings() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.Discover(projectRoot())
	}
	return config.Load(path)
}

// newApp wires the app for root. A locked cache gets actionable guidance.
func newApp(root string, settings *config.Config) (*app.App, error) {
	a, err := app.New(app.Config{
		ProjectRoot: root,
		Settings:    settings,
		Logger:      logging.New(settings.LogLevel),
	})
	if err != nil {
		if isDBLockError(err) {
			return nil, fmt.Errorf("%w\n%s", err, diagnoseDBLock(root))
		}
		return nil, fmt.Errorf("init: %w", err)
	}
	return a, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default .mapbuilder/config.yaml)")

	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cacheCmd)
}
