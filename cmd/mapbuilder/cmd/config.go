package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/corey/mapbuilder/internal/app"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
	Long:  "Shows the resolved settings after defaults, the config file and the environment. The API key is redacted.",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	s, err := loadSettings()
	if err != nil {
		return err
	}
	paths := app.NewPaths(root)

	source := s.Source
	if source == "" {
		source = "(defaults + environment)"
	}
	provider := fmt.Sprintf("%s%s%s", colorCyan, app.ProviderLightBox, colorReset)
	if s.Offline() {
		provider = fmt.Sprintf("%s%s%s  %s", colorCyan, app.ProviderFixtures, colorReset, app.Resolve(root, s.FixturesDir))
	}
	cache := fmt.Sprintf("%s✗ off%s", colorYellow, colorReset)
	if s.CacheEnabled() && !s.Offline() {
		cache = fmt.Sprintf("%s✓ %s%s  ttl %s", colorGreen, app.Resolve(root, s.Cache.Path), colorReset, s.Cache.TTL)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s⚡ mapbuilder config%s\n", colorBold, colorReset)
	fmt.Fprintf(out, "  Root:       %s\n", root)
	fmt.Fprintf(out, "  Source:     %s\n", source)
	fmt.Fprintf(out, "  Log level:  %s\n", s.LogLevel)
	fmt.Fprintf(out, "  Provider:   %s\n", provider)
	fmt.Fprintf(out, "  LightBox:   %s  timeout %s\n", s.LightBox.BaseURL, s.LightBox.Timeout)
	fmt.Fprintf(out, "  API key:    %s\n", s.RedactedAPIKey())
	fmt.Fprintf(out, "  Listen:     %s:%d  origin %s\n", s.Server.Host, s.Server.Port, s.Server.AllowedOrigin)
	fmt.Fprintf(out, "  Cache:      %s\n", cache)
	if extra := s.ExtraPhraseList(); len(extra) > 0 {
		fmt.Fprintf(out, "  Phrases:    ")
		for i, p := range extra {
			if i > 0 {
				fmt.Fprint(out, ", ")
			}
			fmt.Fprintf(out, "%q→%s", p, s.Zoning.ExtraPhrases[p])
		}
		fmt.Fprintln(out)
	}

	// A running server leaves its port behind.
	if portData, err := os.ReadFile(paths.PortFile); err == nil {
		fmt.Fprintf(out, "  Server:     %s✓ http://localhost:%s%s\n", colorGreen, strings.TrimSpace(string(portData)), colorReset)
	}
	return nil
}
