package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/corey/mapbuilder/internal/app"
	"github.com/corey/mapbuilder/internal/domain/zoning"
	"github.com/spf13/cobra"
)

var parseJSON bool

var parseCmd = &cobra.Command{
	Use:   "parse <description>...",
	Short: "Show how zoning rule text is read",
	Long:  "Prints the numbers, tie-break kind, resolved value and minimum of each rule description.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runParse,
}

func init() {
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "Print the parsed rules as JSON")
}

func runParse(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	parser, _, err := app.NewParser(settings)
	if err != nil {
		return fmt.Errorf("zoning vocabulary: %w", err)
	}

	rules := make([]zoning.Rule, len(args))
	for i, d := range args {
		rules[i] = parser.Parse(d)
	}

	out := cmd.OutOrStdout()
	if parseJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rules)
	}
	for _, r := range rules {
		fmt.Fprint(out, formatRule(r))
	}
	return nil
}
