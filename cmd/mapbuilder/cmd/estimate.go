package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/corey/mapbuilder/internal/adapters/web"
	"github.com/corey/mapbuilder/internal/app"
	"github.com/corey/mapbuilder/internal/domain/buildable"
	"github.com/corey/mapbuilder/internal/ports"
	"github.com/spf13/cobra"
)

var (
	estimateJSON    bool
	estimateLotArea float64
)

var estimateCmd = &cobra.Command{
	Use:   "estimate [file|-]",
	Short: "Estimate the buildable area of a parcel",
	Long: "Reads a ParcelInput JSON ({lotAreaSquareFeet, zoning}) or a fixture-shaped\n" +
		"{parcel, zonings} document from a file or stdin and prints the estimate.",
	Args: cobra.MaximumNArgs(1),
	RunE: runEstimate,
}

func init() {
	estimateCmd.Flags().BoolVar(&estimateJSON, "json", false, "Print the report as JSON")
	estimateCmd.Flags().Float64Var(&estimateLotArea, "lot-area", 0, "Override the lot area (square feet)")
}

func runEstimate(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	in, warnings, err := decodeEstimateInput(data)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("lot-area") {
		in.LotAreaSquareFeet = estimateLotArea
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	parser, _, err := app.NewParser(settings)
	if err != nil {
		return fmt.Errorf("zoning vocabulary: %w", err)
	}
	report, err := buildable.NewCalculator(parser).Compute(in)
	if err != nil {
		return err
	}
	warnings = append(warnings, buildable.Warnings(report)...)

	out := cmd.OutOrStdout()
	if estimateJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(web.EstimateResult{BuildableArea: report, Warnings: warnings})
	}
	fmt.Fprint(out, formatReport(report, warnings))
	return nil
}

// readInput reads the named file, or stdin for "-" or no argument.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

// decodeEstimateInput accepts a ParcelInput or a fixture document. A
// fixture is estimated under its first zoning designation.
func decodeEstimateInput(data []byte) (*buildable.ParcelInput, []string, error) {
	var doc struct {
		Parcel  json.RawMessage `json:"parcel"`
		Zonings []ports.Zoning  `json:"zonings"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode input: %w", err)
	}

	if len(doc.Parcel) == 0 {
		var in buildable.ParcelInput
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, nil, fmt.Errorf("decode input: %w", err)
		}
		return &in, nil, nil
	}

	var parcel ports.Parcel
	if err := json.Unmarshal(doc.Parcel, &parcel); err != nil {
		return nil, nil, fmt.Errorf("decode parcel: %w", err)
	}
	if len(doc.Zonings) == 0 {
		return nil, nil, fmt.Errorf("parcel %s: %w", parcel.ID, app.ErrNoZoning)
	}
	in, warnings := app.InputFor(parcel, doc.Zonings[0])
	if len(doc.Zonings) > 1 {
		warnings = append(warnings, buildable.WarnMultipleZonings)
	}
	return in, warnings, nil
}
