package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/corey/mapbuilder/internal/domain/buildable"
	"github.com/corey/mapbuilder/internal/ports"
	"github.com/spf13/cobra"
)

var (
	lookupAddress string
	lookupWKT     string
	lookupBuffer  float64
	lookupUnit    string
	lookupParcel  string
	lookupLotArea float64
	lookupJSON    bool
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Assess parcels through the configured provider",
	Long: "Finds parcels by address or geometry, or takes one parcel ID, and prints\n" +
		"whether each is built on and, for empty ones, the buildable estimate.",
	Args: cobra.NoArgs,
	RunE: runLookup,
}

func init() {
	f := lookupCmd.Flags()
	f.StringVar(&lookupAddress, "address", "", "Street address to search")
	f.StringVar(&lookupWKT, "wkt", "", "WKT geometry to search around")
	f.Float64Var(&lookupBuffer, "buffer", ports.DefaultBufferDistance, "Search buffer around --wkt")
	f.StringVar(&lookupUnit, "unit", ports.DefaultBufferUnit, "Buffer unit (m, ft, km, mi)")
	f.StringVar(&lookupParcel, "parcel", "", "Parcel ID to assess directly")
	f.Float64Var(&lookupLotArea, "lot-area", 0, "Lot area for --parcel (square feet)")
	f.BoolVar(&lookupJSON, "json", false, "Print assessments as JSON")

	lookupCmd.MarkFlagsOneRequired("address", "wkt", "parcel")
	lookupCmd.MarkFlagsMutuallyExclusive("address", "wkt", "parcel")
}

func runLookup(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	a, err := newApp(root, settings)
	if err != nil {
		return err
	}
	defer a.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var parcels []ports.Parcel
	switch {
	case lookupParcel != "":
		p := ports.Parcel{ID: lookupParcel}
		p.Derived.CalculatedLotArea = lookupLotArea
		parcels = []ports.Parcel{p}
	case lookupAddress != "":
		pc, err := a.Provider().ParcelsByAddress(ctx, lookupAddress)
		if err != nil {
			return err
		}
		parcels = pc.Parcels
	default:
		pc, err := a.Provider().ParcelsByGeometry(ctx, ports.GeometryQuery{
			WKT:            lookupWKT,
			BufferDistance: ports.Distance(lookupBuffer),
			BufferUnit:     lookupUnit,
		})
		if err != nil {
			return err
		}
		parcels = pc.Parcels
	}

	out := cmd.OutOrStdout()
	if len(parcels) == 0 {
		if lookupJSON {
			fmt.Fprintln(out, "[]")
			return nil
		}
		fmt.Fprintln(out, "⚡ no parcels found")
		return nil
	}

	// A parcel that cannot be assessed is reported in place. The command
	// fails only when none could be.
	results := make([]*buildable.Assessment, 0, len(parcels))
	var firstErr error
	failed := 0
	for _, p := range parcels {
		assessed, err := a.AssessParcel(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
			failed++
			assessed = &buildable.Assessment{
				ParcelID: p.ID,
				Address:  p.Location.StreetAddress,
				Error:    err.Error(),
			}
		}
		results = append(results, assessed)
	}
	if failed == len(results) {
		return firstErr
	}

	if lookupJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	empty := 0
	for _, r := range results {
		if r.IsEmpty {
			empty++
		}
	}
	summary := fmt.Sprintf("%s⚡ %d parcels%s │ %d empty", colorBold, len(results), colorReset, empty)
	if failed > 0 {
		summary += fmt.Sprintf(" │ %s%d failed%s", colorYellow, failed, colorReset)
	}
	fmt.Fprintf(out, "%s │ %s\n", summary, a.ProviderName())
	for _, r := range results {
		fmt.Fprint(out, formatAssessment(r))
	}
	return nil
}
