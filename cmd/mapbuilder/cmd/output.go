package cmd

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/corey/mapbuilder/internal/domain/buildable"
	"github.com/corey/mapbuilder/internal/domain/zoning"
)

// ANSI color codes for terminal output.
const (
	colorReset   = "\033[0m"
	colorBold    = "\033[1m"
	colorCyan    = "\033[36m"
	colorMagenta = "\033[35m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorGray    = "\033[90m"
)

// formatReport formats an estimate for terminal display.
//
//	⚡ buildable estimate │ lot 10,000 sq ft
//	  Setbacks:   front 25 ft  rear 10 ft  side 5 ft
//	  Height:     35 ft
//	  FAR:        0.4
//	  Footprint:  5,500 sq ft
//	  Max floor:  4,000 sq ft
//	  ⚠ warning text
func formatReport(r *buildable.Report, warnings []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s⚡ buildable estimate%s │ lot %s sq ft\n",
		colorBold, colorReset, formatArea(r.LotSize)))
	sb.WriteString(fmt.Sprintf("  Setbacks:   front %s ft  rear %s ft  side %s ft\n",
		formatNumber(r.Setbacks.Front), formatNumber(r.Setbacks.Rear), formatNumber(r.Setbacks.Side)))
	sb.WriteString(fmt.Sprintf("  Height:     %s ft\n", formatNumber(r.MaxHeight)))
	sb.WriteString(fmt.Sprintf("  FAR:        %s\n", formatNumber(r.FAR)))

	footprint := formatArea(r.BuildableFootprint) + " sq ft"
	if r.FootprintExceedsLot() {
		footprint = colorYellow + footprint + colorReset
	}
	sb.WriteString(fmt.Sprintf("  Footprint:  %s\n", footprint))
	sb.WriteString(fmt.Sprintf("  Max floor:  %s%s sq ft%s\n", colorGreen, formatArea(r.MaxBuildableArea), colorReset))
	sb.WriteString(formatWarnings(warnings))
	return sb.String()
}

// formatAssessment formats one parcel assessment. Occupied parcels get a
// single line.
func formatAssessment(a *buildable.Assessment) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s%s%s", colorCyan, a.ParcelID, colorReset))
	if a.Address != "" {
		sb.WriteString("  " + a.Address)
	}
	if a.Error != "" {
		sb.WriteString(fmt.Sprintf("  %s⚠ %s%s\n", colorYellow, a.Error, colorReset))
		return sb.String()
	}
	if !a.IsEmpty {
		sb.WriteString(fmt.Sprintf("  %soccupied (%d structures)%s\n", colorGray, a.StructureCount, colorReset))
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("  %sempty%s", colorGreen, colorReset))
	if a.ZoningCode != "" {
		sb.WriteString(fmt.Sprintf("  %s%s%s", colorMagenta, a.ZoningCode, colorReset))
	}
	sb.WriteString("\n")
	if a.BuildableArea != nil {
		sb.WriteString(indent(formatReport(a.BuildableArea, a.Warnings)))
	} else {
		sb.WriteString(formatWarnings(a.Warnings))
	}
	return sb.String()
}

// formatRule formats one parsed rule description.
func formatRule(r zoning.Rule) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s%q%s\n", colorGray, r.Description, colorReset))
	sb.WriteString(fmt.Sprintf("  Kind:     %s%s%s\n", colorMagenta, r.Kind, colorReset))

	nums := make([]string, len(r.Values))
	for i, v := range r.Values {
		nums[i] = formatNumber(v)
	}
	sb.WriteString(fmt.Sprintf("  Numbers:  [%s]\n", strings.Join(nums, ", ")))

	if v, ok := r.Resolve(); ok {
		sb.WriteString(fmt.Sprintf("  Value:    %s%s%s\n", colorGreen, formatNumber(v), colorReset))
	} else {
		sb.WriteString(fmt.Sprintf("  Value:    %s(none)%s\n", colorYellow, colorReset))
	}
	if v, ok := r.Min(); ok {
		sb.WriteString(fmt.Sprintf("  Min:      %s\n", formatNumber(v)))
	}
	return sb.String()
}

func formatWarnings(warnings []string) string {
	var sb strings.Builder
	for _, w := range warnings {
		sb.WriteString(fmt.Sprintf("  %s⚠ %s%s\n", colorYellow, w, colorReset))
	}
	return sb.String()
}

// formatNumber prints v without trailing zeros. NaN prints as "n/a".
func formatNumber(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatArea rounds to whole square feet with thousands separators.
func formatArea(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	n := int64(math.Round(v))
	sign := ""
	if n < 0 {
		sign, n = "-", -n
	}
	s := strconv.FormatInt(n, 10)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return sign + s
}

func indent(s string) string {
	lines := strings.SplitAfter(s, "\n")
	var sb strings.Builder
	for _, l := range lines {
		if l != "" {
			sb.WriteString("  " + l)
		}
	}
	return sb.String()
}
