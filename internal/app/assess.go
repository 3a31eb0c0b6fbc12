package app

import (
	"context"
	"fmt"
	"math"

	"github.com/corey/mapbuilder/internal/domain/buildable"
	"github.com/corey/mapbuilder/internal/domain/geometry"
	"github.com/corey/mapbuilder/internal/domain/zoning"
	"github.com/corey/mapbuilder/internal/ports"
)

// ErrNoZoning means an empty parcel has no zoning designation to estimate
// against. It matches ports.ErrNotFound.
var ErrNoZoning = fmt.Errorf("no zoning designation: %w", ports.ErrNotFound)

// AssessParcel checks whether a parcel is undeveloped and, if so, estimates
// what could be built on it under its first zoning designation. parcel must
// carry an ID; its lot area or outline is only needed for an empty parcel.
func (a *App) AssessParcel(ctx context.Context, parcel ports.Parcel) (*buildable.Assessment, error) {
	if parcel.ID == "" {
		return nil, &buildable.MissingInputError{Field: "parcelId"}
	}

	sc, err := a.provider.StructuresByParcel(ctx, parcel.ID)
	if err != nil {
		return nil, fmt.Errorf("structures for %s: %w", parcel.ID, err)
	}
	out := &buildable.Assessment{
		ParcelID:       parcel.ID,
		Address:        parcel.Location.StreetAddress,
		StructureCount: len(sc.Structures),
		IsEmpty:        len(sc.Structures) == 0,
	}
	if !out.IsEmpty {
		return out, nil
	}

	zc, err := a.provider.ZoningByParcel(ctx, parcel.ID)
	if err != nil {
		return nil, fmt.Errorf("zoning for %s: %w", parcel.ID, err)
	}
	if len(zc.Zonings) == 0 {
		return nil, fmt.Errorf("parcel %s: %w", parcel.ID, ErrNoZoning)
	}
	z := zc.Zonings[0]
	out.ZoningCode = z.Code
	if len(zc.Zonings) > 1 {
		out.Warnings = append(out.Warnings, buildable.WarnMultipleZonings)
	}

	in, warnings := InputFor(parcel, z)
	out.Warnings = append(out.Warnings, warnings...)

	report, err := a.Calculator.Compute(in)
	if err != nil {
		return nil, fmt.Errorf("parcel %s: %w", parcel.ID, err)
	}
	out.BuildableArea = report
	out.Warnings = append(out.Warnings, buildable.Warnings(report)...)
	return out, nil
}

// InputFor builds calculator input from provider records. The lot area is
// the provider's derived figure, or the outline's geodesic area when that is
// missing. An unknown area is left at 0 for the calculator to reject.
func InputFor(parcel ports.Parcel, z ports.Zoning) (*buildable.ParcelInput, []string) {
	var warnings []string
	lot := parcel.Derived.CalculatedLotArea
	if !(lot > 0) || math.IsInf(lot, 0) {
		lot = 0
		if area, ok := outlineArea(parcel.Geometry.WKT); ok {
			lot = area
			warnings = append(warnings, buildable.WarnLotAreaFromShape)
		}
	}
	return &buildable.ParcelInput{
		LotAreaSquareFeet: lot,
		Zoning:            ZoningInput(z),
	}, warnings
}

// ZoningInput maps a provider zoning record onto calculator input.
func ZoningInput(z ports.Zoning) *buildable.ZoningInput {
	return &buildable.ZoningInput{
		FrontSetback: z.FrontSetback.Description,
		RearSetback:  z.RearSetback.Description,
		SideSetback:  z.SideSetback.Description,
		MaxHeight:    z.MaximumBuildingHeight.Description,
		FAR:          zoning.ParseRatio(string(z.DensityFloorArea.Value)),
	}
}

func outlineArea(wkt string) (float64, bool) {
	if wkt == "" {
		return 0, false
	}
	polys, err := geometry.ParsePolygons(wkt)
	if err != nil {
		return 0, false
	}
	var total float64
	for _, p := range polys {
		total += p.AreaSquareFeet()
	}
	return total, total > 0
}
