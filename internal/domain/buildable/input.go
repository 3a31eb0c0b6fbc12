// Package buildable estimates the buildable envelope of an undeveloped parcel.
//
// Given a lot area, a floor area ratio, and the four zoning rule descriptions
// (front/rear/side setback, maximum height), Compute derives the numeric
// setbacks and height, a rough buildable footprint, and the maximum floor area.
// The estimate treats the lot as a square of side √lotSize; it is a heuristic,
// not a derivation from the parcel polygon.
package buildable

import (
	"fmt"
	"math"
)

// ZoningInput is the zoning half of a ParcelInput: four rule descriptions
// plus the numeric floor area ratio.
type ZoningInput struct {
	FrontSetback string  `json:"frontSetback"`
	RearSetback  string  `json:"rearSetback"`
	SideSetback  string  `json:"sideSetback"`
	MaxHeight    string  `json:"maxHeight"`
	FAR          float64 `json:"far"`
}

// ParcelInput is everything the estimator needs about one parcel.
type ParcelInput struct {
	LotAreaSquareFeet float64      `json:"lotAreaSquareFeet"`
	Zoning            *ZoningInput `json:"zoning"`
}

// MissingInputError reports a precondition violation: the parcel, its zoning,
// or its lot area was not supplied.
type MissingInputError struct {
	Field string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input: %s", e.Field)
}

// Validate checks the preconditions Compute relies on. FAR is deliberately
// not checked: a non-numeric FAR flows through to the report as NaN.
func (in *ParcelInput) Validate() error {
	if in == nil {
		return &MissingInputError{Field: "parcel"}
	}
	if in.Zoning == nil {
		return &MissingInputError{Field: "zoning"}
	}
	a := in.LotAreaSquareFeet
	if math.IsNaN(a) || math.IsInf(a, 0) || a <= 0 {
		return &MissingInputError{Field: "lotAreaSquareFeet"}
	}
	return nil
}
