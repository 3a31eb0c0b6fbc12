package buildable

import (
	"encoding/json"
	"math"

	"github.com/corey/mapbuilder/internal/domain/zoning"
)

// Setbacks holds the resolved setback distances in feet.
type Setbacks struct {
	Front float64 `json:"front"`
	Rear  float64 `json:"rear"`
	Side  float64 `json:"side"`
}

// Descriptions holds the raw rule text the numbers came from.
type Descriptions struct {
	FrontSetback string `json:"frontSetback"`
	RearSetback  string `json:"rearSetback"`
	SideSetback  string `json:"sideSetback"`
	Height       string `json:"height"`
}

// Rules holds the tagged parse of each description.
type Rules struct {
	Front  zoning.Rule `json:"front"`
	Rear   zoning.Rule `json:"rear"`
	Side   zoning.Rule `json:"side"`
	Height zoning.Rule `json:"height"`
}

// Report is the buildable-area estimate for one parcel. Areas are in square
// feet, distances in feet.
type Report struct {
	LotSize            float64      `json:"lotSize"`
	Setbacks           Setbacks     `json:"setbacks"`
	MaxHeight          float64      `json:"maxHeight"`
	FAR                float64      `json:"far"`
	BuildableFootprint float64      `json:"buildableFootprint"`
	MaxBuildableArea   float64      `json:"maxBuildableArea"`
	Descriptions       Descriptions `json:"descriptions"`
	Rules              Rules        `json:"rules"`
}

// FootprintExceedsLot reports whether the setback bands consumed more than
// the whole lot, leaving a negative footprint.
func (r *Report) FootprintExceedsLot() bool {
	return r.BuildableFootprint < 0
}

// FARValid reports whether the floor area ratio, and so MaxBuildableArea,
// is a finite number.
func (r *Report) FARValid() bool {
	return !math.IsNaN(r.FAR) && !math.IsInf(r.FAR, 0)
}

// MarshalJSON renders non-finite numbers as null. A text FAR that does not
// parse yields NaN, which encoding/json cannot represent.
func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	return json.Marshal(struct {
		plain
		LotSize            *float64 `json:"lotSize"`
		MaxHeight          *float64 `json:"maxHeight"`
		FAR                *float64 `json:"far"`
		BuildableFootprint *float64 `json:"buildableFootprint"`
		MaxBuildableArea   *float64 `json:"maxBuildableArea"`
	}{
		plain:              plain(r),
		LotSize:            finite(r.LotSize),
		MaxHeight:          finite(r.MaxHeight),
		FAR:                finite(r.FAR),
		BuildableFootprint: finite(r.BuildableFootprint),
		MaxBuildableArea:   finite(r.MaxBuildableArea),
	})
}

// MarshalJSON renders non-finite setbacks as null.
func (s Setbacks) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Front *float64 `json:"front"`
		Rear  *float64 `json:"rear"`
		Side  *float64 `json:"side"`
	}{finite(s.Front), finite(s.Rear), finite(s.Side)})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
