package buildable

import (
	"math"

	"github.com/corey/mapbuilder/internal/domain/zoning"
)

// Calculator computes buildable-area reports with a given zoning parser.
// It holds no per-call state and is safe for concurrent use.
type Calculator struct {
	parser *zoning.Parser
}

// NewCalculator returns a calculator that classifies rule text with parser.
// A nil parser uses the default tie-break vocabulary.
func NewCalculator(parser *zoning.Parser) *Calculator {
	return &Calculator{parser: parser}
}

var defaultCalculator = &Calculator{}

// Compute estimates the buildable envelope with the default parser.
func Compute(in *ParcelInput) (*Report, error) {
	return defaultCalculator.Compute(in)
}

// Compute estimates the buildable envelope of a parcel.
//
// Setbacks resolve through each rule's tie-break phrase and default to 0 when
// the text is empty or has no numerals. Height always takes the smallest
// number in its description, whatever the phrasing, and also defaults to 0.
// The footprint is not clamped and goes negative when the setback bands
// exceed the lot.
func (c *Calculator) Compute(in *ParcelInput) (*Report, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	z := in.Zoning
	lotSize := in.LotAreaSquareFeet

	rules := Rules{
		Front:  c.parse(z.FrontSetback),
		Rear:   c.parse(z.RearSetback),
		Side:   c.parse(z.SideSetback),
		Height: c.parse(z.MaxHeight),
	}

	setbacks := Setbacks{
		Front: orZero(rules.Front.Resolve()),
		Rear:  orZero(rules.Rear.Resolve()),
		Side:  orZero(rules.Side.Resolve()),
	}
	maxHeight := orZero(rules.Height.Min())

	side := math.Sqrt(lotSize)
	footprint := lotSize - ((setbacks.Front+setbacks.Rear)*side + (2*setbacks.Side)*side)

	return &Report{
		LotSize:            lotSize,
		Setbacks:           setbacks,
		MaxHeight:          maxHeight,
		FAR:                z.FAR,
		BuildableFootprint: footprint,
		MaxBuildableArea:   lotSize * z.FAR,
		Descriptions: Descriptions{
			FrontSetback: z.FrontSetback,
			RearSetback:  z.RearSetback,
			SideSetback:  z.SideSetback,
			Height:       z.MaxHeight,
		},
		Rules: rules,
	}, nil
}

func (c *Calculator) parse(description string) zoning.Rule {
	if c.parser == nil {
		return zoning.Parse(description)
	}
	return c.parser.Parse(description)
}

func orZero(v float64, ok bool) float64 {
	if !ok {
		return 0
	}
	return v
}
