package geometry

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/golang/geo/s2"
)

const (
	// earthRadiusMeters is the IUGG mean Earth radius.
	earthRadiusMeters = 6371008.8
	feetPerMeter      = 1 / 0.3048
	metersPerDegree   = math.Pi * earthRadiusMeters / 180
)

// AreaSquareMeters returns the geodesic area of the ring on a spherical
// Earth. Orientation does not matter. Rings with fewer than three distinct
// vertices have zero area.
func (r Ring) AreaSquareMeters() float64 {
	pts := r.open()
	if len(pts) < 3 {
		return 0
	}
	s2pts := make([]s2.Point, len(pts))
	for i, p := range pts {
		s2pts[i] = s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lng))
	}
	loop := s2.LoopFromPoints(s2pts)
	// A clockwise ring encloses the rest of the sphere. Reverse it rather
	// than subtracting from 4π, which cancels away parcel-sized areas.
	if loop.Area() > 2*math.Pi {
		slices.Reverse(s2pts)
		loop = s2.LoopFromPoints(s2pts)
	}
	return loop.Area() * earthRadiusMeters * earthRadiusMeters
}

// open drops the closing vertex when the ring repeats its first point.
func (r Ring) open() Ring {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		return r[:len(r)-1]
	}
	return r
}

// AreaSquareMeters is the outer ring's area minus its holes.
func (p Polygon) AreaSquareMeters() float64 {
	if len(p.Rings) == 0 {
		return 0
	}
	area := p.Rings[0].AreaSquareMeters()
	for _, hole := range p.Rings[1:] {
		area -= hole.AreaSquareMeters()
	}
	return math.Max(area, 0)
}

// AreaSquareFeet is AreaSquareMeters in square feet.
func (p Polygon) AreaSquareFeet() float64 {
	return p.AreaSquareMeters() * feetPerMeter * feetPerMeter
}

// Bounds is a lng/lat bounding box.
type Bounds struct {
	MinLng, MinLat float64
	MaxLng, MaxLat float64
}

// Bounds returns the bounding box of the outer ring.
func (p Polygon) Bounds() Bounds {
	return BoundsOf(p.Outer()...)
}

// BoundsOf returns the box enclosing pts. Empty input yields a zero box.
func BoundsOf(pts ...Point) Bounds {
	if len(pts) == 0 {
		return Bounds{}
	}
	b := Bounds{MinLng: pts[0].Lng, MaxLng: pts[0].Lng, MinLat: pts[0].Lat, MaxLat: pts[0].Lat}
	for _, p := range pts[1:] {
		b.MinLng = math.Min(b.MinLng, p.Lng)
		b.MaxLng = math.Max(b.MaxLng, p.Lng)
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
	}
	return b
}

// Union returns the box enclosing both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		MinLng: math.Min(b.MinLng, o.MinLng),
		MinLat: math.Min(b.MinLat, o.MinLat),
		MaxLng: math.Max(b.MaxLng, o.MaxLng),
		MaxLat: math.Max(b.MaxLat, o.MaxLat),
	}
}

// Expand grows the box by meters on every side. The longitude delta uses the
// box's mid latitude.
func (b Bounds) Expand(meters float64) Bounds {
	if meters <= 0 {
		return b
	}
	dLat := meters / metersPerDegree
	midLat := (b.MinLat + b.MaxLat) / 2 * math.Pi / 180
	cos := math.Max(math.Cos(midLat), 1e-6)
	dLng := meters / (metersPerDegree * cos)
	return Bounds{
		MinLng: b.MinLng - dLng,
		MinLat: math.Max(b.MinLat-dLat, -90),
		MaxLng: b.MaxLng + dLng,
		MaxLat: math.Min(b.MaxLat+dLat, 90),
	}
}

// GeometryBounds returns the bounding box of any supported WKT geometry.
func GeometryBounds(wkt string) (Bounds, error) {
	tag, _, err := splitTag(wkt)
	if err != nil {
		return Bounds{}, err
	}
	if tag == "POINT" {
		pt, err := ParsePoint(wkt)
		if err != nil {
			return Bounds{}, err
		}
		return BoundsOf(pt), nil
	}
	polys, err := ParsePolygons(wkt)
	if err != nil {
		return Bounds{}, err
	}
	b := polys[0].Bounds()
	for _, p := range polys[1:] {
		b = b.Union(p.Bounds())
	}
	return b, nil
}

var metersPerUnit = map[string]float64{
	"m":  1,
	"km": 1000,
	"ft": 0.3048,
	"mi": 1609.344,
}

// ToMeters converts a buffer distance in one of m, km, ft, mi to meters.
func ToMeters(distance float64, unit string) (float64, error) {
	f, ok := metersPerUnit[strings.ToLower(unit)]
	if !ok {
		return 0, fmt.Errorf("unknown distance unit %q", unit)
	}
	if distance < 0 || math.IsNaN(distance) {
		return 0, fmt.Errorf("invalid distance %g", distance)
	}
	return distance * f, nil
}
