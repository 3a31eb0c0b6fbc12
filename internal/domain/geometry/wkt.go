// Package geometry reads parcel outlines from WKT and measures them.
//
// Provider geometry arrives as WKT in lng/lat degrees (EPSG:4326). Only the
// shapes the provider emits are supported: POINT, POLYGON and MULTIPOLYGON.
// Z and M ordinates are accepted and dropped.
package geometry

import (
	"fmt"
	"strconv"
	"strings"
)

// Point is a lng/lat pair in degrees.
type Point struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Ring is a closed or open sequence of points. A trailing point equal to the
// first is treated as the closing vertex.
type Ring []Point

// Polygon is an outer ring followed by zero or more holes.
type Polygon struct {
	Rings []Ring `json:"rings"`
}

// Outer returns the outer ring, or nil for an empty polygon.
func (p Polygon) Outer() Ring {
	if len(p.Rings) == 0 {
		return nil
	}
	return p.Rings[0]
}

// ParsePolygons parses a POLYGON or MULTIPOLYGON into its polygons.
func ParsePolygons(wkt string) ([]Polygon, error) {
	tag, body, err := splitTag(wkt)
	if err != nil {
		return nil, err
	}

	switch tag {
	case "POLYGON":
		p, err := parsePolygonBody(body)
		if err != nil {
			return nil, err
		}
		return []Polygon{p}, nil

	case "MULTIPOLYGON":
		groups, err := groupsOf(body)
		if err != nil {
			return nil, err
		}
		if len(groups) != 1 {
			return nil, fmt.Errorf("wkt: malformed MULTIPOLYGON")
		}
		parts, err := groupsOf(groups[0])
		if err != nil {
			return nil, err
		}
		polys := make([]Polygon, 0, len(parts))
		for _, part := range parts {
			p, err := parseRings(part)
			if err != nil {
				return nil, err
			}
			polys = append(polys, p)
		}
		if len(polys) == 0 {
			return nil, fmt.Errorf("wkt: empty MULTIPOLYGON")
		}
		return polys, nil

	default:
		return nil, fmt.Errorf("wkt: unsupported geometry %q", tag)
	}
}

// ParsePolygon parses a POLYGON, or the first polygon of a MULTIPOLYGON.
func ParsePolygon(wkt string) (Polygon, error) {
	polys, err := ParsePolygons(wkt)
	if err != nil {
		return Polygon{}, err
	}
	return polys[0], nil
}

// ParsePoint parses POINT (lng lat).
func ParsePoint(wkt string) (Point, error) {
	tag, body, err := splitTag(wkt)
	if err != nil {
		return Point{}, err
	}
	if tag != "POINT" {
		return Point{}, fmt.Errorf("wkt: expected POINT, got %q", tag)
	}
	groups, err := groupsOf(body)
	if err != nil {
		return Point{}, err
	}
	if len(groups) != 1 {
		return Point{}, fmt.Errorf("wkt: malformed POINT")
	}
	return parsePoint(groups[0])
}

// splitTag separates "POLYGON ((...))" into "POLYGON" and "((...))".
func splitTag(wkt string) (string, string, error) {
	s := strings.TrimSpace(wkt)
	i := strings.IndexByte(s, '(')
	if i <= 0 {
		return "", "", fmt.Errorf("wkt: malformed geometry %q", truncate(s, 40))
	}
	tag := strings.ToUpper(strings.TrimSpace(s[:i]))
	// "POLYGON Z ((...))"
	for _, suffix := range []string{" ZM", " Z", " M"} {
		tag = strings.TrimSuffix(tag, suffix)
	}
	return tag, s[i:], nil
}

func parsePolygonBody(body string) (Polygon, error) {
	groups, err := groupsOf(body)
	if err != nil {
		return Polygon{}, err
	}
	if len(groups) != 1 {
		return Polygon{}, fmt.Errorf("wkt: malformed POLYGON")
	}
	return parseRings(groups[0])
}

// parseRings parses "(x y, ...), (x y, ...)".
func parseRings(s string) (Polygon, error) {
	ringTexts, err := groupsOf(s)
	if err != nil {
		return Polygon{}, err
	}
	if len(ringTexts) == 0 {
		return Polygon{}, fmt.Errorf("wkt: polygon has no rings")
	}
	p := Polygon{Rings: make([]Ring, 0, len(ringTexts))}
	for _, rt := range ringTexts {
		ring, err := parseRing(rt)
		if err != nil {
			return Polygon{}, err
		}
		p.Rings = append(p.Rings, ring)
	}
	return p, nil
}

func parseRing(s string) (Ring, error) {
	coords := strings.Split(s, ",")
	ring := make(Ring, 0, len(coords))
	for _, c := range coords {
		pt, err := parsePoint(c)
		if err != nil {
			return nil, err
		}
		ring = append(ring, pt)
	}
	return ring, nil
}

func parsePoint(s string) (Point, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 || len(fields) > 4 {
		return Point{}, fmt.Errorf("wkt: bad coordinate %q", truncate(strings.TrimSpace(s), 40))
	}
	lng, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Point{}, fmt.Errorf("wkt: bad longitude %q: %w", fields[0], err)
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Point{}, fmt.Errorf("wkt: bad latitude %q: %w", fields[1], err)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Point{}, fmt.Errorf("wkt: coordinate out of range (%g %g)", lng, lat)
	}
	return Point{Lng: lng, Lat: lat}, nil
}

// groupsOf returns the contents of each top-level parenthesized group in s:
// "(a), (b)" → ["a", "b"]. Anything but commas and spaces between groups is
// an error.
func groupsOf(s string) ([]string, error) {
	var groups []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("wkt: unbalanced parentheses")
			}
			if depth == 0 {
				groups = append(groups, s[start:i])
			}
		case ',', ' ', '\t', '\n', '\r':
		default:
			if depth == 0 {
				return nil, fmt.Errorf("wkt: unexpected %q", c)
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("wkt: unbalanced parentheses")
	}
	return groups, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
