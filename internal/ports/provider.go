// Package ports defines the interfaces (contracts) that adapters must implement.
// These are the boundaries of the hexagonal architecture. Domain logic depends
// only on these interfaces, never on concrete implementations.
package ports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned (possibly wrapped) when the provider has no record
// for the requested parcel.
var ErrNotFound = errors.New("not found")

// ParcelProvider supplies parcel, structure and zoning data. The production
// adapter calls the LightBox RE API; the fixtures adapter serves JSON files
// from disk. Implementations must be safe for concurrent use.
//
// Every payload keeps the provider's raw JSON body so HTTP proxy routes can
// return it unchanged.
type ParcelProvider interface {
	// ParcelsByGeometry returns parcels intersecting the WKT geometry grown
	// by the query's buffer.
	ParcelsByGeometry(ctx context.Context, q GeometryQuery) (*ParcelCollection, error)

	// ParcelsByAddress returns parcels matching a free-text street address.
	ParcelsByAddress(ctx context.Context, text string) (*ParcelCollection, error)

	// StructuresByParcel returns the buildings standing on a parcel. An empty
	// list means the parcel is undeveloped.
	StructuresByParcel(ctx context.Context, parcelID string) (*StructureCollection, error)

	// ZoningByParcel returns the zoning designations covering a parcel.
	ZoningByParcel(ctx context.Context, parcelID string) (*ZoningCollection, error)
}

// Default geometry buffer, matching the map client.
const (
	DefaultBufferDistance = 50
	DefaultBufferUnit     = "m"
)

// GeometryQuery is a WKT geometry plus a search buffer. A nil
// BufferDistance means the caller gave none; an explicit 0 searches the
// geometry's own bounds.
type GeometryQuery struct {
	WKT            string   `json:"wkt"`
	BufferDistance *float64 `json:"bufferDistance,omitempty"`
	BufferUnit     string   `json:"bufferUnit,omitempty"`
}

// Distance returns a buffer distance for a GeometryQuery literal.
func Distance(v float64) *float64 { return &v }

// WithDefaults fills an absent buffer with 50 m.
func (q GeometryQuery) WithDefaults() GeometryQuery {
	if q.BufferDistance == nil {
		q.BufferDistance = Distance(DefaultBufferDistance)
	}
	if q.BufferUnit == "" {
		q.BufferUnit = DefaultBufferUnit
	}
	return q
}

// Buffer is the buffer distance with the default applied.
func (q GeometryQuery) Buffer() float64 {
	if q.BufferDistance == nil {
		return DefaultBufferDistance
	}
	return *q.BufferDistance
}

// ParcelCollection is a provider parcel search result.
type ParcelCollection struct {
	Parcels []Parcel        `json:"parcels"`
	Raw     json.RawMessage `json:"-"`
}

// Parcel is the subset of provider parcel fields the service reads.
type Parcel struct {
	ID       string         `json:"id"`
	Location ParcelLocation `json:"location"`
	Geometry ParcelGeometry `json:"geometry"`
	Derived  ParcelDerived  `json:"derived"`
}

// ParcelLocation holds the parcel's situs address.
type ParcelLocation struct {
	StreetAddress string `json:"streetAddress"`
	Locality      string `json:"locality,omitempty"`
	RegionCode    string `json:"regionCode,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
}

// ParcelGeometry holds the parcel outline as WKT.
type ParcelGeometry struct {
	WKT string `json:"wkt"`
}

// ParcelDerived holds provider-computed measurements.
type ParcelDerived struct {
	CalculatedLotArea float64 `json:"calculatedLotArea"`
}

// StructureCollection is the list of structures on a parcel.
type StructureCollection struct {
	Structures []Structure     `json:"structures"`
	Raw        json.RawMessage `json:"-"`
}

// Structure is a building footprint record. Only its identity matters here.
type Structure struct {
	ID string `json:"id"`
}

// ZoningCollection is the list of zoning designations on a parcel.
type ZoningCollection struct {
	Zonings []Zoning        `json:"zonings"`
	Raw     json.RawMessage `json:"-"`
}

// Zoning is one zoning designation with its dimensional standards.
type Zoning struct {
	ID                    string           `json:"id,omitempty"`
	Code                  string           `json:"code,omitempty"`
	FrontSetback          DescribedValue   `json:"frontSetback"`
	RearSetback           DescribedValue   `json:"rearSetback"`
	SideSetback           DescribedValue   `json:"sideSetback"`
	MaximumBuildingHeight DescribedValue   `json:"maximumBuildingHeight"`
	DensityFloorArea      FloorAreaDensity `json:"densityFloorArea"`
}

// DescribedValue is a zoning standard expressed as prose.
type DescribedValue struct {
	Description string `json:"description"`
}

// FloorAreaDensity carries the floor area ratio. The provider sends the value
// as text; see zoning.ParseRatio.
type FloorAreaDensity struct {
	Value       FlexString `json:"value"`
	Description string     `json:"description,omitempty"`
}

// FlexString accepts a JSON string or number and keeps it as text.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

// DecodeParcels parses a provider parcel body, keeping it as Raw.
func DecodeParcels(body []byte) (*ParcelCollection, error) {
	var pc ParcelCollection
	if err := json.Unmarshal(body, &pc); err != nil {
		return nil, fmt.Errorf("decode parcels: %w", err)
	}
	pc.Raw = append(json.RawMessage(nil), body...)
	return &pc, nil
}

// DecodeStructures parses a provider structures body, keeping it as Raw.
func DecodeStructures(body []byte) (*StructureCollection, error) {
	var sc StructureCollection
	if err := json.Unmarshal(body, &sc); err != nil {
		return nil, fmt.Errorf("decode structures: %w", err)
	}
	sc.Raw = append(json.RawMessage(nil), body...)
	return &sc, nil
}

// DecodeZonings parses a provider zoning body, keeping it as Raw.
func DecodeZonings(body []byte) (*ZoningCollection, error) {
	var zc ZoningCollection
	if err := json.Unmarshal(body, &zc); err != nil {
		return nil, fmt.Errorf("decode zoning: %w", err)
	}
	zc.Raw = append(json.RawMessage(nil), body...)
	return &zc, nil
}
