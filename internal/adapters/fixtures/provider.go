// Package fixtures implements ports.ParcelProvider over a directory of JSON
// fixture files, for offline development and tests. Each file bundles one
// parcel with its structures and zonings in the LightBox payload shape:
//
//	{"parcel": {...}, "structures": [...], "zonings": [...]}
//
// Parcel outlines are indexed in an R-tree so geometry queries behave like
// the upstream buffered intersection search.
package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/corey/mapbuilder/internal/domain/geometry"
	"github.com/corey/mapbuilder/internal/ports"
	"github.com/dhconnelly/rtreego"
)

// R-tree fan-out. Fixture sets are small; these only bound node size.
const (
	minChildren = 2
	maxChildren = 8

	// Degenerate boxes (a POINT parcel) still need a positive extent.
	minExtent = 1e-9
)

// File is the on-disk fixture layout.
type File struct {
	Parcel     json.RawMessage   `json:"parcel"`
	Structures []json.RawMessage `json:"structures"`
	Zonings    []json.RawMessage `json:"zonings"`
}

// record is one loaded fixture. It is an rtreego.Spatial.
type record struct {
	parcel     ports.Parcel
	rawParcel  json.RawMessage
	structures []json.RawMessage
	zonings    []json.RawMessage
	source     string
	rect       rtreego.Rect
}

func (r *record) Bounds() rtreego.Rect { return r.rect }

type snapshot struct {
	byID map[string]*record
	ids  []string
	tree *rtreego.Rtree
}

// Provider serves parcels from fixture files. Reload swaps in a fresh
// snapshot atomically; readers never see a half-built index.
type Provider struct {
	dir  string
	snap atomic.Pointer[snapshot]
}

// New loads every fixture under dir.
func New(dir string) (*Provider, error) {
	p := &Provider{dir: dir}
	if _, err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Dir returns the fixtures directory.
func (p *Provider) Dir() string { return p.dir }

// Len returns the number of loaded parcels.
func (p *Provider) Len() int { return len(p.snap.Load().ids) }

// Reload re-reads the directory and returns the parcel count. On error the
// previous snapshot stays in place.
func (p *Provider) Reload() (int, error) {
	snap, err := load(p.dir)
	if err != nil {
		return 0, err
	}
	p.snap.Store(snap)
	return len(snap.ids), nil
}

func load(dir string) (*snapshot, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("fixtures dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fixtures dir %s is not a directory", dir)
	}

	snap := &snapshot{
		byID: make(map[string]*record),
		tree: rtreego.NewTree(2, minChildren, maxChildren),
	}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".json") {
			return nil
		}
		rec, err := readFixture(path)
		if err != nil {
			return err
		}
		if prev, dup := snap.byID[rec.parcel.ID]; dup {
			return fmt.Errorf("parcel %q defined in both %s and %s", rec.parcel.ID, prev.source, path)
		}
		snap.byID[rec.parcel.ID] = rec
		snap.ids = append(snap.ids, rec.parcel.ID)
		if rec.parcel.Geometry.WKT != "" {
			snap.tree.Insert(rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(snap.ids)
	return snap, nil
}

func readFixture(path string) (*record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	if len(f.Parcel) == 0 {
		return nil, fmt.Errorf("fixture %s: missing parcel", path)
	}
	rec := &record{
		rawParcel:  f.Parcel,
		structures: f.Structures,
		zonings:    f.Zonings,
		source:     path,
	}
	if err := json.Unmarshal(f.Parcel, &rec.parcel); err != nil {
		return nil, fmt.Errorf("fixture %s: parcel: %w", path, err)
	}
	if rec.parcel.ID == "" {
		return nil, fmt.Errorf("fixture %s: parcel has no id", path)
	}
	if wkt := rec.parcel.Geometry.WKT; wkt != "" {
		b, err := geometry.GeometryBounds(wkt)
		if err != nil {
			return nil, fmt.Errorf("fixture %s: %w", path, err)
		}
		rec.rect, err = toRect(b)
		if err != nil {
			return nil, fmt.Errorf("fixture %s: %w", path, err)
		}
	}
	return rec, nil
}

func toRect(b geometry.Bounds) (rtreego.Rect, error) {
	return rtreego.NewRect(
		rtreego.Point{b.MinLng, b.MinLat},
		[]float64{
			math.Max(b.MaxLng-b.MinLng, minExtent),
			math.Max(b.MaxLat-b.MinLat, minExtent),
		},
	)
}

// ParcelsByGeometry returns parcels whose bounds intersect the query
// geometry's bounds grown by the buffer.
func (p *Provider) ParcelsByGeometry(ctx context.Context, q ports.GeometryQuery) (*ports.ParcelCollection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q = q.WithDefaults()
	b, err := geometry.GeometryBounds(q.WKT)
	if err != nil {
		return nil, fmt.Errorf("parcels by geometry: %w", err)
	}
	meters, err := geometry.ToMeters(q.Buffer(), q.BufferUnit)
	if err != nil {
		return nil, fmt.Errorf("parcels by geometry: %w", err)
	}
	rect, err := toRect(b.Expand(meters))
	if err != nil {
		return nil, fmt.Errorf("parcels by geometry: %w", err)
	}

	var hits []*record
	for _, s := range p.snap.Load().tree.SearchIntersect(rect) {
		hits = append(hits, s.(*record))
	}
	return parcelsOf(hits)
}

// ParcelsByAddress returns parcels whose street address contains text,
// ignoring case.
func (p *Provider) ParcelsByAddress(ctx context.Context, text string) (*ports.ParcelCollection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(text))
	snap := p.snap.Load()

	var hits []*record
	if needle != "" {
		for _, id := range snap.ids {
			rec := snap.byID[id]
			if strings.Contains(strings.ToLower(addressOf(rec.parcel)), needle) {
				hits = append(hits, rec)
			}
		}
	}
	return parcelsOf(hits)
}

// StructuresByParcel implements ports.ParcelProvider.
func (p *Provider) StructuresByParcel(ctx context.Context, parcelID string) (*ports.StructureCollection, error) {
	rec, err := p.lookup(ctx, parcelID)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(struct {
		Structures []json.RawMessage `json:"structures"`
	}{nonNil(rec.structures)})
	if err != nil {
		return nil, err
	}
	return ports.DecodeStructures(body)
}

// ZoningByParcel implements ports.ParcelProvider.
func (p *Provider) ZoningByParcel(ctx context.Context, parcelID string) (*ports.ZoningCollection, error) {
	rec, err := p.lookup(ctx, parcelID)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(struct {
		Zonings []json.RawMessage `json:"zonings"`
	}{nonNil(rec.zonings)})
	if err != nil {
		return nil, err
	}
	return ports.DecodeZonings(body)
}

func (p *Provider) lookup(ctx context.Context, parcelID string) (*record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok := p.snap.Load().byID[parcelID]
	if !ok {
		return nil, fmt.Errorf("parcel %q: %w", parcelID, ports.ErrNotFound)
	}
	return rec, nil
}

func parcelsOf(hits []*record) (*ports.ParcelCollection, error) {
	sort.Slice(hits, func(i, j int) bool { return hits[i].parcel.ID < hits[j].parcel.ID })
	raw := make([]json.RawMessage, 0, len(hits))
	for _, rec := range hits {
		raw = append(raw, rec.rawParcel)
	}
	body, err := json.Marshal(struct {
		Parcels []json.RawMessage `json:"parcels"`
	}{raw})
	if err != nil {
		return nil, err
	}
	return ports.DecodeParcels(body)
}

func addressOf(p ports.Parcel) string {
	parts := []string{p.Location.StreetAddress}
	for _, s := range []string{p.Location.Locality, p.Location.RegionCode, p.Location.PostalCode} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

func nonNil(v []json.RawMessage) []json.RawMessage {
	if v == nil {
		return []json.RawMessage{}
	}
	return v
}
