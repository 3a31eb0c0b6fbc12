package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/corey/mapbuilder/internal/logging"
	"github.com/corey/mapbuilder/internal/ports"
)

// Cache namespaces, one per payload kind.
const (
	nsParcels    = "parcels"
	nsStructures = "structures"
	nsZoning     = "zoning"
)

// cachedProvider is a read-through cache in front of a ParcelProvider.
// Only successful payloads are stored. Cache failures degrade to a direct
// provider call.
type cachedProvider struct {
	inner ports.ParcelProvider
	cache ports.Cache
	ttl   time.Duration
	log   logging.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

func newCachedProvider(inner ports.ParcelProvider, cache ports.Cache, ttl time.Duration, log logging.Logger) *cachedProvider {
	return &cachedProvider{inner: inner, cache: cache, ttl: ttl, log: log}
}

func (c *cachedProvider) ParcelsByGeometry(ctx context.Context, q ports.GeometryQuery) (*ports.ParcelCollection, error) {
	q = q.WithDefaults()
	key := "geometry|" + q.WKT + "|" + strconv.FormatFloat(q.Buffer(), 'f', -1, 64) + "|" + q.BufferUnit
	raw, err := c.fetch(nsParcels, key, func() (json.RawMessage, error) {
		pc, err := c.inner.ParcelsByGeometry(ctx, q)
		if err != nil {
			return nil, err
		}
		return rawOf(pc.Raw, pc)
	})
	if err != nil {
		return nil, err
	}
	return ports.DecodeParcels(raw)
}

func (c *cachedProvider) ParcelsByAddress(ctx context.Context, text string) (*ports.ParcelCollection, error) {
	raw, err := c.fetch(nsParcels, "address|"+text, func() (json.RawMessage, error) {
		pc, err := c.inner.ParcelsByAddress(ctx, text)
		if err != nil {
			return nil, err
		}
		return rawOf(pc.Raw, pc)
	})
	if err != nil {
		return nil, err
	}
	return ports.DecodeParcels(raw)
}

func (c *cachedProvider) StructuresByParcel(ctx context.Context, parcelID string) (*ports.StructureCollection, error) {
	raw, err := c.fetch(nsStructures, parcelID, func() (json.RawMessage, error) {
		sc, err := c.inner.StructuresByParcel(ctx, parcelID)
		if err != nil {
			return nil, err
		}
		return rawOf(sc.Raw, sc)
	})
	if err != nil {
		return nil, err
	}
	return ports.DecodeStructures(raw)
}

func (c *cachedProvider) ZoningByParcel(ctx context.Context, parcelID string) (*ports.ZoningCollection, error) {
	raw, err := c.fetch(nsZoning, parcelID, func() (json.RawMessage, error) {
		zc, err := c.inner.ZoningByParcel(ctx, parcelID)
		if err != nil {
			return nil, err
		}
		return rawOf(zc.Raw, zc)
	})
	if err != nil {
		return nil, err
	}
	return ports.DecodeZonings(raw)
}

func (c *cachedProvider) fetch(ns, key string, load func() (json.RawMessage, error)) (json.RawMessage, error) {
	if key == "" {
		return load()
	}
	cached, err := c.cache.Get(ns, key, c.ttl)
	if err != nil {
		c.log.Warn("cache read failed", "namespace", ns, "error", err)
	} else if cached != nil {
		c.hits.Add(1)
		c.log.Debug("cache hit", "namespace", ns, "key", key)
		return cached, nil
	}

	c.misses.Add(1)
	c.log.Debug("cache miss", "namespace", ns, "key", key)
	raw, err := load()
	if err != nil {
		c.log.Warn("provider call failed", "namespace", ns, "key", key, "error", err)
		return nil, err
	}
	if err := c.cache.Put(ns, key, raw); err != nil {
		c.log.Warn("cache write failed", "namespace", ns, "error", err)
	}
	return raw, nil
}

// rawOf prefers the provider's own body and falls back to re-encoding.
func rawOf(raw json.RawMessage, v any) (json.RawMessage, error) {
	if len(raw) > 0 {
		return raw, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}
