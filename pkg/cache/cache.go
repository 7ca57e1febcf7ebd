// Package cache stores computed geometry and rendered artifacts.
//
// Three backends share the [Cache] interface:
//   - FileCache: one JSON file per entry, for the CLI
//   - RedisCache: shared storage for several serve instances
//   - NullCache: caching disabled
//
// Keys come from a [Keyer] so that hosted deployments can namespace them
// with a [ScopedKeyer]. Geometry keys hash the layout measurement together
// with the configuration; artifact keys hash the geometry together with the
// output format, so an unchanged layout never recomputes or re-renders.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the stored value and whether it was found.
	// Expired entries are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error
}

// Default entry lifetimes.
const (
	TTLGeometry = 7 * 24 * time.Hour
	TTLArtifact = 7 * 24 * time.Hour
)

// Key types reported to observability hooks.
const (
	KeyTypeGeometry = "geometry"
	KeyTypeArtifact = "artifact"
)

// ArtifactKeyOpts are the render options that change artifact bytes.
type ArtifactKeyOpts struct {
	Format string `json:"format"`
	Style  string `json:"style,omitempty"`
}

// Keyer builds cache keys.
type Keyer interface {
	// GeometryKey identifies the geometry computed from a layout under a
	// configuration.
	GeometryKey(layoutHash, configHash string) string

	// ArtifactKey identifies one rendered output of a geometry.
	ArtifactKey(geometryHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer builds unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// GeometryKey implements Keyer.
func (DefaultKeyer) GeometryKey(layoutHash, configHash string) string {
	return hashKey(KeyTypeGeometry, layoutHash, configHash)
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(geometryHash string, opts ArtifactKeyOpts) string {
	return hashKey(KeyTypeArtifact, geometryHash, opts)
}
