package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation.
// This is useful when several serve instances with different route
// configurations share one Redis database.
//
// Example usage:
//
//	// Per-deployment keys
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "flowlines:landing:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// GeometryKey generates a prefixed key for geometry caching.
func (k *ScopedKeyer) GeometryKey(layoutHash, configHash string) string {
	return k.prefix + k.inner.GeometryKey(layoutHash, configHash)
}

// ArtifactKey generates a prefixed key for artifact caching.
func (k *ScopedKeyer) ArtifactKey(geometryHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(geometryHash, opts)
}
