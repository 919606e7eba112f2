package cache

// ScopedKeyer wraps a Keyer with a prefix. Several teams sharing one Redis
// instance each configure their own prefix.
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

// GraphKey generates a prefixed graph key.
func (k *ScopedKeyer) GraphKey(logHash string, opts GraphKeyOpts) string {
	return k.prefix + k.inner.GraphKey(logHash, opts)
}

// ResourcesKey generates a prefixed resources key.
func (k *ScopedKeyer) ResourcesKey(feed string) string {
	return k.prefix + k.inner.ResourcesKey(feed)
}
