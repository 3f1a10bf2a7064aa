package buffer

import (
	"errors"
	"sync"
)

// InteropCache remembers the device handles external handles resolved to
// so each external allocation is imported once. The cache is owned by
// its caller; nothing is shared between caches.
type InteropCache struct {
	mu      sync.Mutex
	dev     Importer
	entries map[uint64]interopEntry
}

type interopEntry struct {
	handle    Handle
	sizeBytes int
}

// NewInteropCache returns an empty cache importing through dev.
func NewInteropCache(dev Importer) *InteropCache {
	return &InteropCache{dev: dev, entries: make(map[uint64]interopEntry)}
}

var errZeroExternal = errors.New("zero external handle")

// Resolve returns the device handle of external, importing it on first
// use. A cached entry of a different size is stale and reimported.
func (c *InteropCache) Resolve(external uint64, sizeBytes int) (Handle, error) {
	if external == 0 {
		return 0, &TransferError{From: Host, To: Device, Err: errZeroExternal}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[external]; ok && e.sizeBytes == sizeBytes {
		return e.handle, nil
	}
	delete(c.entries, external)
	h, err := c.dev.Import(external, sizeBytes)
	if err != nil {
		return 0, &TransferError{From: Host, To: Device, Err: err}
	}
	c.entries[external] = interopEntry{handle: h, sizeBytes: sizeBytes}
	return h, nil
}

// Bind associates external with an already imported handle, replacing
// and invalidating any previous entry.
func (c *InteropCache) Bind(external uint64, h Handle, sizeBytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[external] = interopEntry{handle: h, sizeBytes: sizeBytes}
}

// Invalidate drops the entry of external. The next Resolve imports again.
func (c *InteropCache) Invalidate(external uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, external)
}

// Len returns the number of cached entries.
func (c *InteropCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
