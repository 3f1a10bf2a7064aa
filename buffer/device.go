package buffer

import (
	"fmt"
	"sync"
)

// Backend is a compute device holding word arrays.
type Backend interface {
	// Name identifies the device in logs and errors.
	Name() string
	// Upload copies words into a new allocation.
	Upload(words []uint32) (Handle, error)
	// Download copies an allocation into dst, which must match its size.
	Download(h Handle, dst []uint32) error
	// Free releases an allocation.
	Free(h Handle) error
}

// Importer maps memory exported by another process or API into the
// device address space.
type Importer interface {
	Import(external uint64, sizeBytes int) (Handle, error)
}

// HostDevice is a Backend and Importer emulating device memory in
// host memory with a fixed capacity. It stands in for accelerators in
// tests and on machines without one.
type HostDevice struct {
	mu       sync.Mutex
	capacity int // words, <= 0 is unlimited
	used     int
	next     Handle
	allocs   map[Handle]*allocation
	exported map[uint64]*allocation
}

type allocation struct {
	words []uint32
	refs  int
}

// NewHostDevice returns an emulated device of capacityBytes bytes.
func NewHostDevice(capacityBytes int) *HostDevice {
	return &HostDevice{
		capacity: capacityBytes / 4,
		allocs:   make(map[Handle]*allocation),
		exported: make(map[uint64]*allocation),
	}
}

func (d *HostDevice) Name() string { return "host" }

func (d *HostDevice) Upload(words []uint32) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.capacity > 0 && d.used+len(words) > d.capacity {
		return 0, fmt.Errorf("%w: %d of %d bytes in use, %d requested", ErrOutOfMemory, 4*d.used, 4*d.capacity, 4*len(words))
	}
	a := &allocation{words: append([]uint32(nil), words...), refs: 1}
	d.used += len(words)
	return d.add(a), nil
}

func (d *HostDevice) add(a *allocation) Handle {
	d.next++
	d.allocs[d.next] = a
	return d.next
}

func (d *HostDevice) Download(h Handle, dst []uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.allocs[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	if len(dst) != len(a.words) {
		return fmt.Errorf("download of %d words into %d word buffer", len(a.words), len(dst))
	}
	copy(dst, a.words)
	return nil
}

func (d *HostDevice) Free(h Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.allocs[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	delete(d.allocs, h)
	a.refs--
	if a.refs == 0 {
		d.used -= len(a.words)
	}
	return nil
}

// Export publishes the allocation behind h under an external handle that
// Import accepts, as an interop API would. It returns the external handle
// and the allocation size in bytes.
func (d *HostDevice) Export(h Handle) (uint64, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.allocs[h]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	external := uint64(h) | 1<<63
	d.exported[external] = a
	return external, 4 * len(a.words), nil
}

// Import returns a new handle aliasing an exported allocation.
func (d *HostDevice) Import(external uint64, sizeBytes int) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.exported[external]
	if !ok {
		return 0, fmt.Errorf("%w: unknown external handle %#x", ErrInvalidHandle, external)
	}
	if sizeBytes != 4*len(a.words) {
		return 0, fmt.Errorf("%w: external handle %#x holds %d bytes, %d requested", ErrInvalidHandle, external, 4*len(a.words), sizeBytes)
	}
	a.refs++
	return d.add(a), nil
}

// InUse returns the number of allocated bytes.
func (d *HostDevice) InUse() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return 4 * d.used
}
