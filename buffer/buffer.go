// Package buffer moves typed arrays between host memory and a compute
// device. Every buffer knows where its data lives and transfers are
// explicit, fallible calls.
package buffer

import (
	"errors"
	"fmt"

	fluid "github.com/NVIDIA-Omniverse-blueprints/digital-twins-for-fluid-simulation"
)

// Residency tells where the data of a buffer lives.
type Residency uint8

const (
	Host Residency = iota
	Device
)

func (r Residency) String() string {
	switch r {
	case Host:
		return "host"
	case Device:
		return "device"
	}
	return fmt.Sprintf("Residency(%d)", uint8(r))
}

// Handle names an allocation on a device. The zero Handle is invalid.
type Handle uint64

// TransferError reports a failed move of buffer data. It matches both
// fluid.ErrTransfer and the underlying cause with errors.Is.
type TransferError struct {
	Handle   Handle
	From, To Residency
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %v to %v (handle %d): %s", e.From, e.To, e.Handle, e.Err)
}

func (e *TransferError) Unwrap() []error { return []error{fluid.ErrTransfer, e.Err} }

var (
	ErrOutOfMemory   = errors.New("device out of memory")
	ErrInvalidHandle = errors.New("invalid device handle")
	ErrNotResident   = errors.New("buffer not resident")
)

// Buffer is an array of T tagged with its residency. A host buffer
// exposes its data; a device buffer only its handle.
type Buffer[T any] struct {
	codec  Codec[T]
	res    Residency
	n      int
	host   []T
	dev    Backend
	handle Handle
}

// NewHost wraps data as a host resident buffer. data is not copied.
func NewHost[T any](data []T, codec Codec[T]) *Buffer[T] {
	return &Buffer[T]{codec: codec, res: Host, n: len(data), host: data}
}

// FromDevice wraps an existing device allocation of n elements.
func FromDevice[T any](dev Backend, h Handle, n int, codec Codec[T]) *Buffer[T] {
	return &Buffer[T]{codec: codec, res: Device, n: n, dev: dev, handle: h}
}

// Residency returns where the data currently lives.
func (b *Buffer[T]) Residency() Residency { return b.res }

// Len returns the number of elements.
func (b *Buffer[T]) Len() int { return b.n }

// Handle returns the device handle of a device resident buffer.
func (b *Buffer[T]) Handle() (Handle, error) {
	if b.res != Device {
		return 0, ErrNotResident
	}
	return b.handle, nil
}

// Host returns the data of a host resident buffer.
func (b *Buffer[T]) Host() ([]T, error) {
	if b.res != Host {
		return nil, fmt.Errorf("%w on host: buffer lives on %v", ErrNotResident, b.res)
	}
	return b.host, nil
}

// Upload copies the buffer to dev and releases the host copy. Staging
// memory comes from pool, which may be nil.
func (b *Buffer[T]) Upload(dev Backend, pool *StagingPool) error {
	if b.res != Host {
		return &TransferError{Handle: b.handle, From: b.res, To: Device, Err: ErrNotResident}
	}
	if pool == nil {
		pool = new(StagingPool)
	}
	words := pool.Acquire(b.n * b.codec.Stride)
	for i, v := range b.host {
		b.codec.Encode(words[i*b.codec.Stride:], v)
	}
	h, err := dev.Upload(words)
	if rerr := pool.Release(words); rerr != nil && err == nil {
		err = rerr
	}
	if err != nil {
		return &TransferError{From: Host, To: Device, Err: err}
	}
	b.res, b.dev, b.handle, b.host = Device, dev, h, nil
	return nil
}

// Download copies the buffer back to host memory and frees the device
// allocation.
func (b *Buffer[T]) Download(pool *StagingPool) error {
	if b.res != Device {
		return &TransferError{From: b.res, To: Host, Err: ErrNotResident}
	}
	if pool == nil {
		pool = new(StagingPool)
	}
	words := pool.Acquire(b.n * b.codec.Stride)
	defer pool.Release(words)
	if err := b.dev.Download(b.handle, words); err != nil {
		return &TransferError{Handle: b.handle, From: Device, To: Host, Err: err}
	}
	host := make([]T, b.n)
	for i := range host {
		host[i] = b.codec.Decode(words[i*b.codec.Stride:])
	}
	if err := b.dev.Free(b.handle); err != nil {
		return &TransferError{Handle: b.handle, From: Device, To: Host, Err: err}
	}
	b.res, b.host, b.dev, b.handle = Host, host, nil, 0
	return nil
}
