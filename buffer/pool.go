package buffer

import (
	"errors"
	"fmt"
	"sync"
)

// StagingPool recycles the word slices used to stage transfers. It also
// aids in finding leaked staging memory. Safe for concurrent use.
type StagingPool struct {
	mu       sync.Mutex
	ins      [][]uint32
	acquired []bool
}

// Acquire returns a slice of at least minLength words.
func (sp *StagingPool) Acquire(minLength int) []uint32 {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	for i, locked := range sp.acquired {
		if !locked && len(sp.ins[i]) >= minLength && len(sp.ins[i]) > 0 {
			sp.acquired[i] = true
			return sp.ins[i][:minLength]
		}
	}
	newSlice := make([]uint32, max(minLength, 1))
	sp.ins = append(sp.ins, newSlice)
	sp.acquired = append(sp.acquired, true)
	return newSlice[:minLength]
}

// Release returns buf to the pool.
func (sp *StagingPool) Release(buf []uint32) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	buf = buf[:cap(buf)]
	for i, instance := range sp.ins {
		if &instance[0] == &buf[0] {
			if !sp.acquired[i] {
				return errors.New("release of unacquired staging buffer")
			}
			sp.acquired[i] = false
			return nil
		}
	}
	return errors.New("release of nonexistent staging buffer")
}

// AssertAllReleased checks no staging buffer is in use. Call it after a
// batch of transfers to find leaks.
func (sp *StagingPool) AssertAllReleased() error {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	for i, locked := range sp.acquired {
		if locked {
			return fmt.Errorf("staging buffer %d of %d words still acquired", i, len(sp.ins[i]))
		}
	}
	return nil
}
