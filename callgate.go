package callgate

import (
	"sync"
)

// Allocator accounts for memory owned by a runtime instance.
// Alloc reports false when the request cannot be satisfied.
type Allocator interface {
	Alloc(size int) bool
	Free(size int)
}

// LimitedAllocator grants allocations until Limit bytes are in use.
// A zero Limit means unlimited.
type LimitedAllocator struct {
	Limit int
	mu    sync.Mutex
	inUse int
	peak  int
	under int
}

// NewLimitedAllocator creates an allocator capped at limit bytes.
func NewLimitedAllocator(limit int) *LimitedAllocator {
	return &LimitedAllocator{Limit: limit}
}

func (a *LimitedAllocator) Alloc(size int) bool {
	if size < 0 {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Limit > 0 && a.inUse+size > a.Limit {
		return false
	}
	a.inUse += size
	if a.inUse > a.peak {
		a.peak = a.inUse
	}
	return true
}

func (a *LimitedAllocator) Free(size int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inUse -= size
	if a.inUse < 0 {
		a.inUse = 0
		a.under++
	}
}

// InUse returns the number of bytes currently allocated.
func (a *LimitedAllocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse
}

// Underflows returns how many frees released more than was in use. A
// nonzero count means frees and allocations are unbalanced.
func (a *LimitedAllocator) Underflows() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.under
}

// Peak returns the high-water mark.
func (a *LimitedAllocator) Peak() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.peak
}

// FailingAllocator refuses every allocation after the first After successful
// ones. It is used to simulate out-of-memory conditions.
type FailingAllocator struct {
	After  int
	mu     sync.Mutex
	grants int
	fails  int
}

func (a *FailingAllocator) Alloc(size int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.grants >= a.After {
		a.fails++
		return false
	}
	a.grants++
	return true
}

func (a *FailingAllocator) Free(int) {}

// Failures returns how many allocations were refused.
func (a *FailingAllocator) Failures() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fails
}
