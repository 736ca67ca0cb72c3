package pool

import (
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/tablecore/pkg/metrics"
)

// DefaultInternSize bounds pools created without an explicit size.
const DefaultInternSize = 10000

// Interner deduplicates values of type K with a bounded, first-in first-out
// eviction policy.
type Interner[K comparable] struct {
	mu      sync.RWMutex
	name    string
	values  map[K]K
	order   []K // insertion ring, len(order) <= maxSize
	next    int // ring position of the oldest entry once the ring is full
	maxSize int

	hits      int64
	misses    int64
	evictions int64
}

// NewInterner creates an interner holding at most maxSize distinct values.
// name labels the pool in metrics.
func NewInterner[K comparable](name string, maxSize int) *Interner[K] {
	if maxSize <= 0 {
		maxSize = DefaultInternSize
	}
	return &Interner[K]{
		name:    name,
		values:  make(map[K]K, min(maxSize, 1024)),
		order:   make([]K, 0, min(maxSize, 1024)),
		maxSize: maxSize,
	}
}

// Intern returns the pooled instance equal to v, adding v if absent.
func (p *Interner[K]) Intern(v K) K {
	// Fast path: check if already interned
	p.mu.RLock()
	if interned, ok := p.values[v]; ok {
		p.mu.RUnlock()
		p.hit()
		return interned
	}
	p.mu.RUnlock()

	// Slow path: add to intern pool
	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if interned, ok := p.values[v]; ok {
		p.hit()
		return interned
	}

	if len(p.order) < p.maxSize {
		p.order = append(p.order, v)
	} else {
		delete(p.values, p.order[p.next])
		p.order[p.next] = v
		p.next = (p.next + 1) % p.maxSize
		atomic.AddInt64(&p.evictions, 1)
		metrics.InternLookups.WithLabelValues(p.name, "evict").Inc()
	}
	p.values[v] = v
	atomic.AddInt64(&p.misses, 1)
	metrics.InternLookups.WithLabelValues(p.name, "miss").Inc()
	return v
}

func (p *Interner[K]) hit() {
	atomic.AddInt64(&p.hits, 1)
	metrics.InternLookups.WithLabelValues(p.name, "hit").Inc()
}

// Len returns the number of pooled values.
func (p *Interner[K]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.values)
}

// Stats returns intern pool statistics
func (p *Interner[K]) Stats() (size, hits, misses, evictions int64) {
	return int64(p.Len()),
		atomic.LoadInt64(&p.hits),
		atomic.LoadInt64(&p.misses),
		atomic.LoadInt64(&p.evictions)
}

// Clear empties the pool and resets its statistics.
func (p *Interner[K]) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.values = make(map[K]K, min(p.maxSize, 1024))
	p.order = p.order[:0]
	p.next = 0
	atomic.StoreInt64(&p.hits, 0)
	atomic.StoreInt64(&p.misses, 0)
	atomic.StoreInt64(&p.evictions, 0)
}
