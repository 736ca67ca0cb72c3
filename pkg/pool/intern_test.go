package pool

import (
	"strconv"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternSharesInstances(t *testing.T) {
	p := NewInterner[string]("text", 16)

	a := p.Intern(string([]byte("category")))
	b := p.Intern(string([]byte("category")))

	assert.Equal(t, unsafe.StringData(a), unsafe.StringData(b))
	size, hits, misses, evictions := p.Stats()
	assert.Equal(t, int64(1), size)
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, int64(0), evictions)
}

func TestInternEvictsOldestFirst(t *testing.T) {
	p := NewInterner[int]("test", 3)
	for i := 0; i < 5; i++ {
		p.Intern(i)
	}

	size, _, misses, evictions := p.Stats()
	assert.Equal(t, int64(3), size)
	assert.Equal(t, int64(5), misses)
	assert.Equal(t, int64(2), evictions)

	// 0 and 1 were evicted; 2, 3, 4 remain.
	p.Intern(2)
	p.Intern(4)
	_, hits, _, _ := p.Stats()
	assert.Equal(t, int64(2), hits)

	p.Intern(0)
	_, _, misses, evictions = p.Stats()
	assert.Equal(t, int64(6), misses)
	assert.Equal(t, int64(3), evictions)
	assert.Equal(t, 3, p.Len())
}

func TestInternClear(t *testing.T) {
	p := NewInterner[string]("text", 0)
	p.Intern("x")
	p.Clear()

	size, hits, misses, evictions := p.Stats()
	assert.Zero(t, size+hits+misses+evictions)
}

func TestInternConcurrent(t *testing.T) {
	p := NewInterner[string]("text", 64)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				p.Intern(strconv.Itoa(i % 100))
			}
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, p.Len(), 64)
}
