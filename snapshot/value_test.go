package snapshot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct {
	Price float64
	Size  int64
}

func TestValueZeroBeforeStore(t *testing.T) {
	t.Parallel()

	var v Value[pair]
	assert.False(t, v.Loaded())
	assert.Equal(t, pair{}, v.Load())

	v.Store(pair{Price: 1, Size: 2})
	assert.True(t, v.Loaded())
	assert.Equal(t, pair{Price: 1, Size: 2}, v.Load())
}

func TestValueUpdateAbandon(t *testing.T) {
	t.Parallel()

	v := New(pair{Price: 10, Size: 1})
	got, ok := v.Update(func(cur pair) (pair, bool) {
		cur.Price = 99
		return cur, false
	})
	assert.False(t, ok)
	assert.Equal(t, 10.0, got.Price)
	assert.Equal(t, 10.0, v.Load().Price)
}

func TestValueConcurrentUpdatesAreNotLost(t *testing.T) {
	t.Parallel()

	v := New(pair{})
	const writers, perWriter = 8, 500

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				v.Update(func(cur pair) (pair, bool) {
					cur.Size++
					cur.Price = float64(cur.Size)
					return cur, true
				})
			}
		}()
	}
	wg.Wait()

	got := v.Load()
	require.Equal(t, int64(writers*perWriter), got.Size)
	assert.Equal(t, float64(got.Size), got.Price)
}

func TestValueReadersNeverSeeTornPairs(t *testing.T) {
	t.Parallel()

	// Writers always publish Price == Size; a reader seeing anything else saw
	// half of one write and half of another.
	v := New(pair{})
	done := make(chan struct{})

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			for i := int64(0); i < 2000; i++ {
				n := seed*10000 + i
				v.Store(pair{Price: float64(n), Size: n})
			}
		}(int64(w))
	}

	torn := 0
	go func() {
		defer close(done)
		for i := 0; i < 20000; i++ {
			p := v.Load()
			if p.Price != float64(p.Size) {
				torn++
			}
		}
	}()

	wg.Wait()
	<-done
	assert.Zero(t, torn)
}

func TestBits(t *testing.T) {
	t.Parallel()

	var b Bits
	assert.True(t, b.Set(1))
	assert.False(t, b.Set(1))
	assert.True(t, b.Set(2))
	assert.True(t, b.Has(3))
	assert.False(t, b.Has(4))
	assert.True(t, b.Any(6))
	assert.Equal(t, uint32(3), b.Load())

	b.Reset()
	assert.Zero(t, b.Load())
}
