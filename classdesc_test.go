package javaio

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescCache_ConcurrentDescribe(t *testing.T) {
	const workers, calls = 8, 64
	cache := NewDescCache()

	descs := make([][]*ClassDesc, workers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			<-start
			for i := 0; i < calls; i++ {
				desc, err := cache.Describe(nodeClass)
				if !assert.NoError(t, err) {
					return
				}
				descs[w] = append(descs[w], desc)
			}
		}(w)
	}
	close(start)
	wg.Wait()

	first := descs[0][0]
	for _, ds := range descs {
		require.Len(t, ds, calls)
		for _, d := range ds {
			assert.Same(t, first, d)
		}
	}
	hits, misses := cache.Stats()
	assert.GreaterOrEqual(t, misses, int64(1))
	assert.Equal(t, int64(workers*calls), hits+misses)
}

func TestDescCache_FirstStoreWins(t *testing.T) {
	cache := NewDescCache()
	winner, loser := &ClassDesc{Name: "winner"}, &ClassDesc{Name: "loser"}

	got, err := cache.load("key", func() (*ClassDesc, error) {
		// another caller stores its copy while this one is still building
		_, err := cache.load("key", func() (*ClassDesc, error) { return winner, nil })
		return loser, err
	})
	require.NoError(t, err)
	assert.Same(t, winner, got)

	got, err = cache.load("key", func() (*ClassDesc, error) { return loser, nil })
	require.NoError(t, err)
	assert.Same(t, winner, got)

	hits, misses := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
}
