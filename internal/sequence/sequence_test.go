package sequence_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tayloree/shopcli/internal/sequence"
)

func TestGuard_LatestWins(t *testing.T) {
	var g sequence.Guard
	first := g.Next()
	second := g.Next()

	assert.False(t, g.IsCurrent(first))
	assert.True(t, g.IsCurrent(second))
	assert.ErrorIs(t, g.Check(first), sequence.ErrSuperseded)
	assert.NoError(t, g.Check(second))
}

func TestGuard_ZeroTokenIsNeverCurrentAfterIssue(t *testing.T) {
	var g sequence.Guard
	assert.True(t, g.IsCurrent(0))
	g.Next()
	assert.False(t, g.IsCurrent(0))
}

func TestGuard_ConcurrentNextIsUnique(t *testing.T) {
	var g sequence.Guard
	const n = 200

	var (
		mu   sync.Mutex
		seen = make(map[sequence.Token]struct{}, n)
		wg   sync.WaitGroup
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok := g.Next()
			mu.Lock()
			seen[tok] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	assert.True(t, g.IsCurrent(sequence.Token(n)))
}
