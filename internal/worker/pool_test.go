package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolCollectsResults(t *testing.T) {
	p := NewPool(context.Background(), 2)

	boom := errors.New("boom")
	p.Go("a", func(ctx context.Context) error { return nil })
	p.Go("b", func(ctx context.Context) error { return boom })
	p.Go("c", func(ctx context.Context) error { return nil })

	results := p.Wait()
	assert.Len(t, results, 3)

	byName := map[string]error{}
	for _, r := range results {
		byName[r.Name] = r.Err
	}
	assert.Nil(t, byName["a"])
	assert.Equal(t, boom, byName["b"])
	assert.Nil(t, byName["c"])
}

func TestPoolFailureDoesNotCancelSiblings(t *testing.T) {
	p := NewPool(context.Background(), 1)

	var ran atomic.Int32
	p.Go("fails", func(ctx context.Context) error { return errors.New("boom") })
	p.Go("runs after", func(ctx context.Context) error {
		// The shared context must survive a sibling's failure.
		assert.Nil(t, ctx.Err())
		ran.Add(1)
		return nil
	})

	p.Wait()
	assert.Equal(t, int32(1), ran.Load())
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(context.Background(), 2)

	var current, peak atomic.Int32
	for i := 0; i < 8; i++ {
		p.Go("task", func(ctx context.Context) error {
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			current.Add(-1)
			return nil
		})
	}

	p.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}
