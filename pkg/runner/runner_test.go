package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bd-pipeline/bd-loader/pkg/mainloop"
)

func TestExecuteDeliversOnLoop(t *testing.T) {
	loop := mainloop.New()
	r := New(loop, 2)
	defer r.Shutdown()

	var got []string
	Execute(r, "types", func(ctx context.Context) ([]string, error) {
		return []string{"Prop", "Set"}, nil
	}, func(types []string) {
		got = types
	})

	require.True(t, loop.Next(time.Second))
	assert.Equal(t, []string{"Prop", "Set"}, got)
}

func TestExecuteFailureSkipsCallback(t *testing.T) {
	loop := mainloop.New()
	r := New(loop, 1)

	called := false
	Execute(r, "broken", func(ctx context.Context) (int, error) {
		return 0, errors.New("network down")
	}, func(int) {
		called = true
	})
	r.Wait()

	assert.Equal(t, 0, loop.RunPending())
	assert.False(t, called)
}

func TestExecutePanicIsRecovered(t *testing.T) {
	loop := mainloop.New()
	r := New(loop, 1)

	Execute(r, "panics", func(ctx context.Context) (int, error) {
		panic("boom")
	}, func(int) {
		t.Error("callback must not run")
	})

	assert.NotPanics(t, r.Wait)
	assert.Equal(t, 0, loop.RunPending())
}

func TestSubmitRespectsWorkerLimit(t *testing.T) {
	loop := mainloop.New()
	r := New(loop, 2)

	var running, peak int32
	for i := 0; i < 8; i++ {
		r.Submit("limit", func(ctx context.Context) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		})
	}
	r.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestResultsMayArriveInAnyOrder(t *testing.T) {
	loop := mainloop.New()
	r := New(loop, 4)
	defer r.Shutdown()

	seen := map[int]bool{}
	for i := 0; i < 4; i++ {
		i := i
		Execute(r, "n", func(ctx context.Context) (int, error) {
			time.Sleep(time.Duration(4-i) * time.Millisecond)
			return i, nil
		}, func(n int) { seen[n] = true })
	}

	for len(seen) < 4 {
		require.True(t, loop.Next(time.Second))
	}
	assert.Len(t, seen, 4)
}
