package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shivamdeswal5/weconnect/internal/remote"
	"github.com/shivamdeswal5/weconnect/internal/remote/memstream"
)

func TestCounterIncrementAndGet(t *testing.T) {
	stream := memstream.New()
	c := NewCounter(stream)
	ctx := context.Background()

	n, err := c.Get(ctx, "alice", testConv)
	require.NoError(t, err)
	require.Zero(t, n, "absent key counts as zero")

	n, err = c.Increment(ctx, "alice", testConv)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = c.Increment(ctx, "alice", testConv)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestCounterResetIsUnconditional(t *testing.T) {
	stream := memstream.New()
	c := NewCounter(stream)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := c.Increment(ctx, "alice", testConv)
		require.NoError(t, err)
	}
	require.NoError(t, c.Reset(ctx, "alice", testConv))

	n, err := c.Get(ctx, "alice", testConv)
	require.NoError(t, err)
	require.Zero(t, n)

	// Resetting an absent key is also fine.
	require.NoError(t, c.Reset(ctx, "alice", "alice_carol"))
}

// The store implements the atomic increment capability, so concurrent
// increments against one key must not lose updates. This is the documented
// choice: atomic where the store supports it, best-effort otherwise.
func TestCounterConcurrentIncrementsAreExact(t *testing.T) {
	stream := memstream.New()
	c := NewCounter(stream)
	ctx := context.Background()

	_, isAtomic := remote.Stream(stream).(remote.Incrementer)
	require.True(t, isAtomic)

	const workers = 16
	const perWorker = 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := c.Increment(ctx, "alice", testConv)
				require.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	n, err := c.Get(ctx, "alice", testConv)
	require.NoError(t, err)
	require.Equal(t, int64(workers*perWorker), n)
}

func TestCounterKeysAreScopedPerReaderAndConversation(t *testing.T) {
	stream := memstream.New()
	c := NewCounter(stream)
	ctx := context.Background()

	_, err := c.Increment(ctx, "alice", testConv)
	require.NoError(t, err)
	_, err = c.Increment(ctx, "bob", testConv)
	require.NoError(t, err)
	_, err = c.Increment(ctx, "alice", "alice_carol")
	require.NoError(t, err)

	n, err := c.Get(ctx, "alice", testConv)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	n, err = c.Get(ctx, "bob", testConv)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	n, err = c.Get(ctx, "alice", "alice_carol")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
