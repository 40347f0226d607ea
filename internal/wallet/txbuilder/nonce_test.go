package txbuilder_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-wallet-engine/internal/wallet/txbuilder"
)

func constantNonce(n uint64) func(context.Context) (uint64, error) {
	return func(context.Context) (uint64, error) { return n, nil }
}

func TestNonceTrackerConcurrentAcquire(t *testing.T) {
	tracker := txbuilder.NewNonceTracker()

	const workers = 100
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got = make(map[uint64]bool, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := tracker.Acquire(context.Background(), "0xabc", constantNonce(5))
			assert.NoError(t, err)
			mu.Lock()
			got[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, got, workers)
	for n := uint64(5); n < 5+workers; n++ {
		assert.True(t, got[n], "nonce %d missing", n)
	}
}

func TestNonceTrackerFollowsNode(t *testing.T) {
	tracker := txbuilder.NewNonceTracker()
	ctx := context.Background()

	n, err := tracker.Acquire(ctx, "0xAbC", constantNonce(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	// addresses are case-insensitive; the node is behind the cache
	n, err = tracker.Acquire(ctx, "0xabc", constantNonce(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)

	// the node moved ahead (transactions sent elsewhere)
	n, err = tracker.Acquire(ctx, "0xabc", constantNonce(10))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), n)

	next, known := tracker.Peek("0xABC")
	assert.True(t, known)
	assert.Equal(t, uint64(11), next)

	tracker.Reset("0xabc")
	_, known = tracker.Peek("0xabc")
	assert.False(t, known)

	n, err = tracker.Acquire(ctx, "0xabc", constantNonce(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestNonceTrackerRemoteError(t *testing.T) {
	tracker := txbuilder.NewNonceTracker()

	_, err := tracker.Acquire(context.Background(), "0xabc", func(context.Context) (uint64, error) {
		return 0, errors.New("boom")
	})
	require.Error(t, err)

	_, known := tracker.Peek("0xabc")
	assert.False(t, known)
}
