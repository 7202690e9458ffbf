package connect

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForSDKResolvesImmediately(t *testing.T) {
	var probes atomic.Int32
	err := WaitForSDK(context.Background(), func() bool {
		probes.Add(1)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), probes.Load(), "an already-loaded SDK needs one probe")
}

func TestWaitForSDKResolvesAfterSomeProbes(t *testing.T) {
	var probes atomic.Int32
	start := time.Now()
	err := WaitForSDK(context.Background(), func() bool {
		return probes.Add(1) >= 4
	})
	require.NoError(t, err)
	assert.Equal(t, int32(4), probes.Load())
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestWaitForSDKTimesOut(t *testing.T) {
	if testing.Short() {
		t.Skip("needs the full 5s polling deadline")
	}

	var probes atomic.Int32
	err := WaitForSDK(context.Background(), func() bool {
		probes.Add(1)
		return false
	})
	require.ErrorIs(t, err, ErrSDKLoadTimeout)
	assert.Equal(t, int32(sdkPollAttempts), probes.Load(), "exactly the maximum number of probes")
}

func TestWaitForSDKIsRestartable(t *testing.T) {
	if testing.Short() {
		t.Skip("needs the full 5s polling deadline")
	}

	err := WaitForSDK(context.Background(), func() bool { return false })
	require.ErrorIs(t, err, ErrSDKLoadTimeout)

	// A later attempt starts from scratch and can succeed.
	err = WaitForSDK(context.Background(), func() bool { return true })
	require.NoError(t, err)
}

func TestWaitForSDKHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := WaitForSDK(ctx, func() bool { return false })
	require.ErrorIs(t, err, context.Canceled)
}
