package resource

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	// Test with limit
	c := NewController(Config{MemoryLimitBytes: 100})

	// Reserve 50
	require.NoError(t, c.ReserveMemory(50))
	assert.Equal(t, int64(50), c.MemoryUsage())

	// Reserve 40
	require.NoError(t, c.ReserveMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Reserve 20 (should fail - limit exceeded)
	assert.ErrorIs(t, c.ReserveMemory(20), ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Release 50
	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	// Now Reserve 20 should succeed
	require.NoError(t, c.ReserveMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_MemoryLargerThanLimit(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	assert.ErrorIs(t, c.ReserveMemory(101), ErrMemoryLimitExceeded)
	assert.Zero(t, c.MemoryUsage())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 0})

	require.NoError(t, c.ReserveMemory(1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
	assert.Zero(t, c.MemoryLimit())
}

func TestController_Builds(t *testing.T) {
	c := NewController(Config{MaxConcurrentBuilds: 2})

	// Acquire 2
	require.NoError(t, c.AcquireBuild(t.Context()))
	require.NoError(t, c.AcquireBuild(t.Context()))

	// Try 3rd
	assert.False(t, c.TryAcquireBuild())

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireBuild(ctx), context.DeadlineExceeded)

	// Release 1
	c.ReleaseBuild()

	// Try 3rd again
	assert.True(t, c.TryAcquireBuild())
}

func TestController_DefaultBuilds(t *testing.T) {
	c := NewController(Config{})

	assert.True(t, c.TryAcquireBuild())
	assert.False(t, c.TryAcquireBuild())
	c.ReleaseBuild()
}

func TestController_IO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1000})

	assert.Equal(t, 1000, c.IOBurst())
	assert.True(t, c.TryAcquireIO(1000))
	assert.False(t, c.TryAcquireIO(1000))

	unlimited := NewController(Config{})
	assert.Zero(t, unlimited.IOBurst())
	assert.True(t, unlimited.TryAcquireIO(1<<30))
	require.NoError(t, unlimited.AcquireIO(t.Context(), 1<<30))
}

func TestController_Nil(t *testing.T) {
	var c *Controller

	require.NoError(t, c.ReserveMemory(1<<40))
	c.ReleaseMemory(1 << 40)
	assert.Zero(t, c.MemoryUsage())
	assert.Zero(t, c.MemoryLimit())
	require.NoError(t, c.AcquireBuild(t.Context()))
	assert.True(t, c.TryAcquireBuild())
	c.ReleaseBuild()
	require.NoError(t, c.AcquireIO(t.Context(), 10))
	assert.True(t, c.TryAcquireIO(10))
	assert.Zero(t, c.IOBurst())
}

func TestRateLimitedReader(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	data := bytes.Repeat([]byte{7}, 3<<20)
	r := NewRateLimitedReader(t.Context(), bytes.NewReader(data[:1<<19]), c)

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data[:1<<19], out)
}

func TestRateLimitedReader_Canceled(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 10})
	require.True(t, c.TryAcquireIO(10))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	r := NewRateLimitedReader(ctx, bytes.NewReader([]byte("hello")), c)
	_, err := r.Read(make([]byte, 5))
	assert.Error(t, err)
}
