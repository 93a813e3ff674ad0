package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	l, err := New(Config{Host: mr.Host(), Port: mr.Port(), Enabled: true}, limit, window)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, mr
}

func TestDisabled_AlwaysAllows(t *testing.T) {
	l, err := New(Config{Enabled: false}, 1, time.Minute)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		allowed, err := l.Allow(context.Background(), "admin:127.0.0.1")
		assert.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestAllow_EnforcesWindowLimit(t *testing.T) {
	l, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := l.Allow(ctx, "admin:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i)
	}

	allowed, err := l.Allow(ctx, "admin:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed, "4th request should be rejected")
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	allowed, err := l.Allow(ctx, "admin:1.1.1.1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = l.Allow(ctx, "admin:2.2.2.2")
	require.NoError(t, err)
	assert.True(t, allowed, "a different key should have its own window")
}

func TestAllow_WindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, 1, time.Second)
	ctx := context.Background()

	allowed, err := l.Allow(ctx, "admin:9.9.9.9")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = l.Allow(ctx, "admin:9.9.9.9")
	require.NoError(t, err)
	assert.False(t, allowed)

	mr.FastForward(2 * time.Second)

	allowed, err = l.Allow(ctx, "admin:9.9.9.9")
	require.NoError(t, err)
	assert.True(t, allowed, "window should have reset after expiry")
}
