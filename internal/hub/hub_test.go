package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace/statehub/internal/config"
	"github.com/streamspace/statehub/internal/engine"
	"github.com/streamspace/statehub/internal/ingest"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	now := func() float64 { return float64(time.Now().UnixNano()) / 1e9 }
	eng := engine.New(engine.Config{
		PlayerTimeoutSec:   5,
		EntityTimeoutSec:   5,
		WaypointTimeoutSec: 120,
		ClampWaypointTTL:   config.WaypointTTLRange,
		ClampQuickMarkCap:  config.QuickMarkCapRange,
	}, nil, now)
	decoder := ingest.New(ingest.Config{
		ClampWaypointTTL:  config.WaypointTTLRange,
		ClampQuickMarkCap: config.QuickMarkCapRange,
	}, now)
	return New(eng, decoder)
}

func TestSend_UnknownConnectionIsNotConnected(t *testing.T) {
	h := newTestHub(t)

	err := h.Send("no-such-conn", map[string]any{"type": "full_state"})
	require.Error(t, err)
	assert.Equal(t, errNotConnected, err)
}

func TestRegisterUnregister_RoundTrips(t *testing.T) {
	h := newTestHub(t)

	c := &conn{id: "conn-1", send: make(chan interface{}, sendBuffer)}
	h.register(c)

	h.mu.RLock()
	_, ok := h.conns["conn-1"]
	h.mu.RUnlock()
	require.True(t, ok)

	err := h.Send("conn-1", map[string]any{"type": "full_state"})
	assert.NoError(t, err)

	h.unregister(c)

	h.mu.RLock()
	_, ok = h.conns["conn-1"]
	h.mu.RUnlock()
	assert.False(t, ok)
}

func TestSend_FullBufferReportsSendBufferFull(t *testing.T) {
	h := newTestHub(t)

	c := &conn{id: "conn-2", send: make(chan interface{}, 1)}
	h.register(c)

	require.NoError(t, h.Send("conn-2", 1))
	err := h.Send("conn-2", 2)
	assert.Equal(t, errSendBufferFull, err)
}
