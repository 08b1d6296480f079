package workerregistry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRegistry_RegisterHeartbeatUnregister(t *testing.T) {
	r := NewInMemoryRegistry()

	require.NoError(t, r.Register("w1", map[string]string{"kind": "fast"}))
	snap := r.Snapshot()
	require.Contains(t, snap, "w1")

	ts := time.Now().Add(time.Minute)
	require.NoError(t, r.Heartbeat("w1", ts))
	assert.Equal(t, ts, r.Snapshot()["w1"])

	require.NoError(t, r.Unregister("w1"))
	assert.NotContains(t, r.Snapshot(), "w1")
}

func TestInMemoryRegistry_HeartbeatWithoutRegisterStillRecords(t *testing.T) {
	r := NewInMemoryRegistry()
	ts := time.Now()
	require.NoError(t, r.Heartbeat("unregistered", ts))
	assert.Equal(t, ts, r.Snapshot()["unregistered"])
}

func TestLogRegistry_NeverErrors(t *testing.T) {
	var r LogRegistry
	assert.NoError(t, r.Register("w1", map[string]string{"kind": "heavy"}))
	assert.NoError(t, r.Heartbeat("w1", time.Now()))
	assert.NoError(t, r.Unregister("w1"))
}
