package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/graphsync/health"
	"github.com/c360/graphsync/syncworker"
)

func TestTrackSync(t *testing.T) {
	m := health.NewMonitor()
	track := trackSync(m)

	track(syncworker.Event{Type: syncworker.EvtSaveError, ID: "e1", Error: &syncworker.EventError{Message: "bad", Class: "invalid"}})
	_, ok := m.Get("sync")
	assert.False(t, ok, "invalid commands do not change health")

	track(syncworker.Event{Type: syncworker.EvtSyncError, ID: "e1", Error: &syncworker.EventError{
		Message: "fetch https://graph.example/graphql: timeout", Class: "transient",
	}})
	s, ok := m.Get("sync")
	require.True(t, ok)
	assert.True(t, s.IsDegraded())
	assert.Equal(t, "SYNC_ERROR e1: fetch [URL] timeout", s.Message)

	track(syncworker.Event{Type: syncworker.EvtSyncSuccess, ID: "e1"})
	s, _ = m.Get("sync")
	assert.True(t, s.Healthy)
}
