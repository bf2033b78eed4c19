package main

import (
	"fmt"

	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/health"
	"github.com/c360/graphsync/syncworker"
)

// trackSync reports the worker as degraded after a transient or fatal
// failure and healthy again after the next success. Rejected commands
// (invalid class) say nothing about the remote and are ignored.
func trackSync(m *health.Monitor) func(syncworker.Event) {
	return func(e syncworker.Event) {
		switch e.Type {
		case syncworker.EvtSyncError, syncworker.EvtSaveError, syncworker.EvtDeleteError:
			if e.Error == nil || e.Error.Class == errors.ErrorInvalid.String() {
				return
			}
			m.Update("sync", health.NewDegraded("sync", fmt.Sprintf("%s %s: %s", e.Type, e.ID, e.Error.Message)))
		case syncworker.EvtSyncSuccess, syncworker.EvtSaveSuccess, syncworker.EvtDeleteSuccess:
			if s, ok := m.Get("sync"); !ok || !s.Healthy {
				m.SetHealthy("sync", true, "last operation succeeded")
			}
		}
	}
}
