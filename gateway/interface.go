package gateway

import (
	"context"
	"time"

	"github.com/c360/graphsync/syncworker"
)

// Submitter accepts commands. *syncworker.Worker satisfies it.
type Submitter interface {
	Submit(cmd syncworker.Command) error
}

// Bridge exposes the command and event surface over one transport.
// Deliver is registered as a worker sink, so it is called from worker
// goroutines and must not block for long.
type Bridge interface {
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
	Deliver(e syncworker.Event)
}
