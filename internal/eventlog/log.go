// Package eventlog provides the tamper-evident, append-only store for
// session events. Each append chains the new event to its predecessor's
// hash; the chain is verified externally by the verify package.
package eventlog

import (
	"context"
	"errors"

	"github.com/adaptco/tetris/internal/event"
)

// ErrSessionSealed is returned by appends once a terminal event (FAILED or
// FINALIZED) exists for the session. Append-after-terminal is a hard
// failure, never a silent drop.
var ErrSessionSealed = errors.New("eventlog: session sealed by terminal event")

// Entry is one event to append. Seq, hashes, and the timestamp are assigned
// by the log.
type Entry struct {
	State   event.StateTag
	Stage   event.Stage
	Payload event.Payload
}

// Log is the append-only event store for sessions.
//
// Read returns events in append order and reflects every prior successful
// append exactly once. An unknown session reads as an empty history.
type Log interface {
	// Append writes one event, assigning the next sequence number and
	// chaining it to the previous event's hash.
	Append(ctx context.Context, tenant, session string, e Entry) (event.Event, error)

	// AppendAll writes a batch of events in one transaction. Either every
	// entry becomes visible, in order, or none do: a reader never observes
	// a partial batch.
	AppendAll(ctx context.Context, tenant, session string, entries []Entry) ([]event.Event, error)

	// Read returns the full ordered history for a session.
	Read(ctx context.Context, tenant, session string) ([]event.Event, error)
}
