package stream

import (
	"github.com/fyrsmithlabs/observerd/internal/event"
)

// Projection is the dashboard-safe view a reducer emits for one event.
type Projection map[string]any

// Reducer is a pure per-event transform over a reducer-defined state type.
//
// Reduce must not mutate ev, and must not mutate state in a way visible to
// the caller; implementations clone before changing nested maps. S must
// round-trip through encoding/json without loss.
type Reducer[S any] interface {
	// ID names the reducer in state keys. It must not contain ':'.
	ID() string
	// Namespace lists the top-level projection keys Reduce may emit.
	Namespace() []string
	// Initial is the state used when none has been stored yet.
	Initial() S
	Reduce(ev *event.Event, state S) (S, Projection)
}
