package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/observerd/internal/event"
	"github.com/fyrsmithlabs/observerd/internal/kvs"
)

// Processor runs one reducer for one user against a store.
type Processor interface {
	ReducerID() string
	Namespace() []string
	Process(ctx context.Context, ev *event.Event) (Projection, error)
}

// ReducerProcessor binds a Reducer to a user and a store.
type ReducerProcessor[S any] struct {
	reducer     Reducer[S]
	userID      string
	store       kvs.Store
	internalKey string
	externalKey string
}

// NewProcessor binds r to userID and store. An empty userID becomes GuestUserID.
func NewProcessor[S any](r Reducer[S], userID string, store kvs.Store) *ReducerProcessor[S] {
	if userID == "" {
		userID = GuestUserID
	}
	return &ReducerProcessor[S]{
		reducer:     r,
		userID:      userID,
		store:       store,
		internalKey: BuildKey(r.ID(), userID, Internal),
		externalKey: BuildKey(r.ID(), userID, External),
	}
}

func (p *ReducerProcessor[S]) ReducerID() string   { return p.reducer.ID() }
func (p *ReducerProcessor[S]) Namespace() []string { return p.reducer.Namespace() }

// Process reads internal state, reduces, writes both partitions and returns
// the projection. There is no lock between the read and the writes.
func (p *ReducerProcessor[S]) Process(ctx context.Context, ev *event.Event) (Projection, error) {
	state, err := p.State(ctx)
	if err != nil {
		return nil, err
	}

	next, projection := p.reducer.Reduce(ev, state)

	internal, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.internalKey, err)
	}
	if err := p.store.Set(ctx, p.internalKey, internal); err != nil {
		return nil, fmt.Errorf("store set %s: %w", p.internalKey, err)
	}

	external, err := json.Marshal(projection)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.externalKey, err)
	}
	if err := p.store.Set(ctx, p.externalKey, external); err != nil {
		return nil, fmt.Errorf("store set %s: %w", p.externalKey, err)
	}

	return projection, nil
}

// State returns the stored internal state, or the reducer's initial state
// when nothing has been stored.
func (p *ReducerProcessor[S]) State(ctx context.Context) (S, error) {
	raw, err := p.store.Get(ctx, p.internalKey)
	if errors.Is(err, kvs.ErrNotFound) {
		return p.reducer.Initial(), nil
	}
	if err != nil {
		var zero S
		return zero, fmt.Errorf("store get %s: %w", p.internalKey, err)
	}

	state := p.reducer.Initial()
	if err := json.Unmarshal(raw, &state); err != nil {
		var zero S
		return zero, fmt.Errorf("decode %s: %w", p.internalKey, err)
	}
	return state, nil
}

// Registration is a type-erased Reducer that a Pipeline can instantiate.
type Registration struct {
	id        string
	namespace []string
	bind      func(userID string, store kvs.Store) Processor
}

// Register wraps r for use in a Pipeline.
func Register[S any](r Reducer[S]) Registration {
	return Registration{
		id:        r.ID(),
		namespace: r.Namespace(),
		bind: func(userID string, store kvs.Store) Processor {
			return NewProcessor(r, userID, store)
		},
	}
}

func (r Registration) ID() string          { return r.id }
func (r Registration) Namespace() []string { return r.namespace }
