package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/fyrsmithlabs/observerd/internal/event"
	"github.com/fyrsmithlabs/observerd/internal/kvs"
)

// counterState is a minimal reducer state.
type counterState struct {
	N    int      `json:"n"`
	Seen []string `json:"seen"`
}

// counter counts events and projects under one key.
type counter struct {
	id  string
	key string
}

func (c counter) ID() string          { return c.id }
func (c counter) Namespace() []string { return []string{c.key} }
func (c counter) Initial() counterState {
	return counterState{Seen: []string{}}
}

func (c counter) Reduce(ev *event.Event, s counterState) (counterState, Projection) {
	s.N++
	s.Seen = append(append([]string(nil), s.Seen...), ev.Client.Event)
	return s, Projection{c.key: s.N}
}

// leaky emits a key it never declared.
type leaky struct{}

func (leaky) ID() string          { return "leaky" }
func (leaky) Namespace() []string { return []string{"declared"} }
func (leaky) Initial() int        { return 0 }
func (leaky) Reduce(_ *event.Event, s int) (int, Projection) {
	return s + 1, Projection{"declared": s, "surprise": true}
}

// faultyStore fails Get or Set for keys in the fail sets.
type faultyStore struct {
	*kvs.MemoryStore
	mu      sync.Mutex
	failGet map[string]bool
	failSet map[string]bool
	sets    []string
}

var errBoom = errors.New("boom")

func newFaultyStore() *faultyStore {
	return &faultyStore{
		MemoryStore: kvs.NewMemoryStore(),
		failGet:     map[string]bool{},
		failSet:     map[string]bool{},
	}
}

func (f *faultyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGet[key] {
		return nil, errBoom
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *faultyStore) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	f.sets = append(f.sets, key)
	f.mu.Unlock()
	if f.failSet[key] {
		return errBoom
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func ev(kind string) *event.Event {
	return &event.Event{Client: event.Client{Event: kind}}
}
