package stream

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_AbsentStateUsesInitial(t *testing.T) {
	store := newFaultyStore()
	p := NewProcessor[counterState](counter{id: "count", key: "count"}, "u-1", store)

	state, err := p.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, counterState{Seen: []string{}}, state)

	proj, err := p.Process(context.Background(), ev("keystroke"))
	require.NoError(t, err)
	assert.Equal(t, Projection{"count": 1}, proj)
}

func TestProcessor_PersistsBothPartitions(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	p := NewProcessor[counterState](counter{id: "count", key: "count"}, "u-1", store)

	_, err := p.Process(ctx, ev("keystroke"))
	require.NoError(t, err)
	_, err = p.Process(ctx, ev("mouseclick"))
	require.NoError(t, err)

	internal, err := store.Get(ctx, "Internal:count:u-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2,"seen":["keystroke","mouseclick"]}`, string(internal))

	external, err := store.Get(ctx, "External:count:u-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":2}`, string(external))

	assert.Equal(t, []string{
		"Internal:count:u-1", "External:count:u-1",
		"Internal:count:u-1", "External:count:u-1",
	}, store.sets)
}

func TestProcessor_StateRereadIsStructurallyEqual(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	p := NewProcessor[counterState](counter{id: "count", key: "count"}, "u-1", store)

	for _, kind := range []string{"a", "b", "c"} {
		_, err := p.Process(ctx, ev(kind))
		require.NoError(t, err)
	}

	state, err := p.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, counterState{N: 3, Seen: []string{"a", "b", "c"}}, state)
}

func TestProcessor_GuestFallback(t *testing.T) {
	p := NewProcessor[counterState](counter{id: "count", key: "count"}, "", newFaultyStore())
	assert.Equal(t, "Internal:count:[guest]", p.internalKey)
	assert.Equal(t, "External:count:[guest]", p.externalKey)
}

func TestProcessor_StoreErrorsPropagate(t *testing.T) {
	ctx := context.Background()

	t.Run("get", func(t *testing.T) {
		store := newFaultyStore()
		store.failGet["Internal:count:u"] = true
		p := NewProcessor[counterState](counter{id: "count", key: "count"}, "u", store)

		_, err := p.Process(ctx, ev("x"))
		require.ErrorIs(t, err, errBoom)
		assert.Contains(t, err.Error(), "Internal:count:u")
		assert.Empty(t, store.sets)
	})

	t.Run("internal set", func(t *testing.T) {
		store := newFaultyStore()
		store.failSet["Internal:count:u"] = true
		p := NewProcessor[counterState](counter{id: "count", key: "count"}, "u", store)

		_, err := p.Process(ctx, ev("x"))
		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, []string{"Internal:count:u"}, store.sets)
	})

	t.Run("external set", func(t *testing.T) {
		store := newFaultyStore()
		store.failSet["External:count:u"] = true
		p := NewProcessor[counterState](counter{id: "count", key: "count"}, "u", store)

		_, err := p.Process(ctx, ev("x"))
		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, []string{"Internal:count:u", "External:count:u"}, store.sets)
	})
}

func TestProcessor_CorruptState(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	require.NoError(t, store.Set(ctx, "Internal:count:u", []byte(`{"n":"many"}`)))
	p := NewProcessor[counterState](counter{id: "count", key: "count"}, "u", store)

	_, err := p.Process(ctx, ev("x"))
	require.Error(t, err)
	var typeErr *json.UnmarshalTypeError
	assert.ErrorAs(t, err, &typeErr)
}

func TestRegister(t *testing.T) {
	reg := Register[counterState](counter{id: "count", key: "count"})
	assert.Equal(t, "count", reg.ID())
	assert.Equal(t, []string{"count"}, reg.Namespace())

	proc := reg.bind("u", newFaultyStore())
	assert.Equal(t, "count", proc.ReducerID())
}
