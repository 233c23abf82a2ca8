package stream

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/fyrsmithlabs/observerd/internal/event"
	"github.com/fyrsmithlabs/observerd/internal/kvs"
	"github.com/fyrsmithlabs/observerd/internal/logging"
	"github.com/fyrsmithlabs/observerd/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// shadow shares its key with counter so merges can be observed.
type shadow struct{ counter }

func (s shadow) Reduce(e *event.Event, st counterState) (counterState, Projection) {
	st, _ = s.counter.Reduce(e, st)
	return st, Projection{s.key: "shadow"}
}

func TestNewPipeline_ValidatesRegistrations(t *testing.T) {
	store := newFaultyStore()
	md := event.WithUser("u")

	_, err := NewPipeline(md, store, []Registration{
		Register[counterState](counter{id: "a", key: "shared"}),
		Register[counterState](counter{id: "b", key: "shared"}),
	})
	assert.ErrorIs(t, err, ErrNamespaceConflict)

	_, err = NewPipeline(md, store, []Registration{
		Register[counterState](counter{id: "a", key: "x"}),
		Register[counterState](counter{id: "a", key: "y"}),
	})
	assert.ErrorIs(t, err, ErrDuplicateReducer)

	_, err = NewPipeline(md, store, []Registration{
		Register[counterState](counter{id: "bad:id", key: "x"}),
	})
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestPipeline_MergesInRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()

	p, err := NewPipeline(event.WithUser("u"), store, []Registration{
		Register[counterState](counter{id: "first", key: "first"}),
		Register[counterState](counter{id: "second", key: "second"}),
	})
	require.NoError(t, err)

	out, err := p.Process(ctx, ev("keystroke"))
	require.NoError(t, err)
	assert.Equal(t, Projection{"first": 1, "second": 1}, out)
	assert.Equal(t, []string{
		"Internal:first:u", "External:first:u",
		"Internal:second:u", "External:second:u",
	}, store.sets)
}

func TestPipeline_LastWriteWinsStillPersistsLoser(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()

	// Bypass namespace validation to exercise the merge rule directly.
	p, err := NewPipeline(event.WithUser("u"), store, nil)
	require.NoError(t, err)
	p.processors = []Processor{
		NewProcessor[counterState](counter{id: "winner", key: "k"}, "u", store),
		NewProcessor[counterState](shadow{counter{id: "late", key: "k"}}, "u", store),
	}

	out, err := p.Process(ctx, ev("x"))
	require.NoError(t, err)
	assert.Equal(t, Projection{"k": "shadow"}, out)

	ext, err := store.Get(ctx, "External:winner:u")
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":1}`, string(ext))
}

func TestPipeline_DeterministicOutput(t *testing.T) {
	run := func() []byte {
		store := newFaultyStore()
		p, err := NewPipeline(event.WithUser("u"), store, []Registration{
			Register[counterState](counter{id: "z", key: "z"}),
			Register[counterState](counter{id: "a", key: "a"}),
			Register[counterState](counter{id: "m", key: "m"}),
		})
		require.NoError(t, err)

		var out Projection
		for _, kind := range []string{"keystroke", "attention", "mouseclick"} {
			out, err = p.Process(context.Background(), ev(kind))
			require.NoError(t, err)
		}
		b, err := json.Marshal(out)
		require.NoError(t, err)
		return b
	}
	assert.Equal(t, run(), run())
}

func TestPipeline_UndeclaredKeyAfterPersist(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()

	p, err := NewPipeline(event.WithUser("u"), store, []Registration{
		Register[int](leaky{}),
		Register[counterState](counter{id: "after", key: "after"}),
	})
	require.NoError(t, err)

	_, err = p.Process(ctx, ev("x"))
	require.ErrorIs(t, err, ErrUndeclaredKey)

	_, getErr := store.Get(ctx, "Internal:leaky:u")
	assert.NoError(t, getErr)
	_, getErr = store.Get(ctx, "Internal:after:u")
	assert.ErrorIs(t, getErr, kvs.ErrNotFound)
}

func TestPipeline_StoreErrorAborts(t *testing.T) {
	store := newFaultyStore()
	store.failSet["External:first:u"] = true

	p, err := NewPipeline(event.WithUser("u"), store, []Registration{
		Register[counterState](counter{id: "first", key: "first"}),
		Register[counterState](counter{id: "second", key: "second"}),
	})
	require.NoError(t, err)

	_, err = p.Process(context.Background(), ev("x"))
	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "reducer first")
	assert.NotContains(t, store.sets, "Internal:second:u")
}

func TestPipeline_GuestFallbackLogsWarning(t *testing.T) {
	tl := logging.NewTestLogger()
	p, err := NewPipeline(event.Metadata{}, newFaultyStore(), []Registration{
		Register[counterState](counter{id: "c", key: "c"}),
	}, WithLogger(tl.Logger))
	require.NoError(t, err)

	assert.Equal(t, GuestUserID, p.UserID())
	tl.AssertLogged(t, zapcore.WarnLevel, "guest")
}

func TestPipeline_SpansAndMetrics(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	m := NewMetrics()
	before := testutil.ToFloat64(m.EventsProcessed.WithLabelValues("traced"))

	p, err := NewPipeline(event.WithUser("u"), newFaultyStore(), []Registration{
		Register[counterState](counter{id: "traced", key: "traced"}),
	}, WithTracer(tt.Tracer(InstrumentationName)), WithMetrics(m))
	require.NoError(t, err)

	_, err = p.Process(context.Background(), ev("x"))
	require.NoError(t, err)

	tt.AssertSpanExists(t, "stream.process")
	tt.AssertSpanAttribute(t, "stream.reduce", "stream.reducer", "traced")
	assert.Equal(t, before+1, testutil.ToFloat64(m.EventsProcessed.WithLabelValues("traced")))
	assert.Greater(t, testutil.CollectAndCount(m.StoreOpDuration), 0)
}

func TestPipeline_ReducerErrorCounted(t *testing.T) {
	m := NewMetrics()
	before := testutil.ToFloat64(m.ReducerErrors.WithLabelValues("leaky"))

	p, err := NewPipeline(event.WithUser("u"), newFaultyStore(), []Registration{Register[int](leaky{})}, WithMetrics(m))
	require.NoError(t, err)
	_, err = p.Process(context.Background(), ev("x"))
	require.Error(t, err)

	assert.Equal(t, before+1, testutil.ToFloat64(m.ReducerErrors.WithLabelValues("leaky")))
}
