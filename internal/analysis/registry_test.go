package analysis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fyrsmithlabs/observerd/internal/config"
	"github.com/fyrsmithlabs/observerd/internal/event"
	"github.com/fyrsmithlabs/observerd/internal/kvs"
	"github.com/fyrsmithlabs/observerd/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReducersConfig() config.ReducersConfig {
	return config.ReducersConfig{
		TimeOnTaskThreshold: config.Duration(5 * time.Second),
		TypingThreshold:     config.Duration(2 * time.Second),
		DefaultFrames:       4,
	}
}

func TestRegistrations_Order(t *testing.T) {
	regs := Registrations(testReducersConfig())

	ids := make([]string, len(regs))
	for i, reg := range regs {
		ids[i] = reg.ID()
	}
	assert.Equal(t, []string{TimeOnTaskID, AttentionID, TypingSpeedID, CommentsID}, ids)
	assert.NoError(t, stream.ValidateRegistrations(regs))
}

func TestDefaultFrameIDs(t *testing.T) {
	assert.Equal(t, []string{"0", "1", "2"}, DefaultFrameIDs(3))
	assert.Empty(t, DefaultFrameIDs(0))
}

func TestClampedDelta(t *testing.T) {
	assert.Equal(t, 3.0, clampedDelta(13, 10, 5))
	assert.Equal(t, 5.0, clampedDelta(30, 10, 5))
	assert.Equal(t, 0.0, clampedDelta(9, 10, 5))
}

func TestPipeline_WritingReducersEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := kvs.NewMemoryStore()

	p, err := stream.NewPipeline(event.WithUser("s-1"), store, Registrations(testReducersConfig()))
	require.NoError(t, err)

	var out stream.Projection
	for i, code := range []int{72, 73, 32} {
		ev := keydown("doc", "0", float64(1000+100*i), code)
		ev.StampServerTime(float64(100 + i))
		out, err = p.Process(ctx, ev)
		require.NoError(t, err)
	}

	assert.ElementsMatch(t,
		[]string{"saved_ts", "total-time-on-task", "attention", "typing_speed", "comments"},
		keysOf(out))
	assert.Equal(t, 2.0, out["total-time-on-task"])

	raw, err := store.Get(ctx, stream.BuildKey(TypingSpeedID, "s-1", stream.Internal))
	require.NoError(t, err)
	var typing TypingState
	require.NoError(t, json.Unmarshal(raw, &typing))
	assert.Equal(t, 1, typing["doc"].Frameset["0"].NWordInternalKeystrokes)

	_, err = store.Get(ctx, stream.BuildKey(CommentsID, "s-1", stream.External))
	assert.NoError(t, err)
}

func keysOf(p stream.Projection) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	return keys
}
