package ingest

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/observerd/internal/analysis"
	"github.com/fyrsmithlabs/observerd/internal/config"
	"github.com/fyrsmithlabs/observerd/internal/event"
	"github.com/fyrsmithlabs/observerd/internal/kvs"
	"github.com/fyrsmithlabs/observerd/internal/logging"
	"github.com/fyrsmithlabs/observerd/internal/stream"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type recordingPublisher struct {
	mu    sync.Mutex
	users []string
	last  stream.Projection
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, userID string, projection stream.Projection) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = append(p.users, userID)
	p.last = projection
	return p.err
}

func fixedClock(sec float64) func() time.Time {
	return func() time.Time {
		whole := math.Floor(sec)
		return time.Unix(int64(whole), int64((sec-whole)*1e9))
	}
}

func newTestService(t *testing.T, cfg config.IngestConfig, opts ...Option) (*Service, *kvs.MemoryStore) {
	t.Helper()
	store := kvs.NewMemoryStore()
	svc, err := NewService(store, analysis.Registrations(config.Default().Reducers), cfg, opts...)
	require.NoError(t, err)
	return svc, store
}

const keystroke = `{"client":{"event":"keystroke","ts":1000,"doc_id":"doc","frameindex":0,
	"keystroke":{"type":"keydown","keyCode":65}}}`

func TestSession_StampsServerTimeAndIdentity(t *testing.T) {
	pub := &recordingPublisher{}
	svc, store := newTestService(t, config.IngestConfig{MaxBatch: 10},
		WithPublisher(pub), WithClock(fixedClock(1700000000.5)))

	sess, err := svc.Open(event.WithUser("s-7"))
	require.NoError(t, err)
	defer sess.Close()

	out, err := sess.HandleEvent(context.Background(), []byte(keystroke))
	require.NoError(t, err)
	assert.InDelta(t, 1700000000.5, out["saved_ts"], 1e-6)

	_, err = store.Get(context.Background(), stream.BuildKey(analysis.TimeOnTaskID, "s-7", stream.Internal))
	assert.NoError(t, err)
	assert.Equal(t, []string{"s-7"}, pub.users)
	assert.Equal(t, out, pub.last)
}

func TestSession_KeepsClientServerTime(t *testing.T) {
	svc, _ := newTestService(t, config.IngestConfig{MaxBatch: 10}, WithClock(fixedClock(99)))
	sess, err := svc.Open(event.WithUser("s-7"))
	require.NoError(t, err)

	out, err := sess.HandleEvent(context.Background(),
		[]byte(`{"server":{"time":12},"client":{"event":"mouseclick","doc_id":"d"}}`))
	require.NoError(t, err)
	assert.Equal(t, 12.0, out["saved_ts"])
}

func TestSession_IgnoresClientSuppliedIdentity(t *testing.T) {
	svc, store := newTestService(t, config.IngestConfig{MaxBatch: 10})
	sess, err := svc.Open(event.WithUser("real"))
	require.NoError(t, err)

	_, err = sess.HandleEvent(context.Background(),
		[]byte(`{"client":{"event":"mouseclick","doc_id":"d"},"metadata":{"auth":{"safe_user_id":"spoofed"}}}`))
	require.NoError(t, err)

	_, err = store.Get(context.Background(), stream.BuildKey(analysis.AttentionID, "spoofed", stream.External))
	assert.ErrorIs(t, err, kvs.ErrNotFound)
	_, err = store.Get(context.Background(), stream.BuildKey(analysis.AttentionID, "real", stream.External))
	assert.NoError(t, err)
}

func TestSession_GuestFallback(t *testing.T) {
	svc, _ := newTestService(t, config.IngestConfig{MaxBatch: 10})
	sess, err := svc.Open(event.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, stream.GuestUserID, sess.UserID())
}

func TestSession_MalformedPayload(t *testing.T) {
	svc, _ := newTestService(t, config.IngestConfig{MaxBatch: 10})
	sess, err := svc.Open(event.WithUser("u"))
	require.NoError(t, err)

	_, err = sess.HandleEvent(context.Background(), []byte(`[1,2]`))
	assert.ErrorIs(t, err, event.ErrMalformed)
}

func TestSession_RateLimited(t *testing.T) {
	svc, _ := newTestService(t, config.IngestConfig{RateLimit: 0.001, Burst: 2, MaxBatch: 10})
	sess, err := svc.Open(event.WithUser("u"))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := sess.HandleEvent(ctx, []byte(keystroke))
		require.NoError(t, err)
	}
	_, err = sess.HandleEvent(ctx, []byte(keystroke))
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestSession_PublishFailureDoesNotFailEvent(t *testing.T) {
	tl := logging.NewTestLogger()
	pub := &recordingPublisher{err: errors.New("no responders")}
	svc, _ := newTestService(t, config.IngestConfig{MaxBatch: 10}, WithPublisher(pub), WithLogger(tl.Logger))

	sess, err := svc.Open(event.WithUser("u"))
	require.NoError(t, err)

	_, err = sess.HandleEvent(context.Background(), []byte(keystroke))
	assert.NoError(t, err)
	tl.AssertLogged(t, zapcore.WarnLevel, "projection not published")
	tl.AssertNoSecrets(t)
}

func TestSession_CloseTracksActiveSessions(t *testing.T) {
	m := stream.NewMetrics()
	svc, _ := newTestService(t, config.IngestConfig{MaxBatch: 10}, WithMetrics(m))

	before := testutil.ToFloat64(m.ActiveSessions)
	sess, err := svc.Open(event.WithUser("u"))
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(m.ActiveSessions))

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	assert.Equal(t, before, testutil.ToFloat64(m.ActiveSessions))

	_, err = sess.HandleEvent(context.Background(), []byte(keystroke))
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestService_Dashboard(t *testing.T) {
	svc, _ := newTestService(t, config.IngestConfig{MaxBatch: 10}, WithClock(fixedClock(50)))
	ctx := context.Background()

	empty, err := svc.Dashboard(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, empty)

	sess, err := svc.Open(event.WithUser("u"))
	require.NoError(t, err)
	_, err = sess.HandleEvent(ctx, []byte(keystroke))
	require.NoError(t, err)

	dash, err := svc.Dashboard(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 50.0, dash["saved_ts"])
	assert.Contains(t, dash, "attention")
	assert.Contains(t, dash, "typing_speed")
	assert.Contains(t, dash, "comments")
}

func TestNewService_RejectsBadRegistrations(t *testing.T) {
	regs := append(analysis.Registrations(config.Default().Reducers), analysis.Registrations(config.Default().Reducers)[0])
	_, err := NewService(kvs.NewMemoryStore(), regs, config.IngestConfig{})
	assert.ErrorIs(t, err, stream.ErrDuplicateReducer)

	_, err = NewService(nil, nil, config.IngestConfig{})
	assert.Error(t, err)
}
