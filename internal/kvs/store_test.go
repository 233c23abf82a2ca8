package kvs

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/observerd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "Internal:time_on_task:absent")
	require.ErrorIs(t, err, ErrNotFound)

	state := []byte(`{"saved_ts":1700000000.25,"total-time-on-task":8}`)
	require.NoError(t, s.Set(ctx, "Internal:time_on_task:u-1", state))

	got, err := s.Get(ctx, "Internal:time_on_task:u-1")
	require.NoError(t, err)
	assert.Equal(t, state, got)

	require.NoError(t, s.Set(ctx, "Internal:time_on_task:u-1", []byte(`{}`)))
	got, err = s.Get(ctx, "Internal:time_on_task:u-1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{}`), got)

	// Keys differing only in partition or user stay apart.
	require.NoError(t, s.Set(ctx, "External:time_on_task:u-1", []byte(`"ext"`)))
	require.NoError(t, s.Set(ctx, "Internal:time_on_task:[guest]", []byte(`"guest"`)))
	got, err = s.Get(ctx, "Internal:time_on_task:u-1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{}`), got)
	got, err = s.Get(ctx, "Internal:time_on_task:[guest]")
	require.NoError(t, err)
	assert.Equal(t, []byte(`"guest"`), got)
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), config.Default().Store, nil)
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.(*MemoryStore)
	assert.True(t, ok)
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := config.Default().Store
	cfg.Backend = "etcd"

	_, err := Open(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestOpen_NATSRequiresConnection(t *testing.T) {
	cfg := config.Default().Store
	cfg.Backend = config.BackendNATS

	_, err := Open(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a connection")
}
