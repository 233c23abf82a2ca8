package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextFields_AllIDs(t *testing.T) {
	ctx := context.Background()
	ctx = WithUserID(ctx, "[guest]")
	ctx = WithSessionID(ctx, "sess-1")
	ctx = WithDocumentID(ctx, "1A2b_c")
	ctx = WithRequestID(ctx, "req_9")

	keys := map[string]string{}
	for _, f := range ContextFields(ctx) {
		keys[f.Key] = f.String
	}
	assert.Equal(t, map[string]string{
		"user.id":    "[guest]",
		"session.id": "sess-1",
		"doc.id":     "1A2b_c",
		"request.id": "req_9",
	}, keys)
}

func TestWithUserID_DropsUnloggable(t *testing.T) {
	ctx := WithUserID(context.Background(), strings.Repeat("u", maxIDLen+1))
	assert.Empty(t, UserIDFromContext(ctx))

	ctx = WithDocumentID(context.Background(), "")
	assert.Empty(t, DocumentIDFromContext(ctx))
}

func TestWithSessionID_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { WithSessionID(context.Background(), "") })
	assert.Panics(t, func() { WithSessionID(context.Background(), "has space") })
	assert.Panics(t, func() { WithRequestID(context.Background(), "a/b") })
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	assert.Same(t, tl.Logger, FromContext(ctx))
}
