package ingest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/fyrsmithlabs/observerd/internal/stream"
	"github.com/nats-io/nats.go"
)

// Publisher delivers merged projections to live dashboards.
type Publisher interface {
	Publish(ctx context.Context, userID string, projection stream.Projection) error
}

// Subject returns the NATS subject projections for userID are published on.
// Safe user ids may contain '.', '*' or '>', so the id is encoded as one token.
func Subject(prefix, userID string) string {
	return prefix + "." + base64.RawURLEncoding.EncodeToString([]byte(userID))
}

// NATSPublisher publishes projections as JSON on core NATS subjects.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSPublisher returns a publisher writing under prefix.
func NewNATSPublisher(nc *nats.Conn, prefix string) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: prefix}
}

func (p *NATSPublisher) Publish(ctx context.Context, userID string, projection stream.Projection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(projection)
	if err != nil {
		return fmt.Errorf("marshal projection: %w", err)
	}
	if err := p.nc.Publish(Subject(p.prefix, userID), data); err != nil {
		return fmt.Errorf("publish projection: %w", err)
	}
	return nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, stream.Projection) error { return nil }
