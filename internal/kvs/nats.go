package kvs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSStore keeps values in a JetStream key-value bucket.
//
// State keys contain ':' and arbitrary user ids, which the bucket key
// alphabet does not allow, so keys are stored base64url-encoded.
type NATSStore struct {
	kv nats.KeyValue
}

// NewNATSStore binds to bucket, creating it when missing.
func NewNATSStore(nc *nats.Conn, bucket string, ttl time.Duration) (*NATSStore, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucket,
			Description: "observerd reducer state",
			History:     1,
			TTL:         ttl,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("key-value bucket %q: %w", bucket, err)
	}
	return &NATSStore{kv: kv}, nil
}

func (n *NATSStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, err := n.kv.Get(encodeKey(key))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("nats kv get: %w", err)
	}
	return entry.Value(), nil
}

func (n *NATSStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.kv.Put(encodeKey(key), value); err != nil {
		return fmt.Errorf("nats kv put: %w", err)
	}
	return nil
}

// Close is a no-op; the connection belongs to the caller.
func (n *NATSStore) Close() error {
	return nil
}

func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}
