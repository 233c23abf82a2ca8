package kvs

import (
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
)

// EmbeddedOptions configures an in-process NATS server.
type EmbeddedOptions struct {
	// Port to listen on; -1 picks a free one.
	Port int
	// StoreDir holds JetStream data. Empty uses a temp dir.
	StoreDir string
	// ReadyTimeout bounds startup.
	ReadyTimeout time.Duration
}

// StartEmbeddedNATS runs a JetStream-enabled NATS server inside the process
// for single-node deployments. Callers own Shutdown.
func StartEmbeddedNATS(opts EmbeddedOptions) (*natsserver.Server, error) {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 5 * time.Second
	}
	if opts.Port == 0 {
		opts.Port = -1
	}

	ns, err := natsserver.NewServer(&natsserver.Options{
		Host:      "127.0.0.1",
		Port:      opts.Port,
		NoLog:     true,
		NoSigs:    true,
		JetStream: true,
		StoreDir:  opts.StoreDir,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded nats: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(opts.ReadyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats not ready after %s", opts.ReadyTimeout)
	}
	return ns, nil
}
