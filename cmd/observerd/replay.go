package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fyrsmithlabs/observerd/internal/analysis"
	"github.com/fyrsmithlabs/observerd/internal/config"
	"github.com/fyrsmithlabs/observerd/internal/event"
	"github.com/fyrsmithlabs/observerd/internal/ingest"
	"github.com/fyrsmithlabs/observerd/internal/kvs"
	"github.com/fyrsmithlabs/observerd/internal/logging"
	"github.com/fyrsmithlabs/observerd/internal/stream"
	"github.com/spf13/cobra"
)

// maxLine bounds one archived event.
const maxLine = 4 << 20

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <events.jsonl>",
		Short: "Fold an event archive and print the resulting dashboards",
		Long: `Replay reads one JSON event per line, routes each to a session for its
metadata.auth.safe_user_id (events without one go to the guest user) and
prints the final dashboard projection of every user as JSON.

The archive is folded from empty state, then every replayed user's state
overwrites what the configured store holds for them. Running replay again
over the same archive leaves the store unchanged, so it can rebuild a store
after lost updates.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithFile(configPath)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open archive: %w", err)
			}
			defer f.Close()

			deps, err := initDependencies(cmd.Context(), cfg, logging.NewNop())
			if err != nil {
				return err
			}
			defer deps.Close()
			return replay(cmd.Context(), cfg, deps.store, f, cmd.OutOrStdout())
		},
	}
}

// replay folds every event in r from empty state, overwrites the state of
// each replayed user in target and writes {user: projection} to w. Users
// absent from the archive keep whatever target already holds.
func replay(ctx context.Context, cfg *config.Config, target kvs.Store, r io.Reader, w io.Writer) error {
	ingestCfg := cfg.Ingest
	ingestCfg.RateLimit = 0

	scratch := kvs.NewMemoryStore()
	defer scratch.Close()

	svc, err := ingest.NewService(scratch, analysis.Registrations(cfg.Reducers), ingestCfg)
	if err != nil {
		return err
	}

	sessions := make(map[string]*ingest.Session)
	defer func() {
		for _, s := range sessions {
			_ = s.Close()
		}
	}()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		ev, err := event.Decode(raw)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		user := ev.Metadata.UserID()
		if user == "" {
			user = stream.GuestUserID
		}
		sess, ok := sessions[user]
		if !ok {
			sess, err = svc.Open(event.WithUser(user))
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			sessions[user] = sess
		}
		if _, err := sess.Handle(ctx, ev); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("line %d: %w", line+1, err)
	}

	out := make(map[string]stream.Projection, len(sessions))
	for user := range sessions {
		projection, err := svc.Dashboard(ctx, user)
		if err != nil {
			return fmt.Errorf("dashboard for %s: %w", user, err)
		}
		out[user] = projection
	}

	if _, err := scratch.CopyTo(ctx, target); err != nil {
		return fmt.Errorf("write replayed state: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
