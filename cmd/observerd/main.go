// Observerd reduces writing-process events into per-student dashboards.
//
// Usage:
//
//	# Start the server with defaults (in-memory state)
//	observerd serve
//
//	# Configure via environment
//	OBSERVERD_STORE_BACKEND=redis OBSERVERD_SERVER_HTTP_PORT=9000 observerd serve
//
//	# Rebuild state from an event archive
//	observerd replay events.jsonl
//
//	# Watch one student live
//	observerd watch --user s-42
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "observerd",
		Short: "Writing-process event reduction server",
		Long: `observerd ingests interaction events from the writing-observer browser
extension, folds them into per-student analytics (time on task, attention,
typing speed, comments) and serves the results to dashboards.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/observerd/config.yaml)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newReplayCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "observerd by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
