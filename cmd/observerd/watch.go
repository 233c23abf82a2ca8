package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fyrsmithlabs/observerd/internal/monitor"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var (
		server   string
		user     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show a live terminal dashboard for one student",
		Long: `Watch polls the dashboard endpoint of a running observerd and renders
time on task, per-document attention, typing speed and comment activity.

Press q to quit, r to refresh immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			model := monitor.NewModel(monitor.NewDashboardClient(server), server, user, interval)
			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err := p.Run()
			return err
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://127.0.0.1:8888", "observerd base URL")
	cmd.Flags().StringVar(&user, "user", "", "safe user id to watch")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval")
	return cmd
}
