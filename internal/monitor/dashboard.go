package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
)

// Fetcher loads a user's dashboard.
type Fetcher interface {
	Fetch(ctx context.Context, userID string) (Snapshot, error)
}

// Model is the watch dashboard for one user.
type Model struct {
	fetcher    Fetcher
	source     string
	user       string
	interval   time.Duration
	lastUpdate time.Time
	snapshot   Snapshot
	err        error
	quitting   bool

	speedHistory []float64
	timeHistory  []float64

	visibleProgress progress.Model
}

// k9s-like palette.
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard polling fetcher every interval. source is
// only displayed.
func NewModel(fetcher Fetcher, source, user string, interval time.Duration) Model {
	return Model{
		fetcher:      fetcher,
		source:       source,
		user:         user,
		interval:     interval,
		speedHistory: make([]float64, 0, historySize),
		timeHistory:  make([]float64, 0, historySize),
		visibleProgress: progress.New(
			progress.WithGradient("#ff0000", "#00ff00"),
			progress.WithWidth(20),
		),
	}
}

// focusBadge renders a document's focus state.
func focusBadge(inFocus bool) string {
	if inFocus {
		return healthyStyle.Render("[✓ focused]")
	}
	return warningStyle.Render("[⚠ away]")
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

// createSparkline creates a sparkline chart from historical data
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	return sparklineStyle.Render(spark.View())
}

type tickMsg time.Time
type snapshotMsg Snapshot
type errMsg error

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchSnapshot(m.fetcher, m.user),
	)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshot(f Fetcher, user string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		snap, err := f.Fetch(ctx, user)
		if err != nil {
			return errMsg(err)
		}
		return snapshotMsg(snap)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchSnapshot(m.fetcher, m.user)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchSnapshot(m.fetcher, m.user),
		)

	case snapshotMsg:
		snap := Snapshot(msg)
		m.snapshot = snap
		m.speedHistory = appendToHistory(m.speedHistory, snap.CharsPerSecond())
		m.timeHistory = appendToHistory(m.timeHistory, snap.TimeOnTask)
		m.lastUpdate = time.Now()
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return m.renderError()
	}
	return m.renderDashboard()
}

func (m Model) renderError() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(" observerd watch ") + "\n\n")
	b.WriteString(errorStyle.Render("⚠ Cannot read dashboard") + "\n\n")
	b.WriteString(dimStyle.Render("Server: ") + valueStyle.Render(m.source) + "\n")
	b.WriteString(dimStyle.Render("User: ") + valueStyle.Render(m.user) + "\n")
	b.WriteString(dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n\n")
	b.WriteString(footerStyle.Render("[q] quit  [r] retry") + "\n")
	return containerStyle.Render(b.String())
}

func (m Model) renderDashboard() string {
	var b strings.Builder
	snap := m.snapshot

	lastUpdate := "never"
	if !m.lastUpdate.IsZero() {
		lastUpdate = m.lastUpdate.Format("3:04:05 PM")
	}
	b.WriteString(headerStyle.Render(" observerd watch ") + "\n")
	b.WriteString(labelStyle.Render("User: ") + valueStyle.Render(m.user) +
		"   " + dimStyle.Render(lastUpdate) + "\n")

	b.WriteString("\n" + sectionStyle.Render("┃ Activity") + "\n")
	b.WriteString(labelStyle.Render("  Time on task: ") +
		valueStyle.Render(FormatDuration(snap.TimeOnTask)) +
		"   " + createSparkline(m.timeHistory) + "\n")
	b.WriteString(labelStyle.Render("  Typing speed: ") +
		valueStyle.Render(FormatSpeed(snap.CharsPerSecond())) +
		"   " + createSparkline(m.speedHistory) + "\n")

	b.WriteString("\n" + sectionStyle.Render("┃ Documents") + "\n")
	docs := sortedKeys(snap.Attention)
	if len(docs) == 0 {
		b.WriteString(dimStyle.Render("  no documents yet") + "\n")
	}
	for _, id := range docs {
		doc := snap.Attention[id]
		visible := 0
		for _, f := range doc.Frameset {
			if f.Visible {
				visible++
			}
		}
		ratio := VisibleRatio(visible, len(doc.Frameset))
		b.WriteString("  " + valueStyle.Render(id) + " " + focusBadge(doc.InFocus) + "\n")
		b.WriteString(labelStyle.Render("    Visible: ") +
			m.visibleProgress.ViewAs(ratio) + " " +
			dimStyle.Render(fmt.Sprintf("%d/%d frames (%s)", visible, len(doc.Frameset), FormatPercentage(ratio))) + "\n")
	}

	b.WriteString("\n" + sectionStyle.Render("┃ Comments") + "\n")
	commented := sortedKeys(snap.Comments)
	if len(commented) == 0 {
		b.WriteString(dimStyle.Render("  none") + "\n")
	}
	for _, id := range commented {
		c := snap.Comments[id]
		b.WriteString("  " + valueStyle.Render(id) + " " +
			labelStyle.Render("comments: ") + valueStyle.Render(fmt.Sprint(c.CommentCount)) + "  " +
			labelStyle.Render("replies: ") + valueStyle.Render(fmt.Sprint(c.ReplyCount)) + "\n")
	}

	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))
	b.WriteString("\n" + footer)

	return containerStyle.Render(b.String())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
