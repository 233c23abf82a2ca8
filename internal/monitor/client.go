package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/observerd/internal/analysis"
)

// Snapshot is one user's merged dashboard projection.
type Snapshot struct {
	SavedTS     *float64                                  `json:"saved_ts"`
	TimeOnTask  float64                                   `json:"total-time-on-task"`
	Attention   map[string]analysis.DocumentAttention     `json:"attention"`
	TypingSpeed map[string]map[string]analysis.FrameSpeed `json:"typing_speed"`
	Comments    map[string]analysis.CommentView           `json:"comments"`
}

// CharsPerSecond pools word-internal keystrokes over every frame the user
// typed in.
func (s Snapshot) CharsPerSecond() float64 {
	var keystrokes int
	var seconds float64
	for _, frames := range s.TypingSpeed {
		for _, f := range frames {
			keystrokes += f.NWordInternalKeystrokes
			seconds += f.TotalInWordTypingTime
		}
	}
	if seconds == 0 {
		return 0
	}
	return float64(keystrokes) / seconds
}

// DashboardClient reads projections from a running observerd.
type DashboardClient struct {
	baseURL string
	client  *http.Client
}

// NewDashboardClient creates a new dashboard client.
func NewDashboardClient(baseURL string) *DashboardClient {
	return &DashboardClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// Fetch returns the current dashboard for userID.
func (c *DashboardClient) Fetch(ctx context.Context, userID string) (Snapshot, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/dashboard/" + url.PathEscape(userID))
	if err != nil {
		return Snapshot{}, fmt.Errorf("invalid base URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return snap, nil
}
