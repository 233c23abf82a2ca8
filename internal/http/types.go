package http

import "github.com/fyrsmithlabs/observerd/internal/stream"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ClientConfigResponse is served at /config.json for browser clients.
type ClientConfigResponse struct {
	Mode          string                    `json:"mode"`
	Modules       map[string]map[string]any `json:"modules"`
	GoogleOAuth   bool                      `json:"google-oauth"`
	PasswordAuth  bool                      `json:"password-auth"`
	HTTPBasicAuth bool                      `json:"http-basic-auth"`
	Theme         string                    `json:"theme"`
}

// EventsResponse is the response body for POST /api/v1/events.
type EventsResponse struct {
	SessionID  string              `json:"session_id"`
	UserID     string              `json:"user_id"`
	Processed  int                 `json:"processed"`
	Projection stream.Projection   `json:"projection"`
	Results    []stream.Projection `json:"results"`
}

// ErrorResponse reports a failed event. Processed counts the events of the
// batch that were reduced before it.
type ErrorResponse struct {
	Error     string `json:"error"`
	Processed int    `json:"processed,omitempty"`
}
