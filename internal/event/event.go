// Package event models one client interaction record as it arrives from the
// writing-observer browser extension.
//
// Events are decoded once at the edge and handed to reducers as read-only
// values. Every optional sub-record is a pointer so reducers can tell a
// missing field apart from a zero value.
package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Coarse client event names.
const (
	KindKeystroke  = "keystroke"
	KindMouseClick = "mouseclick"
	KindAttention  = "attention"
	KindVisibility = "visibility"
)

// Fine-grained sub-types.
const (
	AttentionFocusIn  = "focusin"
	AttentionFocusOut = "focusout"
	VisibilityChange  = "visibilitychange"
	KeystrokeKeyDown  = "keydown"
	TypeInput         = "type-input"
	TypeClearInput    = "clear-input"
	TypeAddComment    = "add-comment"
	TypeEditComment   = "edit-comment"
	TypeAddReply      = "add-reply"
)

// ErrMalformed is returned by Decode for payloads that are not an event object.
var ErrMalformed = errors.New("malformed event")

// Event is one interaction record.
type Event struct {
	Server   Server   `json:"server"`
	Client   Client   `json:"client"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Server holds fields assigned on receipt.
type Server struct {
	// Time is seconds since the Unix epoch.
	Time *float64 `json:"time,omitempty"`
}

// Client holds fields the browser extension sends.
type Client struct {
	TS         float64    `json:"ts"` // milliseconds
	Event      string     `json:"event,omitempty"`
	EventType  string     `json:"event_type,omitempty"`
	DocID      string     `json:"doc_id,omitempty"`
	FrameIndex FrameIndex `json:"frameindex,omitempty"`
	Type       string     `json:"type,omitempty"`
	ParentID   string     `json:"parentID,omitempty"`
	Value      *string    `json:"value,omitempty"`
	Keystroke  *Keystroke `json:"keystroke,omitempty"`
	Attention  *SubType   `json:"attention,omitempty"`
	Visibility *SubType   `json:"visibility,omitempty"`
}

// Keystroke is the keystroke sub-record.
type Keystroke struct {
	Type    string `json:"type"`
	KeyCode int    `json:"keyCode"`
	AltKey  bool   `json:"altKey"`
	CtrlKey bool   `json:"ctrlKey"`
}

// SubType is the shape shared by the attention and visibility sub-records.
type SubType struct {
	Type string `json:"type"`
}

// Metadata travels with a session rather than with each event.
type Metadata struct {
	Auth *Auth `json:"auth,omitempty"`
}

// Auth carries the identity an upstream auth layer resolved.
type Auth struct {
	SafeUserID string `json:"safe_user_id"`
}

// UserID returns the safe user id, or "" when no identity was resolved.
func (m Metadata) UserID() string {
	if m.Auth == nil {
		return ""
	}
	return m.Auth.SafeUserID
}

// WithUser returns metadata for the given safe user id.
func WithUser(safeUserID string) Metadata {
	return Metadata{Auth: &Auth{SafeUserID: safeUserID}}
}

// FrameIndex addresses one frame inside a document. Clients send it either as
// a number or as a string; both decode to the same canonical string.
type FrameIndex string

// UnmarshalJSON accepts 2, 2.0 and "2" alike.
func (f *FrameIndex) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FrameIndex(s)
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("frameindex: %w", err)
	}
	*f = FrameIndex(strconv.FormatFloat(n, 'f', -1, 64))
	return nil
}

// Decode parses one event.
func Decode(raw []byte) (*Event, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &ev, nil
}

// DecodeBatch parses a single event object or an array of them.
func DecodeBatch(raw []byte) ([]*Event, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		events := make([]*Event, 0, len(items))
		for i, item := range items {
			ev, err := Decode(item)
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", i, err)
			}
			events = append(events, ev)
		}
		return events, nil
	}
	ev, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return []*Event{ev}, nil
}

// ServerTime returns the server-assigned time in seconds.
func (e *Event) ServerTime() (float64, bool) {
	if e.Server.Time == nil {
		return 0, false
	}
	return *e.Server.Time, true
}

// StampServerTime sets the server time unless one is already present.
func (e *Event) StampServerTime(seconds float64) {
	if e.Server.Time == nil {
		e.Server.Time = &seconds
	}
}

// ClientSeconds returns the client timestamp in seconds.
func (e *Event) ClientSeconds() float64 {
	return e.Client.TS / 1000
}

// HasDocument reports whether the event belongs to a document.
func (e *Event) HasDocument() bool {
	return e.Client.DocID != ""
}

// Is reports whether the event is of the given coarse kind. Older extension
// builds name the kind in event_type instead of event.
func (e *Event) Is(kind string) bool {
	return e.Client.Event == kind || e.Client.EventType == kind
}

// IsKeystroke reports whether the event is a keystroke with its sub-record.
func (e *Event) IsKeystroke() bool {
	return e.Client.Keystroke != nil && e.Is(KindKeystroke)
}

// AttentionType returns the attention sub-type for attention events.
func (e *Event) AttentionType() string {
	if !e.Is(KindAttention) || e.Client.Attention == nil {
		return ""
	}
	return e.Client.Attention.Type
}

// VisibilityType returns the visibility sub-type for visibility events.
func (e *Event) VisibilityType() string {
	if !e.Is(KindVisibility) || e.Client.Visibility == nil {
		return ""
	}
	return e.Client.Visibility.Type
}
