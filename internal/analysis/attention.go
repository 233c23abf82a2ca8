package analysis

import (
	"github.com/fyrsmithlabs/observerd/internal/event"
	"github.com/fyrsmithlabs/observerd/internal/stream"
)

// AttentionID names the attention reducer.
const AttentionID = "writing_observer.attention_state"

// FrameVisibility is one frame's visibility flag.
type FrameVisibility struct {
	Visible bool `json:"visible"`
}

// DocumentAttention tracks focus and per-frame visibility for one document.
type DocumentAttention struct {
	InFocus   bool                       `json:"in_focus"`
	SavedTime *float64                   `json:"saved_time,omitempty"`
	Frameset  map[string]FrameVisibility `json:"frameset"`
}

// AttentionState maps document id to its attention state.
type AttentionState map[string]DocumentAttention

func (s AttentionState) clone() AttentionState {
	out := make(AttentionState, len(s))
	for id, doc := range s {
		frames := make(map[string]FrameVisibility, len(doc.Frameset))
		for f, v := range doc.Frameset {
			frames[f] = v
		}
		doc.Frameset = frames
		out[id] = doc
	}
	return out
}

// Attention infers whether a document has the writer's attention.
//
// Visibility changes alone miss alt-tab without a resize, so focus events
// are tracked too, and any keystroke or click overrides both.
type Attention struct {
	Frames []string
}

// NewAttention returns the reducer; new documents start with frames visible.
func NewAttention(frames []string) Attention {
	return Attention{Frames: frames}
}

func (Attention) ID() string          { return AttentionID }
func (Attention) Namespace() []string { return []string{"attention"} }
func (Attention) Initial() AttentionState {
	return AttentionState{}
}

func (r Attention) newDocument() DocumentAttention {
	doc := DocumentAttention{
		InFocus:  true,
		Frameset: make(map[string]FrameVisibility, len(r.Frames)),
	}
	for _, f := range r.Frames {
		doc.Frameset[f] = FrameVisibility{Visible: true}
	}
	return doc
}

func (r Attention) Reduce(ev *event.Event, s AttentionState) (AttentionState, stream.Projection) {
	if !ev.HasDocument() {
		return s, attentionProjection(s)
	}

	s = s.clone()
	doc, ok := s[ev.Client.DocID]
	if !ok {
		doc = r.newDocument()
	}

	frame := string(ev.Client.FrameIndex)
	if _, known := doc.Frameset[frame]; frame != "" && !known {
		doc.Frameset[frame] = FrameVisibility{Visible: true}
	}

	ts := ev.ClientSeconds()
	doc.SavedTime = &ts

	if ev.VisibilityType() == event.VisibilityChange && frame != "" {
		doc.Frameset[frame] = FrameVisibility{Visible: !doc.Frameset[frame].Visible}
	}

	switch {
	case ev.AttentionType() == event.AttentionFocusIn:
		doc.InFocus = true
	case ev.AttentionType() == event.AttentionFocusOut:
		doc.InFocus = false
	case ev.Is(event.KindKeystroke), ev.Is(event.KindMouseClick):
		doc.InFocus = true
		for f := range doc.Frameset {
			doc.Frameset[f] = FrameVisibility{Visible: true}
		}
	}

	s[ev.Client.DocID] = doc
	return s, attentionProjection(s)
}

func attentionProjection(s AttentionState) stream.Projection {
	return stream.Projection{"attention": s}
}
