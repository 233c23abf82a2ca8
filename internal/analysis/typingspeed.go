package analysis

import (
	"github.com/fyrsmithlabs/observerd/internal/event"
	"github.com/fyrsmithlabs/observerd/internal/stream"
)

// TypingSpeedID names the typing-speed reducer.
const TypingSpeedID = "writing_observer.baseline_typing_speed"

const (
	keyCodeShift  = 16
	keyCodeHyphen = 173
)

// FrameTyping holds in-word typing counters for one frame.
type FrameTyping struct {
	SavedTime               *float64 `json:"saved_time"`
	SavedKeycode            *int     `json:"saved_keycode"`
	TotalInWordTypingTime   float64  `json:"total_inword_typing_time"`
	NWordInternalKeystrokes int      `json:"nWordInternalKeystrokes"`
	MeanCharactersPerSecond float64  `json:"meanCharactersPerSecond"`
}

// TypingDocument groups frames of one document.
type TypingDocument struct {
	Frameset map[string]FrameTyping `json:"frameset"`
}

// TypingState maps document id to its typing counters.
type TypingState map[string]TypingDocument

func (s TypingState) clone() TypingState {
	out := make(TypingState, len(s))
	for id, doc := range s {
		frames := make(map[string]FrameTyping, len(doc.Frameset))
		for f, v := range doc.Frameset {
			frames[f] = v
		}
		out[id] = TypingDocument{Frameset: frames}
	}
	return out
}

// FrameSpeed is the dashboard view of one frame. The last key code stays
// internal since a stream of them spells out what was typed.
type FrameSpeed struct {
	SavedTime               *float64 `json:"saved_time"`
	TotalInWordTypingTime   float64  `json:"total_inword_typing_time"`
	NWordInternalKeystrokes int      `json:"nWordInternalKeystrokes"`
	MeanCharactersPerSecond float64  `json:"meanCharactersPerSecond"`
}

// TypingSpeed measures characters per second for word-internal alphanumeric
// keystrokes. The first character of each word is excluded because the pause
// before it mixes in planning time.
type TypingSpeed struct {
	Threshold float64
	Frames    []string
}

// NewTypingSpeed returns the reducer with threshold in seconds.
func NewTypingSpeed(threshold float64, frames []string) TypingSpeed {
	return TypingSpeed{Threshold: threshold, Frames: frames}
}

func (TypingSpeed) ID() string          { return TypingSpeedID }
func (TypingSpeed) Namespace() []string { return []string{"typing_speed"} }
func (TypingSpeed) Initial() TypingState {
	return TypingState{}
}

// WordInternal reports whether k can continue a word: A-Z, 0-9 or hyphen,
// without Alt or Ctrl.
func WordInternal(k *event.Keystroke) bool {
	if k.AltKey || k.CtrlKey {
		return false
	}
	return (k.KeyCode >= 48 && k.KeyCode <= 90) || k.KeyCode == keyCodeHyphen
}

func (r TypingSpeed) ignored(ev *event.Event) bool {
	if !ev.HasDocument() || ev.Client.FrameIndex == "" {
		return true
	}
	if k := ev.Client.Keystroke; k != nil {
		return k.Type != event.KeystrokeKeyDown || k.KeyCode == keyCodeShift
	}
	return false
}

func (r TypingSpeed) Reduce(ev *event.Event, s TypingState) (TypingState, stream.Projection) {
	if r.ignored(ev) {
		return s, typingProjection(s)
	}

	docID, frame := ev.Client.DocID, string(ev.Client.FrameIndex)
	now := ev.ClientSeconds()

	s = s.clone()
	doc, ok := s[docID]
	if !ok {
		doc = TypingDocument{Frameset: make(map[string]FrameTyping, len(r.Frames))}
		for _, f := range r.Frames {
			doc.Frameset[f] = FrameTyping{}
		}
	}
	fr := doc.Frameset[frame]

	lastTime, lastKeycode := fr.SavedTime, fr.SavedKeycode
	fr.SavedTime = &now

	if ev.IsKeystroke() && WordInternal(ev.Client.Keystroke) {
		code := ev.Client.Keystroke.KeyCode
		fr.SavedKeycode = &code
		if lastKeycode != nil {
			fr.NWordInternalKeystrokes++
			// Late keystrokes still count; clampedDelta adds no time for them.
			if lastTime != nil {
				fr.TotalInWordTypingTime += clampedDelta(now, *lastTime, r.Threshold)
			}
			if fr.TotalInWordTypingTime > 0 {
				fr.MeanCharactersPerSecond = float64(fr.NWordInternalKeystrokes) / fr.TotalInWordTypingTime
			}
		}
	} else {
		fr.SavedKeycode = nil
	}

	doc.Frameset[frame] = fr
	s[docID] = doc
	return s, typingProjection(s)
}

func typingProjection(s TypingState) stream.Projection {
	view := make(map[string]map[string]FrameSpeed, len(s))
	for docID, doc := range s {
		frames := make(map[string]FrameSpeed, len(doc.Frameset))
		for f, fr := range doc.Frameset {
			frames[f] = FrameSpeed{
				SavedTime:               fr.SavedTime,
				TotalInWordTypingTime:   fr.TotalInWordTypingTime,
				NWordInternalKeystrokes: fr.NWordInternalKeystrokes,
				MeanCharactersPerSecond: fr.MeanCharactersPerSecond,
			}
		}
		view[docID] = frames
	}
	return stream.Projection{"typing_speed": view}
}
