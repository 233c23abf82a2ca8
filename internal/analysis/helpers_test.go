package analysis

import (
	"github.com/fyrsmithlabs/observerd/internal/event"
)

func serverAt(t float64) *event.Event {
	return &event.Event{Server: event.Server{Time: &t}}
}

func keydown(doc string, frame string, tsMillis float64, keyCode int) *event.Event {
	return &event.Event{Client: event.Client{
		TS:         tsMillis,
		Event:      event.KindKeystroke,
		DocID:      doc,
		FrameIndex: event.FrameIndex(frame),
		Keystroke:  &event.Keystroke{Type: event.KeystrokeKeyDown, KeyCode: keyCode},
	}}
}

func withMods(ev *event.Event, alt, ctrl bool) *event.Event {
	ev.Client.Keystroke.AltKey = alt
	ev.Client.Keystroke.CtrlKey = ctrl
	return ev
}

func clientEvent(kind, doc, frame string) *event.Event {
	return &event.Event{Client: event.Client{
		Event:      kind,
		DocID:      doc,
		FrameIndex: event.FrameIndex(frame),
	}}
}

func attention(doc, typ string) *event.Event {
	ev := clientEvent(event.KindAttention, doc, "")
	ev.Client.Attention = &event.SubType{Type: typ}
	return ev
}

func visibility(doc, frame string) *event.Event {
	ev := clientEvent(event.KindVisibility, doc, frame)
	ev.Client.Visibility = &event.SubType{Type: event.VisibilityChange}
	return ev
}

func commentFlow(doc, typ, parent string, value *string, tsMillis float64) *event.Event {
	return &event.Event{Client: event.Client{
		TS:       tsMillis,
		DocID:    doc,
		Type:     typ,
		ParentID: parent,
		Value:    value,
	}}
}

func strPtr(s string) *string { return &s }
