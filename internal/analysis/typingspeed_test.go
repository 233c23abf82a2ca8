package analysis

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/fyrsmithlabs/observerd/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runTyping(r TypingSpeed, evs ...*event.Event) TypingState {
	s := r.Initial()
	for _, ev := range evs {
		s, _ = r.Reduce(ev, s)
	}
	return s
}

func TestTypingSpeed_WordInternalKeystrokes(t *testing.T) {
	r := NewTypingSpeed(2, DefaultFrameIDs(4))
	s := runTyping(r,
		keydown("d", "0", 1000, 65),
		keydown("d", "0", 1200, 66),
		keydown("d", "0", 1500, 67),
	)

	fr := s["d"].Frameset["0"]
	assert.Equal(t, 2, fr.NWordInternalKeystrokes)
	assert.InDelta(t, 0.5, fr.TotalInWordTypingTime, 1e-9)
	assert.InDelta(t, 4.0, fr.MeanCharactersPerSecond, 1e-9)
	require.NotNil(t, fr.SavedTime)
	assert.Equal(t, 1.5, *fr.SavedTime)
	assert.Len(t, s["d"].Frameset, 4)
}

func TestTypingSpeed_WordBoundaryResets(t *testing.T) {
	r := NewTypingSpeed(2, DefaultFrameIDs(1))
	s := runTyping(r,
		keydown("d", "0", 1000, 65),
		keydown("d", "0", 1100, 66),
		keydown("d", "0", 1200, 32), // space
		keydown("d", "0", 2200, 67),
		keydown("d", "0", 2300, 68),
	)

	fr := s["d"].Frameset["0"]
	assert.Equal(t, 2, fr.NWordInternalKeystrokes)
	assert.InDelta(t, 0.2, fr.TotalInWordTypingTime, 1e-9)
}

func TestTypingSpeed_GapClampedToThreshold(t *testing.T) {
	r := NewTypingSpeed(2, DefaultFrameIDs(1))
	s := runTyping(r,
		keydown("d", "0", 0, 65),
		keydown("d", "0", 10000, 66),
	)
	assert.Equal(t, 2.0, s["d"].Frameset["0"].TotalInWordTypingTime)
}

func TestTypingSpeed_HyphenContinuesWord(t *testing.T) {
	r := NewTypingSpeed(2, nil)
	s := runTyping(r,
		keydown("d", "0", 0, 65),
		keydown("d", "0", 100, keyCodeHyphen),
		keydown("d", "0", 200, 66),
	)
	assert.Equal(t, 2, s["d"].Frameset["0"].NWordInternalKeystrokes)
}

func TestTypingSpeed_ModifiersBreakWord(t *testing.T) {
	r := NewTypingSpeed(2, nil)
	for name, ev := range map[string]*event.Event{
		"alt":  withMods(keydown("d", "0", 100, 66), true, false),
		"ctrl": withMods(keydown("d", "0", 100, 66), false, true),
	} {
		t.Run(name, func(t *testing.T) {
			s := runTyping(r,
				keydown("d", "0", 0, 65),
				ev,
				keydown("d", "0", 200, 67),
			)
			fr := s["d"].Frameset["0"]
			assert.Equal(t, 0, fr.NWordInternalKeystrokes)
		})
	}
}

func TestTypingSpeed_IgnoredEvents(t *testing.T) {
	keyup := keydown("d", "0", 100, 65)
	keyup.Client.Keystroke.Type = "keyup"

	tests := map[string]*event.Event{
		"keyup":    keyup,
		"shift":    keydown("d", "0", 100, keyCodeShift),
		"no frame": keydown("d", "", 100, 65),
		"no doc":   keydown("", "0", 100, 65),
	}

	r := NewTypingSpeed(2, DefaultFrameIDs(2))
	for name, ev := range tests {
		t.Run(name, func(t *testing.T) {
			before := runTyping(r, keydown("d", "0", 0, 65))
			after, _ := r.Reduce(ev, before)
			assert.Equal(t, before, after)
		})
	}
}

func TestTypingSpeed_FramelessEventDoesNotCreateDocument(t *testing.T) {
	r := NewTypingSpeed(2, DefaultFrameIDs(2))
	s, projection := r.Reduce(clientEvent(event.KindMouseClick, "new-doc", ""), r.Initial())
	assert.NotContains(t, s, "new-doc")
	assert.NotContains(t, projection["typing_speed"], "new-doc")
}

func TestTypingSpeed_ShiftKeepsWordOpen(t *testing.T) {
	r := NewTypingSpeed(2, nil)
	s := runTyping(r,
		keydown("d", "0", 0, 65),
		keydown("d", "0", 50, keyCodeShift),
		keydown("d", "0", 100, 66),
	)
	assert.Equal(t, 1, s["d"].Frameset["0"].NWordInternalKeystrokes)
}

func TestTypingSpeed_OutOfOrderKeystrokeCountsWithoutTime(t *testing.T) {
	r := NewTypingSpeed(2, nil)
	before := runTyping(r,
		keydown("d", "0", 1000, 65),
		keydown("d", "0", 1200, 66),
	)
	after, _ := r.Reduce(keydown("d", "0", 1100, 67), before)

	fr := after["d"].Frameset["0"]
	assert.Equal(t, 2, fr.NWordInternalKeystrokes)
	assert.InDelta(t, before["d"].Frameset["0"].TotalInWordTypingTime, fr.TotalInWordTypingTime, 1e-9)
	require.NotNil(t, fr.SavedKeycode)
	assert.Equal(t, 67, *fr.SavedKeycode)
	require.NotNil(t, fr.SavedTime)
	assert.InDelta(t, 1.1, *fr.SavedTime, 1e-9)
}

func TestTypingSpeed_OutOfOrderBoundaryResetsWord(t *testing.T) {
	r := NewTypingSpeed(2, nil)
	s := runTyping(r,
		keydown("d", "0", 1000, 65),
		keydown("d", "0", 1200, 66),
		keydown("d", "0", 1100, 32),
	)
	assert.Nil(t, s["d"].Frameset["0"].SavedKeycode)

	s, _ = r.Reduce(keydown("d", "0", 1300, 67), s)
	assert.Equal(t, 1, s["d"].Frameset["0"].NWordInternalKeystrokes)
}

func TestTypingSpeed_MeanIsRatio(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	r := NewTypingSpeed(2, nil)

	s := r.Initial()
	ts := 0.0
	for i := 0; i < 500; i++ {
		ts += float64(rng.Intn(3000))
		code := 48 + rng.Intn(43)
		if rng.Intn(6) == 0 {
			code = 32
		}
		s, _ = r.Reduce(keydown("d", "0", ts, code), s)

		fr := s["d"].Frameset["0"]
		if fr.TotalInWordTypingTime > 0 {
			assert.InDelta(t, float64(fr.NWordInternalKeystrokes)/fr.TotalInWordTypingTime,
				fr.MeanCharactersPerSecond, 1e-9)
		}
	}
}

func TestTypingSpeed_ProjectionOmitsKeycodes(t *testing.T) {
	r := NewTypingSpeed(2, nil)
	_, proj := r.Reduce(keydown("d", "0", 0, 65), r.Initial())

	raw, err := json.Marshal(proj)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "saved_keycode")
	assert.Contains(t, string(raw), "meanCharactersPerSecond")
}

func TestTypingSpeed_DoesNotMutateInput(t *testing.T) {
	r := NewTypingSpeed(2, nil)
	s1 := runTyping(r, keydown("d", "0", 0, 65))
	_, _ = r.Reduce(keydown("d", "0", 100, 66), s1)
	assert.Equal(t, 0, s1["d"].Frameset["0"].NWordInternalKeystrokes)
}

func TestWordInternal(t *testing.T) {
	tests := []struct {
		code int
		alt  bool
		want bool
	}{
		{code: 48, want: true},
		{code: 57, want: true},
		{code: 65, want: true},
		{code: 90, want: true},
		{code: 173, want: true},
		{code: 47, want: false},
		{code: 91, want: false},
		{code: 32, want: false},
		{code: 65, alt: true, want: false},
	}
	for _, tt := range tests {
		k := &event.Keystroke{Type: event.KeystrokeKeyDown, KeyCode: tt.code, AltKey: tt.alt}
		assert.Equal(t, tt.want, WordInternal(k), "keyCode %d alt=%v", tt.code, tt.alt)
	}
}
