package analysis

import (
	"strconv"

	"github.com/fyrsmithlabs/observerd/internal/config"
	"github.com/fyrsmithlabs/observerd/internal/stream"
)

// Registrations returns the writing reducers in merge order.
func Registrations(cfg config.ReducersConfig) []stream.Registration {
	frames := DefaultFrameIDs(cfg.DefaultFrames)
	return []stream.Registration{
		stream.Register[TimeOnTaskState](NewTimeOnTask(cfg.TimeOnTaskThreshold.Seconds())),
		stream.Register[AttentionState](NewAttention(frames)),
		stream.Register[TypingState](NewTypingSpeed(cfg.TypingThreshold.Seconds(), frames)),
		stream.Register[CommentsState](NewComments()),
	}
}

// DefaultFrameIDs returns "0".."n-1", the frames a new document starts with.
func DefaultFrameIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = strconv.Itoa(i)
	}
	return ids
}

// clampedDelta bounds an elapsed interval to [0, threshold].
func clampedDelta(now, last, threshold float64) float64 {
	d := now - last
	if d < 0 {
		return 0
	}
	if d > threshold {
		return threshold
	}
	return d
}
