package analysis

import (
	"github.com/fyrsmithlabs/observerd/internal/event"
	"github.com/fyrsmithlabs/observerd/internal/stream"
)

// TimeOnTaskID names the time-on-task reducer.
const TimeOnTaskID = "writing_observer.time_on_task"

// TimeOnTaskState accumulates active time from server timestamps.
type TimeOnTaskState struct {
	SavedTS *float64 `json:"saved_ts"`
	Total   float64  `json:"total-time-on-task"`
}

// TimeOnTask sums gaps between consecutive events, counting at most
// Threshold seconds per gap so idle periods stay bounded.
type TimeOnTask struct {
	Threshold float64
}

// NewTimeOnTask returns the reducer with threshold in seconds.
func NewTimeOnTask(threshold float64) TimeOnTask {
	return TimeOnTask{Threshold: threshold}
}

func (TimeOnTask) ID() string { return TimeOnTaskID }

func (TimeOnTask) Namespace() []string {
	return []string{"saved_ts", "total-time-on-task"}
}

func (TimeOnTask) Initial() TimeOnTaskState {
	return TimeOnTaskState{}
}

// Reduce adds min(Threshold, t-last) for server time t. The first event adds
// nothing and a timestamp earlier than the saved one adds nothing.
func (r TimeOnTask) Reduce(ev *event.Event, s TimeOnTaskState) (TimeOnTaskState, stream.Projection) {
	t, ok := ev.ServerTime()
	if !ok {
		return s, s.projection()
	}

	last := t
	if s.SavedTS != nil {
		last = *s.SavedTS
	}
	s.SavedTS = &t
	s.Total += clampedDelta(t, last, r.Threshold)
	return s, s.projection()
}

func (s TimeOnTaskState) projection() stream.Projection {
	var saved any
	if s.SavedTS != nil {
		saved = *s.SavedTS
	}
	return stream.Projection{
		"saved_ts":           saved,
		"total-time-on-task": s.Total,
	}
}
