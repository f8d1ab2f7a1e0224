package session

import (
	"fmt"
	"time"
)

// Duration bounds for a class session. These are the single canonical bounds;
// request validation does not carry a second, looser pair.
const (
	MinDuration = 30 * time.Minute
	MaxDuration = 3 * time.Hour
)

// TimeWindow is a half-open interval [Start, End). It is immutable after
// construction; an "update" builds a new value.
type TimeWindow struct {
	start time.Time
	end   time.Time
}

// NewTimeWindow validates ordering and duration bounds. Times are normalized
// to UTC.
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	if !end.After(start) {
		return TimeWindow{}, fmt.Errorf("%w: end must be after start", ErrInvalidTimeWindow)
	}
	d := end.Sub(start)
	if d < MinDuration || d > MaxDuration {
		return TimeWindow{}, fmt.Errorf("%w: duration %s outside [%s, %s]", ErrInvalidTimeWindow, d, MinDuration, MaxDuration)
	}
	return TimeWindow{start: start.UTC(), end: end.UTC()}, nil
}

// Start returns the inclusive lower bound.
func (w TimeWindow) Start() time.Time { return w.start }

// End returns the exclusive upper bound.
func (w TimeWindow) End() time.Time { return w.end }

// Duration returns the window length.
func (w TimeWindow) Duration() time.Duration { return w.end.Sub(w.start) }

// Contains reports whether t falls inside [start, end).
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.start) && t.Before(w.end)
}

// Overlaps reports whether two windows share at least one instant. Windows
// that only touch at a boundary do not overlap.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.start.Before(other.end) && other.start.Before(w.end)
}
