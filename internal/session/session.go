package session

import "time"

// Lifecycle labels derived from the clock, never stored.
const (
	StatusCreated = "created"
	StatusActive  = "active"
	StatusEnded   = "ended"
)

// Session is a scheduled class meeting. ID stays empty until the repository
// persists it. The lecturer who created the session owns it; lecturer
// identity always comes from the authenticated caller.
type Session struct {
	ID          string
	ProgramID   string
	CourseID    string
	LecturerID  string
	StreamID    string // empty when the session targets the whole program
	DateCreated time.Time
	Window      TimeWindow
	Location    Location
}

// IsActive reports whether now falls inside the session window.
func (s Session) IsActive(now time.Time) bool {
	return s.Window.Contains(now)
}

// HasEnded reports whether the session window is behind now.
func (s Session) HasEnded(now time.Time) bool {
	return !now.Before(s.Window.End())
}

// Status derives the lifecycle label used in API responses.
func (s Session) Status(now time.Time) string {
	switch {
	case s.HasEnded(now):
		return StatusEnded
	case s.IsActive(now):
		return StatusActive
	default:
		return StatusCreated
	}
}
