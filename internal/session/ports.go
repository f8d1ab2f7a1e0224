package session

import (
	"context"
	"time"
)

// ListFilter scopes a lecturer's session listing.
type ListFilter struct {
	ProgramID string
	CourseID  string
	StreamID  string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// Repository persists sessions. Save must re-check the overlap invariant
// under a per-lecturer write lock: the scheduler's HasOverlapping call is a
// fast-path rejection, not the sole safety mechanism, and two concurrent
// creations must not both slip past it.
type Repository interface {
	Save(ctx context.Context, s Session) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	ListByLecturer(ctx context.Context, lecturerID string, filter ListFilter) ([]Session, int, error)
	HasOverlapping(ctx context.Context, lecturerID string, w TimeWindow) (bool, error)
	EligibleStudents(ctx context.Context, s Session) ([]string, error)
}

// AcademicLookup answers structural questions about the catalog owned by the
// academics context. The core never touches that context's storage directly.
type AcademicLookup interface {
	ProgramHasStreams(ctx context.Context, programID string) (bool, error)
	StreamBelongsToProgram(ctx context.Context, streamID, programID string) (bool, error)
	CourseBelongsToProgram(ctx context.Context, courseID, programID string) (bool, error)
	CourseLecturer(ctx context.Context, courseID string) (string, error)
}

// UserStatusLookup answers account-state questions owned by the users context.
type UserStatusLookup interface {
	IsLecturerActive(ctx context.Context, lecturerID string) (bool, error)
}

// EventPublisher emits integration events. Implementations are fire and
// forget: a failed publish is logged and dropped, never surfaced to the
// caller and never allowed to roll back a committed write.
type EventPublisher interface {
	Publish(ctx context.Context, name string, payload map[string]string)
}
