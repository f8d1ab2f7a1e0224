package session

import "context"

// Scheduler enforces the booking invariants before a session reaches storage.
type Scheduler struct {
	repo      Repository
	academics AcademicLookup
	users     UserStatusLookup
}

// NewScheduler creates a scheduler over the given ports.
func NewScheduler(repo Repository, academics AcademicLookup, users UserStatusLookup) *Scheduler {
	return &Scheduler{repo: repo, academics: academics, users: users}
}

// CreateSession validates the candidate against every booking invariant and
// persists it. Every step before the save is a read, so a failure anywhere
// leaves no partial state.
func (s *Scheduler) CreateSession(ctx context.Context, candidate Session) (Session, error) {
	overlapping, err := s.repo.HasOverlapping(ctx, candidate.LecturerID, candidate.Window)
	if err != nil {
		return Session{}, err
	}
	if overlapping {
		return Session{}, ErrOverlappingSession
	}

	ok, err := s.academics.CourseBelongsToProgram(ctx, candidate.CourseID, candidate.ProgramID)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, ErrCourseNotInProgram
	}

	if candidate.StreamID != "" {
		hasStreams, err := s.academics.ProgramHasStreams(ctx, candidate.ProgramID)
		if err != nil {
			return Session{}, err
		}
		if !hasStreams {
			return Session{}, ErrStreamsNotSupported
		}
		ok, err := s.academics.StreamBelongsToProgram(ctx, candidate.StreamID, candidate.ProgramID)
		if err != nil {
			return Session{}, err
		}
		if !ok {
			return Session{}, ErrStreamNotInProgram
		}
	}

	assigned, err := s.academics.CourseLecturer(ctx, candidate.CourseID)
	if err != nil {
		return Session{}, err
	}
	if assigned != candidate.LecturerID {
		return Session{}, ErrLecturerNotAssigned
	}

	active, err := s.users.IsLecturerActive(ctx, assigned)
	if err != nil {
		return Session{}, err
	}
	if !active {
		return Session{}, ErrLecturerInactive
	}

	return s.repo.Save(ctx, candidate)
}

// EligibleStudents returns the roster for a session: students whose program,
// and stream when the session targets one, match the session. The filtering
// itself lives in the repository.
func (s *Scheduler) EligibleStudents(ctx context.Context, sess Session) ([]string, error) {
	return s.repo.EligibleStudents(ctx, sess)
}
