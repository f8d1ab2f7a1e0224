package academics

import (
	"context"
	"database/sql"
	"errors"
)

// Lookup answers catalog and account questions from the academics tables.
// It is the only place the scheduling core's ports touch those schemas.
type Lookup struct {
	db *sql.DB
}

// NewLookup creates a lookup over the shared database.
func NewLookup(db *sql.DB) *Lookup {
	return &Lookup{db: db}
}

// ProgramHasStreams reports whether the program subdivides into streams.
// Unknown programs report false.
func (l *Lookup) ProgramHasStreams(ctx context.Context, programID string) (bool, error) {
	var has bool
	err := l.db.QueryRowContext(ctx, `SELECT has_streams FROM programs WHERE id = $1`, programID).Scan(&has)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return has, err
}

// StreamBelongsToProgram reports whether the stream is part of the program.
func (l *Lookup) StreamBelongsToProgram(ctx context.Context, streamID, programID string) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM streams WHERE id = $1 AND program_id = $2)
	`, streamID, programID).Scan(&exists)
	return exists, err
}

// CourseBelongsToProgram reports whether the course is part of the program.
func (l *Lookup) CourseBelongsToProgram(ctx context.Context, courseID, programID string) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1 AND program_id = $2)
	`, courseID, programID).Scan(&exists)
	return exists, err
}

// CourseLecturer returns the lecturer assigned to the course, or "" when the
// course is unknown or unassigned.
func (l *Lookup) CourseLecturer(ctx context.Context, courseID string) (string, error) {
	var lecturerID sql.NullString
	err := l.db.QueryRowContext(ctx, `SELECT lecturer_id FROM courses WHERE id = $1`, courseID).Scan(&lecturerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return lecturerID.String, err
}

// IsLecturerActive reports whether the lecturer account exists and is active.
func (l *Lookup) IsLecturerActive(ctx context.Context, lecturerID string) (bool, error) {
	var active bool
	err := l.db.QueryRowContext(ctx, `
		SELECT active FROM users WHERE id = $1 AND role = 'lecturer'
	`, lecturerID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return active, err
}

// StudentExists reports whether a student id resolves. Used when issuing
// student check-in tokens.
func (l *Lookup) StudentExists(ctx context.Context, studentID string) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)
	`, studentID).Scan(&exists)
	return exists, err
}
