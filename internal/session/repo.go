package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository persists sessions in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save writes the session inside a transaction that holds a per-lecturer
// advisory lock and re-checks the overlap invariant. The domain-level overlap
// check is only a fast path; this is where the guarantee actually lives.
func (r *PostgresRepository) Save(ctx context.Context, s Session) (Session, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, s.LecturerID); err != nil {
		return Session{}, err
	}

	var overlapping bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sessions
			WHERE lecturer_id = $1 AND id <> $2 AND start_at < $4 AND $3 < end_at
		)
	`, s.LecturerID, s.ID, s.Window.Start(), s.Window.End()).Scan(&overlapping)
	if err != nil {
		return Session{}, err
	}
	if overlapping {
		return Session{}, ErrOverlappingSession
	}

	if s.ID == "" {
		s.ID = uuid.NewString()
		if s.DateCreated.IsZero() {
			s.DateCreated = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (id, program_id, course_id, lecturer_id, stream_id, created_at,
				start_at, end_at, latitude, longitude, location_description, radius_m)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, s.ID, s.ProgramID, s.CourseID, s.LecturerID, nullable(s.StreamID), s.DateCreated,
			s.Window.Start(), s.Window.End(), s.Location.Latitude(), s.Location.Longitude(),
			s.Location.Description(), s.Location.RadiusMeters())
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE sessions
			SET stream_id = $2, start_at = $3, end_at = $4,
				latitude = $5, longitude = $6, location_description = $7, radius_m = $8
			WHERE id = $1
		`, s.ID, nullable(s.StreamID), s.Window.Start(), s.Window.End(),
			s.Location.Latitude(), s.Location.Longitude(), s.Location.Description(),
			s.Location.RadiusMeters())
	}
	if err != nil {
		return Session{}, err
	}

	if err := tx.Commit(); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Get returns a single session by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, program_id, course_id, lecturer_id, stream_id, created_at,
			start_at, end_at, latitude, longitude, location_description, radius_m
		FROM sessions WHERE id = $1
	`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	return s, err
}

// ListByLecturer returns one page of a lecturer's sessions plus the total
// matching count.
func (r *PostgresRepository) ListByLecturer(ctx context.Context, lecturerID string, filter ListFilter) ([]Session, int, error) {
	clauses := []string{"lecturer_id = $1"}
	args := []any{lecturerID}
	if filter.ProgramID != "" {
		args = append(args, filter.ProgramID)
		clauses = append(clauses, fmt.Sprintf("program_id = $%d", len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		clauses = append(clauses, fmt.Sprintf("course_id = $%d", len(args)))
	}
	if filter.StreamID != "" {
		args = append(args, filter.StreamID)
		clauses = append(clauses, fmt.Sprintf("stream_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("end_at > $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("start_at < $%d", len(args)))
	}
	where := " WHERE " + strings.Join(clauses, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, program_id, course_id, lecturer_id, stream_id, created_at,
			start_at, end_at, latitude, longitude, location_description, radius_m
		FROM sessions` + where + fmt.Sprintf(" ORDER BY start_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// HasOverlapping reports whether the lecturer already has a session sharing
// any instant with the window. Boundary-adjacent sessions do not count.
func (r *PostgresRepository) HasOverlapping(ctx context.Context, lecturerID string, w TimeWindow) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sessions
			WHERE lecturer_id = $1 AND start_at < $3 AND $2 < end_at
		)
	`, lecturerID, w.Start(), w.End()).Scan(&exists)
	return exists, err
}

// EligibleStudents returns ids of students whose program, and stream when the
// session targets one, match the session.
func (r *PostgresRepository) EligibleStudents(ctx context.Context, s Session) ([]string, error) {
	query := `SELECT id FROM students WHERE program_id = $1`
	args := []any{s.ProgramID}
	if s.StreamID != "" {
		query += ` AND stream_id = $2`
		args = append(args, s.StreamID)
	}
	query += ` ORDER BY full_name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		s        Session
		stream   sql.NullString
		desc     sql.NullString
		startAt  time.Time
		endAt    time.Time
		lat, lon float64
		radius   float64
	)
	err := row.Scan(&s.ID, &s.ProgramID, &s.CourseID, &s.LecturerID, &stream, &s.DateCreated,
		&startAt, &endAt, &lat, &lon, &desc, &radius)
	if err != nil {
		return Session{}, err
	}
	s.StreamID = stream.String
	// stored rows passed validation on the way in; rebuild values directly so
	// rows written under older bounds still load
	s.Window = TimeWindow{start: startAt.UTC(), end: endAt.UTC()}
	s.Location = Location{latitude: lat, longitude: lon, description: desc.String, radius: radius}
	return s, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
