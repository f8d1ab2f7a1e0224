package attendance

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Repository persists check-in records and reports in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertRecord writes one raw check-in. The timestamp is stored as the
// RFC 3339 text the classifier later parses; coordinates are kept as the
// diagnostic strings they arrive as.
func (r *Repository) InsertRecord(ctx context.Context, sessionID, studentID string, recordedAt time.Time, lat, lon float64, within bool) (Record, error) {
	rec := Record{
		StudentID:    studentID,
		TimeRecorded: recordedAt.UTC().Format(time.RFC3339),
		WithinRadius: &within,
		Latitude:     strconv.FormatFloat(lat, 'f', -1, 64),
		Longitude:    strconv.FormatFloat(lon, 'f', -1, 64),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, session_id, student_id, time_recorded, within_radius, latitude, longitude)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, uuid.NewString(), sessionID, studentID, rec.TimeRecorded, within, rec.Latitude, rec.Longitude)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// RecordsBySession returns every raw check-in captured for a session.
func (r *Repository) RecordsBySession(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT student_id, COALESCE(time_recorded, ''), within_radius, COALESCE(latitude, ''), COALESCE(longitude, '')
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY created_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec    Record
			within sql.NullBool
		)
		if err := rows.Scan(&rec.StudentID, &rec.TimeRecorded, &within, &rec.Latitude, &rec.Longitude); err != nil {
			return nil, err
		}
		if within.Valid {
			v := within.Bool
			rec.WithinRadius = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Roster returns the eligible students for a program, narrowed to a stream
// when one is given, in roster order.
func (r *Repository) Roster(ctx context.Context, programID, streamID string) ([]Student, error) {
	query := `
		SELECT id, full_name, email, program_id, COALESCE(stream_id, '')
		FROM students WHERE program_id = $1`
	args := []any{programID}
	if streamID != "" {
		query += ` AND stream_id = $2`
		args = append(args, streamID)
	}
	query += ` ORDER BY full_name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.Name, &st.Email, &st.Program, &st.Stream); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// CreateReport inserts a report that has not been exported yet.
func (r *Repository) CreateReport(ctx context.Context, sessionID, generatedBy string) (Report, error) {
	rep := Report{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		GeneratedBy: generatedBy,
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reports (id, session_id, generated_by)
		VALUES ($1,$2,$3)
	`, rep.ID, rep.SessionID, rep.GeneratedBy)
	if err != nil {
		return Report{}, err
	}
	return rep, nil
}

// GetReport returns a single report by id.
func (r *Repository) GetReport(ctx context.Context, id string) (Report, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, generated_by, generated_date, COALESCE(file_path, ''), COALESCE(file_type, '')
		FROM reports WHERE id = $1
	`, id)
	var (
		rep       Report
		generated sql.NullTime
	)
	if err := row.Scan(&rep.ID, &rep.SessionID, &rep.GeneratedBy, &generated, &rep.FilePath, &rep.FileType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Report{}, ErrReportNotFound
		}
		return Report{}, err
	}
	if generated.Valid {
		t := generated.Time.UTC()
		rep.GeneratedDate = &t
	}
	return rep, nil
}

// SaveExported persists the exported-state transition.
func (r *Repository) SaveExported(ctx context.Context, rep Report) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE reports
		SET generated_date = $2, file_path = $3, file_type = $4
		WHERE id = $1
	`, rep.ID, rep.GeneratedDate, rep.FilePath, rep.FileType)
	return err
}
