package attendance

import (
	"time"

	"classtrack/internal/session"
)

// Presence verdicts. There are exactly two; every eligible student gets one.
const (
	StatusPresent = "Present"
	StatusAbsent  = "Absent"
)

// Record is a raw check-in as captured at the edge. TimeRecorded stays a
// string until classification because upstream sources are not trusted to
// produce parseable timestamps.
type Record struct {
	StudentID    string
	TimeRecorded string
	WithinRadius *bool
	Latitude     string
	Longitude    string
}

// Student is a roster entry eligible for a session.
type Student struct {
	ID      string
	Name    string
	Email   string
	Program string
	Stream  string
}

// StudentRow is one classified roster line. The diagnostic fields describe
// the selected record and never influence the verdict.
type StudentRow struct {
	StudentID    string     `json:"student_id"`
	StudentName  string     `json:"student_name"`
	Email        string     `json:"email"`
	Program      string     `json:"program"`
	Stream       string     `json:"stream,omitempty"`
	Status       string     `json:"status"`
	TimeRecorded *time.Time `json:"time_recorded,omitempty"`
	WithinRadius *bool      `json:"within_radius,omitempty"`
	Latitude     string     `json:"latitude,omitempty"`
	Longitude    string     `json:"longitude,omitempty"`
}

type parsedRecord struct {
	Record
	at     time.Time
	parsed bool
}

// Classify turns raw check-in records into one presence row per eligible
// student. A student is Present iff at least one record was flagged within
// radius and has a parseable timestamp inside [start, end], inclusive on
// both ends unlike the window's own half-open Contains. Output order follows
// the roster; records for students outside the roster are ignored.
func Classify(sess session.Session, students []Student, records []Record) []StudentRow {
	start := sess.Window.Start()
	end := sess.Window.End()

	byStudent := make(map[string][]parsedRecord, len(students))
	for _, rec := range records {
		pr := parsedRecord{Record: rec}
		if at, err := time.Parse(time.RFC3339, rec.TimeRecorded); err == nil {
			pr.at = at
			pr.parsed = true
		}
		byStudent[rec.StudentID] = append(byStudent[rec.StudentID], pr)
	}

	rows := make([]StudentRow, 0, len(students))
	for _, st := range students {
		row := StudentRow{
			StudentID:   st.ID,
			StudentName: st.Name,
			Email:       st.Email,
			Program:     st.Program,
			Stream:      st.Stream,
			Status:      StatusAbsent,
		}

		recs := byStudent[st.ID]
		if chosen := earliestQualifying(recs, start, end); chosen != nil {
			row.Status = StatusPresent
			fillDiagnostics(&row, chosen)
		} else if chosen := latestRecord(recs); chosen != nil {
			fillDiagnostics(&row, chosen)
		}

		rows = append(rows, row)
	}
	return rows
}

func qualifies(r parsedRecord, start, end time.Time) bool {
	if !r.parsed || r.WithinRadius == nil || !*r.WithinRadius {
		return false
	}
	return !r.at.Before(start) && !r.at.After(end)
}

// earliestQualifying picks the first check-in that makes the student Present.
func earliestQualifying(recs []parsedRecord, start, end time.Time) *parsedRecord {
	var best *parsedRecord
	for i := range recs {
		r := &recs[i]
		if !qualifies(*r, start, end) {
			continue
		}
		if best == nil || r.at.Before(best.at) {
			best = r
		}
	}
	return best
}

// latestRecord picks the most recent record for diagnostics when nothing
// qualifies. Records with unparseable timestamps sort after all parseable
// ones, so a lone garbled check-in still surfaces.
func latestRecord(recs []parsedRecord) *parsedRecord {
	var best *parsedRecord
	for i := range recs {
		r := &recs[i]
		switch {
		case best == nil:
			best = r
		case !r.parsed:
			best = r
		case best.parsed && !r.at.Before(best.at):
			best = r
		}
	}
	return best
}

func fillDiagnostics(row *StudentRow, r *parsedRecord) {
	if r.parsed {
		at := r.at
		row.TimeRecorded = &at
	}
	row.WithinRadius = r.WithinRadius
	row.Latitude = r.Record.Latitude
	row.Longitude = r.Record.Longitude
}
