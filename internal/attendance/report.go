package attendance

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"time"
)

// ErrReportNotFound is returned when a report id does not resolve.
var ErrReportNotFound = errors.New("report not found")

// Report records that a classification run was exported for a session. It is
// created pending; MarkExported is the only transition it has.
type Report struct {
	ID            string
	SessionID     string
	GeneratedBy   string
	GeneratedDate *time.Time
	FilePath      string
	FileType      string
}

// Exported reports whether the file has been written out.
func (r Report) Exported() bool {
	return r.GeneratedDate != nil
}

// MarkExported attaches the exported file metadata and stamps the generation
// time.
func (r *Report) MarkExported(filePath, fileType string, now time.Time) {
	r.FilePath = filePath
	r.FileType = fileType
	t := now.UTC()
	r.GeneratedDate = &t
}

// WriteCSV renders classification rows as a CSV report.
func WriteCSV(w io.Writer, rows []StudentRow) error {
	cw := csv.NewWriter(w)
	header := []string{"student_id", "student_name", "email", "program", "stream", "status", "time_recorded", "within_radius", "latitude", "longitude"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		recorded := ""
		if row.TimeRecorded != nil {
			recorded = row.TimeRecorded.Format(time.RFC3339)
		}
		within := ""
		if row.WithinRadius != nil {
			within = strconv.FormatBool(*row.WithinRadius)
		}
		rec := []string{row.StudentID, row.StudentName, row.Email, row.Program, row.Stream, row.Status, recorded, within, row.Latitude, row.Longitude}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
