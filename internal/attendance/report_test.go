package attendance

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReportMarkExported(t *testing.T) {
	report := Report{ID: "rep-1", SessionID: "sess-1", GeneratedBy: "lect-1"}
	require.False(t, report.Exported())

	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	report.MarkExported("reports/attendance-rep-1.csv", "csv", now)

	require.True(t, report.Exported())
	require.Equal(t, "reports/attendance-rep-1.csv", report.FilePath)
	require.Equal(t, "csv", report.FileType)
	require.True(t, report.GeneratedDate.Equal(now))
}

func TestWriteCSV(t *testing.T) {
	recorded := time.Date(2026, 3, 9, 8, 15, 0, 0, time.UTC)
	within := true
	rows := []StudentRow{
		{
			StudentID:    "stu-1",
			StudentName:  "Achan Grace",
			Email:        "grace@campus.test",
			Program:      "prg-1",
			Stream:       "str-a",
			Status:       StatusPresent,
			TimeRecorded: &recorded,
			WithinRadius: &within,
			Latitude:     "0.3476",
			Longitude:    "32.5825",
		},
		{
			StudentID:   "stu-2",
			StudentName: "Okello Brian",
			Email:       "brian@campus.test",
			Program:     "prg-1",
			Status:      StatusAbsent,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "student_id,student_name,email,program,stream,status,time_recorded,within_radius,latitude,longitude", lines[0])
	require.Equal(t, "stu-1,Achan Grace,grace@campus.test,prg-1,str-a,Present,2026-03-09T08:15:00Z,true,0.3476,32.5825", lines[1])
	require.Equal(t, "stu-2,Okello Brian,brian@campus.test,prg-1,,Absent,,,,", lines[2])
}
