package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"classtrack/internal/session"
)

func boolPtr(v bool) *bool { return &v }

func testSession(t *testing.T) session.Session {
	t.Helper()
	w, err := session.NewTimeWindow(
		time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return session.Session{ID: "sess-1", ProgramID: "prg-1", Window: w}
}

func roster() []Student {
	return []Student{
		{ID: "stu-1", Name: "Achan Grace", Email: "grace@campus.test", Program: "prg-1"},
		{ID: "stu-2", Name: "Okello Brian", Email: "brian@campus.test", Program: "prg-1"},
	}
}

func TestClassifyPresence(t *testing.T) {
	sess := testSession(t)

	tests := []struct {
		name    string
		records []Record
		status  string
	}{
		{
			name: "check-in inside window within radius",
			records: []Record{
				{StudentID: "stu-1", TimeRecorded: "2026-03-09T08:15:00Z", WithinRadius: boolPtr(true)},
			},
			status: StatusPresent,
		},
		{
			name: "check-in at exact start is present",
			records: []Record{
				{StudentID: "stu-1", TimeRecorded: "2026-03-09T08:00:00Z", WithinRadius: boolPtr(true)},
			},
			status: StatusPresent,
		},
		{
			name: "check-in at exact end is present",
			records: []Record{
				{StudentID: "stu-1", TimeRecorded: "2026-03-09T10:00:00Z", WithinRadius: boolPtr(true)},
			},
			status: StatusPresent,
		},
		{
			name: "check-in after end is absent",
			records: []Record{
				{StudentID: "stu-1", TimeRecorded: "2026-03-09T10:00:01Z", WithinRadius: boolPtr(true)},
			},
			status: StatusAbsent,
		},
		{
			name: "check-in before start is absent",
			records: []Record{
				{StudentID: "stu-1", TimeRecorded: "2026-03-09T07:59:59Z", WithinRadius: boolPtr(true)},
			},
			status: StatusAbsent,
		},
		{
			name: "outside radius is absent",
			records: []Record{
				{StudentID: "stu-1", TimeRecorded: "2026-03-09T08:15:00Z", WithinRadius: boolPtr(false)},
			},
			status: StatusAbsent,
		},
		{
			name: "missing radius flag is absent",
			records: []Record{
				{StudentID: "stu-1", TimeRecorded: "2026-03-09T08:15:00Z"},
			},
			status: StatusAbsent,
		},
		{
			name: "unparseable timestamp is absent",
			records: []Record{
				{StudentID: "stu-1", TimeRecorded: "yesterday", WithinRadius: boolPtr(true)},
			},
			status: StatusAbsent,
		},
		{
			name: "one qualifying among many non-qualifying",
			records: []Record{
				{StudentID: "stu-1", TimeRecorded: "2026-03-09T07:00:00Z", WithinRadius: boolPtr(true)},
				{StudentID: "stu-1", TimeRecorded: "2026-03-09T08:30:00Z", WithinRadius: boolPtr(false)},
				{StudentID: "stu-1", TimeRecorded: "2026-03-09T09:00:00Z", WithinRadius: boolPtr(true)},
			},
			status: StatusPresent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := Classify(sess, roster(), tt.records)
			require.Len(t, rows, 2)
			require.Equal(t, tt.status, rows[0].Status)
			require.Equal(t, StatusAbsent, rows[1].Status, "stu-2 has no records")
		})
	}
}

func TestClassifyDiagnosticSelection(t *testing.T) {
	sess := testSession(t)

	t.Run("earliest qualifying record wins", func(t *testing.T) {
		records := []Record{
			{StudentID: "stu-1", TimeRecorded: "2026-03-09T08:20:00Z", WithinRadius: boolPtr(false), Latitude: "0.10", Longitude: "32.10"},
			{StudentID: "stu-1", TimeRecorded: "2026-03-09T08:25:00Z", WithinRadius: boolPtr(true), Latitude: "0.20", Longitude: "32.20"},
			{StudentID: "stu-1", TimeRecorded: "2026-03-09T09:00:00Z", WithinRadius: boolPtr(true), Latitude: "0.30", Longitude: "32.30"},
		}
		rows := Classify(sess, roster(), records)

		require.Equal(t, StatusPresent, rows[0].Status)
		require.NotNil(t, rows[0].TimeRecorded)
		require.True(t, rows[0].TimeRecorded.Equal(time.Date(2026, 3, 9, 8, 25, 0, 0, time.UTC)))
		require.Equal(t, "0.20", rows[0].Latitude, "qualifying record's coordinates surface, not the earlier failed one")
		require.Equal(t, "32.20", rows[0].Longitude)
	})

	t.Run("latest record surfaces when nothing qualifies", func(t *testing.T) {
		records := []Record{
			{StudentID: "stu-1", TimeRecorded: "2026-03-09T08:10:00Z", WithinRadius: boolPtr(false), Latitude: "0.10"},
			{StudentID: "stu-1", TimeRecorded: "2026-03-09T08:40:00Z", WithinRadius: boolPtr(false), Latitude: "0.40"},
		}
		rows := Classify(sess, roster(), records)

		require.Equal(t, StatusAbsent, rows[0].Status)
		require.NotNil(t, rows[0].TimeRecorded)
		require.True(t, rows[0].TimeRecorded.Equal(time.Date(2026, 3, 9, 8, 40, 0, 0, time.UTC)))
		require.Equal(t, "0.40", rows[0].Latitude)
	})

	t.Run("unparseable record sorts after parseable ones", func(t *testing.T) {
		records := []Record{
			{StudentID: "stu-1", TimeRecorded: "2026-03-09T08:40:00Z", WithinRadius: boolPtr(false), Latitude: "0.40"},
			{StudentID: "stu-1", TimeRecorded: "not-a-time", WithinRadius: boolPtr(false), Latitude: "0.99"},
		}
		rows := Classify(sess, roster(), records)

		require.Equal(t, StatusAbsent, rows[0].Status)
		require.Nil(t, rows[0].TimeRecorded, "unparseable timestamp stays absent in the row")
		require.Equal(t, "0.99", rows[0].Latitude)
	})

	t.Run("no records leaves all diagnostics empty", func(t *testing.T) {
		rows := Classify(sess, roster(), nil)

		require.Equal(t, StatusAbsent, rows[0].Status)
		require.Nil(t, rows[0].TimeRecorded)
		require.Nil(t, rows[0].WithinRadius)
		require.Empty(t, rows[0].Latitude)
		require.Empty(t, rows[0].Longitude)
	})
}

func TestClassifyRosterHandling(t *testing.T) {
	sess := testSession(t)

	t.Run("output follows roster order", func(t *testing.T) {
		rows := Classify(sess, roster(), nil)
		require.Equal(t, "stu-1", rows[0].StudentID)
		require.Equal(t, "stu-2", rows[1].StudentID)
		require.Equal(t, "Achan Grace", rows[0].StudentName)
	})

	t.Run("records outside the roster are ignored", func(t *testing.T) {
		records := []Record{
			{StudentID: "intruder", TimeRecorded: "2026-03-09T08:15:00Z", WithinRadius: boolPtr(true)},
		}
		rows := Classify(sess, roster(), records)
		require.Len(t, rows, 2, "no fabricated rows for non-roster students")
		for _, row := range rows {
			require.Equal(t, StatusAbsent, row.Status)
		}
	})

	t.Run("empty roster yields no rows", func(t *testing.T) {
		rows := Classify(sess, nil, []Record{
			{StudentID: "stu-1", TimeRecorded: "2026-03-09T08:15:00Z", WithinRadius: boolPtr(true)},
		})
		require.Empty(t, rows)
	})
}
