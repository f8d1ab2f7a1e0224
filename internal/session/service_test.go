package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestService(repo *memRepo, pub EventPublisher, now time.Time) *Service {
	sched := NewScheduler(repo, fixtureAcademics(), fixtureUsers())
	svc := NewService(repo, sched, pub)
	svc.now = func() time.Time { return now }
	return svc
}

func seed(t *testing.T, repo *memRepo, id string, start, end time.Time) Session {
	t.Helper()
	s := candidate(t, start, end)
	s.ID = id
	repo.sessions[id] = s
	return s
}

func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func validCreateRequest() CreateRequest {
	return CreateRequest{
		ProgramID: "prg-1",
		CourseID:  "crs-1",
		Start:     "2026-03-09T10:00:00Z",
		End:       "2026-03-09T11:00:00Z",
		Latitude:  floatPtr(0.3476),
		Longitude: floatPtr(32.5825),
	}
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("persists and publishes session.created", func(t *testing.T) {
		repo := newMemRepo()
		pub := &capturePublisher{}
		svc := newTestService(repo, pub, at(9, 0))

		view, err := svc.Create(ctx, "lect-1", validCreateRequest())
		require.NoError(t, err)
		require.NotEmpty(t, view.SessionID)
		require.Equal(t, "lect-1", view.LecturerID)
		require.True(t, view.TimeCreated.Equal(at(10, 0)))
		require.True(t, view.TimeEnded.Equal(at(11, 0)))
		require.Equal(t, StatusCreated, view.Status)
		require.Equal(t, DefaultRadiusMeters, view.RadiusMeters)

		require.Len(t, pub.events, 1)
		require.Equal(t, "session.created", pub.events[0].name)
		require.Equal(t, view.SessionID, pub.events[0].payload["session_id"])
		require.Equal(t, "prg-1", pub.events[0].payload["program_id"])
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		repo := newMemRepo()
		svc := newTestService(repo, &capturePublisher{}, at(9, 0))

		tests := []struct {
			name   string
			mutate func(*CreateRequest)
		}{
			{name: "missing program", mutate: func(r *CreateRequest) { r.ProgramID = "" }},
			{name: "missing course", mutate: func(r *CreateRequest) { r.CourseID = "" }},
			{name: "missing start", mutate: func(r *CreateRequest) { r.Start = "" }},
			{name: "non-ISO start", mutate: func(r *CreateRequest) { r.Start = "today 10am" }},
			{name: "missing latitude", mutate: func(r *CreateRequest) { r.Latitude = nil }},
			{name: "missing longitude", mutate: func(r *CreateRequest) { r.Longitude = nil }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := validCreateRequest()
				tt.mutate(&req)
				_, err := svc.Create(ctx, "lect-1", req)
				var validation *ValidationError
				require.ErrorAs(t, err, &validation)
				require.Empty(t, repo.sessions)
			})
		}
	})

	t.Run("rejects duration outside bounds", func(t *testing.T) {
		svc := newTestService(newMemRepo(), &capturePublisher{}, at(9, 0))

		req := validCreateRequest()
		req.End = "2026-03-09T10:10:00Z"
		_, err := svc.Create(ctx, "lect-1", req)
		require.ErrorIs(t, err, ErrInvalidTimeWindow)
	})

	t.Run("no event on rejected creation", func(t *testing.T) {
		repo := newMemRepo()
		pub := &capturePublisher{}
		svc := newTestService(repo, pub, at(9, 0))

		seed(t, repo, "existing", at(10, 0), at(11, 0))
		_, err := svc.Create(ctx, "lect-1", validCreateRequest())
		require.ErrorIs(t, err, ErrOverlappingSession)
		require.Empty(t, pub.events)
	})
}

func TestServiceGet(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newTestService(repo, &capturePublisher{}, at(10, 30))
	seed(t, repo, "sess-1", at(10, 0), at(11, 0))

	t.Run("owner reads the session", func(t *testing.T) {
		view, err := svc.Get(ctx, "lect-1", "sess-1")
		require.NoError(t, err)
		require.Equal(t, "sess-1", view.SessionID)
		require.Equal(t, StatusActive, view.Status)
	})

	t.Run("other lecturer is refused", func(t *testing.T) {
		_, err := svc.Get(ctx, "lect-2", "sess-1")
		require.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.Get(ctx, "lect-1", "missing")
		require.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestServiceEnd(t *testing.T) {
	ctx := context.Background()

	t.Run("end before minimum duration clamps to the floor", func(t *testing.T) {
		repo := newMemRepo()
		svc := newTestService(repo, &capturePublisher{}, at(10, 10))
		seed(t, repo, "sess-1", at(10, 0), at(11, 0))

		view, err := svc.End(ctx, "lect-1", "sess-1")
		require.NoError(t, err)
		require.True(t, view.TimeEnded.Equal(at(10, 30)), "end clamps to start+MinDuration")

		again, err := svc.End(ctx, "lect-1", "sess-1")
		require.NoError(t, err)
		require.True(t, again.TimeEnded.Equal(at(10, 30)), "second end converges to same floor")
	})

	t.Run("end after minimum duration uses now", func(t *testing.T) {
		repo := newMemRepo()
		svc := newTestService(repo, &capturePublisher{}, at(10, 45))
		seed(t, repo, "sess-1", at(10, 0), at(11, 0))

		view, err := svc.End(ctx, "lect-1", "sess-1")
		require.NoError(t, err)
		require.True(t, view.TimeEnded.Equal(at(10, 45)))
	})

	t.Run("only the owner can end", func(t *testing.T) {
		repo := newMemRepo()
		svc := newTestService(repo, &capturePublisher{}, at(10, 10))
		seed(t, repo, "sess-1", at(10, 0), at(11, 0))

		_, err := svc.End(ctx, "lect-2", "sess-1")
		require.ErrorIs(t, err, ErrNotOwner)
	})
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("partial update keeps unset fields", func(t *testing.T) {
		repo := newMemRepo()
		svc := newTestService(repo, &capturePublisher{}, at(9, 0))
		seed(t, repo, "sess-1", at(10, 0), at(11, 0))

		view, err := svc.Update(ctx, "lect-1", "sess-1", UpdateRequest{
			End:      strPtr("2026-03-09T11:30:00Z"),
			StreamID: strPtr("str-a"),
		})
		require.NoError(t, err)
		require.True(t, view.TimeCreated.Equal(at(10, 0)), "start unchanged")
		require.True(t, view.TimeEnded.Equal(at(11, 30)))
		require.Equal(t, "str-a", view.StreamID)
		require.Equal(t, 0.3476, view.Latitude, "location unchanged")
	})

	t.Run("re-validates window bounds", func(t *testing.T) {
		repo := newMemRepo()
		svc := newTestService(repo, &capturePublisher{}, at(9, 0))
		seed(t, repo, "sess-1", at(10, 0), at(11, 0))

		_, err := svc.Update(ctx, "lect-1", "sess-1", UpdateRequest{
			End: strPtr("2026-03-09T10:05:00Z"),
		})
		require.ErrorIs(t, err, ErrInvalidTimeWindow)
	})

	t.Run("re-validates coordinates", func(t *testing.T) {
		repo := newMemRepo()
		svc := newTestService(repo, &capturePublisher{}, at(9, 0))
		seed(t, repo, "sess-1", at(10, 0), at(11, 0))

		_, err := svc.Update(ctx, "lect-1", "sess-1", UpdateRequest{
			Latitude: floatPtr(120),
		})
		require.ErrorIs(t, err, ErrInvalidLocation)
	})

	t.Run("moving onto another session is rejected", func(t *testing.T) {
		repo := newMemRepo()
		svc := newTestService(repo, &capturePublisher{}, at(9, 0))
		seed(t, repo, "sess-1", at(10, 0), at(11, 0))
		seed(t, repo, "sess-2", at(12, 0), at(13, 0))

		_, err := svc.Update(ctx, "lect-1", "sess-1", UpdateRequest{
			Start: strPtr("2026-03-09T12:30:00Z"),
			End:   strPtr("2026-03-09T13:30:00Z"),
		})
		require.ErrorIs(t, err, ErrOverlappingSession)
	})
}

func TestServiceList(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newTestService(repo, &capturePublisher{}, at(9, 0))

	seed(t, repo, "sess-1", at(8, 0), at(9, 0))
	seed(t, repo, "sess-2", at(10, 0), at(11, 0))
	third := seed(t, repo, "sess-3", at(12, 0), at(13, 0))
	third.ProgramID = "prg-2"
	repo.sessions["sess-3"] = third

	t.Run("paginates newest first", func(t *testing.T) {
		page, err := svc.List(ctx, "lect-1", ListFilter{Page: 1, PageSize: 2})
		require.NoError(t, err)
		require.Equal(t, 3, page.TotalCount)
		require.Equal(t, 2, page.TotalPages)
		require.True(t, page.HasNext)
		require.False(t, page.HasPrevious)
		require.Len(t, page.Results, 2)
		require.Equal(t, "sess-3", page.Results[0].SessionID)
		require.Equal(t, "sess-2", page.Results[1].SessionID)

		last, err := svc.List(ctx, "lect-1", ListFilter{Page: 2, PageSize: 2})
		require.NoError(t, err)
		require.False(t, last.HasNext)
		require.True(t, last.HasPrevious)
		require.Len(t, last.Results, 1)
		require.Equal(t, "sess-1", last.Results[0].SessionID)
	})

	t.Run("filters by program", func(t *testing.T) {
		page, err := svc.List(ctx, "lect-1", ListFilter{ProgramID: "prg-2"})
		require.NoError(t, err)
		require.Equal(t, 1, page.TotalCount)
		require.Equal(t, "sess-3", page.Results[0].SessionID)
	})

	t.Run("filters by time range", func(t *testing.T) {
		from := at(9, 30)
		to := at(11, 30)
		page, err := svc.List(ctx, "lect-1", ListFilter{From: &from, To: &to})
		require.NoError(t, err)
		require.Equal(t, 1, page.TotalCount)
		require.Equal(t, "sess-2", page.Results[0].SessionID)
	})

	t.Run("other lecturer sees nothing", func(t *testing.T) {
		page, err := svc.List(ctx, "lect-2", ListFilter{})
		require.NoError(t, err)
		require.Zero(t, page.TotalCount)
		require.Empty(t, page.Results)
	})
}
