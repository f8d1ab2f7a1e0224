package session

import (
	"context"
	"time"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service is the orchestration layer the transport calls into. It translates
// raw payloads into validated domain values, asserts ownership, and delegates
// booking invariants to the scheduler.
type Service struct {
	repo      Repository
	scheduler *Scheduler
	events    EventPublisher
	now       func() time.Time
}

// NewService creates the use-case layer.
func NewService(repo Repository, scheduler *Scheduler, events EventPublisher) *Service {
	return &Service{repo: repo, scheduler: scheduler, events: events, now: time.Now}
}

// CreateRequest carries the raw payload for a new session. The lecturer is
// never part of the payload; it comes from the authenticated caller.
type CreateRequest struct {
	ProgramID           string   `json:"program_id"`
	CourseID            string   `json:"course_id"`
	StreamID            string   `json:"stream_id"`
	Start               string   `json:"start"`
	End                 string   `json:"end"`
	Latitude            *float64 `json:"latitude"`
	Longitude           *float64 `json:"longitude"`
	LocationDescription string   `json:"location_description"`
	RadiusMeters        float64  `json:"radius_meters"`
}

// UpdateRequest carries a partial replacement payload. Nil fields keep the
// stored value.
type UpdateRequest struct {
	Start               *string  `json:"start"`
	End                 *string  `json:"end"`
	StreamID            *string  `json:"stream_id"`
	Latitude            *float64 `json:"latitude"`
	Longitude           *float64 `json:"longitude"`
	LocationDescription *string  `json:"location_description"`
	RadiusMeters        *float64 `json:"radius_meters"`
}

// View is the plain session representation returned to transport callers.
type View struct {
	SessionID           string    `json:"session_id"`
	ProgramID           string    `json:"program_id"`
	CourseID            string    `json:"course_id"`
	LecturerID          string    `json:"lecturer_id"`
	StreamID            string    `json:"stream_id,omitempty"`
	DateCreated         time.Time `json:"date_created"`
	TimeCreated         time.Time `json:"time_created"`
	TimeEnded           time.Time `json:"time_ended"`
	Latitude            float64   `json:"latitude"`
	Longitude           float64   `json:"longitude"`
	LocationDescription string    `json:"location_description,omitempty"`
	RadiusMeters        float64   `json:"radius_meters"`
	Status              string    `json:"status"`
}

// Page wraps one page of session views.
type Page struct {
	Results     []View `json:"results"`
	TotalCount  int    `json:"total_count"`
	Page        int    `json:"page"`
	PageSize    int    `json:"page_size"`
	TotalPages  int    `json:"total_pages"`
	HasNext     bool   `json:"has_next"`
	HasPrevious bool   `json:"has_previous"`
}

// Create validates the payload, runs the booking invariants and persists the
// session. On success a session.created event goes out best-effort.
func (s *Service) Create(ctx context.Context, lecturerID string, req CreateRequest) (View, error) {
	if req.ProgramID == "" {
		return View{}, invalidField("program_id", "required")
	}
	if req.CourseID == "" {
		return View{}, invalidField("course_id", "required")
	}
	window, err := parseWindow(req.Start, req.End)
	if err != nil {
		return View{}, err
	}
	loc, err := parseLocation(req.Latitude, req.Longitude, req.LocationDescription, req.RadiusMeters)
	if err != nil {
		return View{}, err
	}

	candidate := Session{
		ProgramID:   req.ProgramID,
		CourseID:    req.CourseID,
		LecturerID:  lecturerID,
		StreamID:    req.StreamID,
		DateCreated: s.now().UTC(),
		Window:      window,
		Location:    loc,
	}

	created, err := s.scheduler.CreateSession(ctx, candidate)
	if err != nil {
		return View{}, err
	}

	s.events.Publish(ctx, "session.created", map[string]string{
		"session_id": created.ID,
		"program_id": created.ProgramID,
		"stream_id":  created.StreamID,
	})

	return s.view(created), nil
}

// Get loads one session owned by the calling lecturer.
func (s *Service) Get(ctx context.Context, lecturerID, sessionID string) (View, error) {
	sess, err := s.owned(ctx, lecturerID, sessionID)
	if err != nil {
		return View{}, err
	}
	return s.view(sess), nil
}

// List returns a page of the lecturer's sessions, optionally filtered by
// program, course, stream and time range.
func (s *Service) List(ctx context.Context, lecturerID string, filter ListFilter) (Page, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}

	sessions, total, err := s.repo.ListByLecturer(ctx, lecturerID, filter)
	if err != nil {
		return Page{}, err
	}

	views := make([]View, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, s.view(sess))
	}

	totalPages := (total + filter.PageSize - 1) / filter.PageSize
	return Page{
		Results:     views,
		TotalCount:  total,
		Page:        filter.Page,
		PageSize:    filter.PageSize,
		TotalPages:  totalPages,
		HasNext:     filter.Page < totalPages,
		HasPrevious: filter.Page > 1,
	}, nil
}

// End closes a session early. The new end is max(now, start+MinDuration), so
// a session can never be shortened below the minimum duration and a repeated
// call around the same instant converges to the same floor.
func (s *Service) End(ctx context.Context, lecturerID, sessionID string) (View, error) {
	sess, err := s.owned(ctx, lecturerID, sessionID)
	if err != nil {
		return View{}, err
	}

	now := s.now().UTC()
	newEnd := sess.Window.Start().Add(MinDuration)
	if now.After(newEnd) {
		newEnd = now
	}
	window, err := NewTimeWindow(sess.Window.Start(), newEnd)
	if err != nil {
		return View{}, err
	}

	sess.Window = window
	saved, err := s.repo.Save(ctx, sess)
	if err != nil {
		return View{}, err
	}
	return s.view(saved), nil
}

// Update replaces the session's window, location or stream with whatever
// subset the payload carries, re-validating all bounds.
func (s *Service) Update(ctx context.Context, lecturerID, sessionID string, req UpdateRequest) (View, error) {
	sess, err := s.owned(ctx, lecturerID, sessionID)
	if err != nil {
		return View{}, err
	}

	start := sess.Window.Start()
	end := sess.Window.End()
	if req.Start != nil {
		if start, err = parseInstant("start", *req.Start); err != nil {
			return View{}, err
		}
	}
	if req.End != nil {
		if end, err = parseInstant("end", *req.End); err != nil {
			return View{}, err
		}
	}
	window, err := NewTimeWindow(start, end)
	if err != nil {
		return View{}, err
	}

	lat := sess.Location.Latitude()
	lon := sess.Location.Longitude()
	desc := sess.Location.Description()
	radius := sess.Location.RadiusMeters()
	if req.Latitude != nil {
		lat = *req.Latitude
	}
	if req.Longitude != nil {
		lon = *req.Longitude
	}
	if req.LocationDescription != nil {
		desc = *req.LocationDescription
	}
	if req.RadiusMeters != nil {
		radius = *req.RadiusMeters
	}
	loc, err := NewLocation(lat, lon, desc, radius)
	if err != nil {
		return View{}, err
	}

	if req.StreamID != nil {
		sess.StreamID = *req.StreamID
	}
	sess.Window = window
	sess.Location = loc

	saved, err := s.repo.Save(ctx, sess)
	if err != nil {
		return View{}, err
	}
	return s.view(saved), nil
}

// Load fetches an owned session as a domain entity, for callers that need
// more than the plain view (attendance classification, report generation).
func (s *Service) Load(ctx context.Context, lecturerID, sessionID string) (Session, error) {
	return s.owned(ctx, lecturerID, sessionID)
}

func (s *Service) owned(ctx context.Context, lecturerID, sessionID string) (Session, error) {
	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if sess.LecturerID != lecturerID {
		return Session{}, ErrNotOwner
	}
	return sess, nil
}

func (s *Service) view(sess Session) View {
	return View{
		SessionID:           sess.ID,
		ProgramID:           sess.ProgramID,
		CourseID:            sess.CourseID,
		LecturerID:          sess.LecturerID,
		StreamID:            sess.StreamID,
		DateCreated:         sess.DateCreated,
		TimeCreated:         sess.Window.Start(),
		TimeEnded:           sess.Window.End(),
		Latitude:            sess.Location.Latitude(),
		Longitude:           sess.Location.Longitude(),
		LocationDescription: sess.Location.Description(),
		RadiusMeters:        sess.Location.RadiusMeters(),
		Status:              sess.Status(s.now()),
	}
}

func parseWindow(start, end string) (TimeWindow, error) {
	startAt, err := parseInstant("start", start)
	if err != nil {
		return TimeWindow{}, err
	}
	endAt, err := parseInstant("end", end)
	if err != nil {
		return TimeWindow{}, err
	}
	return NewTimeWindow(startAt, endAt)
}

func parseInstant(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, invalidField(field, "required")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, invalidField(field, "must be an RFC 3339 timestamp")
	}
	return t, nil
}

func parseLocation(lat, lon *float64, description string, radius float64) (Location, error) {
	if lat == nil {
		return Location{}, invalidField("latitude", "required")
	}
	if lon == nil {
		return Location{}, invalidField("longitude", "required")
	}
	return NewLocation(*lat, *lon, description, radius)
}
