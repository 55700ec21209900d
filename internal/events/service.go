package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/apperr"
	"github.com/photocomp/backend/pkg/batch"
	"github.com/photocomp/backend/pkg/enrich"
	"github.com/photocomp/backend/pkg/kvstore"
	"github.com/photocomp/backend/pkg/weather"
)

// Accepted event date layouts; the first is the canonical one.
var dateLayouts = []string{"2006-01-02", time.RFC3339}

// PhotoRemover deletes every photo of an event along with its tags and blobs.
type PhotoRemover interface {
	DeleteEventPhotos(ctx context.Context, eventID string) batch.Summary
}

// CreateEventInput holds the fields of a new event.
type CreateEventInput struct {
	Title       string
	Description string
	Date        string
	Location    string
	IsPublic    *bool
}

// UpdateEventInput holds optional changes; nil fields are left as they are.
type UpdateEventInput struct {
	Title       *string
	Description *string
	Date        *string
	Location    *string
}

// Service implements events and attendance.
type Service struct {
	repo    *Repository
	weather weather.Provider
	photos  PhotoRemover
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates the events service. A nil weather provider disables
// forecasts.
func NewService(repo *Repository, provider weather.Provider, photos PhotoRemover, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, weather: provider, photos: photos, logger: logger, now: time.Now}
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// forecast looks up the weather for the event. Failures are reported as a
// skipped result, never as an error.
func (s *Service) forecast(ctx context.Context, location, date string) enrich.Result[*weather.Forecast] {
	if s.weather == nil {
		return enrich.Skip[*weather.Forecast]("weather provider disabled")
	}
	day, ok := parseDate(date)
	if !ok {
		return enrich.Skip[*weather.Forecast]("unparseable event date")
	}
	return enrich.Try(func() (*weather.Forecast, error) {
		return s.weather.Forecast(ctx, location, day)
	})
}

func (s *Service) attachWeather(ctx context.Context, ev *models.Event) {
	if ev.Location == "" {
		ev.Weather = nil
		return
	}
	res := s.forecast(ctx, ev.Location, ev.Date)
	if res.Skipped {
		s.logger.Warn("weather enrichment skipped", zap.String("event_id", ev.ID), zap.String("reason", res.Reason))
	}
	ev.Weather = res.Or(nil)
}

// AddEventToOrganization creates an event for the organization.
func (s *Service) AddEventToOrganization(ctx context.Context, orgName string, in CreateEventInput, creatorID string) (*models.Event, error) {
	if strings.TrimSpace(orgName) == "" {
		return nil, apperr.BadRequest("Organization name is required")
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Description) == "" || strings.TrimSpace(in.Date) == "" {
		return nil, apperr.BadRequest("Title, description and date are required")
	}
	ev := models.NewEvent(uuid.New().String(), orgName, in.Title, in.Description, in.Date, creatorID, s.now().UTC())
	if in.IsPublic != nil {
		ev.IsPublic = *in.IsPublic
	}
	ev.Location = strings.TrimSpace(in.Location)
	s.attachWeather(ctx, ev)

	if err := s.repo.Create(ctx, ev); err != nil {
		return nil, apperr.Wrap(err, "Failed to create event")
	}
	s.logger.Info("event created", zap.String("event_id", ev.ID), zap.String("org", orgName))
	return ev, nil
}

// GetEvent returns the event or NotFound.
func (s *Service) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	ev, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to load event")
	}
	if ev == nil {
		return nil, apperr.NotFound("Event not found")
	}
	return ev, nil
}

// UpdateEvent applies in to the event. A changed date or location refreshes
// the forecast.
func (s *Service) UpdateEvent(ctx context.Context, eventID string, in UpdateEventInput) (*models.Event, error) {
	ev, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	refresh := false
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, apperr.BadRequest("Title cannot be empty")
		}
		ev.Title = *in.Title
	}
	if in.Description != nil {
		ev.Description = *in.Description
	}
	if in.Date != nil && *in.Date != ev.Date {
		if strings.TrimSpace(*in.Date) == "" {
			return nil, apperr.BadRequest("Date cannot be empty")
		}
		ev.Date = *in.Date
		ev.GSI1SK = models.EventPK(ev.Date + "#" + ev.ID)
		refresh = true
	}
	if in.Location != nil && strings.TrimSpace(*in.Location) != ev.Location {
		ev.Location = strings.TrimSpace(*in.Location)
		refresh = true
	}
	if refresh {
		s.attachWeather(ctx, ev)
	}
	ev.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, ev); err != nil {
		return nil, apperr.Wrap(err, "Failed to update event")
	}
	return ev, nil
}

func (s *Service) list(ctx context.Context, orgName string, publicOnly bool, page models.PageRequest) (*models.Page[models.Event], error) {
	evs, next, err := s.repo.ListByOrg(ctx, orgName, publicOnly, page.Normalize())
	if err != nil {
		if errors.Is(err, kvstore.ErrInvalidCursor) {
			return nil, apperr.BadRequest("Invalid pagination cursor")
		}
		return nil, apperr.Wrap(err, "Failed to list events")
	}
	return models.NewPage(evs, next), nil
}

// GetAllOrganizationEvents returns one page of the organization's events.
func (s *Service) GetAllOrganizationEvents(ctx context.Context, orgName string, page models.PageRequest) (*models.Page[models.Event], error) {
	return s.list(ctx, orgName, false, page)
}

// GetAllPublicOrganizationEvents returns one page of public events. A page
// may hold fewer items than the limit while NextCursor is still set.
func (s *Service) GetAllPublicOrganizationEvents(ctx context.Context, orgName string, page models.PageRequest) (*models.Page[models.Event], error) {
	return s.list(ctx, orgName, true, page)
}

// HasEvents reports whether the organization has any event.
func (s *Service) HasEvents(ctx context.Context, orgName string) (bool, error) {
	ok, err := s.repo.HasAny(ctx, orgName)
	if err != nil {
		return false, apperr.Wrap(err, "Failed to check organization events")
	}
	return ok, nil
}

// EventOrganization returns the name of the organization owning the event.
func (s *Service) EventOrganization(ctx context.Context, eventID string) (string, error) {
	ev, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return "", err
	}
	return ev.OrgName, nil
}

// IsAttending reports whether userID attends the event; lookup errors count
// as not attending.
func (s *Service) IsAttending(ctx context.Context, eventID, userID string) bool {
	ok, err := s.repo.IsAttending(ctx, eventID, userID)
	if err != nil {
		s.logger.Warn("attendance lookup failed", zap.String("event_id", eventID), zap.Error(err))
		return false
	}
	return ok
}

// FindEventUserByUser returns the attendance record or BadRequest.
func (s *Service) FindEventUserByUser(ctx context.Context, eventID, userID string) (*models.Attendance, error) {
	a, err := s.repo.GetAttendance(ctx, eventID, userID)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to load attendance")
	}
	if a == nil {
		return nil, apperr.BadRequest("User is not attending this event")
	}
	return a, nil
}

// UpdateEventPublicity flips the event's isPublic flag.
func (s *Service) UpdateEventPublicity(ctx context.Context, event *models.Event) (*models.Event, error) {
	if event == nil {
		return nil, apperr.BadRequest("Event is required")
	}
	current, err := s.repo.Get(ctx, event.ID)
	if err != nil || current == nil {
		return nil, apperr.BadRequest("Failed to update event publicity")
	}
	current.IsPublic = !current.IsPublic
	current.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, current); err != nil {
		return nil, apperr.Wrap(err, "Failed to update event publicity")
	}
	return current, nil
}

// AddEventUser records userID as attending.
func (s *Service) AddEventUser(ctx context.Context, eventID, userID string) (*models.Attendance, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	a := models.NewAttendance(eventID, userID, s.now().UTC())
	if err := s.repo.CreateAttendance(ctx, a); err != nil {
		if errors.Is(err, kvstore.ErrConditionFailed) {
			return nil, apperr.Conflict("User is already attending this event")
		}
		return nil, apperr.Wrap(err, "Failed to attend event")
	}
	return a, nil
}

// RemoveEventUser deletes userID's attendance record.
func (s *Service) RemoveEventUser(ctx context.Context, eventID, userID string) error {
	if _, err := s.FindEventUserByUser(ctx, eventID, userID); err != nil {
		return err
	}
	if err := s.repo.DeleteAttendance(ctx, eventID, userID); err != nil {
		return apperr.Wrap(err, "Failed to leave event")
	}
	return nil
}

// ListEventAttendees returns the event's attendance records.
func (s *Service) ListEventAttendees(ctx context.Context, eventID string) ([]models.Attendance, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	list, err := s.repo.ListAttendees(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to list attendees")
	}
	if list == nil {
		list = []models.Attendance{}
	}
	return list, nil
}

// DeleteEvent removes the event's attendance records, its photos, then the
// event row. Child failures are collected in the summary and do not stop
// the cascade.
func (s *Service) DeleteEvent(ctx context.Context, eventID string) (batch.Summary, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return batch.Summary{}, err
	}

	var summary batch.Summary
	attendees, err := s.repo.ListAttendees(ctx, eventID)
	if err != nil {
		summary.Merge(batch.Summary{Attempted: 1, Failures: []batch.Failure{{ID: "attendance", Err: err}}})
	}
	ops := make([]batch.Op, 0, len(attendees))
	for _, a := range attendees {
		userID := a.UserID
		ops = append(ops, batch.Op{ID: "attendance:" + userID, Run: func(ctx context.Context) error {
			return s.repo.DeleteAttendance(ctx, eventID, userID)
		}})
	}
	summary.Merge(batch.Run(ctx, ops))

	if s.photos != nil {
		summary.Merge(s.photos.DeleteEventPhotos(ctx, eventID))
	}

	if err := s.repo.Delete(ctx, eventID); err != nil {
		s.logger.Error("event row delete failed", zap.String("event_id", eventID), zap.Error(err))
		return summary, apperr.Wrap(err, "Failed to delete event")
	}
	if !summary.OK() {
		s.logger.Warn("event deleted with failures",
			zap.String("event_id", eventID),
			zap.Int("failed", len(summary.Failures)),
			zap.Error(summary.Err()))
	}
	s.logger.Info("event deleted", zap.String("event_id", eventID), zap.Int("children", summary.Attempted))
	return summary, nil
}
