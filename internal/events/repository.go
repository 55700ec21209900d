package events

import (
	"context"
	"errors"

	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/kvstore"
)

// Repository handles event and attendance rows.
type Repository struct {
	store kvstore.Store
}

// NewRepository creates an events repository.
func NewRepository(store kvstore.Store) *Repository {
	return &Repository{store: store}
}

// Get returns the event, or nil when absent.
func (r *Repository) Get(ctx context.Context, eventID string) (*models.Event, error) {
	var ev models.Event
	err := r.store.Get(ctx, models.EventKey(eventID), &ev)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, ev *models.Event) error {
	return r.store.Create(ctx, ev)
}

// Update replaces the event row.
func (r *Repository) Update(ctx context.Context, ev *models.Event) error {
	return r.store.Put(ctx, ev)
}

// Delete removes the event row only.
func (r *Repository) Delete(ctx context.Context, eventID string) error {
	return r.store.Delete(ctx, models.EventKey(eventID))
}

// ListByOrg returns one page of the organization's events in date order.
func (r *Repository) ListByOrg(ctx context.Context, orgName string, publicOnly bool, page models.PageRequest) ([]models.Event, string, error) {
	q := kvstore.Query{
		Index:      kvstore.IndexGSI1,
		Partition:  models.OrgPK(orgName),
		SortPrefix: models.PrefixEvent,
		Limit:      page.Limit,
		Cursor:     page.Cursor,
	}
	if publicOnly {
		q.Filter = map[string]interface{}{"isPublic": true}
	}
	var evs []models.Event
	next, err := r.store.Query(ctx, q, &evs)
	return evs, next, err
}

// ListAllByOrg returns every event of the organization.
func (r *Repository) ListAllByOrg(ctx context.Context, orgName string) ([]models.Event, error) {
	return kvstore.QueryAll[models.Event](ctx, r.store, kvstore.Query{
		Index:      kvstore.IndexGSI1,
		Partition:  models.OrgPK(orgName),
		SortPrefix: models.PrefixEvent,
	})
}

// HasAny reports whether the organization has at least one event.
func (r *Repository) HasAny(ctx context.Context, orgName string) (bool, error) {
	evs, _, err := r.ListByOrg(ctx, orgName, false, models.PageRequest{Limit: 1})
	if err != nil {
		return false, err
	}
	return len(evs) > 0, nil
}

// GetAttendance returns the attendance record, or nil when absent.
func (r *Repository) GetAttendance(ctx context.Context, eventID, userID string) (*models.Attendance, error) {
	var a models.Attendance
	err := r.store.Get(ctx, models.AttendanceKey(eventID, userID), &a)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// IsAttending reports whether an attendance record exists.
func (r *Repository) IsAttending(ctx context.Context, eventID, userID string) (bool, error) {
	a, err := r.GetAttendance(ctx, eventID, userID)
	return a != nil, err
}

// CreateAttendance writes an attendance record; kvstore.ErrConditionFailed
// means the user already attends.
func (r *Repository) CreateAttendance(ctx context.Context, a *models.Attendance) error {
	return r.store.Create(ctx, a)
}

// DeleteAttendance removes an attendance record.
func (r *Repository) DeleteAttendance(ctx context.Context, eventID, userID string) error {
	return r.store.Delete(ctx, models.AttendanceKey(eventID, userID))
}

// ListAttendees returns every attendance record of the event.
func (r *Repository) ListAttendees(ctx context.Context, eventID string) ([]models.Attendance, error) {
	return kvstore.QueryAll[models.Attendance](ctx, r.store, kvstore.Query{
		Index:      kvstore.IndexGSI1,
		Partition:  models.EventPK(eventID),
		SortPrefix: models.PrefixUser,
	})
}
