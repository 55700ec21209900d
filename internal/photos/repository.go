package photos

import (
	"context"
	"errors"

	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/kvstore"
)

// Repository handles photo rows.
type Repository struct {
	store kvstore.Store
}

// NewRepository creates a photos repository.
func NewRepository(store kvstore.Store) *Repository {
	return &Repository{store: store}
}

// Get returns the photo, or nil when absent.
func (r *Repository) Get(ctx context.Context, photoID string) (*models.Photo, error) {
	var p models.Photo
	err := r.store.Get(ctx, models.PhotoKey(photoID), &p)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a photo row.
func (r *Repository) Create(ctx context.Context, p *models.Photo) error {
	return r.store.Create(ctx, p)
}

// Delete removes a photo row.
func (r *Repository) Delete(ctx context.Context, photoID string) error {
	return r.store.Delete(ctx, models.PhotoKey(photoID))
}

// ListByEvent returns the event's photos in upload order.
func (r *Repository) ListByEvent(ctx context.Context, eventID string) ([]models.Photo, error) {
	return kvstore.QueryAll[models.Photo](ctx, r.store, kvstore.Query{
		Index:      kvstore.IndexGSI1,
		Partition:  models.EventPK(eventID),
		SortPrefix: models.PrefixPhoto,
	})
}
