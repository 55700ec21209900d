package tags

import (
	"context"

	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/kvstore"
)

// Repository handles tag rows.
type Repository struct {
	store kvstore.Store
}

// NewRepository creates a tags repository.
func NewRepository(store kvstore.Store) *Repository {
	return &Repository{store: store}
}

// Create inserts a tag.
func (r *Repository) Create(ctx context.Context, t *models.Tag) error {
	return r.store.Create(ctx, t)
}

// Delete removes a tag by id.
func (r *Repository) Delete(ctx context.Context, tagID string) error {
	return r.store.Delete(ctx, models.TagKey(tagID))
}

// Find returns the tag of userID in photoID, or nil when absent.
func (r *Repository) Find(ctx context.Context, photoID, userID string) (*models.Tag, error) {
	tags, err := kvstore.QueryAll[models.Tag](ctx, r.store, kvstore.Query{
		Index:      kvstore.IndexGSI2,
		Partition:  models.PhotoPK(photoID),
		SortPrefix: models.UserPK(userID),
	})
	if err != nil {
		return nil, err
	}
	for i := range tags {
		if tags[i].UserID == userID {
			return &tags[i], nil
		}
	}
	return nil, nil
}

// ListByPhoto returns every tag on the photo.
func (r *Repository) ListByPhoto(ctx context.Context, photoID string) ([]models.Tag, error) {
	return kvstore.QueryAll[models.Tag](ctx, r.store, kvstore.Query{
		Index:      kvstore.IndexGSI2,
		Partition:  models.PhotoPK(photoID),
		SortPrefix: models.PrefixUser,
	})
}

// ListByUser returns the user's tags, oldest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]models.Tag, error) {
	return kvstore.QueryAll[models.Tag](ctx, r.store, kvstore.Query{
		Index:      kvstore.IndexGSI1,
		Partition:  models.UserPK(userID),
		SortPrefix: models.PrefixTag,
	})
}
