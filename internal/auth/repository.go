package auth

import (
	"context"
	"errors"

	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/kvstore"
)

// Repository handles user persistence.
type Repository struct {
	store kvstore.Store
}

// NewRepository creates an auth repository.
func NewRepository(store kvstore.Store) *Repository {
	return &Repository{store: store}
}

// GetByID returns a user by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := r.store.Get(ctx, models.UserKey(id), &u)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks the user up through the email index, or nil when absent.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := kvstore.QueryFirst[models.User](ctx, r.store, kvstore.Query{
		Index:      kvstore.IndexGSI1,
		Partition:  models.EmailGSI(email),
		SortPrefix: models.PrefixUser,
	})
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// Create inserts a new user; the id must be unused.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	return r.store.Create(ctx, u)
}

// Update replaces the stored user.
func (r *Repository) Update(ctx context.Context, u *models.User) error {
	return r.store.Put(ctx, u)
}

// Delete removes the user row.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, models.UserKey(id))
}

// ListAttendance returns the user's attendance rows.
func (r *Repository) ListAttendance(ctx context.Context, userID string) ([]models.Attendance, error) {
	return kvstore.QueryAll[models.Attendance](ctx, r.store, kvstore.Query{
		Partition:  models.UserPK(userID),
		SortPrefix: models.PrefixEvent,
	})
}

// ListMemberships returns the user's organization memberships.
func (r *Repository) ListMemberships(ctx context.Context, userID string) ([]models.Membership, error) {
	return kvstore.QueryAll[models.Membership](ctx, r.store, kvstore.Query{
		Partition:  models.UserPK(userID),
		SortPrefix: models.PrefixOrg,
	})
}

// ListRequests returns the user's pending membership requests.
func (r *Repository) ListRequests(ctx context.Context, userID string) ([]models.MembershipRequest, error) {
	return kvstore.QueryAll[models.MembershipRequest](ctx, r.store, kvstore.Query{
		Index:      kvstore.IndexGSI1,
		Partition:  models.UserPK(userID),
		SortPrefix: models.PrefixRequest,
	})
}

// DeleteKey removes one row owned by the user.
func (r *Repository) DeleteKey(ctx context.Context, key kvstore.Key) error {
	return r.store.Delete(ctx, key)
}
