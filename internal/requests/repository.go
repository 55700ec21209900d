package requests

import (
	"context"
	"errors"

	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/kvstore"
)

// Repository handles pending membership request rows.
type Repository struct {
	store kvstore.Store
}

// NewRepository creates a requests repository.
func NewRepository(store kvstore.Store) *Repository {
	return &Repository{store: store}
}

// Create writes a request; kvstore.ErrConditionFailed means one already exists.
func (r *Repository) Create(ctx context.Context, req *models.MembershipRequest) error {
	return r.store.Create(ctx, req)
}

// Get returns the pending request, or nil when absent.
func (r *Repository) Get(ctx context.Context, orgName, userID string) (*models.MembershipRequest, error) {
	var req models.MembershipRequest
	err := r.store.Get(ctx, models.RequestKey(orgName, userID), &req)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Delete removes a request.
func (r *Repository) Delete(ctx context.Context, orgName, userID string) error {
	return r.store.Delete(ctx, models.RequestKey(orgName, userID))
}

// ListPending returns the organization's pending requests, oldest user id first.
func (r *Repository) ListPending(ctx context.Context, orgName string) ([]models.MembershipRequest, error) {
	return kvstore.QueryAll[models.MembershipRequest](ctx, r.store, kvstore.Query{
		Partition:  models.OrgPK(orgName),
		SortPrefix: models.PrefixRequest,
		Filter:     map[string]interface{}{"status": string(models.RequestPending)},
	})
}
