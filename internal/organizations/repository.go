package organizations

import (
	"context"
	"errors"

	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/kvstore"
)

// Repository handles organization and membership rows.
type Repository struct {
	store kvstore.Store
}

// NewRepository creates an organizations repository.
func NewRepository(store kvstore.Store) *Repository {
	return &Repository{store: store}
}

// Get returns the organization, or nil when absent.
func (r *Repository) Get(ctx context.Context, name string) (*models.Organization, error) {
	var org models.Organization
	err := r.store.Get(ctx, models.OrgKey(name), &org)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// Create inserts the organization; kvstore.ErrConditionFailed means the
// name is taken.
func (r *Repository) Create(ctx context.Context, org *models.Organization) error {
	return r.store.Create(ctx, org)
}

// Update replaces the organization row.
func (r *Repository) Update(ctx context.Context, org *models.Organization) error {
	return r.store.Put(ctx, org)
}

// List returns one page of organizations ordered by name.
func (r *Repository) List(ctx context.Context, page models.PageRequest) ([]models.Organization, string, error) {
	var orgs []models.Organization
	next, err := r.store.Query(ctx, kvstore.Query{
		Index:      kvstore.IndexGSI1,
		Partition:  models.PartitionOrgs,
		SortPrefix: models.PrefixOrg,
		Limit:      page.Limit,
		Cursor:     page.Cursor,
	}, &orgs)
	return orgs, next, err
}

// GetMembership returns the (org, user) membership, or nil when absent.
func (r *Repository) GetMembership(ctx context.Context, orgName, userID string) (*models.Membership, error) {
	var m models.Membership
	err := r.store.Get(ctx, models.MembershipKey(orgName, userID), &m)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// PutMembership creates or replaces a membership row.
func (r *Repository) PutMembership(ctx context.Context, m *models.Membership) error {
	return r.store.Put(ctx, m)
}

// DeleteMembership removes a membership row.
func (r *Repository) DeleteMembership(ctx context.Context, orgName, userID string) error {
	return r.store.Delete(ctx, models.MembershipKey(orgName, userID))
}

// ListMembers returns every membership of the organization.
func (r *Repository) ListMembers(ctx context.Context, orgName string) ([]models.Membership, error) {
	return kvstore.QueryAll[models.Membership](ctx, r.store, kvstore.Query{
		Index:      kvstore.IndexGSI1,
		Partition:  models.OrgPK(orgName),
		SortPrefix: models.PrefixUser,
	})
}

// ListUserMemberships returns every membership of the user.
func (r *Repository) ListUserMemberships(ctx context.Context, userID string) ([]models.Membership, error) {
	return kvstore.QueryAll[models.Membership](ctx, r.store, kvstore.Query{
		Partition:  models.UserPK(userID),
		SortPrefix: models.PrefixOrg,
	})
}
