package requests

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/apperr"
	"github.com/photocomp/backend/pkg/kvstore"
	"github.com/photocomp/backend/pkg/queue"
)

type fakeOrgs struct {
	orgs    map[string]bool
	members map[string]models.MemberRole
}

func memberKey(org, user string) string { return models.OrgKeyName(org) + "/" + user }

func (f *fakeOrgs) GetOrg(_ context.Context, name string) (*models.Organization, error) {
	if !f.orgs[models.OrgKeyName(name)] {
		return nil, apperr.NotFound("Organization not found")
	}
	return &models.Organization{Name: name}, nil
}

func (f *fakeOrgs) FindMembership(_ context.Context, org, user string) (*models.Membership, error) {
	role, ok := f.members[memberKey(org, user)]
	if !ok {
		return nil, nil
	}
	return &models.Membership{OrgName: org, UserID: user, Role: role}, nil
}

func (f *fakeOrgs) AddMember(_ context.Context, org, user string, role models.MemberRole) (*models.Membership, error) {
	f.members[memberKey(org, user)] = role
	return &models.Membership{OrgName: org, UserID: user, Role: role}, nil
}

type fakeEvents struct {
	count int
	err   error
}

func (f *fakeEvents) HasEvents(context.Context, string) (bool, error) {
	return f.count > 0, f.err
}

type fakeUsers struct {
	roles map[string]models.UserRole
}

func (f *fakeUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	return &models.User{ID: id, Email: id + "@example.com", FirstName: "Ada", LastName: "L"}, nil
}

func (f *fakeUsers) UpdateUserRole(_ context.Context, id string, role models.UserRole) (*models.User, error) {
	f.roles[id] = role
	return &models.User{ID: id, Role: role}, nil
}

type fakeNotifier struct {
	sent []queue.MembershipDecisionPayload
	err  error
}

func (f *fakeNotifier) EnqueueMembershipDecision(_ context.Context, p queue.MembershipDecisionPayload) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, p)
	return nil
}

type fixture struct {
	svc      *Service
	repo     *Repository
	orgs     *fakeOrgs
	events   *fakeEvents
	users    *fakeUsers
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     NewRepository(kvstore.NewMemory()),
		orgs:     &fakeOrgs{orgs: map[string]bool{"CLUB": true}, members: map[string]models.MemberRole{memberKey("Club", "admin"): models.MemberRoleAdmin}},
		events:   &fakeEvents{count: 1},
		users:    &fakeUsers{roles: map[string]models.UserRole{}},
		notifier: &fakeNotifier{},
	}
	f.svc = NewService(f.repo, f.orgs, f.events, f.users, f.notifier, nil)
	f.svc.now = func() time.Time { return time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC) }
	return f
}

func TestApplyCreatesPendingRequest(t *testing.T) {
	f := newFixture(t)
	req, err := f.svc.ApplyToOrganization(context.Background(), "Club", "u1", "I shoot weddings")
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.Status)

	pending, err := f.svc.GetPendingRequests(context.Background(), "CLUB")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "u1", pending[0].UserID)
	assert.Equal(t, "I shoot weddings", pending[0].Message)
}

func TestApplyRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ApplyToOrganization(ctx, "Nowhere", "u1", "")
	assert.Equal(t, http.StatusNotFound, apperr.StatusCode(err))

	_, err = f.svc.ApplyToOrganization(ctx, "Club", "admin", "")
	assert.Equal(t, http.StatusBadRequest, apperr.StatusCode(err))

	_, err = f.svc.ApplyToOrganization(ctx, "Club", "u1", "")
	require.NoError(t, err)
	_, err = f.svc.ApplyToOrganization(ctx, "club", "u1", "again")
	assert.Equal(t, http.StatusConflict, apperr.StatusCode(err))
}

func TestApplyWithZeroEvents(t *testing.T) {
	f := newFixture(t)
	f.events.count = 0

	_, err := f.svc.ApplyToOrganization(context.Background(), "Club", "u1", "")
	assert.Equal(t, http.StatusBadRequest, apperr.StatusCode(err))

	pending, err := f.svc.GetPendingRequests(context.Background(), "Club")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApproveRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.ApplyToOrganization(ctx, "Club", "u1", "")
	require.NoError(t, err)

	m, err := f.svc.ApproveRequest(ctx, "Club", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.MemberRoleMember, m.Role)
	assert.Equal(t, models.MemberRoleMember, f.orgs.members[memberKey("Club", "u1")])
	assert.Equal(t, models.UserRoleMember, f.users.roles["u1"])

	stored, err := f.repo.Get(ctx, "Club", "u1")
	require.NoError(t, err)
	assert.Nil(t, stored)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, queue.DecisionApproved, f.notifier.sent[0].Decision)
	assert.Equal(t, "u1@example.com", f.notifier.sent[0].RecipientEmail)

	_, err = f.svc.ApproveRequest(ctx, "Club", "u1")
	assert.Equal(t, http.StatusNotFound, apperr.StatusCode(err))
}

func TestApproveRequiresEvents(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ApplyToOrganization(context.Background(), "Club", "u1", "")
	require.NoError(t, err)
	f.events.count = 0

	_, err = f.svc.ApproveRequest(context.Background(), "Club", "u1")
	assert.Equal(t, http.StatusBadRequest, apperr.StatusCode(err))
	_, isMember := f.orgs.members[memberKey("Club", "u1")]
	assert.False(t, isMember)
}

func TestDenyRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.ApplyToOrganization(ctx, "Club", "u1", "")
	require.NoError(t, err)
	f.notifier.err = errors.New("redis down")

	require.NoError(t, f.svc.DenyRequest(ctx, "Club", "u1"))
	_, isMember := f.orgs.members[memberKey("Club", "u1")]
	assert.False(t, isMember)
	assert.Equal(t, http.StatusNotFound, apperr.StatusCode(f.svc.DenyRequest(ctx, "Club", "u1")))

	// a denied applicant may apply again
	_, err = f.svc.ApplyToOrganization(ctx, "Club", "u1", "")
	assert.NoError(t, err)
}

func TestNilNotifierSkipsEmail(t *testing.T) {
	f := newFixture(t)
	f.svc = NewService(f.repo, f.orgs, f.events, f.users, nil, nil)
	_, err := f.svc.ApplyToOrganization(context.Background(), "Club", "u1", "")
	require.NoError(t, err)
	_, err = f.svc.ApproveRequest(context.Background(), "Club", "u1")
	assert.NoError(t, err)
}
