package organizations

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/apperr"
	"github.com/photocomp/backend/pkg/kvstore"
)

type fakeBlobs struct {
	mu         sync.Mutex
	uploads    map[string]string
	deleted    []string
	presignErr error
	onUpload   func()
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{uploads: map[string]string{}} }

func (b *fakeBlobs) Upload(_ context.Context, key, contentType string, _ []byte) (string, error) {
	b.mu.Lock()
	b.uploads[key] = contentType
	hook := b.onUpload
	b.mu.Unlock()
	if hook != nil {
		hook()
	}
	return "https://bucket.s3.us-east-1.amazonaws.com/" + key, nil
}

func (b *fakeBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, key)
	return nil
}

type countingStore struct {
	kvstore.Store
	gets int
}

func (c *countingStore) Get(ctx context.Context, key kvstore.Key, out interface{}) error {
	c.gets++
	return c.Store.Get(ctx, key, out)
}

func (b *fakeBlobs) PresignGet(_ context.Context, key, _ string) (string, error) {
	if b.presignErr != nil {
		return "", b.presignErr
	}
	return "https://signed.example/" + key, nil
}

type fakeFetcher struct {
	contentType string
	err         error
	calls       int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) ([]byte, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("img"), f.contentType, nil
}

type fakeUsers struct {
	users map[string]*models.User
	roles map[string]models.UserRole
}

func newFakeUsers(ids ...string) *fakeUsers {
	u := &fakeUsers{users: map[string]*models.User{}, roles: map[string]models.UserRole{}}
	for _, id := range ids {
		u.users[id] = &models.User{ID: id, Email: id + "@example.com", FirstName: "First" + id, LastName: "Last", Role: models.UserRoleUser}
	}
	return u
}

func (u *fakeUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	usr, ok := u.users[id]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}
	return usr, nil
}

func (u *fakeUsers) UpdateUserRole(_ context.Context, id string, role models.UserRole) (*models.User, error) {
	u.roles[id] = role
	return u.users[id], nil
}

type fixture struct {
	svc     *Service
	repo    *Repository
	blobs   *fakeBlobs
	fetcher *fakeFetcher
	users   *fakeUsers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := NewRepository(kvstore.NewMemory())
	f := &fixture{
		repo:    repo,
		blobs:   newFakeBlobs(),
		fetcher: &fakeFetcher{contentType: "image/png"},
		users:   newFakeUsers("u1", "u2", "u3"),
	}
	f.svc = NewService(repo, f.blobs, f.fetcher, f.users, nil)
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) createOrg(t *testing.T, name, creator string) *models.Organization {
	t.Helper()
	org, err := f.svc.CreateOrgWithFileUpload(context.Background(), CreateOrgInput{Name: name},
		LogoFile{Data: []byte("png"), ContentType: "image/png", Filename: "logo.png"}, creator)
	require.NoError(t, err)
	return org
}

func status(err error) int {
	return apperr.StatusCode(err)
}

func TestCreateOrgWithFileUpload(t *testing.T) {
	f := newFixture(t)
	org := f.createOrg(t, "Camera Club", "u1")

	assert.Equal(t, "Camera Club", org.Name)
	assert.True(t, org.IsPublic)
	assert.Contains(t, org.LogoURL, "https://signed.example/logos/CAMERA%20CLUB/")
	require.Len(t, f.blobs.uploads, 1)

	m, err := f.svc.FindMembership(context.Background(), "camera club", "u1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, models.MemberRoleAdmin, m.Role)
	assert.Equal(t, models.UserRoleAdmin, f.users.roles["u1"])
}

func TestCreateOrgNameIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.createOrg(t, "Camera Club", "u1")

	_, err := f.svc.CreateOrgWithFileUpload(context.Background(), CreateOrgInput{Name: "CAMERA club"},
		LogoFile{Data: []byte("png"), ContentType: "image/png"}, "u2")
	assert.Equal(t, http.StatusConflict, status(err))
}

func TestCreateOrgValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOrg(ctx, CreateOrgInput{Name: "  ", LogoURL: "https://img.example/a.png"}, "u1")
	assert.Equal(t, http.StatusBadRequest, status(err))

	_, err = f.svc.CreateOrg(ctx, CreateOrgInput{Name: "Club"}, "u1")
	assert.Equal(t, http.StatusBadRequest, status(err))

	_, err = f.svc.CreateOrgWithFileUpload(ctx, CreateOrgInput{Name: "Club"},
		LogoFile{Data: []byte("%PDF"), ContentType: "application/pdf"}, "u1")
	assert.Equal(t, http.StatusBadRequest, status(err))
	assert.Empty(t, f.blobs.uploads)
}

func TestCreateOrgDownloadsLogoURL(t *testing.T) {
	f := newFixture(t)
	org, err := f.svc.CreateOrg(context.Background(), CreateOrgInput{Name: "Club", LogoURL: "https://img.example/logo.png"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.fetcher.calls)
	assert.NotEmpty(t, org.LogoS3Key)

	f.fetcher.err = errors.New("timeout")
	_, err = f.svc.CreateOrg(context.Background(), CreateOrgInput{Name: "Other", LogoURL: "https://img.example/logo.png"}, "u1")
	assert.Equal(t, http.StatusBadRequest, status(err))
	stored, err := f.repo.Get(context.Background(), "Other")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestListOrgsKeepsStoredLogoWhenPresignFails(t *testing.T) {
	f := newFixture(t)
	f.createOrg(t, "Alpha", "u1")
	f.createOrg(t, "Beta", "u1")
	f.blobs.presignErr = errors.New("no credentials")

	page, err := f.svc.ListOrgs(context.Background(), models.PageRequest{})
	require.NoError(t, err)
	require.Equal(t, 2, page.Count)
	assert.Equal(t, "Alpha", page.Items[0].Name)
	assert.Contains(t, page.Items[0].LogoURL, "https://bucket.s3.us-east-1.amazonaws.com/logos/ALPHA/")
}

func TestListOrgsPaginates(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"A", "B", "C"} {
		f.createOrg(t, name, "u1")
	}
	first, err := f.svc.ListOrgs(context.Background(), models.PageRequest{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Count)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.ListOrgs(context.Background(), models.PageRequest{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Equal(t, 1, second.Count)
	assert.Equal(t, "C", second.Items[0].Name)

	_, err = f.svc.ListOrgs(context.Background(), models.PageRequest{Cursor: "!!"})
	assert.Equal(t, http.StatusBadRequest, status(err))
}

func TestUpdateOrgKeepsName(t *testing.T) {
	f := newFixture(t)
	f.createOrg(t, "Club", "u1")
	desc := "Weekly walks"
	private := false

	org, err := f.svc.UpdateOrg(context.Background(), "CLUB", UpdateOrgInput{Description: &desc, IsPublic: &private}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Club", org.Name)
	assert.Equal(t, "Weekly walks", org.Description)
	assert.False(t, org.IsPublic)

	_, err = f.svc.UpdateOrg(context.Background(), "Missing", UpdateOrgInput{}, nil)
	assert.Equal(t, http.StatusNotFound, status(err))
}

func TestFindSpecificOrgByUser(t *testing.T) {
	f := newFixture(t)
	f.createOrg(t, "Club", "u1")

	m, err := f.svc.FindSpecificOrgByUser(context.Background(), "Club", "u1")
	require.NoError(t, err)
	assert.True(t, f.svc.ValidateUserOrgAdmin(m))
	assert.True(t, f.svc.ValidateUserOrgMember(m))

	_, err = f.svc.FindSpecificOrgByUser(context.Background(), "Club", "u2")
	assert.Equal(t, http.StatusUnauthorized, status(err))
	assert.False(t, f.svc.ValidateUserOrgMember(nil))
}

func TestListMembersAndUserOrgs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createOrg(t, "Club", "u1")
	f.createOrg(t, "Guild", "u1")
	require.NoError(t, f.repo.PutMembership(ctx, models.NewMembership("Club", "u2", models.MemberRoleMember, time.Now())))

	members, err := f.svc.ListMembers(ctx, "Club")
	require.NoError(t, err)
	require.Len(t, members, 2)
	byID := map[string]models.MemberView{}
	for _, m := range members {
		byID[m.UserID] = m
	}
	assert.Equal(t, "u2@example.com", byID["u2"].Email)
	assert.Equal(t, models.MemberRoleMember, byID["u2"].Role)

	orgs, err := f.svc.ListUserOrgs(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, orgs, 2)
}

func TestUpdateMemberRoleAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createOrg(t, "Club", "u1")
	require.NoError(t, f.repo.PutMembership(ctx, models.NewMembership("Club", "u2", models.MemberRoleMember, time.Now())))

	_, err := f.svc.UpdateMemberRole(ctx, "Club", "u2", "OWNER")
	assert.Equal(t, http.StatusBadRequest, status(err))

	m, err := f.svc.UpdateMemberRole(ctx, "Club", "u2", models.MemberRoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.MemberRoleAdmin, m.Role)
	assert.Equal(t, models.UserRoleAdmin, f.users.roles["u2"])

	_, err = f.svc.UpdateMemberRole(ctx, "Club", "u3", models.MemberRoleAdmin)
	assert.Equal(t, http.StatusNotFound, status(err))

	require.NoError(t, f.svc.RemoveMember(ctx, "Club", "u2"))
	ok, err := f.svc.IsMemberOfOrg(ctx, "Club", "u2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, http.StatusNotFound, status(f.svc.RemoveMember(ctx, "Club", "u2")))
}

func TestLeaveOrganizationSoleAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createOrg(t, "Club", "u1")
	require.NoError(t, f.repo.PutMembership(ctx, models.NewMembership("Club", "u2", models.MemberRoleMember, time.Now())))

	err := f.svc.LeaveOrganization(ctx, "Club", "u1", "u1")
	assert.Equal(t, http.StatusBadRequest, status(err))
	ok, _ := f.svc.IsMemberOfOrg(ctx, "Club", "u1")
	assert.True(t, ok)
}

func TestLeaveOrganizationWithAnotherAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createOrg(t, "Club", "u1")
	require.NoError(t, f.repo.PutMembership(ctx, models.NewMembership("Club", "u2", models.MemberRoleAdmin, time.Now())))

	require.NoError(t, f.svc.LeaveOrganization(ctx, "Club", "u1", "u1"))
	ok, _ := f.svc.IsMemberOfOrg(ctx, "Club", "u1")
	assert.False(t, ok)
}

func TestLeaveOrganizationRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createOrg(t, "Club", "u1")
	require.NoError(t, f.repo.PutMembership(ctx, models.NewMembership("Club", "u2", models.MemberRoleMember, time.Now())))

	assert.Equal(t, http.StatusForbidden, status(f.svc.LeaveOrganization(ctx, "Club", "u2", "u1")))
	assert.Equal(t, http.StatusNotFound, status(f.svc.LeaveOrganization(ctx, "Club", "u3", "u3")))
	require.NoError(t, f.svc.LeaveOrganization(ctx, "Club", "u2", "u2"))
}

func TestCreateOrgLooksUpNameOnce(t *testing.T) {
	store := &countingStore{Store: kvstore.NewMemory()}
	svc := NewService(NewRepository(store), newFakeBlobs(), &fakeFetcher{contentType: "image/png"}, newFakeUsers("u1"), nil)

	_, err := svc.CreateOrg(context.Background(), CreateOrgInput{Name: "Club", LogoURL: "https://cdn.example/logo.png"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.gets)
}

func TestCreateOrgLosingNameRaceDiscardsLogo(t *testing.T) {
	f := newFixture(t)
	f.blobs.onUpload = func() {
		// another request claims the name while the logo uploads
		require.NoError(t, f.repo.Create(context.Background(), models.NewOrganization("other", "CLUB", "u2", time.Now())))
	}

	_, err := f.svc.CreateOrgWithFileUpload(context.Background(), CreateOrgInput{Name: "Club"},
		LogoFile{Data: []byte("png"), ContentType: "image/png"}, "u1")
	assert.Equal(t, http.StatusConflict, apperr.StatusCode(err))
	require.Len(t, f.blobs.uploads, 1)
	require.Len(t, f.blobs.deleted, 1)
	for key := range f.blobs.uploads {
		assert.Equal(t, key, f.blobs.deleted[0])
	}
	m, err := f.repo.GetMembership(context.Background(), "Club", "u1")
	require.NoError(t, err)
	assert.Nil(t, m)
}
