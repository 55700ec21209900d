package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/apperr"
	"github.com/photocomp/backend/pkg/kvstore"
)

// countingStore records every call and can fail deletes by key prefix.
type countingStore struct {
	kvstore.Store
	mu           sync.Mutex
	calls        map[string]int
	failDeleteSK string
}

func newCountingStore(inner kvstore.Store) *countingStore {
	return &countingStore{Store: inner, calls: map[string]int{}}
}

func (s *countingStore) count(op string) {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
}

func (s *countingStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *countingStore) Put(ctx context.Context, item interface{}) error {
	s.count("put")
	return s.Store.Put(ctx, item)
}

func (s *countingStore) Create(ctx context.Context, item interface{}) error {
	s.count("create")
	return s.Store.Create(ctx, item)
}

func (s *countingStore) Get(ctx context.Context, key kvstore.Key, out interface{}) error {
	s.count("get")
	return s.Store.Get(ctx, key, out)
}

func (s *countingStore) Query(ctx context.Context, q kvstore.Query, out interface{}) (string, error) {
	s.count("query")
	return s.Store.Query(ctx, q, out)
}

func (s *countingStore) Delete(ctx context.Context, key kvstore.Key) error {
	s.count("delete")
	if s.failDeleteSK != "" && strings.HasPrefix(key.SK, s.failDeleteSK) {
		return errors.New("store unavailable")
	}
	return s.Store.Delete(ctx, key)
}

type fixture struct {
	store *countingStore
	mem   *kvstore.Memory
	svc   *Service
	jwt   *JWTService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := kvstore.NewMemory()
	store := newCountingStore(mem)
	jwtSvc := NewJWTService("test-secret", 24)
	svc := NewService(NewRepository(store), jwtSvc, BcryptHasher{Cost: bcrypt.MinCost}, nil)
	return &fixture{store: store, mem: mem, svc: svc, jwt: jwtSvc}
}

func (f *fixture) register(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	res, err := f.svc.Register(context.Background(), RegisterInput{Email: email, Password: password, FirstName: "Test", LastName: "User"})
	require.NoError(t, err)
	return res
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	return apperr.StatusCode(err)
}

func TestRegisterDuplicateEmailIsConflictWithSingleLookup(t *testing.T) {
	f := newFixture(t)
	f.register(t, "test@example.com", "Password123")
	f.store.calls = map[string]int{}

	_, err := f.svc.Register(context.Background(), RegisterInput{Email: "TEST@example.com", Password: "Password123", FirstName: "A", LastName: "B"})

	assert.Equal(t, http.StatusConflict, statusOf(t, err))
	assert.Equal(t, 1, f.store.total())
	assert.Equal(t, 1, f.store.calls["query"])
}

func TestRegisterIssuesTokenAndHashesPassword(t *testing.T) {
	f := newFixture(t)
	res := f.register(t, "test@example.com", "Password123")

	assert.Equal(t, models.UserRoleUser, res.User.Role)
	claims, err := f.jwt.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, "test@example.com", claims.Email)

	stored, err := NewRepository(f.mem).GetByID(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "Password123", stored.Password)
}

func TestLoginFailuresShareMessage(t *testing.T) {
	f := newFixture(t)
	f.register(t, "test@example.com", "Password123")

	_, errWrong := f.svc.Login(context.Background(), "test@example.com", "wrong-password")
	_, errMissing := f.svc.Login(context.Background(), "nobody@example.com", "Password123")

	assert.Equal(t, http.StatusUnauthorized, statusOf(t, errWrong))
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, errMissing))
	assert.Equal(t, errWrong.Error(), errMissing.Error())

	res, err := f.svc.Login(context.Background(), "Test@Example.com", "Password123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestChangePasswordWrongCurrentDoesNotWrite(t *testing.T) {
	f := newFixture(t)
	res := f.register(t, "test@example.com", "Password123")
	f.store.calls = map[string]int{}

	err := f.svc.ChangePassword(context.Background(), res.User.ID, "not-it", "NewPassword456")

	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
	assert.Zero(t, f.store.calls["put"])
	assert.Zero(t, f.store.calls["create"])
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	res := f.register(t, "test@example.com", "Password123")

	require.NoError(t, f.svc.ChangePassword(context.Background(), res.User.ID, "Password123", "NewPassword456"))
	_, err := f.svc.Login(context.Background(), "test@example.com", "NewPassword456")
	assert.NoError(t, err)

	err = f.svc.ChangePassword(context.Background(), "missing", "a", "b")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestUpdateUserRoleNeverDowngrades(t *testing.T) {
	f := newFixture(t)
	res := f.register(t, "test@example.com", "Password123")
	ctx := context.Background()

	u, err := f.svc.UpdateUserRole(ctx, res.User.ID, models.UserRoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleAdmin, u.Role)

	u, err = f.svc.UpdateUserRole(ctx, res.User.ID, models.UserRoleMember)
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleAdmin, u.Role)
}

func seedUserRows(t *testing.T, store kvstore.Store, userID string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.Put(ctx, models.NewAttendance("e1", userID, now)))
	require.NoError(t, store.Put(ctx, models.NewAttendance("e2", userID, now)))
	require.NoError(t, store.Put(ctx, models.NewMembership("Club", userID, models.MemberRoleMember, now)))
	require.NoError(t, store.Put(ctx, models.NewMembershipRequest("Other", userID, "", now)))
}

func TestDeleteUserCascades(t *testing.T) {
	f := newFixture(t)
	res := f.register(t, "test@example.com", "Password123")
	seedUserRows(t, f.mem, res.User.ID)
	require.Equal(t, 5, f.mem.Len())

	require.NoError(t, f.svc.DeleteUser(context.Background(), res.User.ID))
	assert.Equal(t, 0, f.mem.Len())

	err := f.svc.DeleteUser(context.Background(), res.User.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestDeleteUserPartialFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	res := f.register(t, "test@example.com", "Password123")
	seedUserRows(t, f.mem, res.User.ID)
	f.store.failDeleteSK = models.PrefixOrg

	err := f.svc.DeleteUser(context.Background(), res.User.ID)

	assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "Failed to delete user", appErr.Message)
	assert.Equal(t, 1, f.mem.Len(), "only the failing membership remains")
}
