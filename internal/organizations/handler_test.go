package organizations

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photocomp/backend/internal/middleware"
	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/internal/policy"
	"github.com/photocomp/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testUserHeader = "X-Test-User"

// asUser stands in for the JWT middleware.
func asUser(c *gin.Context) {
	if id := c.GetHeader(testUserHeader); id != "" {
		c.Set(middleware.ContextUserID, id)
	}
	c.Next()
}

func newOrgRouter(f *fixture) *gin.Engine {
	responder := response.NewResponder(nil)
	h := NewHandler(f.svc, responder, nil)
	access := middleware.NewAccess(f.svc, nil, responder)

	r := gin.New()
	g := r.Group("/organizations", asUser)
	g.POST("", h.CreateOrganization)
	g.GET("", h.ListOrganizations)
	g.GET("/mine", h.ListMyOrganizations)
	g.GET("/:orgId", access.Require(policy.ActionViewOrg), h.GetOrganization)
	g.PATCH("/:orgId", access.Require(policy.ActionUpdateOrg), h.UpdateOrganization)
	g.GET("/:orgId/members", access.Require(policy.ActionManageMembers), h.ListMembers)
	g.PATCH("/:orgId/members/:userId", access.Require(policy.ActionChangeMemberRole), h.UpdateMemberRole)
	g.DELETE("/:orgId/members/:userId", access.Require(policy.ActionManageMembers), h.RemoveMember)
	g.DELETE("/:orgId/members/:userId/leave", access.Require(policy.ActionLeaveOrg), h.LeaveOrganization)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListOrganizationsEmptyIsNoContent(t *testing.T) {
	r := newOrgRouter(newFixture(t))
	w := doJSON(t, r, http.MethodGet, "/organizations", "u1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCreateOrganizationJSON(t *testing.T) {
	f := newFixture(t)
	r := newOrgRouter(f)

	w := doJSON(t, r, http.MethodPost, "/organizations", "u1", map[string]interface{}{
		"name":    "Club",
		"logoUrl": "https://img.example/logo.png",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body struct {
		Status string              `json:"status"`
		Data   models.Organization `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "Club", body.Data.Name)

	w = doJSON(t, r, http.MethodPost, "/organizations", "u2", map[string]interface{}{
		"name":    "CLUB",
		"logoUrl": "https://img.example/logo.png",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPost, "/organizations", "u1", map[string]interface{}{"logoUrl": "https://img.example/logo.png"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/organizations", "u1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateOrganizationMultipart(t *testing.T) {
	f := newFixture(t)
	r := newOrgRouter(f)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "Photo Club"))
	require.NoError(t, mw.WriteField("description", "Sunday shoots"))
	part, err := mw.CreateFormFile("logo", "logo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\n0000"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/organizations", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(testUserHeader, "u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, f.blobs.uploads, 1)
	for _, ct := range f.blobs.uploads {
		assert.Equal(t, "image/png", ct)
	}
	assert.Equal(t, 0, f.fetcher.calls)
}

func TestMemberRoutesEnforcePolicy(t *testing.T) {
	f := newFixture(t)
	r := newOrgRouter(f)
	f.createOrg(t, "Club", "u1")
	require.NoError(t, f.repo.PutMembership(context.Background(), models.NewMembership("Club", "u2", models.MemberRoleMember, time.Now())))

	w := doJSON(t, r, http.MethodGet, "/organizations/Club/members", "u2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodGet, "/organizations/Club/members", "u1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPatch, "/organizations/Club/members/u1", "u1", map[string]string{"role": "MEMBER"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodPatch, "/organizations/Club/members/u2", "u1", map[string]string{"role": "OWNER"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/organizations/Club/members/u1/leave", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/organizations/Club/members/u2/leave", "u2", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/organizations/Club", "u3", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/organizations/Club", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
