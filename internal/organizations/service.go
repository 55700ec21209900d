package organizations

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/internal/policy"
	"github.com/photocomp/backend/pkg/apperr"
	"github.com/photocomp/backend/pkg/enrich"
	"github.com/photocomp/backend/pkg/kvstore"
	"github.com/photocomp/backend/pkg/storage"
)

// BlobStore is the subset of the S3 gateway used for logos.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (string, error)
	PresignGet(ctx context.Context, key, filename string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ImageFetcher downloads a logo given by URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, string, error)
}

// Users is the user-account collaborator.
type Users interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpdateUserRole(ctx context.Context, userID string, role models.UserRole) (*models.User, error)
}

// CreateOrgInput holds the fields of a new organization.
type CreateOrgInput struct {
	Name         string
	Description  string
	Website      string
	ContactEmail string
	IsPublic     *bool
	LogoURL      string
}

// UpdateOrgInput holds optional changes; nil fields are left as they are.
type UpdateOrgInput struct {
	Description  *string
	Website      *string
	ContactEmail *string
	IsPublic     *bool
	LogoURL      *string
}

// LogoFile is an uploaded logo.
type LogoFile struct {
	Data        []byte
	ContentType string
	Filename    string
}

// UserOrganization is one of the caller's organizations with their role.
type UserOrganization struct {
	Organization models.Organization `json:"organization"`
	Role         models.MemberRole   `json:"role"`
	JoinedAt     time.Time           `json:"joinedAt"`
}

// Service implements organization and membership management.
type Service struct {
	repo    *Repository
	blobs   BlobStore
	fetcher ImageFetcher
	users   Users
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates the organization service.
func NewService(repo *Repository, blobs BlobStore, fetcher ImageFetcher, users Users, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, blobs: blobs, fetcher: fetcher, users: users, logger: logger, now: time.Now}
}

// CreateOrg creates an organization whose logo is downloaded from
// in.LogoURL, and makes the creator its first ADMIN.
func (s *Service) CreateOrg(ctx context.Context, in CreateOrgInput, creatorID string) (*models.Organization, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.checkName(ctx, in.Name); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.LogoURL) == "" {
		return nil, apperr.BadRequest("Logo file or logoUrl is required")
	}
	data, contentType, err := s.fetcher.Fetch(ctx, in.LogoURL)
	if err != nil {
		s.logger.Warn("logo download failed", zap.String("url", in.LogoURL), zap.Error(err))
		return nil, apperr.BadRequest("Failed to download logo from URL")
	}
	logo := &LogoFile{Data: data, ContentType: contentType, Filename: path.Base(in.LogoURL)}
	return s.create(ctx, in, logo, creatorID)
}

// CreateOrgWithFileUpload creates an organization with an uploaded logo.
func (s *Service) CreateOrgWithFileUpload(ctx context.Context, in CreateOrgInput, logo LogoFile, creatorID string) (*models.Organization, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.checkName(ctx, in.Name); err != nil {
		return nil, err
	}
	return s.create(ctx, in, &logo, creatorID)
}

func (s *Service) checkName(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.BadRequest("Organization name is required")
	}
	existing, err := s.repo.Get(ctx, name)
	if err != nil {
		return apperr.Wrap(err, "Failed to create organization")
	}
	if existing != nil {
		return apperr.Conflict("Organization name already exists")
	}
	return nil
}

// create persists an organization whose name already passed checkName. The
// conditional write still decides a concurrent race on the name.
func (s *Service) create(ctx context.Context, in CreateOrgInput, logo *LogoFile, creatorID string) (*models.Organization, error) {
	name := in.Name
	now := s.now().UTC()
	org := models.NewOrganization(uuid.New().String(), name, creatorID, now)
	org.Description = in.Description
	org.Website = in.Website
	org.ContactEmail = in.ContactEmail
	if in.IsPublic != nil {
		org.IsPublic = *in.IsPublic
	}
	if logo != nil {
		if err := s.uploadLogo(ctx, org, *logo); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, org); err != nil {
		s.discardLogo(ctx, org.LogoS3Key)
		if errors.Is(err, kvstore.ErrConditionFailed) {
			return nil, apperr.Conflict("Organization name already exists")
		}
		return nil, apperr.Wrap(err, "Failed to create organization")
	}
	if err := s.repo.PutMembership(ctx, models.NewMembership(name, creatorID, models.MemberRoleAdmin, now)); err != nil {
		return nil, apperr.Wrap(err, "Failed to create organization membership")
	}
	if _, err := s.users.UpdateUserRole(ctx, creatorID, models.UserRoleAdmin); err != nil {
		s.logger.Warn("creator role upgrade failed", zap.String("user_id", creatorID), zap.Error(err))
	}
	s.logger.Info("organization created", zap.String("org", name), zap.String("created_by", creatorID))
	return s.withFreshLogo(ctx, org), nil
}

func (s *Service) uploadLogo(ctx context.Context, org *models.Organization, logo LogoFile) error {
	ext, ok := storage.ExtensionFor(logo.ContentType)
	if !ok {
		return apperr.BadRequest("Logo must be a JPEG, PNG or GIF image")
	}
	key := storage.LogoKey(models.OrgKeyName(org.Name), uuid.New().String(), ext)
	url, err := s.blobs.Upload(ctx, key, logo.ContentType, logo.Data)
	if err != nil {
		return apperr.Internal("Failed to upload logo", err)
	}
	org.LogoURL = url
	org.LogoS3Key = key
	return nil
}

func (s *Service) discardLogo(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn("orphaned logo blob", zap.String("key", key), zap.Error(err))
	}
}

// withFreshLogo replaces the stored logo URL with a presigned one. A failed
// presign keeps the stored URL.
func (s *Service) withFreshLogo(ctx context.Context, org *models.Organization) *models.Organization {
	if org.LogoS3Key == "" {
		return org
	}
	res := enrich.Try(func() (string, error) {
		return s.blobs.PresignGet(ctx, org.LogoS3Key, "")
	})
	if res.Skipped {
		s.logger.Warn("logo refresh skipped", zap.String("org", org.Name), zap.String("reason", res.Reason))
	}
	org.LogoURL = res.Or(org.LogoURL)
	return org
}

// UpdateOrg applies in (and an optional new logo) to the organization.
func (s *Service) UpdateOrg(ctx context.Context, orgName string, in UpdateOrgInput, logo *LogoFile) (*models.Organization, error) {
	org, err := s.GetOrg(ctx, orgName)
	if err != nil {
		return nil, err
	}
	if in.Description != nil {
		org.Description = *in.Description
	}
	if in.Website != nil {
		org.Website = *in.Website
	}
	if in.ContactEmail != nil {
		org.ContactEmail = *in.ContactEmail
	}
	if in.IsPublic != nil {
		org.IsPublic = *in.IsPublic
	}
	if logo == nil && in.LogoURL != nil && *in.LogoURL != "" {
		data, contentType, err := s.fetcher.Fetch(ctx, *in.LogoURL)
		if err != nil {
			s.logger.Warn("logo download failed", zap.String("url", *in.LogoURL), zap.Error(err))
			return nil, apperr.BadRequest("Failed to download logo from URL")
		}
		logo = &LogoFile{Data: data, ContentType: contentType}
	}
	previousKey := org.LogoS3Key
	if logo != nil {
		if err := s.uploadLogo(ctx, org, *logo); err != nil {
			return nil, err
		}
	}
	org.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, org); err != nil {
		if org.LogoS3Key != previousKey {
			s.discardLogo(ctx, org.LogoS3Key)
		}
		return nil, apperr.Wrap(err, "Failed to update organization")
	}
	return s.withFreshLogo(ctx, org), nil
}

// GetOrg returns the organization or NotFound.
func (s *Service) GetOrg(ctx context.Context, orgName string) (*models.Organization, error) {
	org, err := s.repo.Get(ctx, orgName)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to load organization")
	}
	if org == nil {
		return nil, apperr.NotFound("Organization not found")
	}
	return s.withFreshLogo(ctx, org), nil
}

// ListOrgs returns one page of organizations.
func (s *Service) ListOrgs(ctx context.Context, page models.PageRequest) (*models.Page[models.Organization], error) {
	orgs, next, err := s.repo.List(ctx, page.Normalize())
	if err != nil {
		if errors.Is(err, kvstore.ErrInvalidCursor) {
			return nil, apperr.BadRequest("Invalid pagination cursor")
		}
		return nil, apperr.Wrap(err, "Failed to list organizations")
	}
	for i := range orgs {
		s.withFreshLogo(ctx, &orgs[i])
	}
	return models.NewPage(orgs, next), nil
}

// ListUserOrgs returns the organizations the user belongs to. Memberships
// whose organization row is gone are skipped.
func (s *Service) ListUserOrgs(ctx context.Context, userID string) ([]UserOrganization, error) {
	memberships, err := s.repo.ListUserMemberships(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to list organizations")
	}
	out := make([]UserOrganization, 0, len(memberships))
	for _, m := range memberships {
		org, err := s.repo.Get(ctx, m.OrgName)
		if err != nil {
			return nil, apperr.Wrap(err, "Failed to list organizations")
		}
		if org == nil {
			continue
		}
		out = append(out, UserOrganization{Organization: *s.withFreshLogo(ctx, org), Role: m.Role, JoinedAt: m.JoinedAt})
	}
	return out, nil
}

// FindSpecificOrgByUser returns the membership or Unauthorized.
func (s *Service) FindSpecificOrgByUser(ctx context.Context, orgName, userID string) (*models.Membership, error) {
	m, err := s.FindMembership(ctx, orgName, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.Unauthorized("User is not a member of this organization")
	}
	return m, nil
}

// FindMembership returns the membership, or nil when the user is not a member.
func (s *Service) FindMembership(ctx context.Context, orgName, userID string) (*models.Membership, error) {
	m, err := s.repo.GetMembership(ctx, orgName, userID)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to load membership")
	}
	return m, nil
}

// ValidateUserOrgAdmin reports whether m carries the ADMIN role.
func (s *Service) ValidateUserOrgAdmin(m *models.Membership) bool {
	return policy.IsOrgAdmin(m)
}

// ValidateUserOrgMember reports whether m carries any role.
func (s *Service) ValidateUserOrgMember(m *models.Membership) bool {
	return policy.IsOrgMember(m)
}

// IsMemberOfOrg reports whether a membership row exists.
func (s *Service) IsMemberOfOrg(ctx context.Context, orgName, userID string) (bool, error) {
	m, err := s.FindMembership(ctx, orgName, userID)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// ListMembers returns the organization's members with their profiles.
func (s *Service) ListMembers(ctx context.Context, orgName string) ([]models.MemberView, error) {
	memberships, err := s.repo.ListMembers(ctx, orgName)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to list members")
	}
	out := make([]models.MemberView, 0, len(memberships))
	for _, m := range memberships {
		view := models.MemberView{Membership: m}
		if u, err := s.users.GetUser(ctx, m.UserID); err == nil {
			view.Email, view.FirstName, view.LastName = u.Email, u.FirstName, u.LastName
		} else {
			s.logger.Warn("member profile missing", zap.String("user_id", m.UserID), zap.Error(err))
		}
		out = append(out, view)
	}
	return out, nil
}

// AddMember creates or replaces the user's membership with role.
func (s *Service) AddMember(ctx context.Context, orgName, userID string, role models.MemberRole) (*models.Membership, error) {
	if !role.Valid() {
		return nil, apperr.BadRequest("Role must be ADMIN or MEMBER")
	}
	m := models.NewMembership(orgName, userID, role, s.now().UTC())
	if err := s.repo.PutMembership(ctx, m); err != nil {
		return nil, apperr.Wrap(err, "Failed to add member")
	}
	return m, nil
}

// RemoveMember deletes a membership.
func (s *Service) RemoveMember(ctx context.Context, orgName, userID string) error {
	if _, err := s.requireMembership(ctx, orgName, userID); err != nil {
		return err
	}
	if err := s.repo.DeleteMembership(ctx, orgName, userID); err != nil {
		return apperr.Wrap(err, "Failed to remove member")
	}
	return nil
}

// UpdateMemberRole sets a member's role.
func (s *Service) UpdateMemberRole(ctx context.Context, orgName, userID string, role models.MemberRole) (*models.Membership, error) {
	if !role.Valid() {
		return nil, apperr.BadRequest("Role must be ADMIN or MEMBER")
	}
	m, err := s.requireMembership(ctx, orgName, userID)
	if err != nil {
		return nil, err
	}
	m.Role = role
	if err := s.repo.PutMembership(ctx, m); err != nil {
		return nil, apperr.Wrap(err, "Failed to update member role")
	}
	if role == models.MemberRoleAdmin {
		if _, err := s.users.UpdateUserRole(ctx, userID, models.UserRoleAdmin); err != nil {
			s.logger.Warn("user role upgrade failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return m, nil
}

// LeaveOrganization removes the caller's own membership. The last ADMIN
// cannot leave.
func (s *Service) LeaveOrganization(ctx context.Context, orgName, userID, callerID string) error {
	m, err := s.requireMembership(ctx, orgName, userID)
	if err != nil {
		return err
	}
	if userID != callerID {
		return apperr.Forbidden("You can only remove yourself from an organization")
	}
	if m.Role == models.MemberRoleAdmin {
		members, err := s.repo.ListMembers(ctx, orgName)
		if err != nil {
			return apperr.Wrap(err, "Failed to leave organization")
		}
		admins := 0
		for _, other := range members {
			if other.Role == models.MemberRoleAdmin {
				admins++
			}
		}
		if admins <= 1 {
			return apperr.BadRequest("Cannot leave organization as the only admin. Promote another member to admin first.")
		}
	}
	if err := s.repo.DeleteMembership(ctx, orgName, userID); err != nil {
		return apperr.Wrap(err, "Failed to leave organization")
	}
	s.logger.Info("member left organization", zap.String("org", orgName), zap.String("user_id", userID))
	return nil
}

func (s *Service) requireMembership(ctx context.Context, orgName, userID string) (*models.Membership, error) {
	m, err := s.FindMembership(ctx, orgName, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.NotFound("Membership not found")
	}
	return m, nil
}
