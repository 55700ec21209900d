package requests

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/apperr"
	"github.com/photocomp/backend/pkg/kvstore"
	"github.com/photocomp/backend/pkg/queue"
)

// Organizations is the organization collaborator.
type Organizations interface {
	GetOrg(ctx context.Context, orgName string) (*models.Organization, error)
	FindMembership(ctx context.Context, orgName, userID string) (*models.Membership, error)
	AddMember(ctx context.Context, orgName, userID string, role models.MemberRole) (*models.Membership, error)
}

// Events reports whether an organization has any events.
type Events interface {
	HasEvents(ctx context.Context, orgName string) (bool, error)
}

// Users is the user-account collaborator.
type Users interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpdateUserRole(ctx context.Context, userID string, role models.UserRole) (*models.User, error)
}

// Notifier enqueues decision emails.
type Notifier interface {
	EnqueueMembershipDecision(ctx context.Context, p queue.MembershipDecisionPayload) error
}

// Service implements the membership request workflow.
type Service struct {
	repo     *Repository
	orgs     Organizations
	events   Events
	users    Users
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the requests service. notifier may be nil, in which case
// no decision emails are sent.
func NewService(repo *Repository, orgs Organizations, events Events, users Users, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, orgs: orgs, events: events, users: users, notifier: notifier, logger: logger, now: time.Now}
}

func (s *Service) requireEvents(ctx context.Context, orgName string) error {
	ok, err := s.events.HasEvents(ctx, orgName)
	if err != nil {
		return apperr.Wrap(err, "Failed to check organization events")
	}
	if !ok {
		return apperr.BadRequest("Organization has no events to join")
	}
	return nil
}

// ApplyToOrganization records a pending request for userID.
func (s *Service) ApplyToOrganization(ctx context.Context, orgName, userID, message string) (*models.MembershipRequest, error) {
	if _, err := s.orgs.GetOrg(ctx, orgName); err != nil {
		return nil, err
	}
	if err := s.requireEvents(ctx, orgName); err != nil {
		return nil, err
	}
	m, err := s.orgs.FindMembership(ctx, orgName, userID)
	if err != nil {
		return nil, err
	}
	if m != nil {
		return nil, apperr.BadRequest("User is already a member of this organization")
	}

	req := models.NewMembershipRequest(orgName, userID, message, s.now().UTC())
	if err := s.repo.Create(ctx, req); err != nil {
		if errors.Is(err, kvstore.ErrConditionFailed) {
			return nil, apperr.Conflict("A pending request already exists for this organization")
		}
		return nil, apperr.Wrap(err, "Failed to create membership request")
	}
	s.logger.Info("membership requested", zap.String("org", orgName), zap.String("user_id", userID))
	return req, nil
}

// GetPendingRequests lists the organization's pending requests.
func (s *Service) GetPendingRequests(ctx context.Context, orgName string) ([]models.MembershipRequest, error) {
	reqs, err := s.repo.ListPending(ctx, orgName)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to list membership requests")
	}
	if reqs == nil {
		reqs = []models.MembershipRequest{}
	}
	return reqs, nil
}

func (s *Service) pending(ctx context.Context, orgName, userID string) (*models.MembershipRequest, error) {
	req, err := s.repo.Get(ctx, orgName, userID)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to load membership request")
	}
	if req == nil || req.Status != models.RequestPending {
		return nil, apperr.NotFound("Membership request not found")
	}
	return req, nil
}

// ApproveRequest makes the applicant a MEMBER and removes the request.
func (s *Service) ApproveRequest(ctx context.Context, orgName, userID string) (*models.Membership, error) {
	if err := s.requireEvents(ctx, orgName); err != nil {
		return nil, err
	}
	req, err := s.pending(ctx, orgName, userID)
	if err != nil {
		return nil, err
	}
	m, err := s.orgs.AddMember(ctx, req.OrgName, userID, models.MemberRoleMember)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, orgName, userID); err != nil {
		return nil, apperr.Wrap(err, "Failed to remove membership request")
	}
	if _, err := s.users.UpdateUserRole(ctx, userID, models.UserRoleMember); err != nil {
		s.logger.Warn("member role upgrade failed", zap.String("user_id", userID), zap.Error(err))
	}
	s.notify(ctx, queue.DecisionApproved, req)
	return m, nil
}

// DenyRequest removes the request without creating a membership.
func (s *Service) DenyRequest(ctx context.Context, orgName, userID string) error {
	req, err := s.pending(ctx, orgName, userID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, orgName, userID); err != nil {
		return apperr.Wrap(err, "Failed to remove membership request")
	}
	s.notify(ctx, queue.DecisionDenied, req)
	return nil
}

// notify is best effort; the decision is already persisted.
func (s *Service) notify(ctx context.Context, decision string, req *models.MembershipRequest) {
	if s.notifier == nil {
		return
	}
	u, err := s.users.GetUser(ctx, req.UserID)
	if err != nil {
		s.logger.Warn("decision email skipped", zap.String("user_id", req.UserID), zap.Error(err))
		return
	}
	err = s.notifier.EnqueueMembershipDecision(ctx, queue.MembershipDecisionPayload{
		Decision:       decision,
		OrgName:        req.OrgName,
		UserID:         req.UserID,
		RecipientEmail: u.Email,
		RecipientName:  u.FullName(),
	})
	if err != nil {
		s.logger.Warn("decision email enqueue failed", zap.String("user_id", req.UserID), zap.Error(err))
	}
}
