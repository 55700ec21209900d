package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/apperr"
	"github.com/photocomp/backend/pkg/batch"
	"github.com/photocomp/backend/pkg/kvstore"
)

const msgInvalidCredentials = "Invalid email or password"

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User  models.UserPublic `json:"user"`
	Token string            `json:"token"`
}

// Service implements account registration, login and lifecycle.
type Service struct {
	repo   *Repository
	jwt    *JWTService
	hasher PasswordHasher
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates the user-account service.
func NewService(repo *Repository, jwt *JWTService, hasher PasswordHasher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, jwt: jwt, hasher: hasher, logger: logger, now: time.Now}
}

// Register creates a USER account and signs a token for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := strings.TrimSpace(in.Email)
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to register user")
	}
	if existing != nil {
		return nil, apperr.Conflict("User with this email already exists")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal("Failed to register user", err)
	}
	u := models.NewUser(uuid.New().String(), email, hash, strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName), s.now().UTC())
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, apperr.Wrap(err, "Failed to register user")
	}
	s.logger.Info("user registered", zap.String("user_id", u.ID))
	return s.issue(u)
}

// Login verifies credentials. Unknown email and wrong password share one error.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to log in")
	}
	if u == nil || !s.hasher.Compare(u.Password, password) {
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}
	return s.issue(u)
}

func (s *Service) issue(u *models.User) (*AuthResult, error) {
	token, err := s.jwt.Generate(u)
	if err != nil {
		return nil, apperr.Internal("Failed to generate token", err)
	}
	return &AuthResult{User: u.ToPublic(), Token: token}, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Compare(u.Password, current) {
		return apperr.Unauthorized("Current password is incorrect")
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return apperr.Internal("Failed to change password", err)
	}
	u.Password = hash
	u.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, u); err != nil {
		return apperr.Wrap(err, "Failed to change password")
	}
	return nil
}

// GetUser returns the user or NotFound.
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to load user")
	}
	if u == nil {
		return nil, apperr.NotFound("User not found")
	}
	return u, nil
}

// UpdateUserRole raises the user's platform role. Lower or equal roles are
// ignored, so a role is never downgraded.
func (s *Service) UpdateUserRole(ctx context.Context, userID string, role models.UserRole) (*models.User, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !role.Outranks(u.Role) {
		return u, nil
	}
	u.Role = role
	u.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, apperr.Wrap(err, "Failed to update user role")
	}
	s.logger.Info("user role updated", zap.String("user_id", userID), zap.String("role", string(role)))
	return u, nil
}

// DeleteUser removes attendance records, memberships and pending requests,
// then the user row.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return err
	}
	attendance, err := s.repo.ListAttendance(ctx, userID)
	if err != nil {
		return apperr.Wrap(err, "Failed to delete user")
	}
	memberships, err := s.repo.ListMemberships(ctx, userID)
	if err != nil {
		return apperr.Wrap(err, "Failed to delete user")
	}
	requests, err := s.repo.ListRequests(ctx, userID)
	if err != nil {
		return apperr.Wrap(err, "Failed to delete user")
	}

	var ops []batch.Op
	for _, a := range attendance {
		ops = append(ops, s.deleteOp("attendance:"+a.EventID, models.AttendanceKey(a.EventID, userID)))
	}
	for _, m := range memberships {
		ops = append(ops, s.deleteOp("membership:"+m.OrgName, models.MembershipKey(m.OrgName, userID)))
	}
	for _, r := range requests {
		ops = append(ops, s.deleteOp("request:"+r.OrgName, models.RequestKey(r.OrgName, userID)))
	}
	ops = append(ops, batch.Op{ID: "user:" + userID, Run: func(ctx context.Context) error {
		return s.repo.Delete(ctx, userID)
	}})

	summary := batch.Run(ctx, ops)
	if !summary.OK() {
		s.logger.Error("delete user incomplete",
			zap.String("user_id", userID),
			zap.Int("attempted", summary.Attempted),
			zap.Int("failed", len(summary.Failures)),
			zap.Error(summary.Err()),
		)
		return apperr.Internal("Failed to delete user", summary.Err())
	}
	s.logger.Info("user deleted", zap.String("user_id", userID), zap.Int("rows", summary.Succeeded))
	return nil
}

func (s *Service) deleteOp(id string, key kvstore.Key) batch.Op {
	return batch.Op{ID: id, Run: func(ctx context.Context) error {
		return s.repo.DeleteKey(ctx, key)
	}}
}
