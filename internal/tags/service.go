package tags

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/apperr"
)

// Photos loads photos with fresh URLs; a missing photo is a NotFound error.
type Photos interface {
	GetPhoto(ctx context.Context, photoID string) (*models.Photo, error)
}

// Attendance reports whether a user attends an event.
type Attendance interface {
	IsAttending(ctx context.Context, eventID, userID string) bool
}

// Users is the user-account collaborator.
type Users interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

// TagRequest names the users to tag in one photo.
type TagRequest struct {
	PhotoID string
	EventID string
	UserIDs []string
}

// Service implements photo tagging.
type Service struct {
	repo       *Repository
	photos     Photos
	attendance Attendance
	users      Users
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates the tags service.
func NewService(repo *Repository, photos Photos, attendance Attendance, users Users, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, photos: photos, attendance: attendance, users: users, logger: logger, now: time.Now}
}

// TagUsersInPhoto tags each listed user. Unknown users, non-attendees and
// users already tagged are skipped; only the created tags are returned.
func (s *Service) TagUsersInPhoto(ctx context.Context, req TagRequest, taggedBy string) ([]models.Tag, error) {
	if len(req.UserIDs) == 0 {
		return nil, apperr.BadRequest("At least one user id is required")
	}
	if err := s.photoInEvent(ctx, req.PhotoID, req.EventID); err != nil {
		return nil, err
	}

	created := []models.Tag{}
	seen := make(map[string]bool, len(req.UserIDs))
	for _, userID := range req.UserIDs {
		if seen[userID] {
			continue
		}
		seen[userID] = true
		log := s.logger.With(zap.String("user_id", userID), zap.String("photo_id", req.PhotoID))

		if _, err := s.users.GetUser(ctx, userID); err != nil {
			log.Warn("tag skipped: user not found", zap.Error(err))
			continue
		}
		if !s.attendance.IsAttending(ctx, req.EventID, userID) {
			log.Warn("tag skipped: user is not attending the event")
			continue
		}
		existing, err := s.repo.Find(ctx, req.PhotoID, userID)
		if err != nil {
			log.Warn("tag skipped: lookup failed", zap.Error(err))
			continue
		}
		if existing != nil {
			log.Warn("tag skipped: already tagged")
			continue
		}
		tag := models.NewTag(uuid.New().String(), userID, req.PhotoID, req.EventID, taggedBy, s.now().UTC())
		if err := s.repo.Create(ctx, tag); err != nil {
			log.Warn("tag skipped: write failed", zap.Error(err))
			continue
		}
		created = append(created, *tag)
	}
	s.logger.Info("users tagged", zap.String("photo_id", req.PhotoID), zap.Int("requested", len(req.UserIDs)), zap.Int("created", len(created)))
	return created, nil
}

// photoInEvent rejects photos that belong to a different event than the
// route names.
func (s *Service) photoInEvent(ctx context.Context, photoID, eventID string) error {
	photo, err := s.photos.GetPhoto(ctx, photoID)
	if err != nil {
		return err
	}
	if photo.EventID != eventID {
		return apperr.BadRequest("Photo does not belong to this event")
	}
	return nil
}

// GetPhotoTags lists the tags of a photo in eventID.
func (s *Service) GetPhotoTags(ctx context.Context, photoID, eventID string) ([]models.Tag, error) {
	if err := s.photoInEvent(ctx, photoID, eventID); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByPhoto(ctx, photoID)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to list tags")
	}
	if list == nil {
		list = []models.Tag{}
	}
	return list, nil
}

// RemoveTag deletes userID's tag on a photo in eventID.
func (s *Service) RemoveTag(ctx context.Context, userID, photoID, eventID string) error {
	if err := s.photoInEvent(ctx, photoID, eventID); err != nil {
		return err
	}
	tag, err := s.repo.Find(ctx, photoID, userID)
	if err != nil {
		return apperr.Wrap(err, "Failed to load tag")
	}
	if tag == nil {
		return apperr.NotFound("Tag not found")
	}
	if err := s.repo.Delete(ctx, tag.ID); err != nil {
		return apperr.Wrap(err, "Failed to remove tag")
	}
	return nil
}

// GetUserTaggedPhotos returns the photos the user is tagged in. Tags whose
// photo no longer exists are skipped.
func (s *Service) GetUserTaggedPhotos(ctx context.Context, userID string) ([]models.TaggedPhoto, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to list tagged photos")
	}
	out := make([]models.TaggedPhoto, 0, len(list))
	for _, tag := range list {
		photo, err := s.photos.GetPhoto(ctx, tag.PhotoID)
		if err != nil {
			if apperr.StatusCode(err) != http.StatusNotFound {
				return nil, err
			}
			s.logger.Warn("tagged photo missing", zap.String("tag_id", tag.ID), zap.String("photo_id", tag.PhotoID))
			continue
		}
		out = append(out, models.TaggedPhoto{Tag: tag, Photo: *photo})
	}
	return out, nil
}
