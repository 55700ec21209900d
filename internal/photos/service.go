package photos

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/apperr"
	"github.com/photocomp/backend/pkg/batch"
	"github.com/photocomp/backend/pkg/enrich"
	"github.com/photocomp/backend/pkg/imageproc"
	"github.com/photocomp/backend/pkg/storage"
)

// BlobStore is the subset of the S3 gateway used for photos.
type BlobStore interface {
	Bucket() string
	Upload(ctx context.Context, key, contentType string, body []byte) (string, error)
	PresignGet(ctx context.Context, key, filename string) (string, error)
	Delete(ctx context.Context, key string) error
}

// EventStore reads events and attendance. Get returns nil, nil for a
// missing event.
type EventStore interface {
	Get(ctx context.Context, eventID string) (*models.Event, error)
	IsAttending(ctx context.Context, eventID, userID string) (bool, error)
	ListAllByOrg(ctx context.Context, orgName string) ([]models.Event, error)
}

// MembershipFinder returns nil, nil when the user is not a member.
type MembershipFinder interface {
	FindMembership(ctx context.Context, orgName, userID string) (*models.Membership, error)
}

// TagStore lists and removes the tags of a photo.
type TagStore interface {
	ListByPhoto(ctx context.Context, photoID string) ([]models.Tag, error)
	Delete(ctx context.Context, tagID string) error
}

// UploadInput describes one uploaded image.
type UploadInput struct {
	PhotoID    string
	EventID    string
	Data       []byte
	MimeType   string
	UploaderID string
	Metadata   models.PhotoMetadata
}

// Service implements photo upload, listing, download and deletion.
type Service struct {
	repo    *Repository
	events  EventStore
	members MembershipFinder
	tags    TagStore
	blobs   BlobStore
	proc    imageproc.Processor
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates the photos service.
func NewService(repo *Repository, events EventStore, members MembershipFinder, tags TagStore, blobs BlobStore, proc imageproc.Processor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, events: events, members: members, tags: tags, blobs: blobs, proc: proc, logger: logger, now: time.Now}
}

func (s *Service) requireEvent(ctx context.Context, eventID string) (*models.Event, error) {
	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to load event")
	}
	if ev == nil {
		return nil, apperr.NotFound("Event not found")
	}
	return ev, nil
}

// UploadPhoto renders every size variant, stores them and persists the photo.
func (s *Service) UploadPhoto(ctx context.Context, in UploadInput) (*models.Photo, error) {
	if _, err := s.requireEvent(ctx, in.EventID); err != nil {
		return nil, err
	}
	if _, ok := storage.ExtensionFor(in.MimeType); !ok {
		return nil, apperr.BadRequest("Photo must be a JPEG, PNG or GIF image")
	}
	if len(in.Data) == 0 {
		return nil, apperr.BadRequest("Photo file is empty")
	}
	res, err := s.proc.Process(in.Data, in.MimeType)
	if err != nil {
		if errors.Is(err, imageproc.ErrUnsupported) {
			return nil, apperr.BadRequest("Photo could not be decoded")
		}
		return nil, apperr.Internal("Failed to process photo", err)
	}
	// Variants are encoded in the decoded format, whatever the client declared.
	contentType := res.ContentType()
	ext, ok := storage.ExtensionFor(contentType)
	if !ok {
		return nil, apperr.BadRequest("Photo must be a JPEG, PNG or GIF image")
	}
	if contentType != in.MimeType {
		s.logger.Debug("declared photo type differs from content", zap.String("declared", in.MimeType), zap.String("detected", contentType))
	}

	photoID := in.PhotoID
	if photoID == "" {
		photoID = uuid.New().String()
	}
	photo := models.NewPhoto(photoID, in.EventID, in.UploaderID, s.now().UTC())
	photo.Metadata = in.Metadata
	photo.Metadata.Width = res.Width
	photo.Metadata.Height = res.Height
	photo.Metadata.Size = int64(len(in.Data))
	photo.Metadata.MimeType = contentType
	photo.S3Keys = make(map[string]string, len(imageproc.Sizes))
	photo.URLs = make(map[string]string, len(imageproc.Sizes))

	for _, size := range imageproc.Sizes {
		v, ok := res.Variants[size]
		if !ok {
			continue
		}
		key := storage.PhotoKey(in.EventID, photoID, string(size), ext)
		if _, err := s.blobs.Upload(ctx, key, contentType, v.Data); err != nil {
			s.discardBlobs(ctx, photo.S3Keys)
			return nil, apperr.Internal("Failed to upload photo", err)
		}
		photo.S3Keys[string(size)] = key
	}
	for size, key := range photo.S3Keys {
		url, err := s.blobs.PresignGet(ctx, key, "")
		if err != nil {
			s.discardBlobs(ctx, photo.S3Keys)
			return nil, apperr.Internal("Failed to sign photo URL", err)
		}
		photo.URLs[size] = url
	}
	photo.URL = photo.URLs[string(imageproc.SizeOriginal)]

	if err := s.repo.Create(ctx, photo); err != nil {
		s.discardBlobs(ctx, photo.S3Keys)
		return nil, apperr.Wrap(err, "Failed to save photo")
	}
	s.logger.Info("photo uploaded", zap.String("photo_id", photoID), zap.String("event_id", in.EventID), zap.Int("variants", len(photo.S3Keys)))
	return photo, nil
}

func (s *Service) discardBlobs(ctx context.Context, keys map[string]string) {
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn("orphaned photo blob", zap.String("key", key), zap.Error(err))
		}
	}
}

// blobKeys returns the photo's keys by size. Photos written before sizes were
// stored carry a single legacy key, and the oldest only a URL.
func (s *Service) blobKeys(p *models.Photo) map[string]string {
	if len(p.S3Keys) > 0 {
		return p.S3Keys
	}
	if p.Metadata.S3Key != "" {
		return map[string]string{string(imageproc.SizeOriginal): p.Metadata.S3Key}
	}
	if key, ok := storage.KeyFromURL(p.URL, s.blobs.Bucket()); ok {
		return map[string]string{string(imageproc.SizeOriginal): key}
	}
	return nil
}

// refreshURLs replaces stored URLs with freshly presigned ones. A failed
// presign keeps the stored URL for that size.
func (s *Service) refreshURLs(ctx context.Context, p *models.Photo) {
	keys := s.blobKeys(p)
	if len(keys) == 0 {
		return
	}
	if p.URLs == nil {
		p.URLs = make(map[string]string, len(keys))
	}
	for size, key := range keys {
		res := enrich.Try(func() (string, error) {
			return s.blobs.PresignGet(ctx, key, "")
		})
		if res.Skipped {
			s.logger.Warn("photo url refresh skipped", zap.String("photo_id", p.ID), zap.String("size", size), zap.String("reason", res.Reason))
		}
		p.URLs[size] = res.Or(p.URLs[size])
	}
	if u := p.URLs[string(imageproc.SizeOriginal)]; u != "" {
		p.URL = u
	}
}

// GetEventPhotos lists the event's photos with fresh URLs.
func (s *Service) GetEventPhotos(ctx context.Context, eventID string) ([]models.Photo, error) {
	if _, err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.listEventPhotos(ctx, eventID)
}

func (s *Service) listEventPhotos(ctx context.Context, eventID string) ([]models.Photo, error) {
	list, err := s.repo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to list photos")
	}
	for i := range list {
		s.refreshURLs(ctx, &list[i])
	}
	if list == nil {
		list = []models.Photo{}
	}
	return list, nil
}

// GetPhoto returns the photo with fresh URLs, or NotFound.
func (s *Service) GetPhoto(ctx context.Context, photoID string) (*models.Photo, error) {
	p, err := s.repo.Get(ctx, photoID)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to load photo")
	}
	if p == nil {
		return nil, apperr.NotFound("Photo not found")
	}
	s.refreshURLs(ctx, p)
	return p, nil
}

func (s *Service) photoInEvent(ctx context.Context, photoID, eventID string) (*models.Photo, error) {
	p, err := s.repo.Get(ctx, photoID)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to load photo")
	}
	if p == nil {
		return nil, apperr.NotFound("Photo not found")
	}
	if p.EventID != eventID {
		return nil, apperr.BadRequest("Photo does not belong to this event")
	}
	return p, nil
}

// childOps returns the delete operations for a photo's tags and blobs.
func (s *Service) childOps(ctx context.Context, p *models.Photo) []batch.Op {
	var ops []batch.Op
	if s.tags != nil {
		tags, err := s.tags.ListByPhoto(ctx, p.ID)
		if err != nil {
			ops = append(ops, batch.Op{ID: "tags:" + p.ID, Run: func(context.Context) error { return err }})
		}
		for _, t := range tags {
			tagID := t.ID
			ops = append(ops, batch.Op{ID: "tag:" + tagID, Run: func(ctx context.Context) error {
				return s.tags.Delete(ctx, tagID)
			}})
		}
	}
	keys := s.blobKeys(p)
	sizes := make([]string, 0, len(keys))
	for size := range keys {
		sizes = append(sizes, size)
	}
	sort.Strings(sizes)
	for _, size := range sizes {
		key := keys[size]
		ops = append(ops, batch.Op{ID: "blob:" + key, Run: func(ctx context.Context) error {
			return s.blobs.Delete(ctx, key)
		}})
	}
	return ops
}

// DeletePhoto removes the photo row, then its tags and blobs best effort.
func (s *Service) DeletePhoto(ctx context.Context, photoID, eventID string) (batch.Summary, error) {
	p, err := s.photoInEvent(ctx, photoID, eventID)
	if err != nil {
		return batch.Summary{}, err
	}
	children := s.childOps(ctx, p)
	if err := s.repo.Delete(ctx, photoID); err != nil {
		return batch.Summary{}, apperr.Wrap(err, "Failed to delete photo")
	}
	summary := batch.Run(ctx, children)
	if !summary.OK() {
		s.logger.Warn("photo cleanup incomplete", zap.String("photo_id", photoID), zap.Error(summary.Err()))
	}
	return summary, nil
}

// DeleteEventPhotos removes every photo of the event with its tags and blobs.
func (s *Service) DeleteEventPhotos(ctx context.Context, eventID string) batch.Summary {
	list, err := s.repo.ListByEvent(ctx, eventID)
	if err != nil {
		return batch.Summary{Attempted: 1, Failures: []batch.Failure{{ID: "photos:" + eventID, Err: err}}}
	}
	var ops []batch.Op
	for i := range list {
		p := &list[i]
		ops = append(ops, s.childOps(ctx, p)...)
		photoID := p.ID
		ops = append(ops, batch.Op{ID: "photo:" + photoID, Run: func(ctx context.Context) error {
			return s.repo.Delete(ctx, photoID)
		}})
	}
	return batch.Run(ctx, ops)
}

// ValidateUserEventAccess reports whether userID attends the event. Errors
// deny access.
func (s *Service) ValidateUserEventAccess(ctx context.Context, eventID, userID string) bool {
	ok, err := s.events.IsAttending(ctx, eventID, userID)
	if err != nil {
		s.logger.Warn("event access check failed", zap.String("event_id", eventID), zap.Error(err))
		return false
	}
	return ok
}

// GetPhotoDownloadURL presigns a download of one size of the photo. An empty
// size means the original; a size the photo lacks falls back to the original.
func (s *Service) GetPhotoDownloadURL(ctx context.Context, photoID, eventID, size string) (string, error) {
	if size == "" {
		size = string(imageproc.SizeOriginal)
	}
	if !imageproc.Size(size).Valid() {
		return "", apperr.BadRequest("Size must be one of thumbnail, medium, large, original")
	}
	p, err := s.photoInEvent(ctx, photoID, eventID)
	if err != nil {
		return "", err
	}
	keys := s.blobKeys(p)
	key, ok := keys[size]
	if !ok {
		size = string(imageproc.SizeOriginal)
		key, ok = keys[size]
	}
	if !ok {
		return "", apperr.NotFound("Photo file not found")
	}
	url, err := s.blobs.PresignGet(ctx, key, downloadName(p, size, key))
	if err != nil {
		return "", apperr.Internal("Failed to generate download URL", err)
	}
	return url, nil
}

func downloadName(p *models.Photo, size, key string) string {
	base := strings.TrimSpace(p.Metadata.Title)
	if base == "" {
		base = p.ID
	}
	ext := ""
	if i := strings.LastIndex(key, "."); i >= 0 {
		ext = key[i:]
	}
	if size != string(imageproc.SizeOriginal) {
		return fmt.Sprintf("%s_%s%s", base, size, ext)
	}
	return base + ext
}

// GetAllOrganizationPhotos lists the photos of every event of the
// organization. Only members may call it.
func (s *Service) GetAllOrganizationPhotos(ctx context.Context, orgName, userID string) ([]models.Photo, error) {
	m, err := s.members.FindMembership(ctx, orgName, userID)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to verify organization membership")
	}
	if m == nil {
		return nil, apperr.Forbidden("You must be a member of this organization")
	}
	evs, err := s.events.ListAllByOrg(ctx, orgName)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to list events")
	}
	out := []models.Photo{}
	for _, ev := range evs {
		list, err := s.listEventPhotos(ctx, ev.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	return out, nil
}
