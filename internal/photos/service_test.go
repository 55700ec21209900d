package photos

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photocomp/backend/internal/models"
	"github.com/photocomp/backend/pkg/apperr"
	"github.com/photocomp/backend/pkg/imageproc"
	"github.com/photocomp/backend/pkg/kvstore"
)

type fakeBlobs struct {
	mu         sync.Mutex
	objects    map[string][]byte
	types      map[string]string
	failUpload string
	failDelete string
	presigned  []string
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{objects: map[string][]byte{}, types: map[string]string{}} }

func (b *fakeBlobs) Bucket() string { return "bucket" }

func (b *fakeBlobs) Upload(_ context.Context, key, contentType string, body []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failUpload != "" && strings.Contains(key, b.failUpload) {
		return "", errors.New("s3 unavailable")
	}
	b.objects[key] = body
	b.types[key] = contentType
	return "https://bucket.s3.us-east-1.amazonaws.com/" + key, nil
}

func (b *fakeBlobs) PresignGet(_ context.Context, key, filename string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presigned = append(b.presigned, filename)
	return "https://signed.example/" + key + "?dl=" + filename, nil
}

func (b *fakeBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failDelete != "" && strings.Contains(key, b.failDelete) {
		return errors.New("s3 access denied")
	}
	delete(b.objects, key)
	return nil
}

type fakeEvents struct {
	events    map[string]*models.Event
	attending map[string]bool
	err       error
}

func (f *fakeEvents) Get(_ context.Context, id string) (*models.Event, error) {
	return f.events[id], nil
}

func (f *fakeEvents) IsAttending(_ context.Context, eventID, userID string) (bool, error) {
	if f.err != nil {
		return true, f.err
	}
	return f.attending[eventID+"/"+userID], nil
}

func (f *fakeEvents) ListAllByOrg(_ context.Context, org string) ([]models.Event, error) {
	var out []models.Event
	for _, id := range []string{"e1", "e2", "e3"} {
		if ev, ok := f.events[id]; ok && models.OrgKeyName(ev.OrgName) == models.OrgKeyName(org) {
			out = append(out, *ev)
		}
	}
	return out, nil
}

type fakeMembers struct{ members map[string]bool }

func (f *fakeMembers) FindMembership(_ context.Context, org, user string) (*models.Membership, error) {
	if !f.members[user] {
		return nil, nil
	}
	return &models.Membership{OrgName: org, UserID: user, Role: models.MemberRoleMember}, nil
}

type fakeTags struct {
	tags    map[string][]models.Tag
	deleted []string
}

func (f *fakeTags) ListByPhoto(_ context.Context, photoID string) ([]models.Tag, error) {
	return f.tags[photoID], nil
}

func (f *fakeTags) Delete(_ context.Context, tagID string) error {
	f.deleted = append(f.deleted, tagID)
	return nil
}

type fixture struct {
	svc   *Service
	repo  *Repository
	store *kvstore.Memory
	blobs *fakeBlobs
	evs   *fakeEvents
	tags  *fakeTags
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := kvstore.NewMemory()
	f := &fixture{
		store: store,
		repo:  NewRepository(store),
		blobs: newFakeBlobs(),
		evs: &fakeEvents{
			events: map[string]*models.Event{
				"e1": {ID: "e1", OrgName: "Club"},
				"e2": {ID: "e2", OrgName: "Club"},
				"e3": {ID: "e3", OrgName: "Other"},
			},
			attending: map[string]bool{"e1/u1": true},
		},
		tags: &fakeTags{tags: map[string][]models.Tag{}},
	}
	f.svc = NewService(f.repo, f.evs, &fakeMembers{members: map[string]bool{"u1": true}}, f.tags, f.blobs, imageproc.NewImaging(), nil)
	tick := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return f
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func (f *fixture) upload(t *testing.T, eventID, photoID string) *models.Photo {
	t.Helper()
	p, err := f.svc.UploadPhoto(context.Background(), UploadInput{
		PhotoID:    photoID,
		EventID:    eventID,
		Data:       pngBytes(t, 1000, 500),
		MimeType:   "image/png",
		UploaderID: "admin",
		Metadata:   models.PhotoMetadata{Title: "Pier"},
	})
	require.NoError(t, err)
	return p
}

func TestUploadPhotoStoresEverySize(t *testing.T) {
	f := newFixture(t)
	p := f.upload(t, "e1", "p1")

	assert.Len(t, f.blobs.objects, 4)
	assert.Equal(t, "photos/e1/p1.png", p.S3Keys["original"])
	assert.Equal(t, "photos/e1/p1_thumbnail.png", p.S3Keys["thumbnail"])
	assert.Contains(t, p.URL, "https://signed.example/photos/e1/p1.png")
	assert.Equal(t, 1000, p.Metadata.Width)
	assert.Equal(t, 500, p.Metadata.Height)
	assert.Equal(t, "Pier", p.Metadata.Title)

	stored, err := f.repo.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Len(t, stored.URLs, 4)
}

func TestUploadPhotoUsesDecodedFormat(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 300, 300)), nil))

	p, err := f.svc.UploadPhoto(context.Background(), UploadInput{PhotoID: "p1", EventID: "e1", Data: buf.Bytes(), MimeType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "photos/e1/p1_thumbnail.jpg", p.S3Keys["thumbnail"])
	assert.Equal(t, "photos/e1/p1.jpg", p.S3Keys["original"])
	assert.Equal(t, "image/jpeg", p.Metadata.MimeType)
	for key, ct := range f.blobs.types {
		assert.Equal(t, "image/jpeg", ct, key)
	}
}

func TestUploadPhotoRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UploadPhoto(ctx, UploadInput{EventID: "missing", Data: []byte("x"), MimeType: "image/png"})
	assert.Equal(t, http.StatusNotFound, apperr.StatusCode(err))

	_, err = f.svc.UploadPhoto(ctx, UploadInput{EventID: "e1", Data: []byte("x"), MimeType: "application/pdf"})
	assert.Equal(t, http.StatusBadRequest, apperr.StatusCode(err))

	_, err = f.svc.UploadPhoto(ctx, UploadInput{EventID: "e1", Data: []byte("not an image"), MimeType: "image/png"})
	assert.Equal(t, http.StatusBadRequest, apperr.StatusCode(err))
	assert.Equal(t, 0, f.store.Len())
}

func TestUploadPhotoCleansUpAfterBlobFailure(t *testing.T) {
	f := newFixture(t)
	f.blobs.failUpload = "_large"

	_, err := f.svc.UploadPhoto(context.Background(), UploadInput{PhotoID: "p1", EventID: "e1", Data: pngBytes(t, 10, 10), MimeType: "image/png"})
	assert.Equal(t, http.StatusInternalServerError, apperr.StatusCode(err))
	assert.Empty(t, f.blobs.objects)
	assert.Equal(t, 0, f.store.Len())
}

func TestGetEventPhotosKeyFallbacks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, "e1", "p1")

	legacy := models.NewPhoto("p2", "e1", "admin", time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC))
	legacy.URL = "https://old.example/expired"
	legacy.Metadata.S3Key = "photos/e1/p2.jpg"
	require.NoError(t, f.repo.Create(ctx, legacy))

	oldest := models.NewPhoto("p3", "e1", "admin", time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC))
	oldest.URL = "https://bucket.s3.us-east-1.amazonaws.com/photos/e1/p3.jpg?X-Amz-Signature=old"
	require.NoError(t, f.repo.Create(ctx, oldest))

	list, err := f.svc.GetEventPhotos(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "p1", list[0].ID)
	assert.Contains(t, list[1].URL, "https://signed.example/photos/e1/p2.jpg")
	assert.Contains(t, list[2].URL, "https://signed.example/photos/e1/p3.jpg")

	_, err = f.svc.GetEventPhotos(ctx, "missing")
	assert.Equal(t, http.StatusNotFound, apperr.StatusCode(err))
}

func TestDeletePhotoContinuesPastBlobFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, "e1", "p1")
	f.tags.tags["p1"] = []models.Tag{{ID: "t1"}, {ID: "t2"}}
	f.blobs.failDelete = "_medium"

	_, err := f.svc.DeletePhoto(ctx, "p1", "e2")
	assert.Equal(t, http.StatusBadRequest, apperr.StatusCode(err))

	summary, err := f.svc.DeletePhoto(ctx, "p1", "e1")
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Attempted)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "blob:photos/e1/p1_medium.png", summary.Failures[0].ID)
	assert.Equal(t, []string{"t1", "t2"}, f.tags.deleted)
	assert.Len(t, f.blobs.objects, 1)

	_, err = f.svc.GetPhoto(ctx, "p1")
	assert.Equal(t, http.StatusNotFound, apperr.StatusCode(err))
}

func TestDeleteEventPhotos(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "e1", "p1")
	f.upload(t, "e1", "p2")
	f.upload(t, "e2", "p3")

	summary := f.svc.DeleteEventPhotos(context.Background(), "e1")
	assert.True(t, summary.OK())
	assert.Equal(t, 10, summary.Attempted)
	assert.Len(t, f.blobs.objects, 4)
	assert.Equal(t, 1, f.store.Len())
}

func TestGetPhotoDownloadURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, "e1", "p1")

	url, err := f.svc.GetPhotoDownloadURL(ctx, "p1", "e1", "")
	require.NoError(t, err)
	assert.Contains(t, url, "photos/e1/p1.png?dl=Pier.png")

	url, err = f.svc.GetPhotoDownloadURL(ctx, "p1", "e1", "thumbnail")
	require.NoError(t, err)
	assert.Contains(t, url, "?dl=Pier_thumbnail.png")

	_, err = f.svc.GetPhotoDownloadURL(ctx, "p1", "e1", "huge")
	assert.Equal(t, http.StatusBadRequest, apperr.StatusCode(err))
	_, err = f.svc.GetPhotoDownloadURL(ctx, "p1", "e2", "")
	assert.Equal(t, http.StatusBadRequest, apperr.StatusCode(err))
	_, err = f.svc.GetPhotoDownloadURL(ctx, "nope", "e1", "")
	assert.Equal(t, http.StatusNotFound, apperr.StatusCode(err))
}

func TestValidateUserEventAccessFailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.True(t, f.svc.ValidateUserEventAccess(ctx, "e1", "u1"))
	assert.False(t, f.svc.ValidateUserEventAccess(ctx, "e1", "u2"))

	f.evs.err = errors.New("throttled")
	assert.False(t, f.svc.ValidateUserEventAccess(ctx, "e1", "u1"))
}

func TestGetAllOrganizationPhotos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, "e1", "p1")
	f.upload(t, "e2", "p2")
	f.upload(t, "e3", "p3")

	list, err := f.svc.GetAllOrganizationPhotos(ctx, "club", "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p1", list[0].ID)
	assert.Equal(t, "p2", list[1].ID)

	_, err = f.svc.GetAllOrganizationPhotos(ctx, "club", "u9")
	assert.Equal(t, http.StatusForbidden, apperr.StatusCode(err))
}
