package models

import "time"

// PhotoMetadata is the descriptive part of a photo.
type PhotoMetadata struct {
	Title       string `dynamodbav:"title,omitempty" json:"title,omitempty"`
	Description string `dynamodbav:"description,omitempty" json:"description,omitempty"`
	Width       int    `dynamodbav:"width,omitempty" json:"width,omitempty"`
	Height      int    `dynamodbav:"height,omitempty" json:"height,omitempty"`
	Size        int64  `dynamodbav:"size,omitempty" json:"size,omitempty"`
	MimeType    string `dynamodbav:"mimeType,omitempty" json:"mimeType,omitempty"`
	S3Key       string `dynamodbav:"s3key,omitempty" json:"-"`
}

// Photo belongs to one event. URLs are presigned and refreshed on read;
// S3Keys maps size name to blob key.
type Photo struct {
	PK         string            `dynamodbav:"PK" json:"-"`
	SK         string            `dynamodbav:"SK" json:"-"`
	GSI1PK     string            `dynamodbav:"GSI1PK" json:"-"`
	GSI1SK     string            `dynamodbav:"GSI1SK" json:"-"`
	ID         string            `dynamodbav:"id" json:"id"`
	EventID    string            `dynamodbav:"eventId" json:"eventId"`
	URL        string            `dynamodbav:"url" json:"url"`
	URLs       map[string]string `dynamodbav:"urls,omitempty" json:"urls,omitempty"`
	S3Keys     map[string]string `dynamodbav:"s3Keys,omitempty" json:"-"`
	Metadata   PhotoMetadata     `dynamodbav:"metadata" json:"metadata"`
	UploadedBy string            `dynamodbav:"uploadedBy" json:"uploadedBy"`
	CreatedAt  time.Time         `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time         `dynamodbav:"updatedAt" json:"updatedAt"`
}

// NewPhoto builds a photo record with its keys set.
func NewPhoto(id, eventID, uploadedBy string, now time.Time) *Photo {
	return &Photo{
		PK:         PhotoPK(id),
		SK:         SKMetadata,
		GSI1PK:     EventPK(eventID),
		GSI1SK:     PhotoPK(now.UTC().Format(time.RFC3339Nano) + "#" + id),
		ID:         id,
		EventID:    eventID,
		UploadedBy: uploadedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Tag marks a user as appearing in a photo.
type Tag struct {
	PK       string    `dynamodbav:"PK" json:"-"`
	SK       string    `dynamodbav:"SK" json:"-"`
	GSI1PK   string    `dynamodbav:"GSI1PK" json:"-"`
	GSI1SK   string    `dynamodbav:"GSI1SK" json:"-"`
	GSI2PK   string    `dynamodbav:"GSI2PK" json:"-"`
	GSI2SK   string    `dynamodbav:"GSI2SK" json:"-"`
	ID       string    `dynamodbav:"id" json:"id"`
	UserID   string    `dynamodbav:"userId" json:"userId"`
	PhotoID  string    `dynamodbav:"photoId" json:"photoId"`
	EventID  string    `dynamodbav:"eventId" json:"eventId"`
	TaggedBy string    `dynamodbav:"taggedBy" json:"taggedBy"`
	TaggedAt time.Time `dynamodbav:"taggedAt" json:"taggedAt"`
}

// NewTag builds a tag record with its keys set.
func NewTag(id, userID, photoID, eventID, taggedBy string, now time.Time) *Tag {
	return &Tag{
		PK:       PrefixTag + id,
		SK:       SKMetadata,
		GSI1PK:   UserPK(userID),
		GSI1SK:   PrefixTag + now.UTC().Format(time.RFC3339Nano) + "#" + id,
		GSI2PK:   PhotoPK(photoID),
		GSI2SK:   UserPK(userID),
		ID:       id,
		UserID:   userID,
		PhotoID:  photoID,
		EventID:  eventID,
		TaggedBy: taggedBy,
		TaggedAt: now,
	}
}

// TaggedPhoto pairs a tag with its photo.
type TaggedPhoto struct {
	Tag   Tag   `json:"tag"`
	Photo Photo `json:"photo"`
}
