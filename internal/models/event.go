package models

import (
	"time"

	"github.com/photocomp/backend/pkg/weather"
)

// Event belongs to one organization.
type Event struct {
	PK          string            `dynamodbav:"PK" json:"-"`
	SK          string            `dynamodbav:"SK" json:"-"`
	GSI1PK      string            `dynamodbav:"GSI1PK" json:"-"`
	GSI1SK      string            `dynamodbav:"GSI1SK" json:"-"`
	ID          string            `dynamodbav:"id" json:"id"`
	OrgName     string            `dynamodbav:"organizationName" json:"organizationName"`
	Title       string            `dynamodbav:"title" json:"title"`
	Description string            `dynamodbav:"description" json:"description"`
	Date        string            `dynamodbav:"date" json:"date"`
	Location    string            `dynamodbav:"location,omitempty" json:"location,omitempty"`
	Weather     *weather.Forecast `dynamodbav:"weather,omitempty" json:"weather,omitempty"`
	IsPublic    bool              `dynamodbav:"isPublic" json:"isPublic"`
	CreatedBy   string            `dynamodbav:"createdBy" json:"createdBy"`
	CreatedAt   time.Time         `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time         `dynamodbav:"updatedAt" json:"updatedAt"`
}

// NewEvent builds a public event with its keys set.
func NewEvent(id, orgName, title, description, date, createdBy string, now time.Time) *Event {
	return &Event{
		PK:          EventPK(id),
		SK:          SKMetadata,
		GSI1PK:      OrgPK(orgName),
		GSI1SK:      EventPK(date + "#" + id),
		ID:          id,
		OrgName:     orgName,
		Title:       title,
		Description: description,
		Date:        date,
		IsPublic:    true,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Attendance marks a user as attending an event.
type Attendance struct {
	PK        string    `dynamodbav:"PK" json:"-"`
	SK        string    `dynamodbav:"SK" json:"-"`
	GSI1PK    string    `dynamodbav:"GSI1PK" json:"-"`
	GSI1SK    string    `dynamodbav:"GSI1SK" json:"-"`
	EventID   string    `dynamodbav:"eventId" json:"eventId"`
	UserID    string    `dynamodbav:"userId" json:"userId"`
	CreatedAt time.Time `dynamodbav:"createdAt" json:"createdAt"`
}

// NewAttendance builds an attendance record with its keys set.
func NewAttendance(eventID, userID string, now time.Time) *Attendance {
	k := AttendanceKey(eventID, userID)
	return &Attendance{
		PK:        k.PK,
		SK:        k.SK,
		GSI1PK:    EventPK(eventID),
		GSI1SK:    UserPK(userID),
		EventID:   eventID,
		UserID:    userID,
		CreatedAt: now,
	}
}
