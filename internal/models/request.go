package models

import "time"

// RequestStatus is the state of a membership request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestDenied   RequestStatus = "DENIED"
)

// MembershipRequest is a pending application to join an organization. Only
// PENDING rows are stored; approve and deny delete the row.
type MembershipRequest struct {
	PK        string        `dynamodbav:"PK" json:"-"`
	SK        string        `dynamodbav:"SK" json:"-"`
	GSI1PK    string        `dynamodbav:"GSI1PK" json:"-"`
	GSI1SK    string        `dynamodbav:"GSI1SK" json:"-"`
	OrgName   string        `dynamodbav:"organizationName" json:"organizationName"`
	UserID    string        `dynamodbav:"userId" json:"userId"`
	Message   string        `dynamodbav:"message,omitempty" json:"message,omitempty"`
	Status    RequestStatus `dynamodbav:"status" json:"status"`
	CreatedAt time.Time     `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt time.Time     `dynamodbav:"updatedAt" json:"updatedAt"`
}

// NewMembershipRequest builds a PENDING request with its keys set.
func NewMembershipRequest(orgName, userID, message string, now time.Time) *MembershipRequest {
	k := RequestKey(orgName, userID)
	return &MembershipRequest{
		PK:        k.PK,
		SK:        k.SK,
		GSI1PK:    UserPK(userID),
		GSI1SK:    PrefixRequest + OrgKeyName(orgName),
		OrgName:   orgName,
		UserID:    userID,
		Message:   message,
		Status:    RequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
