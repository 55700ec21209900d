package models

import "time"

// MemberRole is a user's role inside one organization.
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "ADMIN"
	MemberRoleMember MemberRole = "MEMBER"
)

// Valid reports whether r is a known membership role.
func (r MemberRole) Valid() bool {
	return r == MemberRoleAdmin || r == MemberRoleMember
}

// Membership links a user to an organization.
type Membership struct {
	PK       string     `dynamodbav:"PK" json:"-"`
	SK       string     `dynamodbav:"SK" json:"-"`
	GSI1PK   string     `dynamodbav:"GSI1PK" json:"-"`
	GSI1SK   string     `dynamodbav:"GSI1SK" json:"-"`
	OrgName  string     `dynamodbav:"organizationName" json:"organizationName"`
	UserID   string     `dynamodbav:"userId" json:"userId"`
	Role     MemberRole `dynamodbav:"role" json:"role"`
	JoinedAt time.Time  `dynamodbav:"joinedAt" json:"joinedAt"`
}

// NewMembership builds a membership record with its keys set.
func NewMembership(orgName, userID string, role MemberRole, now time.Time) *Membership {
	k := MembershipKey(orgName, userID)
	return &Membership{
		PK:       k.PK,
		SK:       k.SK,
		GSI1PK:   OrgPK(orgName),
		GSI1SK:   UserPK(userID),
		OrgName:  orgName,
		UserID:   userID,
		Role:     role,
		JoinedAt: now,
	}
}

// MemberView is a membership joined with the member's profile.
type MemberView struct {
	Membership
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}
