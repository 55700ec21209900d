package models

import "time"

// Organization hosts events. Its upper-cased name is its identity.
type Organization struct {
	PK           string    `dynamodbav:"PK" json:"-"`
	SK           string    `dynamodbav:"SK" json:"-"`
	GSI1PK       string    `dynamodbav:"GSI1PK" json:"-"`
	GSI1SK       string    `dynamodbav:"GSI1SK" json:"-"`
	ID           string    `dynamodbav:"id" json:"id"`
	Name         string    `dynamodbav:"name" json:"name"`
	Description  string    `dynamodbav:"description,omitempty" json:"description,omitempty"`
	Website      string    `dynamodbav:"website,omitempty" json:"website,omitempty"`
	ContactEmail string    `dynamodbav:"contactEmail,omitempty" json:"contactEmail,omitempty"`
	LogoURL      string    `dynamodbav:"logoUrl,omitempty" json:"logoUrl,omitempty"`
	LogoS3Key    string    `dynamodbav:"logoS3Key,omitempty" json:"-"`
	IsPublic     bool      `dynamodbav:"isPublic" json:"isPublic"`
	CreatedBy    string    `dynamodbav:"createdBy" json:"createdBy"`
	CreatedAt    time.Time `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `dynamodbav:"updatedAt" json:"updatedAt"`
}

// NewOrganization builds an organization record with its keys set.
func NewOrganization(id, name, createdBy string, now time.Time) *Organization {
	return &Organization{
		PK:        OrgPK(name),
		SK:        SKMetadata,
		GSI1PK:    PartitionOrgs,
		GSI1SK:    OrgPK(name),
		ID:        id,
		Name:      name,
		IsPublic:  true,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
