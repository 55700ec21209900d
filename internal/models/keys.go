// Package models defines the single-table records and their key layout.
package models

import (
	"strings"

	"github.com/photocomp/backend/pkg/kvstore"
)

// Key prefixes and the fixed sort key of entity metadata rows.
const (
	PrefixUser    = "USER#"
	PrefixEmail   = "EMAIL#"
	PrefixOrg     = "ORG#"
	PrefixRequest = "REQUEST#"
	PrefixEvent   = "EVENT#"
	PrefixPhoto   = "PHOTO#"
	PrefixTag     = "TAG#"

	SKMetadata = "METADATA"
	// PartitionOrgs groups every organization under GSI1 for listing.
	PartitionOrgs = "ORGS"
)

// OrgKeyName returns the case-insensitive identity of an organization name.
func OrgKeyName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func UserPK(userID string) string { return PrefixUser + userID }
func OrgPK(orgName string) string { return PrefixOrg + OrgKeyName(orgName) }
func EventPK(eventID string) string { return PrefixEvent + eventID }
func PhotoPK(photoID string) string { return PrefixPhoto + photoID }
func EmailGSI(email string) string {
	return PrefixEmail + strings.ToLower(strings.TrimSpace(email))
}

func UserKey(userID string) kvstore.Key { return kvstore.Key{PK: UserPK(userID), SK: SKMetadata} }
func OrgKey(orgName string) kvstore.Key { return kvstore.Key{PK: OrgPK(orgName), SK: SKMetadata} }
func EventKey(eventID string) kvstore.Key { return kvstore.Key{PK: EventPK(eventID), SK: SKMetadata} }
func PhotoKey(photoID string) kvstore.Key { return kvstore.Key{PK: PhotoPK(photoID), SK: SKMetadata} }
func TagKey(tagID string) kvstore.Key { return kvstore.Key{PK: PrefixTag + tagID, SK: SKMetadata} }

// MembershipKey addresses the (user, organization) row.
func MembershipKey(orgName, userID string) kvstore.Key {
	return kvstore.Key{PK: UserPK(userID), SK: OrgPK(orgName)}
}

// RequestKey addresses a pending membership request.
func RequestKey(orgName, userID string) kvstore.Key {
	return kvstore.Key{PK: OrgPK(orgName), SK: PrefixRequest + userID}
}

// AttendanceKey addresses the (user, event) attendance row.
func AttendanceKey(eventID, userID string) kvstore.Key {
	return kvstore.Key{PK: UserPK(userID), SK: EventPK(eventID)}
}
