package models

import "time"

// UserRole is the platform-wide role of a user.
type UserRole string

const (
	UserRoleUser   UserRole = "USER"
	UserRoleMember UserRole = "MEMBER"
	UserRoleAdmin  UserRole = "ADMIN"
)

var userRoleRank = map[UserRole]int{UserRoleUser: 0, UserRoleMember: 1, UserRoleAdmin: 2}

// Outranks reports whether r is a higher role than other.
func (r UserRole) Outranks(other UserRole) bool {
	return userRoleRank[r] > userRoleRank[other]
}

// User is a platform account.
type User struct {
	PK        string    `dynamodbav:"PK" json:"-"`
	SK        string    `dynamodbav:"SK" json:"-"`
	GSI1PK    string    `dynamodbav:"GSI1PK" json:"-"`
	GSI1SK    string    `dynamodbav:"GSI1SK" json:"-"`
	ID        string    `dynamodbav:"id" json:"id"`
	Email     string    `dynamodbav:"email" json:"email"`
	Password  string    `dynamodbav:"password" json:"-"`
	FirstName string    `dynamodbav:"firstName" json:"firstName"`
	LastName  string    `dynamodbav:"lastName" json:"lastName"`
	Role      UserRole  `dynamodbav:"role" json:"role"`
	CreatedAt time.Time `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `dynamodbav:"updatedAt" json:"updatedAt"`
}

// NewUser builds a user record with its keys set.
func NewUser(id, email, passwordHash, firstName, lastName string, now time.Time) *User {
	return &User{
		PK:        UserPK(id),
		SK:        SKMetadata,
		GSI1PK:    EmailGSI(email),
		GSI1SK:    UserPK(id),
		ID:        id,
		Email:     email,
		Password:  passwordHash,
		FirstName: firstName,
		LastName:  lastName,
		Role:      UserRoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// FullName joins first and last name.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
