package domain

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User is the identity record. Email and DisplayName are each globally unique.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string `json:"-"`
	IsActive     bool
	IsVerified   bool
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NewUser is the input for inserting a user row.
type NewUser struct {
	Email        string
	DisplayName  string
	PasswordHash string
	Role         Role
}

type UserCounts struct {
	Total      int64
	Verified   int64
	Unverified int64
	Inactive   int64
}
