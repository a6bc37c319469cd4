package models

import (
	"time"
)

// UsersTable is the fully qualified table holding credential records
const UsersTable = "auth.users"

// User represents a registered account as seen by callers. It never carries the password hash.
type User struct {
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CredentialRecord is the row inserted on registration.
// Active and CreatedAt are assigned by the store.
type CredentialRecord struct {
	Username       string `db:"username"`
	Email          string `db:"email"`
	HashedPassword string `db:"hashed_password"`
}

// NewCredentialRecord creates a record for a freshly hashed password
func NewCredentialRecord(username, email, hashedPassword string) *CredentialRecord {
	return &CredentialRecord{
		Username:       username,
		Email:          email,
		HashedPassword: hashedPassword,
	}
}

// RegisterRequest is the payload of POST /auth/register.
// Password is plaintext and must only be used to derive a hash.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// String redacts the password so the request is safe to log
func (r RegisterRequest) String() string {
	return "RegisterRequest{username=" + r.Username + ", email=" + r.Email + ", password=[REDACTED]}"
}

// LoginRequest is the form payload of POST /auth/token
type LoginRequest struct {
	Username  string `form:"username" validate:"required"`
	Password  string `form:"password" validate:"required"`
	GrantType string `form:"grant_type" validate:"omitempty,eq=password"`
}

// Token is an issued bearer credential
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
