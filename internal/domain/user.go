package domain

import (
	"time"
)

// TokenTypeBearer is the scheme clients use to present access tokens.
const TokenTypeBearer = "Bearer"

// User is an account together with its single refresh-token session slot.
// RefreshTokenHash and RefreshTokenExpiresAt are set and cleared together
// through SetSession and ClearSession.
type User struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	FullName              string     `json:"fullName"`
	PasswordHash          string     `json:"-"`
	RefreshTokenHash      *string    `json:"-"`
	RefreshTokenExpiresAt *time.Time `json:"-"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// HasSession reports whether the session slot is populated.
func (u *User) HasSession() bool {
	return u.RefreshTokenHash != nil && u.RefreshTokenExpiresAt != nil
}

// SetSession overwrites the session slot.
func (u *User) SetSession(hash string, expiresAt time.Time) {
	exp := expiresAt.UTC()
	u.RefreshTokenHash = &hash
	u.RefreshTokenExpiresAt = &exp
}

// ClearSession empties the session slot.
func (u *User) ClearSession() {
	u.RefreshTokenHash = nil
	u.RefreshTokenExpiresAt = nil
}

// Profile returns the public view of the user.
func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Email: u.Email, FullName: u.FullName}
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	c := *u
	if u.RefreshTokenHash != nil {
		h := *u.RefreshTokenHash
		c.RefreshTokenHash = &h
	}
	if u.RefreshTokenExpiresAt != nil {
		e := *u.RefreshTokenExpiresAt
		c.RefreshTokenExpiresAt = &e
	}
	return &c
}

// Profile is what GET /me and the auth responses expose about a user.
type Profile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

// AuthResult is returned by login and refresh.
type AuthResult struct {
	TokenType    string  `json:"tokenType"`
	AccessToken  string  `json:"accessToken"`
	RefreshToken string  `json:"refreshToken"`
	ExpiresIn    int64   `json:"expiresIn"`
	User         Profile `json:"user"`
}
