package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials. UID is a mobile number or an email address.
type LoginRequest struct {
	UID       string `json:"uid" validate:"required"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued token, the user and where the client should go next.
type LoginResponse struct {
	AccessToken string   `json:"accessToken"`
	ExpiresIn   int64    `json:"expiresIn"`
	User        UserInfo `json:"user"`
	RedirectTo  string   `json:"redirectTo"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID           string   `json:"id"`
	Email        string   `json:"email,omitempty"`
	MobileNumber string   `json:"mobileNumber,omitempty"`
	FullName     string   `json:"fullName"`
	Role         UserRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email,omitempty"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Session is the explicit caller context handed to services.
type Session struct {
	UserID    string
	Role      UserRole
	FullName  string
	IP        string
	UserAgent string
}

// IsAdmin reports whether the caller administers admissions.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

// Owns reports whether the caller may act on a record owned by userID.
func (s *Session) Owns(userID string) bool {
	if s == nil {
		return false
	}
	return s.IsAdmin() || s.UserID == userID
}

// ActorID returns a pointer suitable for audit rows.
func (s *Session) ActorID() *string {
	if s == nil || s.UserID == "" {
		return nil
	}
	id := s.UserID
	return &id
}
