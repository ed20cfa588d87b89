package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest creates a new student account.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Regno    string `json:"regno" validate:"required,len=15"`
	Password string `json:"password" validate:"required,min=8,max=100"`
	Batch    int    `json:"batch" validate:"required,min=2015,max=2045"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Regno     string `json:"regno" validate:"required,len=15"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued tokens and user info.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	User         UserInfo  `json:"user"`
	IssuedAt     time.Time `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse returns the refreshed tokens.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ForgotPasswordRequest resets a password by proving regno and name.
type ForgotPasswordRequest struct {
	Regno       string `json:"regno" validate:"required,len=15"`
	Name        string `json:"name" validate:"required,min=1,max=100"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=100"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID    string `json:"id"`
	Regno string `json:"regno"`
	Name  string `json:"name"`
	Batch int    `json:"batch"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Regno  string `json:"regno"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}
