package model

import "github.com/golang-jwt/jwt/v5"

// AdminClaims are JWT claims for report/export access
type AdminClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// SessionClaims are carried by the signed respondent cookie
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// LoginRequest is the request body for admin login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned after successful login
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}
