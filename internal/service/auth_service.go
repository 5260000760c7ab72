package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"provsurvey/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

const (
	adminTokenTTL = 12 * time.Hour
	sessionIssuer = "survey-session"
	adminIssuer   = "survey-admin"
)

// AuthService signs the respondent session cookie and admin tokens
type AuthService struct {
	adminUsername string
	adminPassHash []byte
	jwtSecret     []byte
	sessionTTL    time.Duration
}

// NewAuthService creates a new auth service. An empty passHash disables admin login.
func NewAuthService(adminUser, adminPassHash, secret string, sessionTTL time.Duration) *AuthService {
	return &AuthService{
		adminUsername: adminUser,
		adminPassHash: []byte(adminPassHash),
		jwtSecret:     []byte(secret),
		sessionTTL:    sessionTTL,
	}
}

// Login validates admin credentials and returns a bearer token
func (s *AuthService) Login(username, password string) (*model.LoginResponse, error) {
	if len(s.adminPassHash) == 0 || username != s.adminUsername {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.adminPassHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	claims := &model.AdminClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    adminIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(adminTokenTTL)),
		},
	}
	tokenString, err := s.sign(claims)
	if err != nil {
		return nil, err
	}
	return &model.LoginResponse{
		Token:     tokenString,
		ExpiresIn: int64(adminTokenTTL.Seconds()),
	}, nil
}

// ValidateAdminToken validates an admin JWT and returns claims
func (s *AuthService) ValidateAdminToken(tokenString string) (*model.AdminClaims, error) {
	claims := &model.AdminClaims{}
	if err := s.parse(tokenString, claims, adminIssuer); err != nil {
		return nil, err
	}
	return claims, nil
}

// IssueSessionToken mints a new session id and its signed cookie value
func (s *AuthService) IssueSessionToken() (sid, token string, err error) {
	sid = uuid.NewString()
	token, err = s.sessionToken(sid)
	if err != nil {
		return "", "", err
	}
	return sid, token, nil
}

// ParseSessionToken returns the session id carried by a cookie value
func (s *AuthService) ParseSessionToken(tokenString string) (string, error) {
	claims, err := s.parseSession(tokenString)
	if err != nil {
		return "", err
	}
	return claims.SessionID, nil
}

// RefreshSessionToken validates a cookie value like ParseSessionToken. When
// less than half of the session TTL is left it also returns a re-signed token
// for the same session id; otherwise renewed is empty.
func (s *AuthService) RefreshSessionToken(tokenString string) (sid, renewed string, err error) {
	claims, err := s.parseSession(tokenString)
	if err != nil {
		return "", "", err
	}
	if claims.ExpiresAt != nil && time.Until(claims.ExpiresAt.Time) > s.sessionTTL/2 {
		return claims.SessionID, "", nil
	}
	renewed, err = s.sessionToken(claims.SessionID)
	if err != nil {
		return "", "", err
	}
	return claims.SessionID, renewed, nil
}

func (s *AuthService) sessionToken(sid string) (string, error) {
	now := time.Now()
	return s.sign(&model.SessionClaims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
		},
	})
}

func (s *AuthService) parseSession(tokenString string) (*model.SessionClaims, error) {
	claims := &model.SessionClaims{}
	if err := s.parse(tokenString, claims, sessionIssuer); err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SessionTTL is the lifetime of a session cookie
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

func (s *AuthService) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) parse(tokenString string, claims jwt.Claims, issuer string) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
