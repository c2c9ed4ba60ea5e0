// Package auth validates the bearer tokens that identify a viewer.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeAccess is the only token type accepted for API requests.
const TokenTypeAccess = "access"

// Token lifetimes and validation leeway.
const (
	AccessTokenExpiry = 15 * time.Minute
	DefaultLeeway     = 30 * time.Second
)

var (
	// ErrInvalidToken is returned when token validation fails.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")

	// ErrEmptyViewerID is returned when a token is requested for no viewer.
	ErrEmptyViewerID = errors.New("viewer id cannot be empty")
)

// Claims are the JWT claims of an access token. The subject is the viewer id.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

// ViewerID returns the viewer the token was issued to.
func (c *Claims) ViewerID() string {
	return c.Subject
}

// JWTService signs and validates access tokens.
// Tokens are signed with the current secret and accepted with either the
// current or the previous secret, so secrets can be rotated without downtime.
type JWTService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
}

// NewJWTService creates a JWTService. previousSecret may be empty.
// A non-positive leeway falls back to DefaultLeeway.
func NewJWTService(currentSecret, previousSecret string, leeway time.Duration) *JWTService {
	if leeway <= 0 {
		leeway = DefaultLeeway
	}
	svc := &JWTService{
		currentSecret: []byte(currentSecret),
		leeway:        leeway,
	}
	if previousSecret != "" {
		svc.previousSecret = []byte(previousSecret)
	}
	return svc
}

// GenerateAccessToken creates an access token for viewerID.
func (s *JWTService) GenerateAccessToken(viewerID string) (string, error) {
	if viewerID == "" {
		return "", ErrEmptyViewerID
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   viewerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenExpiry)),
		},
		Type: TokenTypeAccess,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.currentSecret)
}

// ValidateToken parses and validates an access token.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, s.currentSecret)
	if err != nil && s.previousSecret != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		claims, err = s.parse(tokenString, s.previousSecret)
	}
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims.Type != TokenTypeAccess || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithLeeway(s.leeway))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
