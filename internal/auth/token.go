package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/votewise/votewise/internal/identity"
)

// ErrInvalidToken covers every way a presented token can fail validation.
var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is the authenticated caller carried on the request.
type Identity struct {
	UserID string
	Role   identity.Role
}

// IsAdmin reports whether the caller holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == identity.RoleAdmin
}

// Claims is the token payload: exactly id, role and exp.
type Claims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService builds a token service signing with secret.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime of freshly issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the given user and returns it with its expiry.
func (s *TokenService) Issue(userID string, role identity.Role) (string, time.Time, error) {
	if userID == "" || !role.Valid() {
		return "", time.Time{}, errors.New("token subject requires an id and a known role")
	}
	exp := s.now().Add(s.ttl)
	claims := Claims{
		UserID:           userID,
		Role:             string(role),
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Validate verifies signature, algorithm and expiry, and returns the caller.
func (s *TokenService) Validate(token string) (Identity, error) {
	_, ident, err := s.parse(token)
	return ident, err
}

// ExpiresAt returns the expiry of a valid token.
func (s *TokenService) ExpiresAt(token string) (time.Time, error) {
	claims, _, err := s.parse(token)
	if err != nil {
		return time.Time{}, err
	}
	return claims.ExpiresAt.Time, nil
}

func (s *TokenService) parse(token string) (*Claims, Identity, error) {
	if token == "" {
		return nil, Identity{}, ErrInvalidToken
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, Identity{}, ErrInvalidToken
	}
	role := identity.Role(claims.Role)
	if claims.UserID == "" || !role.Valid() {
		return nil, Identity{}, ErrInvalidToken
	}
	return claims, Identity{UserID: claims.UserID, Role: role}, nil
}
