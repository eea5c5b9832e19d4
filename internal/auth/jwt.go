package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Caller is the identity carried by a verified bearer token. JTI is single
// use: it doubles as the idempotency key of whatever the request mutates.
type Caller struct {
	ID   string
	JTI  string
	Role string
}

func (c Caller) IsModerator() bool {
	return c.Role == "admin" || c.Role == "moderator"
}

type claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type JWT struct {
	secret []byte
}

func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret)}
}

// Sign issues a token with a fresh jti. Token issuance normally lives in the
// identity service; this is used by tooling and tests.
func (j *JWT) Sign(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return t.SignedString(j.secret)
}

func (j *JWT) Verify(tokenStr string) (Caller, error) {
	var c claims
	t, err := jwt.ParseWithClaims(tokenStr, &c, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	})
	if err != nil || !t.Valid {
		return Caller{}, ErrInvalidToken
	}

	if c.Subject == "" {
		return Caller{}, errors.New("missing sub")
	}
	if c.ID == "" {
		return Caller{}, errors.New("missing jti")
	}

	role := c.Role
	if role == "" {
		role = "user"
	}
	return Caller{ID: c.Subject, JTI: c.ID, Role: role}, nil
}
