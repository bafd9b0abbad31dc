package remote

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAuthDisabled is returned when an Authenticator has no secret
// configured; NewServer passing a nil *Authenticator skips auth entirely
// instead, so this only surfaces if one is built with an empty secret.
var ErrAuthDisabled = errors.New("remote: authenticator has no secret configured")

// ErrInvalidToken covers every token rejection: bad signature, wrong
// algorithm, expired, or missing subject.
var ErrInvalidToken = errors.New("remote: invalid or expired token")

// Authenticator validates the bearer token a client presents on
// initialize. Tokens are short-lived HS256 JWTs naming the session owner
// in the subject claim.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator builds an Authenticator from a shared secret. An empty
// secret makes every Validate call fail closed.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Claims embeds the registered claims plus the client-supplied display
// name, echoed back so error/log messages can identify the caller.
type Claims struct {
	ClientName string `json:"client_name,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a token for subject (typically a user or service account id)
// valid for ttl.
func (a *Authenticator) Issue(subject, clientName string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrAuthDisabled
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("remote: subject required")
	}
	claims := Claims{
		ClientName: strings.TrimSpace(clientName),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Validate parses and verifies token, rejecting anything not signed with
// the expected HMAC secret or missing a subject.
func (a *Authenticator) Validate(token string) error {
	if len(a.secret) == 0 {
		return ErrAuthDisabled
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return ErrInvalidToken
	}
	return nil
}
