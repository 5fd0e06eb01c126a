// Package auth verifies session tokens and gates routes by membership.
//
// Sessions are HS256 JWTs issued by an external identity provider (or by
// IssueToken for local development). The token is read from the
// Authorization header or the __session cookie.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "__session"

// ErrUnauthorized indicates a missing, malformed or expired session.
var ErrUnauthorized = errors.New("unauthorized")

// User is the authenticated principal.
type User struct {
	ID        string
	FirstName string
	LastName  string
	Username  string
	Email     string
	ImageURL  string
}

// DisplayName returns first and last name, first name alone, the username,
// or "User", whichever is present first.
func (u User) DisplayName() string {
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case strings.TrimSpace(u.Username) != "":
		return strings.TrimSpace(u.Username)
	default:
		return "User"
	}
}

// claims is the token payload.
type claims struct {
	jwt.RegisteredClaims
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	Picture   string `json:"picture,omitempty"`
}

// Verifier validates session tokens.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier creates a verifier for tokens signed with secret by issuer.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Verify parses token and returns its user.
func (v *Verifier) Verify(token string) (User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return User{}, fmt.Errorf("%w: token is required", ErrUnauthorized)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return User{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return User{}, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}

	return User{
		ID:        parsed.Subject,
		FirstName: parsed.FirstName,
		LastName:  parsed.LastName,
		Username:  parsed.Username,
		Email:     parsed.Email,
		ImageURL:  parsed.Picture,
	}, nil
}

// IssueToken mints a session token for u valid for ttl.
func IssueToken(secret, issuer string, u User, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("session secret is required")
	}
	if u.ID == "" {
		return "", errors.New("user id is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}

	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
		Email:     u.Email,
		Picture:   u.ImageURL,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
