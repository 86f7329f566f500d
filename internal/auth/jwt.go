package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"moviedex/pkg/utils"
)

var ErrInvalidToken = errors.New("invalid session token")

// Claims carries the user id in "sub" and the user's token version in "ver".
// A token is only honored while "ver" matches the stored version.
type Claims struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Version int    `json:"ver"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string { return c.Subject }

// Session is an issued token and the moment it stops being accepted.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Tokens issues and verifies HS256 session tokens.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

func NewTokens(cfg utils.AuthConfig) *Tokens {
	return newTokens([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTDuration, time.Now)
}

func newTokens(secret []byte, issuer string, ttl time.Duration, now func() time.Time) *Tokens {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Tokens{secret: secret, issuer: issuer, ttl: ttl, now: now, parser: jwt.NewParser(opts...)}
}

func (t *Tokens) Issue(u *User) (Session, error) {
	issued := t.now()
	exp := issued.Add(t.ttl)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Name:    u.Name,
		Email:   u.Email,
		Version: u.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := tok.SignedString(t.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: signed, ExpiresAt: exp}, nil
}

// Verify checks signature, algorithm, issuer and expiry. Every failure wraps
// ErrInvalidToken.
func (t *Tokens) Verify(raw string) (*Claims, error) {
	var claims Claims
	if _, err := t.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &claims, nil
}
