package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	CtxPrincipalKey = "auth_principal"
	SessionCookie   = "session_token"
)

// Principal is the authenticated caller handed to the saved-movie engine.
type Principal struct {
	UserID string
	Name   string
	Email  string
}

type versionSource interface {
	GetTokenVersion(ctx context.Context, id string) (int, error)
}

// Resolver turns request credentials into a Principal.
type Resolver struct {
	Tokens   *Tokens
	Versions versionSource
}

func NewResolver(tokens *Tokens, repo *Repo) *Resolver {
	r := &Resolver{Tokens: tokens}
	if repo != nil {
		r.Versions = repo
	}
	return r
}

// GetCurrentPrincipal reads a bearer token, falling back to the session
// cookie. Tokens revoked by logout or a password change are rejected.
func (r *Resolver) GetCurrentPrincipal(req *http.Request) (*Principal, bool) {
	raw := bearerToken(req)
	if raw == "" {
		if ck, err := req.Cookie(SessionCookie); err == nil {
			raw = strings.TrimSpace(ck.Value)
		}
	}
	if raw == "" {
		return nil, false
	}

	claims, err := r.Tokens.Verify(raw)
	if err != nil {
		return nil, false
	}
	if r.Versions != nil {
		current, err := r.Versions.GetTokenVersion(req.Context(), claims.UserID())
		if err != nil || current != claims.Version {
			return nil, false
		}
	}

	return &Principal{UserID: claims.UserID(), Name: claims.Name, Email: claims.Email}, true
}

func bearerToken(req *http.Request) string {
	h := req.Header.Get("Authorization")
	if len(h) < len("bearer ") || !strings.EqualFold(h[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[len("bearer "):])
}

// AttachSession stores the principal when credentials are valid and lets
// anonymous requests through.
func AttachSession(r *Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, ok := r.GetCurrentPrincipal(c.Request); ok {
			c.Set(CtxPrincipalKey, p)
		}
		c.Next()
	}
}

func RequireSession(r *Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := r.GetCurrentPrincipal(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(CtxPrincipalKey, p)
		c.Next()
	}
}

func MustGetPrincipal(c *gin.Context) *Principal {
	v, ok := c.Get(CtxPrincipalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}
