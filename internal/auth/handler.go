package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"moviedex/internal/apperr"
	"moviedex/internal/logging"
)

type Handler struct {
	Repo     *Repo
	Tokens   *Tokens
	Resolver *Resolver
	// Secure marks the session cookie HTTPS-only.
	Secure bool

	log *slog.Logger
}

func NewHandler(repo *Repo, tokens *Tokens, secure bool, log *slog.Logger) *Handler {
	return &Handler{
		Repo:     repo,
		Tokens:   tokens,
		Resolver: NewResolver(tokens, repo),
		Secure:   secure,
		log:      logging.Component(log, "auth"),
	}
}

// RegisterRoutes mounts /auth/* and /me on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/auth")
	g.POST("/register", h.register)
	g.POST("/login", h.login)
	g.POST("/change-password", RequireSession(h.Resolver), h.changePassword)
	g.POST("/logout", RequireSession(h.Resolver), h.logout)

	rg.GET("/me", RequireSession(h.Resolver), h.me)
}

type registerReq struct {
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type userResp struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Image     *string `json:"image"`
	CreatedAt string  `json:"createdAt"`
}

func toUserResp(u *User) userResp {
	out := userResp{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u.Image != "" {
		img := u.Image
		out.Image = &img
	}
	return out
}

func (h *Handler) register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, h.log, apperr.FromBinding(err))
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" {
		apperr.Respond(c, h.log, apperr.Validation("Validation error", apperr.Field("name", "is required")))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		apperr.Respond(c, h.log, apperr.Internal("hash password", err))
		return
	}

	created, err := h.Repo.CreateUser(c.Request.Context(), User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
	})
	if errors.Is(err, ErrEmailTaken) {
		apperr.Respond(c, h.log, apperr.Conflict("email already exists"))
		return
	}
	if err != nil {
		apperr.Respond(c, h.log, apperr.Internal("create user", err))
		return
	}
	h.log.Info("user registered", "user_id", created.ID)
	h.issue(c, http.StatusCreated, created)
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, h.log, apperr.FromBinding(err))
		return
	}

	u, err := h.Repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		apperr.Respond(c, h.log, apperr.Internal("load user", err))
		return
	}
	// don't reveal which part failed
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		apperr.Respond(c, h.log, apperr.Unauthorized("invalid credentials"))
		return
	}

	h.issue(c, http.StatusOK, u)
}

func (h *Handler) issue(c *gin.Context, status int, u *User) {
	sess, err := h.Tokens.Issue(u)
	if err != nil {
		apperr.Respond(c, h.log, apperr.Internal("sign token", err))
		return
	}

	h.setCookie(c, sess.Token, int(time.Until(sess.ExpiresAt).Seconds()))
	c.JSON(status, gin.H{
		"user":      toUserResp(u),
		"token":     sess.Token,
		"expiresAt": sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, value, maxAge, "/", "", h.Secure, true)
}

type changePasswordReq struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8,max=72"`
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, h.log, apperr.FromBinding(err))
		return
	}

	p := MustGetPrincipal(c)
	u, err := h.Repo.GetByID(c.Request.Context(), p.UserID)
	if err != nil {
		apperr.Respond(c, h.log, apperr.Internal("load user", err))
		return
	}
	if u == nil {
		apperr.Respond(c, h.log, apperr.Unauthorized("Unauthorized"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.OldPassword)); err != nil {
		apperr.Respond(c, h.log, apperr.Unauthorized("invalid credentials"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		apperr.Respond(c, h.log, apperr.Internal("hash password", err))
		return
	}
	version, err := h.Repo.SetPassword(c.Request.Context(), u.ID, string(hash))
	if err != nil {
		apperr.Respond(c, h.log, apperr.Internal("update password", err))
		return
	}

	// old tokens are revoked; hand out a fresh one
	u.TokenVersion = version
	u.PasswordHash = string(hash)
	h.issue(c, http.StatusOK, u)
}

func (h *Handler) logout(c *gin.Context) {
	p := MustGetPrincipal(c)
	if _, err := h.Repo.RevokeSessions(c.Request.Context(), p.UserID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			apperr.Respond(c, h.log, apperr.Unauthorized("Unauthorized"))
			return
		}
		apperr.Respond(c, h.log, apperr.Internal("logout", err))
		return
	}

	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (h *Handler) me(c *gin.Context) {
	p := MustGetPrincipal(c)
	u, err := h.Repo.GetByID(c.Request.Context(), p.UserID)
	if err != nil {
		apperr.Respond(c, h.log, apperr.Internal("load user", err))
		return
	}
	if u == nil {
		apperr.Respond(c, h.log, apperr.Unauthorized("Unauthorized"))
		return
	}
	c.JSON(http.StatusOK, toUserResp(u))
}
