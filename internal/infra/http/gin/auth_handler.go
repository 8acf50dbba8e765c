package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"tradepost/internal/app/dto"
	"tradepost/internal/app/services/auth"
	domainauth "tradepost/internal/domain/auth"
	domainuser "tradepost/internal/domain/user"
)

// AuthHandler serves registration, login and session endpoints.
type AuthHandler struct {
	Service *auth.Service
	Logger  *slog.Logger
}

// Register creates an account and issues a session token.
func (h AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email     string `json:"email"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
		Password  string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.Service.Register(c.Request.Context(), auth.RegisterParams{
		Email:     req.Email,
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
		Password:  req.Password,
	})
	if err != nil {
		h.respondAuthError(c, err, "register")
		return
	}
	c.JSON(http.StatusCreated, dto.AuthResponse{Token: result.Token, User: mapUser(result.User, true)})
}

// Login validates credentials and issues a session token.
func (h AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.Service.Login(c.Request.Context(), auth.LoginParams{Email: req.Email, Password: req.Password})
	if err != nil {
		h.respondAuthError(c, err, "login")
		return
	}
	c.JSON(http.StatusOK, dto.AuthResponse{Token: result.Token, User: mapUser(result.User, true)})
}

// Logout revokes the caller's session token.
func (h AuthHandler) Logout(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if err := h.Service.Logout(c.Request.Context(), p.Token); err != nil {
		h.respondAuthError(c, err, "logout")
		return
	}
	c.Status(http.StatusNoContent)
}

// Me returns the authenticated profile.
func (h AuthHandler) Me(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.User{
		ID:        p.ID,
		Email:     p.Email,
		Name:      p.Name,
		AvatarURL: p.AvatarURL,
		Roles:     p.Roles,
		CreatedAt: p.CreatedAt,
	})
}

func (h AuthHandler) respondAuthError(c *gin.Context, err error, action string) {
	if h.Logger != nil {
		h.Logger.Warn("auth call failed", "action", action, "error", err)
	}
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, auth.ErrUserBlocked):
		c.JSON(http.StatusForbidden, gin.H{"error": "account blocked"})
	case errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, domainuser.ErrEmailRequired),
		errors.Is(err, domainuser.ErrNameRequired),
		errors.Is(err, domainuser.ErrEmailAlreadyUsed),
		errors.Is(err, domainauth.ErrTokenRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domainauth.ErrSessionNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func mapUser(user *domainuser.User, includeEmail bool) dto.User {
	out := dto.User{
		ID:        string(user.ID),
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
		Blocked:   user.Blocked,
		CreatedAt: user.CreatedAt,
	}
	if includeEmail {
		out.Email = user.Email
		out.Roles = make([]string, 0, len(user.Roles))
		for _, role := range user.Roles {
			out.Roles = append(out.Roles, string(role))
		}
	}
	return out
}
