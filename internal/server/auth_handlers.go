package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yazok8/linktree-clone/internal/auth"
	"github.com/yazok8/linktree-clone/internal/users"
	"github.com/yazok8/linktree-clone/internal/validation"
	"go.uber.org/zap"
)

const msgFieldRequired = "This field is required."

type loginRequestPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponsePayload struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int64          `json:"expires_in"`
	User        accountPayload `json:"user"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request users.RegisterInput
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c)
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": newAccountPayload(user)})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c)
		return
	}

	login := strings.TrimSpace(request.Username)
	if login == "" {
		login = strings.TrimSpace(request.Email)
	}
	if missing := missingLoginFields(login, request.Password); missing != nil {
		h.respondError(c, missing)
		return
	}

	user, err := h.accounts.Authenticate(c.Request.Context(), login, request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	token, expiresIn, err := h.tokens.Issue(c.Request.Context(), auth.Subject{UserID: user.ID, Username: user.Username})
	if err != nil {
		h.logger.Error("failed to issue session token", zap.String("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.sessions.CookieName(), token, int(expiresIn), "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, loginResponsePayload{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		User:        newAccountPayload(user),
	})
}

// handleLogout clears the session cookie. Bearer tokens are stateless and
// simply expire.
func (h *httpHandler) handleLogout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.sessions.CookieName(), "", -1, "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, gin.H{"detail": "Successfully logged out."})
}

func missingLoginFields(login, password string) error {
	var missing *validation.Error
	if login == "" {
		missing = validation.NewError("username", msgFieldRequired)
	}
	if password == "" {
		if missing == nil {
			missing = validation.NewError("password", msgFieldRequired)
		} else {
			missing.Add("password", msgFieldRequired)
		}
	}
	if missing == nil {
		return nil
	}
	return missing
}
