package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yazok8/linktree-clone/internal/apperror"
	"github.com/yazok8/linktree-clone/internal/links"
	"github.com/yazok8/linktree-clone/internal/public"
	"github.com/yazok8/linktree-clone/internal/users"
	"github.com/yazok8/linktree-clone/internal/validation"
	"go.uber.org/zap"
)

const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

type linkPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
	Order       int    `json:"order"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func newLinkPayload(link links.Link) linkPayload {
	return linkPayload{
		ID:          link.ID,
		Title:       link.Title,
		URL:         link.URL,
		Description: link.Description,
		IsActive:    link.IsActive,
		Order:       link.Order,
		CreatedAt:   formatTimestamp(link.CreatedAt),
		UpdatedAt:   formatTimestamp(link.UpdatedAt),
	}
}

func newLinkPayloads(items []links.Link) []linkPayload {
	payloads := make([]linkPayload, 0, len(items))
	for _, link := range items {
		payloads = append(payloads, newLinkPayload(link))
	}
	return payloads
}

type accountPayload struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Bio             string `json:"bio"`
	AvatarURL       string `json:"avatar_url"`
	BackgroundColor string `json:"background_color"`
	TextColor       string `json:"text_color"`
	CreatedAt       string `json:"created_at"`
}

func newAccountPayload(user users.User) accountPayload {
	return accountPayload{
		ID:              user.ID,
		Username:        user.Username,
		Email:           user.Email,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		Bio:             user.Bio,
		AvatarURL:       user.AvatarURL,
		BackgroundColor: user.BackgroundColor,
		TextColor:       user.TextColor,
		CreatedAt:       formatTimestamp(user.CreatedAt),
	}
}

type profilePayload struct {
	accountPayload
	LinksCount int64 `json:"links_count"`
}

func formatTimestamp(value time.Time) string {
	return value.UTC().Format(timestampLayout)
}

// respondError is the single place service errors become HTTP responses.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	var validationErr *validation.Error
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "fields": validationErr.Fields})
		return
	}
	switch {
	case errors.Is(err, links.ErrNotFound), errors.Is(err, users.ErrNotFound), errors.Is(err, public.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	case errors.Is(err, users.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_credentials"})
		return
	}

	var serviceErr *apperror.ServiceError
	if errors.As(err, &serviceErr) {
		h.logger.Error("request failed", zap.String("code", serviceErr.Code()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "code": serviceErr.Code()})
		return
	}
	h.logger.Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}

func respondInvalidRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
}
