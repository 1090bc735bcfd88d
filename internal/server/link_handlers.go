package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yazok8/linktree-clone/internal/links"
	"go.uber.org/zap"
)

// ownerFrom resolves the caller's owner id. It writes the 401 response itself
// when the request carries no caller.
func (h *httpHandler) ownerFrom(c *gin.Context) (links.OwnerID, bool) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	owner, err := links.NewOwnerID(caller.ID)
	if err != nil {
		h.logger.Warn("caller has unusable id", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return owner, true
}

func (h *httpHandler) handleListLinks(c *gin.Context) {
	owner, ok := h.ownerFrom(c)
	if !ok {
		return
	}
	items, err := h.links.List(c.Request.Context(), owner)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLinkPayloads(items))
}

func (h *httpHandler) handleCreateLink(c *gin.Context) {
	owner, ok := h.ownerFrom(c)
	if !ok {
		return
	}
	var request links.CreateInput
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c)
		return
	}

	link, err := h.links.Create(c.Request.Context(), owner, request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.metrics.recordLinkMutation("create")
	c.JSON(http.StatusCreated, newLinkPayload(link))
}

func (h *httpHandler) handleGetLink(c *gin.Context) {
	owner, ok := h.ownerFrom(c)
	if !ok {
		return
	}
	link, err := h.links.Get(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLinkPayload(link))
}

func (h *httpHandler) handleReplaceLink(c *gin.Context) {
	h.handleLinkChange(c, "replace", h.links.Replace)
}

func (h *httpHandler) handleUpdateLink(c *gin.Context) {
	h.handleLinkChange(c, "update", h.links.Update)
}

type linkChangeFunc func(ctx context.Context, owner links.OwnerID, linkID string, patch links.Patch) (links.Link, error)

func (h *httpHandler) handleLinkChange(c *gin.Context, kind string, change linkChangeFunc) {
	owner, ok := h.ownerFrom(c)
	if !ok {
		return
	}
	var patch links.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondInvalidRequest(c)
		return
	}

	link, err := change(c.Request.Context(), owner, c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.metrics.recordLinkMutation(kind)
	c.JSON(http.StatusOK, newLinkPayload(link))
}

func (h *httpHandler) handleDeleteLink(c *gin.Context) {
	owner, ok := h.ownerFrom(c)
	if !ok {
		return
	}
	if err := h.links.Delete(c.Request.Context(), owner, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	h.metrics.recordLinkMutation("delete")
	c.Status(http.StatusNoContent)
}
