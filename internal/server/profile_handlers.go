package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yazok8/linktree-clone/internal/links"
	"github.com/yazok8/linktree-clone/internal/users"
)

func (h *httpHandler) handleGetProfile(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	h.respondProfile(c, caller)
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var update users.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondInvalidRequest(c)
		return
	}

	updated, err := h.accounts.UpdateProfile(c.Request.Context(), caller.ID, update)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondProfile(c, updated)
}

func (h *httpHandler) handleDeleteProfile(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err := h.accounts.Delete(c.Request.Context(), caller.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.sessions.CookieName(), "", -1, "/", "", h.cookie.Secure, true)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) respondProfile(c *gin.Context, user users.User) {
	owner, err := links.NewOwnerID(user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	count, err := h.links.CountActive(c.Request.Context(), owner)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profilePayload{accountPayload: newAccountPayload(user), LinksCount: count})
}

func (h *httpHandler) handlePublicProfile(c *gin.Context) {
	profile, err := h.public.Profile(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *httpHandler) handlePublicLinks(c *gin.Context) {
	items, err := h.public.Links(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLinkPayloads(items))
}
