package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"checkin-backend/internal/session"
)

type enabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *Handler) lookupSession(c *gin.Context) (*session.Controller, bool) {
	ctrl, ok := h.sessions.Get(c.Param("name"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return ctrl, true
}

// ListSessions handles GET /api/sessions.
func (h *Handler) ListSessions(c *gin.Context) {
	list := h.sessions.List()
	states := make([]session.State, 0, len(list))
	for _, ctrl := range list {
		states = append(states, ctrl.Snapshot())
	}
	c.JSON(http.StatusOK, states)
}

// GetSession handles GET /api/sessions/:name.
func (h *Handler) GetSession(c *gin.Context) {
	ctrl, ok := h.lookupSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// PutSessionEnabled handles PUT /api/sessions/:name/enabled.
func (h *Handler) PutSessionEnabled(c *gin.Context) {
	ctrl, ok := h.lookupSession(c)
	if !ok {
		return
	}

	var req enabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ctrl.SetEnabled(*req.Enabled)
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// DeleteSessionError handles DELETE /api/sessions/:name/error.
func (h *Handler) DeleteSessionError(c *gin.Context) {
	ctrl, ok := h.lookupSession(c)
	if !ok {
		return
	}
	ctrl.ClearError()
	c.Status(http.StatusNoContent)
}
