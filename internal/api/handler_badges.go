package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"checkin-backend/internal/badge"
	"checkin-backend/internal/store"
)

type normalizeResponse struct {
	Normalized string `json:"normalized"`
	Valid      bool   `json:"valid"`
	Formatted  string `json:"formatted"`
}

type assignBadgeRequest struct {
	BadgeID string `json:"badge_id" binding:"required"`
}

// NormalizeBadge handles GET /api/badges/normalize?raw=...
func NormalizeBadge(c *gin.Context) {
	normalized := badge.Normalize(c.Query("raw"))
	c.JSON(http.StatusOK, normalizeResponse{
		Normalized: normalized,
		Valid:      badge.IsValid(normalized),
		Formatted:  badge.Format(normalized),
	})
}

// PutEmployeeBadge handles PUT /api/employees/:id/badge.
func (h *Handler) PutEmployeeBadge(c *gin.Context) {
	employeeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid employee ID"})
		return
	}

	var req assignBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	badgeID := badge.Normalize(req.BadgeID)
	err = h.store.AssignBadge(c.Request.Context(), employeeID, badgeID)
	switch {
	case errors.Is(err, store.ErrInvalidBadge):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid badge identifier"})
		return
	case errors.Is(err, store.ErrEmployeeNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "employee not found"})
		return
	case err != nil:
		logrus.Errorf("Error assigning badge to employee %d: %v", employeeID, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to assign badge"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"employee_id": employeeID,
		"badge_id":    badgeID,
		"formatted":   badge.Format(badgeID),
	})
}
