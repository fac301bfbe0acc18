package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"checkin-backend/internal/model"
)

// attendanceResponse is the flattened structure for the API response.
type attendanceResponse struct {
	EmployeeID   int64               `json:"employee_id"`
	EmployeeName string              `json:"employee_name"`
	Method       model.CheckinMethod `json:"method"`
	CheckedInAt  time.Time           `json:"checked_in_at"`
}

// GetTrainingAttendance handles GET /api/trainings/:id/attendance.
func (h *Handler) GetTrainingAttendance(c *gin.Context) {
	trainingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid training ID"})
		return
	}

	records, err := h.store.AttendanceForTraining(c.Request.Context(), trainingID)
	if err != nil {
		logrus.Errorf("Error listing attendance: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve attendance"})
		return
	}

	response := make([]attendanceResponse, 0, len(records))
	for _, r := range records {
		response = append(response, attendanceResponse{
			EmployeeID:   r.EmployeeID,
			EmployeeName: r.Employee.Name,
			Method:       r.Method,
			CheckedInAt:  r.CheckedInAt,
		})
	}
	c.JSON(http.StatusOK, response)
}

// GetRecentCheckins handles GET /api/checkins/recent.
func (h *Handler) GetRecentCheckins(c *gin.Context) {
	c.JSON(http.StatusOK, h.workers.Recent())
}
