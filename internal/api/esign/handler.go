package esign

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"enrollment-app/database"
	"enrollment-app/internal/domain/enrollment"
)

// Status callback from the e-signature collaborator, keyed by enrollment
// id. Read-only input to the engine: charging is gated on a completed
// agreement, nothing else reacts to it.

var validStatuses = map[enrollment.AgreementStatus]bool{
	enrollment.AgreementSent:      true,
	enrollment.AgreementDelivered: true,
	enrollment.AgreementCompleted: true,
	enrollment.AgreementDeclined:  true,
	enrollment.AgreementVoided:    true,
}

func StatusCallback(c *gin.Context) {
	var body struct {
		EnrollmentID uint   `json:"enrollment_id" binding:"required"`
		Status       string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing enrollment_id or status"})
		return
	}

	status := enrollment.AgreementStatus(body.Status)
	if !validStatuses[status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown agreement status"})
		return
	}

	res := database.DB.Model(&enrollment.Enrollment{}).
		Where("id = ?", body.EnrollmentID).
		Update("agreement_status", status)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record agreement status"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Enrollment not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
