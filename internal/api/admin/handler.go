package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"enrollment-app/database"
	"enrollment-app/internal/api/httputil"
	"enrollment-app/internal/app/http/middleware"
	"enrollment-app/internal/domain/billing"
	"enrollment-app/internal/domain/enrollment"
	"enrollment-app/internal/domain/schedule"
)

type AdminStats struct {
	TotalEnrollments int64           `json:"total_enrollments"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	OverdueCount     int64           `json:"overdue_count"`
	UnpaidCount      int64           `json:"unpaid_count"`
}

// AdminDashboard aggregates the tenant's payment state for the back
// office landing page.
func AdminDashboard(c *gin.Context) {
	tenantID := c.GetUint("tenant_id")
	stats := AdminStats{TotalRevenue: decimal.Zero}

	if err := database.DB.Model(&enrollment.Enrollment{}).
		Where("tenant_id = ?", tenantID).
		Count(&stats.TotalEnrollments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}

	var payments []billing.Payment
	if err := database.DB.Where("tenant_id = ? AND status = ?", tenantID, "succeeded").
		Find(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}
	for _, p := range payments {
		stats.TotalRevenue = stats.TotalRevenue.Add(p.Amount)
	}

	if err := database.DB.Model(&schedule.PaymentObligation{}).
		Joins("JOIN enrollments ON enrollments.id = payment_obligations.enrollment_id").
		Where("enrollments.tenant_id = ? AND payment_obligations.status = ? AND payment_obligations.scheduled_date < ?",
			tenantID, schedule.StatusPending, time.Now()).
		Count(&stats.OverdueCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}

	if err := database.DB.Model(&enrollment.Enrollment{}).
		Where("tenant_id = ? AND payment_status = ?", tenantID, enrollment.PaymentUnpaid).
		Count(&stats.UnpaidCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func ListEnrollments(c *gin.Context) {
	tenantID := c.GetUint("tenant_id")

	var enrollments []enrollment.Enrollment
	if err := database.DB.Preload("PaymentPlan").
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&enrollments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load enrollments"})
		return
	}
	c.JSON(http.StatusOK, enrollments)
}

func GetEnrollment(c *gin.Context) {
	tenantID := c.GetUint("tenant_id")
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid enrollment id"})
		return
	}

	var enr enrollment.Enrollment
	if err := database.DB.Preload("PaymentPlan").Preload("Obligations").
		Where("id = ? AND tenant_id = ?", uint(id), tenantID).
		First(&enr).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Enrollment not found"})
		return
	}
	c.JSON(http.StatusOK, enr)
}

func ListAllPayments(c *gin.Context) {
	tenantID := c.GetUint("tenant_id")

	var payments []billing.Payment
	if err := database.DB.Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}
	c.JSON(http.StatusOK, payments)
}

// IssueEnrollmentLink mints a fresh time-bounded token for the enrollee
// flow, e.g. to resend an onboarding link.
func IssueEnrollmentLink(c *gin.Context) {
	tenantID := c.GetUint("tenant_id")
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid enrollment id"})
		return
	}

	var enr enrollment.Enrollment
	if err := database.DB.Where("id = ? AND tenant_id = ?", uint(id), tenantID).First(&enr).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Enrollment not found"})
		return
	}

	token, err := middleware.NewEnrollmentToken(enr.ID, enr.TenantID, 72*time.Hour)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_in_hours": 72})
}
