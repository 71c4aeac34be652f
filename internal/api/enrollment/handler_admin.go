package enrollment

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"enrollment-app/internal/api/httputil"
	"enrollment-app/internal/payments"
)

// Admin-initiated variants of the enrollment operations. The acting admin
// is tenant-checked against the target enrollment; the engine semantics
// are identical to the enrollee flow.

func (h *Handler) adminEnrollment(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid enrollment id"})
		return 0, false
	}
	enr, err := h.store.Enrollment(c.Request.Context(), uint(id))
	if err != nil {
		httputil.Error(c, err)
		return 0, false
	}
	if enr.TenantID != c.GetUint("tenant_id") {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return 0, false
	}
	return uint(id), true
}

// AdminCharge is the "charge now" action: an operator retries an overdue
// or declined obligation, optionally with an explicit method.
func (h *Handler) AdminCharge(c *gin.Context) {
	enrollmentID, ok := h.adminEnrollment(c)
	if !ok {
		return
	}
	var body struct {
		ObligationID     uint   `json:"obligation_id" binding:"required"`
		PaymentMethodRef string `json:"payment_method_ref"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid obligation_id"})
		return
	}
	ob, err := h.store.Obligation(c.Request.Context(), body.ObligationID)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	if ob.EnrollmentID != enrollmentID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Obligation does not belong to this enrollment"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), chargeTimeout)
	defer cancel()

	result, err := h.orchestrator.Charge(ctx, body.ObligationID, body.PaymentMethodRef, "admin")
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) AdminSelectPlan(c *gin.Context) {
	enrollmentID, ok := h.adminEnrollment(c)
	if !ok {
		return
	}
	var body struct {
		PlanTemplateID uint `json:"plan_template_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid plan_template_id"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), chargeTimeout)
	defer cancel()

	obs, err := h.coordinator.SelectPlan(ctx, enrollmentID, body.PlanTemplateID)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"obligations": obs})
}

// AdminExtendSchedule materializes the next subscription period. Invoked
// by the external recurring job.
func (h *Handler) AdminExtendSchedule(c *gin.Context) {
	enrollmentID, ok := h.adminEnrollment(c)
	if !ok {
		return
	}
	next, err := h.coordinator.ExtendSchedule(c.Request.Context(), enrollmentID)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"obligation": next})
}
