package schedule

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"enrollment-app/internal/api/httputil"
)

// Admin transitions on single obligations. Cancel applies to pending
// obligations only; Refund to paid ones. The ledger is reconciled in the
// same transaction as the status change.

func (h *Handler) obligationForTenant(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid obligation id"})
		return 0, false
	}
	ob, err := h.store.Obligation(c.Request.Context(), uint(id))
	if err != nil {
		httputil.Error(c, err)
		return 0, false
	}
	enr, err := h.store.Enrollment(c.Request.Context(), ob.EnrollmentID)
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

func (h *Handler) CancelObligation(c *gin.Context) {
	id, ok := h.obligationForTenant(c)
	if !ok {
		return
	}
	if err := h.lifecycle.Cancel(c.Request.Context(), id); err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *Handler) RefundObligation(c *gin.Context) {
	id, ok := h.obligationForTenant(c)
	if !ok {
		return
	}
	if err := h.lifecycle.Refund(c.Request.Context(), id); err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "refunded"})
}
