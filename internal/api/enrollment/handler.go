package enrollment

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"enrollment-app/internal/api/httputil"
	"enrollment-app/internal/domain/schedule"
	"enrollment-app/internal/payments"
)

// chargeTimeout bounds every processor round-trip. Charge contexts are
// detached from the request context on purpose: a client disconnect must
// not abort settlement mid-flight, only the response to the caller.
const chargeTimeout = 30 * time.Second

type Handler struct {
	store        payments.Store
	orchestrator *payments.Orchestrator
	coordinator  *payments.Coordinator
	processors   payments.ProcessorFactory
}

func NewHandler(store payments.Store, orch *payments.Orchestrator, coord *payments.Coordinator, processors payments.ProcessorFactory) *Handler {
	return &Handler{store: store, orchestrator: orch, coordinator: coord, processors: processors}
}

// enrollmentFromToken loads the enrollment named by the validated token
// claims, re-checking the tenant.
func (h *Handler) enrollmentFromToken(c *gin.Context) (uint, bool) {
	enrollmentID := c.GetUint("enrollment_id")
	tenantID := c.GetUint("tenant_id")
	if enrollmentID == 0 || tenantID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Enrollment not identified"})
		return 0, false
	}
	enr, err := h.store.Enrollment(c.Request.Context(), enrollmentID)
	if err != nil {
		httputil.Error(c, err)
		return 0, false
	}
	if enr.TenantID != tenantID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return 0, false
	}
	return enrollmentID, true
}

// GetSchedule returns the enrollment with its ordered obligation set.
func (h *Handler) GetSchedule(c *gin.Context) {
	enrollmentID, ok := h.enrollmentFromToken(c)
	if !ok {
		return
	}
	enr, err := h.store.Enrollment(c.Request.Context(), enrollmentID)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	obs, err := h.store.ObligationsByEnrollment(c.Request.Context(), enrollmentID)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enrollment": enr, "obligations": scheduleStatuses(obs, time.Now())})
}

func (h *Handler) SelectPlan(c *gin.Context) {
	enrollmentID, ok := h.enrollmentFromToken(c)
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

func (h *Handler) Charge(c *gin.Context) {
	enrollmentID, ok := h.enrollmentFromToken(c)
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
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), chargeTimeout)
	defer cancel()

	result, err := h.orchestrator.Charge(ctx, body.ObligationID, body.PaymentMethodRef, "enrollee")
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListPaymentMethods(c *gin.Context) {
	enrollmentID, ok := h.enrollmentFromToken(c)
	if !ok {
		return
	}
	enr, err := h.store.Enrollment(c.Request.Context(), enrollmentID)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	if enr.StripeCustomerID == nil || *enr.StripeCustomerID == "" {
		c.JSON(http.StatusOK, gin.H{"payment_methods": []payments.PaymentMethod{}})
		return
	}

	tenant, err := h.store.Tenant(c.Request.Context(), enr.TenantID)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	methods, err := h.processors.ForTenant(*tenant).ListPaymentMethods(c.Request.Context(), *enr.StripeCustomerID)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_methods": methods})
}

func (h *Handler) AttachPaymentMethod(c *gin.Context) {
	enrollmentID, ok := h.enrollmentFromToken(c)
	if !ok {
		return
	}
	var body struct {
		PaymentMethodRef string `json:"payment_method_ref" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid payment_method_ref"})
		return
	}

	enr, err := h.store.Enrollment(c.Request.Context(), enrollmentID)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	tenant, err := h.store.Tenant(c.Request.Context(), enr.TenantID)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	proc := h.processors.ForTenant(*tenant)

	customerRef := ""
	if enr.StripeCustomerID != nil {
		customerRef = *enr.StripeCustomerID
	}
	if customerRef == "" {
		customerRef, err = proc.EnsureCustomer(c.Request.Context(), enr.StudentEmail, enr.StudentName)
		if err != nil {
			httputil.Error(c, err)
			return
		}
		if err := h.store.SetEnrollmentCustomer(c.Request.Context(), enr.ID, customerRef); err != nil {
			httputil.Error(c, err)
			return
		}
	}

	if err := proc.AttachPaymentMethod(c.Request.Context(), customerRef, body.PaymentMethodRef); err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "attached"})
}

// scheduleStatuses annotates obligations with the derived overdue view
// for display purposes.
func scheduleStatuses(obs []schedule.PaymentObligation, now time.Time) []gin.H {
	out := make([]gin.H, 0, len(obs))
	for _, o := range obs {
		status := string(o.Status)
		if o.Overdue(now) {
			status = "overdue"
		}
		out = append(out, gin.H{"obligation": o, "display_status": status})
	}
	return out
}
