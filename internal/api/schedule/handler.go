package schedule

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"enrollment-app/internal/api/httputil"
	"enrollment-app/internal/payments"
)

const defaultUpcomingDays = 14

// Handler serves the overdue and upcoming schedule views for the admin
// UI. Both views are tenant-scoped and may be narrowed to one enrollment.
type Handler struct {
	lifecycle *payments.Lifecycle
	store     payments.Store
}

func NewHandler(lifecycle *payments.Lifecycle, store payments.Store) *Handler {
	return &Handler{lifecycle: lifecycle, store: store}
}

func (h *Handler) scope(c *gin.Context) payments.Scope {
	scope := payments.Scope{TenantID: c.GetUint("tenant_id")}
	if raw := c.Query("enrollment_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			eid := uint(id)
			scope.EnrollmentID = &eid
		}
	}
	return scope
}

func (h *Handler) GetOverdue(c *gin.Context) {
	obs, err := h.lifecycle.Overdue(c.Request.Context(), h.scope(c))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"obligations": obs})
}

func (h *Handler) GetUpcoming(c *gin.Context) {
	days := defaultUpcomingDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid days parameter"})
			return
		}
		days = parsed
	}

	obs, err := h.lifecycle.Upcoming(c.Request.Context(), h.scope(c), days)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"obligations": obs, "days_ahead": days})
}
