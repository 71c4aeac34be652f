package routes

import (
	adminapi "enrollment-app/internal/api/admin"
	enrollmentapi "enrollment-app/internal/api/enrollment"
	esignapi "enrollment-app/internal/api/esign"
	plansapi "enrollment-app/internal/api/plans"
	scheduleapi "enrollment-app/internal/api/schedule"
	stripewebhooks "enrollment-app/internal/api/stripewebhook"
	"enrollment-app/internal/app/http/middleware"
	"enrollment-app/internal/payments"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Enrollment *enrollmentapi.Handler
	Schedule   *scheduleapi.Handler
	Webhook    *stripewebhooks.Handler
}

// NewHandlers wires the engine services into the HTTP handlers.
func NewHandlers(store payments.Store, locker payments.Locker, processors payments.ProcessorFactory) *Handlers {
	orchestrator := payments.NewOrchestrator(store, locker, processors)
	coordinator := payments.NewCoordinator(store, locker, processors)
	lifecycle := payments.NewLifecycle(store)

	return &Handlers{
		Enrollment: enrollmentapi.NewHandler(store, orchestrator, coordinator, processors),
		Schedule:   scheduleapi.NewHandler(lifecycle, store),
		Webhook:    stripewebhooks.NewHandler(orchestrator, store),
	}
}

func RegisterRoutes(r *gin.Engine, h *Handlers) {
	r.POST("/webhook", h.Webhook.StripeWebhook)
	r.POST("/esign/callback", esignapi.StatusCallback)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Enrollee flow: time-bounded enrollment token, sanitized input.
	enrollee := r.Group("/enrollment")
	enrollee.Use(middleware.SanitizeInputMiddleware(), middleware.EnrollmentTokenMiddleware())
	enrollee.GET("/schedule", h.Enrollment.GetSchedule)
	enrollee.POST("/select-plan", h.Enrollment.SelectPlan)
	enrollee.POST("/charge", h.Enrollment.Charge)
	enrollee.GET("/payment-methods", h.Enrollment.ListPaymentMethods)
	enrollee.POST("/payment-methods", h.Enrollment.AttachPaymentMethod)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.RequireRole("admin"))
	admin.GET("/dashboard", adminapi.AdminDashboard)
	admin.GET("/enrollments", adminapi.ListEnrollments)
	admin.GET("/enrollments/:id", adminapi.GetEnrollment)
	admin.POST("/enrollments/:id/link", adminapi.IssueEnrollmentLink)
	admin.GET("/payments", adminapi.ListAllPayments)

	admin.GET("/schedule/overdue", h.Schedule.GetOverdue)
	admin.GET("/schedule/upcoming", h.Schedule.GetUpcoming)
	admin.POST("/obligations/:id/cancel", h.Schedule.CancelObligation)
	admin.POST("/obligations/:id/refund", h.Schedule.RefundObligation)

	admin.POST("/enrollments/:id/charge", h.Enrollment.AdminCharge)
	admin.POST("/enrollments/:id/select-plan", h.Enrollment.AdminSelectPlan)
	admin.POST("/enrollments/:id/extend-schedule", h.Enrollment.AdminExtendSchedule)

	admin.GET("/plan-templates", plansapi.ListTemplates)
	admin.POST("/plan-templates", plansapi.CreateTemplate)
	admin.PUT("/plan-templates/:id", plansapi.UpdateTemplate)
	admin.POST("/plan-templates/:id/deactivate", plansapi.DeactivateTemplate)
}
