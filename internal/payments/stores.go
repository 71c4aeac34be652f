package payments

import (
	"context"
	"time"

	"enrollment-app/internal/domain/billing"
	"enrollment-app/internal/domain/enrollment"
	"enrollment-app/internal/domain/plans"
	"enrollment-app/internal/domain/products"
	"enrollment-app/internal/domain/schedule"
	"enrollment-app/internal/domain/tenants"
)

// Scope bounds a schedule query. TenantID is mandatory; EnrollmentID
// narrows the query to one enrollment.
type Scope struct {
	TenantID     uint
	EnrollmentID *uint
}

// Store is the persistence boundary of the engine. The GORM implementation
// lives in internal/storage/gormstore; tests use internal/storage/inmem.
type Store interface {
	// InTransaction runs fn against a transactional view of the store.
	// Writes inside fn become visible atomically.
	InTransaction(ctx context.Context, fn func(Store) error) error

	Tenant(ctx context.Context, id uint) (*tenants.Tenant, error)
	Product(ctx context.Context, id uint) (*products.Product, error)
	PlanTemplate(ctx context.Context, id uint) (*plans.PlanTemplate, error)

	Enrollment(ctx context.Context, id uint) (*enrollment.Enrollment, error)
	SetEnrollmentPlan(ctx context.Context, enrollmentID, planTemplateID uint, anchor time.Time) error
	SetEnrollmentCustomer(ctx context.Context, enrollmentID uint, customerRef string) error
	// SaveEnrollmentLedger persists the derived aggregate fields only.
	SaveEnrollmentLedger(ctx context.Context, e *enrollment.Enrollment) error

	Obligation(ctx context.Context, id uint) (*schedule.PaymentObligation, error)
	ObligationsByEnrollment(ctx context.Context, enrollmentID uint) ([]schedule.PaymentObligation, error)
	CreateObligations(ctx context.Context, obs []schedule.PaymentObligation) error
	// MarkObligationPaid transitions pending→paid with a compare-and-set on
	// the current status; ErrNotPending if the obligation moved meanwhile.
	MarkObligationPaid(ctx context.Context, id uint, paidAt time.Time, chargeRef string) error
	// CancelObligation transitions pending→cancelled (ErrNotPending otherwise).
	CancelObligation(ctx context.Context, id uint) error
	// RefundObligation transitions paid→refunded (ErrNotPaid otherwise).
	RefundObligation(ctx context.Context, id uint) error
	// DeleteUnpaidObligations removes every obligation of the enrollment
	// whose status is not paid. Paid rows are never deleted here.
	DeleteUnpaidObligations(ctx context.Context, enrollmentID uint) error

	OverdueObligations(ctx context.Context, scope Scope, now time.Time) ([]schedule.PaymentObligation, error)
	UpcomingObligations(ctx context.Context, scope Scope, now time.Time, daysAhead int) ([]schedule.PaymentObligation, error)

	CreatePayment(ctx context.Context, p *billing.Payment) error
	PaymentByIntentRef(ctx context.Context, intentRef string) (*billing.Payment, error)
}
