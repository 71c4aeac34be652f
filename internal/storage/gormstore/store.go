package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"enrollment-app/internal/domain/billing"
	"enrollment-app/internal/domain/enrollment"
	"enrollment-app/internal/domain/plans"
	"enrollment-app/internal/domain/products"
	"enrollment-app/internal/domain/schedule"
	"enrollment-app/internal/domain/tenants"
	"enrollment-app/internal/payments"
)

// Store is the Postgres-backed payments.Store. Status transitions are
// conditional UPDATEs on the current status, so a racing writer loses
// with ErrNotPending instead of overwriting a settled obligation.
type Store struct {
	db *gorm.DB
}

var _ payments.Store = (*Store)(nil)

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTransaction(ctx context.Context, fn func(payments.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) Tenant(ctx context.Context, id uint) (*tenants.Tenant, error) {
	var t tenants.Tenant
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, notFound(err, payments.ErrTenantNotFound)
	}
	return &t, nil
}

func (s *Store) Product(ctx context.Context, id uint) (*products.Product, error) {
	var p products.Product
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err, payments.ErrProductNotFound)
	}
	return &p, nil
}

func (s *Store) PlanTemplate(ctx context.Context, id uint) (*plans.PlanTemplate, error) {
	var t plans.PlanTemplate
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, notFound(err, payments.ErrTemplateNotFound)
	}
	return &t, nil
}

func (s *Store) Enrollment(ctx context.Context, id uint) (*enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	if err := s.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, notFound(err, payments.ErrEnrollmentNotFound)
	}
	return &e, nil
}

func (s *Store) SetEnrollmentPlan(ctx context.Context, enrollmentID, planTemplateID uint, anchor time.Time) error {
	updates := map[string]interface{}{"payment_plan_id": planTemplateID}
	res := s.db.WithContext(ctx).Model(&enrollment.Enrollment{}).
		Where("id = ?", enrollmentID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return payments.ErrEnrollmentNotFound
	}
	// Anchor only fills in when unset; re-selection keeps the original.
	return s.db.WithContext(ctx).Model(&enrollment.Enrollment{}).
		Where("id = ? AND anchor_date IS NULL", enrollmentID).
		Update("anchor_date", anchor).Error
}

func (s *Store) SetEnrollmentCustomer(ctx context.Context, enrollmentID uint, customerRef string) error {
	return s.db.WithContext(ctx).Model(&enrollment.Enrollment{}).
		Where("id = ?", enrollmentID).
		Update("stripe_customer_id", customerRef).Error
}

func (s *Store) SaveEnrollmentLedger(ctx context.Context, e *enrollment.Enrollment) error {
	return s.db.WithContext(ctx).Model(&enrollment.Enrollment{}).
		Where("id = ?", e.ID).
		Updates(map[string]interface{}{
			"total_amount":      e.TotalAmount,
			"paid_amount":       e.PaidAmount,
			"payment_status":    e.PaymentStatus,
			"next_payment_date": e.NextPaymentDate,
		}).Error
}

func (s *Store) Obligation(ctx context.Context, id uint) (*schedule.PaymentObligation, error) {
	var o schedule.PaymentObligation
	if err := s.db.WithContext(ctx).First(&o, id).Error; err != nil {
		return nil, notFound(err, payments.ErrObligationNotFound)
	}
	return &o, nil
}

func (s *Store) ObligationsByEnrollment(ctx context.Context, enrollmentID uint) ([]schedule.PaymentObligation, error) {
	var obs []schedule.PaymentObligation
	err := s.db.WithContext(ctx).
		Where("enrollment_id = ?", enrollmentID).
		Order("payment_number ASC").
		Find(&obs).Error
	return obs, err
}

func (s *Store) CreateObligations(ctx context.Context, obs []schedule.PaymentObligation) error {
	if len(obs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&obs).Error
}

func (s *Store) MarkObligationPaid(ctx context.Context, id uint, paidAt time.Time, chargeRef string) error {
	res := s.db.WithContext(ctx).Model(&schedule.PaymentObligation{}).
		Where("id = ? AND status = ?", id, schedule.StatusPending).
		Updates(map[string]interface{}{
			"status":              schedule.StatusPaid,
			"paid_date":           paidAt,
			"external_charge_ref": chargeRef,
		})
	return casResult(ctx, s, id, res, payments.ErrNotPending)
}

func (s *Store) CancelObligation(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&schedule.PaymentObligation{}).
		Where("id = ? AND status = ?", id, schedule.StatusPending).
		Update("status", schedule.StatusCancelled)
	return casResult(ctx, s, id, res, payments.ErrNotPending)
}

func (s *Store) RefundObligation(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&schedule.PaymentObligation{}).
		Where("id = ? AND status = ?", id, schedule.StatusPaid).
		Update("status", schedule.StatusRefunded)
	return casResult(ctx, s, id, res, payments.ErrNotPaid)
}

func (s *Store) DeleteUnpaidObligations(ctx context.Context, enrollmentID uint) error {
	return s.db.WithContext(ctx).
		Where("enrollment_id = ? AND status <> ?", enrollmentID, schedule.StatusPaid).
		Delete(&schedule.PaymentObligation{}).Error
}

func (s *Store) OverdueObligations(ctx context.Context, scope payments.Scope, now time.Time) ([]schedule.PaymentObligation, error) {
	q := s.scoped(ctx, scope).
		Where("payment_obligations.status = ? AND payment_obligations.scheduled_date < ?", schedule.StatusPending, now)
	var obs []schedule.PaymentObligation
	err := q.Order("payment_obligations.scheduled_date ASC, payment_obligations.payment_number ASC").Find(&obs).Error
	return obs, err
}

func (s *Store) UpcomingObligations(ctx context.Context, scope payments.Scope, now time.Time, daysAhead int) ([]schedule.PaymentObligation, error) {
	until := now.AddDate(0, 0, daysAhead)
	q := s.scoped(ctx, scope).
		Where("payment_obligations.status = ? AND payment_obligations.scheduled_date >= ? AND payment_obligations.scheduled_date <= ?",
			schedule.StatusPending, now, until)
	var obs []schedule.PaymentObligation
	err := q.Order("payment_obligations.scheduled_date ASC, payment_obligations.payment_number ASC").Find(&obs).Error
	return obs, err
}

func (s *Store) scoped(ctx context.Context, scope payments.Scope) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&schedule.PaymentObligation{}).
		Joins("JOIN enrollments ON enrollments.id = payment_obligations.enrollment_id").
		Where("enrollments.tenant_id = ?", scope.TenantID)
	if scope.EnrollmentID != nil {
		q = q.Where("payment_obligations.enrollment_id = ?", *scope.EnrollmentID)
	}
	return q
}

func (s *Store) CreatePayment(ctx context.Context, p *billing.Payment) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *Store) PaymentByIntentRef(ctx context.Context, intentRef string) (*billing.Payment, error) {
	var p billing.Payment
	err := s.db.WithContext(ctx).Where("stripe_payment_intent_id = ?", intentRef).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// casResult distinguishes "row missing" from "row in the wrong status"
// when a conditional update matched nothing.
func casResult(ctx context.Context, s *Store, id uint, res *gorm.DB, wrongState error) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&schedule.PaymentObligation{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return payments.ErrObligationNotFound
	}
	return wrongState
}
