package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"enrollment-app/internal/domain/billing"
	"enrollment-app/internal/domain/enrollment"
	"enrollment-app/internal/domain/plans"
	"enrollment-app/internal/domain/products"
	"enrollment-app/internal/domain/schedule"
	"enrollment-app/internal/domain/tenants"
	"enrollment-app/internal/payments"
)

// Store is the in-memory payments.Store used by the engine tests. Writes
// are applied immediately; InTransaction simply runs fn against the same
// store, which is adequate because the engine only writes at the end of a
// transition and the tests assert final states.
type Store struct {
	mu sync.RWMutex

	tenants     map[uint]tenants.Tenant
	products    map[uint]products.Product
	templates   map[uint]plans.PlanTemplate
	enrollments map[uint]enrollment.Enrollment
	obligations map[uint]schedule.PaymentObligation
	payments    map[uint]billing.Payment

	nextObligationID uint
	nextPaymentID    uint
}

var _ payments.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		tenants:     make(map[uint]tenants.Tenant),
		products:    make(map[uint]products.Product),
		templates:   make(map[uint]plans.PlanTemplate),
		enrollments: make(map[uint]enrollment.Enrollment),
		obligations: make(map[uint]schedule.PaymentObligation),
		payments:    make(map[uint]billing.Payment),
	}
}

// Seed helpers.

func (s *Store) AddTenant(t tenants.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
}

func (s *Store) AddProduct(p products.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) AddTemplate(t plans.PlanTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
}

func (s *Store) AddEnrollment(e enrollment.Enrollment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollments[e.ID] = e
}

func (s *Store) AddObligation(o schedule.PaymentObligation) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		s.nextObligationID++
		o.ID = s.nextObligationID
	} else if o.ID > s.nextObligationID {
		s.nextObligationID = o.ID
	}
	s.obligations[o.ID] = o
	return o.ID
}

// Payments returns the audit records in insertion order.
func (s *Store) Payments() []billing.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]billing.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// payments.Store implementation.

func (s *Store) InTransaction(_ context.Context, fn func(payments.Store) error) error {
	return fn(s)
}

func (s *Store) Tenant(_ context.Context, id uint) (*tenants.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, payments.ErrTenantNotFound
	}
	return &t, nil
}

func (s *Store) Product(_ context.Context, id uint) (*products.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, payments.ErrProductNotFound
	}
	return &p, nil
}

func (s *Store) PlanTemplate(_ context.Context, id uint) (*plans.PlanTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, payments.ErrTemplateNotFound
	}
	return &t, nil
}

func (s *Store) Enrollment(_ context.Context, id uint) (*enrollment.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.enrollments[id]
	if !ok {
		return nil, payments.ErrEnrollmentNotFound
	}
	return &e, nil
}

func (s *Store) SetEnrollmentPlan(_ context.Context, enrollmentID, planTemplateID uint, anchor time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[enrollmentID]
	if !ok {
		return payments.ErrEnrollmentNotFound
	}
	e.PaymentPlanID = &planTemplateID
	if e.AnchorDate == nil {
		e.AnchorDate = &anchor
	}
	s.enrollments[enrollmentID] = e
	return nil
}

func (s *Store) SetEnrollmentCustomer(_ context.Context, enrollmentID uint, customerRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[enrollmentID]
	if !ok {
		return payments.ErrEnrollmentNotFound
	}
	e.StripeCustomerID = &customerRef
	s.enrollments[enrollmentID] = e
	return nil
}

func (s *Store) SaveEnrollmentLedger(_ context.Context, in *enrollment.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[in.ID]
	if !ok {
		return payments.ErrEnrollmentNotFound
	}
	e.TotalAmount = in.TotalAmount
	e.PaidAmount = in.PaidAmount
	e.PaymentStatus = in.PaymentStatus
	e.NextPaymentDate = in.NextPaymentDate
	s.enrollments[in.ID] = e
	return nil
}

func (s *Store) Obligation(_ context.Context, id uint) (*schedule.PaymentObligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.obligations[id]
	if !ok {
		return nil, payments.ErrObligationNotFound
	}
	return &o, nil
}

func (s *Store) ObligationsByEnrollment(_ context.Context, enrollmentID uint) ([]schedule.PaymentObligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schedule.PaymentObligation
	for _, o := range s.obligations {
		if o.EnrollmentID == enrollmentID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentNumber < out[j].PaymentNumber })
	return out, nil
}

func (s *Store) CreateObligations(_ context.Context, obs []schedule.PaymentObligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range obs {
		s.nextObligationID++
		o.ID = s.nextObligationID
		s.obligations[o.ID] = o
	}
	return nil
}

func (s *Store) MarkObligationPaid(_ context.Context, id uint, paidAt time.Time, chargeRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.obligations[id]
	if !ok {
		return payments.ErrObligationNotFound
	}
	if o.Status != schedule.StatusPending {
		return payments.ErrNotPending
	}
	o.Status = schedule.StatusPaid
	o.PaidDate = &paidAt
	o.ExternalChargeRef = &chargeRef
	s.obligations[id] = o
	return nil
}

func (s *Store) CancelObligation(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.obligations[id]
	if !ok {
		return payments.ErrObligationNotFound
	}
	if o.Status != schedule.StatusPending {
		return payments.ErrNotPending
	}
	o.Status = schedule.StatusCancelled
	s.obligations[id] = o
	return nil
}

func (s *Store) RefundObligation(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.obligations[id]
	if !ok {
		return payments.ErrObligationNotFound
	}
	if o.Status != schedule.StatusPaid {
		return payments.ErrNotPaid
	}
	o.Status = schedule.StatusRefunded
	s.obligations[id] = o
	return nil
}

func (s *Store) DeleteUnpaidObligations(_ context.Context, enrollmentID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range s.obligations {
		if o.EnrollmentID == enrollmentID && o.Status != schedule.StatusPaid {
			delete(s.obligations, id)
		}
	}
	return nil
}

func (s *Store) OverdueObligations(_ context.Context, scope payments.Scope, now time.Time) ([]schedule.PaymentObligation, error) {
	return s.queryPending(scope, func(o schedule.PaymentObligation) bool {
		return o.ScheduledDate.Before(now)
	})
}

func (s *Store) UpcomingObligations(_ context.Context, scope payments.Scope, now time.Time, daysAhead int) ([]schedule.PaymentObligation, error) {
	until := now.AddDate(0, 0, daysAhead)
	return s.queryPending(scope, func(o schedule.PaymentObligation) bool {
		return !o.ScheduledDate.Before(now) && !o.ScheduledDate.After(until)
	})
}

func (s *Store) queryPending(scope payments.Scope, match func(schedule.PaymentObligation) bool) ([]schedule.PaymentObligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schedule.PaymentObligation
	for _, o := range s.obligations {
		if o.Status != schedule.StatusPending || !match(o) {
			continue
		}
		e, ok := s.enrollments[o.EnrollmentID]
		if !ok || e.TenantID != scope.TenantID {
			continue
		}
		if scope.EnrollmentID != nil && o.EnrollmentID != *scope.EnrollmentID {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ScheduledDate.Before(out[j].ScheduledDate)
		}
		return out[i].PaymentNumber < out[j].PaymentNumber
	})
	return out, nil
}

func (s *Store) CreatePayment(_ context.Context, p *billing.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPaymentID++
	p.ID = s.nextPaymentID
	s.payments[p.ID] = *p
	return nil
}

func (s *Store) PaymentByIntentRef(_ context.Context, intentRef string) (*billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.payments {
		if p.StripePaymentIntentID == intentRef {
			out := p
			return &out, nil
		}
	}
	return nil, nil
}
