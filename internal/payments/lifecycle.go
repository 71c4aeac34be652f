package payments

import (
	"context"
	"fmt"
	"time"

	"enrollment-app/internal/domain/schedule"
)

// Lifecycle owns persisted obligation state: batch persistence of
// generated schedules, the legal status transitions, and the
// overdue/upcoming views.
//
// Legal transitions: pending→paid (charge), pending→cancelled (admin),
// paid→refunded. Nothing ever returns to pending.
type Lifecycle struct {
	store Store
	now   func() time.Time
}

func NewLifecycle(store Store) *Lifecycle {
	return &Lifecycle{store: store, now: time.Now}
}

// SaveSchedule validates and persists a generated obligation batch for an
// enrollment.
func (l *Lifecycle) SaveSchedule(ctx context.Context, enrollmentID uint, obs []schedule.PaymentObligation) error {
	return saveSchedule(ctx, l.store, enrollmentID, obs)
}

// saveSchedule is the single write path for obligation batches; every
// insert passes the shape validation. The Coordinator calls it with its
// transactional store.
func saveSchedule(ctx context.Context, s Store, enrollmentID uint, obs []schedule.PaymentObligation) error {
	if err := ValidateSchedule(obs); err != nil {
		return err
	}
	for i := range obs {
		obs[i].EnrollmentID = enrollmentID
	}
	return s.CreateObligations(ctx, obs)
}

// ValidateSchedule enforces the schedule shape: 1-based contiguous
// payment numbers and non-decreasing scheduled dates.
func ValidateSchedule(obs []schedule.PaymentObligation) error {
	for i, o := range obs {
		if o.PaymentNumber != i+1 {
			return fmt.Errorf("%w: payment number %d at position %d", ErrBadTemplate, o.PaymentNumber, i)
		}
		if i > 0 && o.ScheduledDate.Before(obs[i-1].ScheduledDate) {
			return fmt.Errorf("%w: scheduled dates out of order at payment %d", ErrBadTemplate, o.PaymentNumber)
		}
	}
	return nil
}

// Overdue returns pending obligations whose scheduled date has passed.
// The overdue state is computed here at query time, never written.
func (l *Lifecycle) Overdue(ctx context.Context, scope Scope) ([]schedule.PaymentObligation, error) {
	return l.store.OverdueObligations(ctx, scope, l.now())
}

// Upcoming returns pending obligations scheduled within the next
// daysAhead days, ordered by scheduled date then payment number.
func (l *Lifecycle) Upcoming(ctx context.Context, scope Scope, daysAhead int) ([]schedule.PaymentObligation, error) {
	return l.store.UpcomingObligations(ctx, scope, l.now(), daysAhead)
}

// Cancel moves a pending obligation to cancelled and reconciles the
// enrollment ledger in the same transaction.
func (l *Lifecycle) Cancel(ctx context.Context, obligationID uint) error {
	return l.mutate(ctx, obligationID, func(s Store) error {
		return s.CancelObligation(ctx, obligationID)
	})
}

// Refund moves a paid obligation to refunded and reconciles the ledger.
// Paid obligations are otherwise immutable.
func (l *Lifecycle) Refund(ctx context.Context, obligationID uint) error {
	return l.mutate(ctx, obligationID, func(s Store) error {
		return s.RefundObligation(ctx, obligationID)
	})
}

func (l *Lifecycle) mutate(ctx context.Context, obligationID uint, transition func(Store) error) error {
	ob, err := l.store.Obligation(ctx, obligationID)
	if err != nil {
		return err
	}
	return l.store.InTransaction(ctx, func(s Store) error {
		if err := transition(s); err != nil {
			return err
		}
		return reconcileEnrollment(ctx, s, ob.EnrollmentID)
	})
}

// reconcileEnrollment reloads the obligation set and persists the derived
// ledger fields. Runs inside the mutator's transaction so a reader never
// sees a changed obligation with stale totals.
func reconcileEnrollment(ctx context.Context, s Store, enrollmentID uint) error {
	enr, err := s.Enrollment(ctx, enrollmentID)
	if err != nil {
		return err
	}
	obs, err := s.ObligationsByEnrollment(ctx, enrollmentID)
	if err != nil {
		return err
	}
	Reconcile(enr, obs)
	return s.SaveEnrollmentLedger(ctx, enr)
}
