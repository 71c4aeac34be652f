package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"enrollment-app/internal/domain/billing"
	"enrollment-app/internal/domain/enrollment"
	"enrollment-app/internal/domain/schedule"
)

type ChargeOutcome string

const (
	OutcomeSucceeded     ChargeOutcome = "succeeded"
	OutcomeAlreadyPaid   ChargeOutcome = "already_paid"
	OutcomeSkippedLinked ChargeOutcome = "skipped_linked"
	OutcomeFailed        ChargeOutcome = "failed"
)

type ChargeResult struct {
	Outcome   ChargeOutcome `json:"outcome"`
	Reason    DeclineCode   `json:"reason,omitempty"`
	IntentRef string        `json:"intent_ref,omitempty"`
}

// Orchestrator drives one obligation through an external charge and keeps
// the obligation, the payment audit trail and the enrollment ledger
// consistent. Processor declines leave every row untouched.
type Orchestrator struct {
	store      Store
	locker     Locker
	processors ProcessorFactory
	now        func() time.Time
}

func NewOrchestrator(store Store, locker Locker, processors ProcessorFactory) *Orchestrator {
	return &Orchestrator{store: store, locker: locker, processors: processors, now: time.Now}
}

// Charge attempts to settle one obligation. methodRef may be empty, in
// which case the customer's default method, then the first attached
// method, is used. initiatedBy tags the audit record (enrollee | admin).
func (o *Orchestrator) Charge(ctx context.Context, obligationID uint, methodRef, initiatedBy string) (*ChargeResult, error) {
	ob, err := o.store.Obligation(ctx, obligationID)
	if err != nil {
		return nil, err
	}

	// Idempotency guard: a paid obligation never reaches the processor again.
	if ob.Status == schedule.StatusPaid {
		return &ChargeResult{Outcome: OutcomeAlreadyPaid}, nil
	}
	if ob.Status != schedule.StatusPending {
		return nil, fmt.Errorf("%w: obligation %d is %s", ErrNotPending, ob.ID, ob.Status)
	}

	enr, err := o.store.Enrollment(ctx, ob.EnrollmentID)
	if err != nil {
		return nil, err
	}

	// Linked/parent enrollments stand in for another record and are never
	// charged directly.
	if enr.LinkedParentID != nil {
		return &ChargeResult{Outcome: OutcomeSkippedLinked}, nil
	}

	if enr.RequiresAgreement && enr.AgreementStatus != enrollment.AgreementCompleted {
		return nil, fmt.Errorf("%w: agreement status is %s", ErrAgreementIncomplete, enr.AgreementStatus)
	}

	release, err := o.locker.Acquire(ctx, enr.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-check under the lock: a concurrent charge or re-selection may
	// have moved the obligation while we waited.
	ob, err = o.store.Obligation(ctx, obligationID)
	if err != nil {
		return nil, err
	}
	if ob.Status == schedule.StatusPaid {
		return &ChargeResult{Outcome: OutcomeAlreadyPaid}, nil
	}
	if ob.Status != schedule.StatusPending {
		return nil, fmt.Errorf("%w: obligation %d is %s", ErrNotPending, ob.ID, ob.Status)
	}

	tenant, err := o.store.Tenant(ctx, enr.TenantID)
	if err != nil {
		return nil, err
	}
	proc := o.processors.ForTenant(*tenant)

	customerRef, err := o.ensureCustomer(ctx, proc, enr)
	if err != nil {
		return nil, err
	}

	methodRef, err = o.resolveMethod(ctx, proc, customerRef, methodRef)
	if err != nil {
		return nil, err
	}

	charge, err := proc.CreateOffSessionCharge(ctx, ChargeParams{
		CustomerRef:    customerRef,
		MethodRef:      methodRef,
		AmountMinor:    MinorUnits(ob.Amount),
		Currency:       ob.Currency,
		Description:    fmt.Sprintf("Payment %d for enrollment %s", ob.PaymentNumber, enr.PublicRef),
		IdempotencyKey: fmt.Sprintf("obligation-%d-%s", ob.ID, uuid.NewString()),
		Metadata: map[string]string{
			"enrollment_id": fmt.Sprint(enr.ID),
			"obligation_id": fmt.Sprint(ob.ID),
			"tenant_id":     fmt.Sprint(enr.TenantID),
		},
	})
	if err != nil {
		var pe *ProcessorError
		if errors.As(err, &pe) {
			// Classified decline: the obligation stays pending for an
			// explicit retry. No rows change.
			return &ChargeResult{Outcome: OutcomeFailed, Reason: pe.Code}, nil
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			// Timed out mid-flight: the charge may still settle at the
			// processor. Do not assume either way; the webhook reconciles.
			return nil, fmt.Errorf("%w: %v", ErrOutcomeUnknown, err)
		}
		return nil, err
	}

	if err := o.settle(ctx, ob, enr, charge, methodRef, initiatedBy); err != nil {
		return nil, err
	}
	return &ChargeResult{Outcome: OutcomeSucceeded, IntentRef: charge.IntentRef}, nil
}

// Settle records a confirmed charge against an obligation: used both by
// Charge above and by the webhook reconciliation path. Safe to call for
// an already-settled obligation (no-op).
func (o *Orchestrator) Settle(ctx context.Context, obligationID uint, charge *Charge, methodRef, initiatedBy string) error {
	ob, err := o.store.Obligation(ctx, obligationID)
	if err != nil {
		return err
	}
	if ob.Status == schedule.StatusPaid {
		return nil
	}
	enr, err := o.store.Enrollment(ctx, ob.EnrollmentID)
	if err != nil {
		return err
	}
	return o.settle(ctx, ob, enr, charge, methodRef, initiatedBy)
}

var errAlreadySettled = errors.New("obligation settled concurrently")

func (o *Orchestrator) settle(ctx context.Context, ob *schedule.PaymentObligation, enr *enrollment.Enrollment, charge *Charge, methodRef, initiatedBy string) error {
	paidAt := o.now()
	err := o.store.InTransaction(ctx, func(s Store) error {
		if err := s.MarkObligationPaid(ctx, ob.ID, paidAt, charge.IntentRef); err != nil {
			if errors.Is(err, ErrNotPending) {
				if cur, lookupErr := s.Obligation(ctx, ob.ID); lookupErr == nil && cur.Status == schedule.StatusPaid {
					return errAlreadySettled
				}
			}
			return err
		}

		p := &billing.Payment{
			TenantID:              enr.TenantID,
			EnrollmentID:          enr.ID,
			ObligationID:          ob.ID,
			Amount:                ob.Amount,
			Currency:              ob.Currency,
			PaymentMethodRef:      methodRef,
			StripePaymentIntentID: charge.IntentRef,
			Status:                charge.Status,
			InitiatedBy:           initiatedBy,
		}
		if charge.ReceiptURL != "" {
			p.ReceiptURL = &charge.ReceiptURL
		}
		if err := s.CreatePayment(ctx, p); err != nil {
			return err
		}

		return reconcileEnrollment(ctx, s, enr.ID)
	})
	if errors.Is(err, errAlreadySettled) {
		return nil
	}
	return err
}

func (o *Orchestrator) ensureCustomer(ctx context.Context, proc Processor, enr *enrollment.Enrollment) (string, error) {
	if enr.StripeCustomerID != nil && *enr.StripeCustomerID != "" {
		return *enr.StripeCustomerID, nil
	}
	ref, err := proc.EnsureCustomer(ctx, enr.StudentEmail, enr.StudentName)
	if err != nil {
		return "", err
	}
	if err := o.store.SetEnrollmentCustomer(ctx, enr.ID, ref); err != nil {
		return "", err
	}
	enr.StripeCustomerID = &ref
	return ref, nil
}

// resolveMethod applies the resolution order: explicit ref, customer
// default, first attached method.
func (o *Orchestrator) resolveMethod(ctx context.Context, proc Processor, customerRef, methodRef string) (string, error) {
	if methodRef != "" {
		return methodRef, nil
	}
	def, err := proc.DefaultPaymentMethod(ctx, customerRef)
	if err != nil {
		return "", err
	}
	if def != "" {
		return def, nil
	}
	methods, err := proc.ListPaymentMethods(ctx, customerRef)
	if err != nil {
		return "", err
	}
	if len(methods) > 0 {
		return methods[0].Ref, nil
	}
	return "", ErrNoPaymentMethod
}
