package payments

import (
	"context"
	"fmt"
	"log"
	"time"

	"enrollment-app/internal/domain/enrollment"
	"enrollment-app/internal/domain/schedule"
)

// Coordinator handles plan (re)selection for an enrollment still in
// onboarding: tears down stale external payment artifacts and
// obligations, then regenerates a fresh schedule from the new template.
type Coordinator struct {
	store      Store
	locker     Locker
	processors ProcessorFactory
	now        func() time.Time
}

func NewCoordinator(store Store, locker Locker, processors ProcessorFactory) *Coordinator {
	return &Coordinator{store: store, locker: locker, processors: processors, now: time.Now}
}

// SelectPlan replaces the enrollment's schedule with one generated from
// the given template. Restartable: a retry after a partial failure
// converges on the same end state (unpaid deletion and insert-after-delete
// are both idempotent).
func (c *Coordinator) SelectPlan(ctx context.Context, enrollmentID, templateID uint) ([]schedule.PaymentObligation, error) {
	enr, err := c.store.Enrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enr.Status != enrollment.StatusOnboarding {
		return nil, fmt.Errorf("%w: enrollment %d is %s", ErrEnrollmentNotPending, enr.ID, enr.Status)
	}

	tpl, err := c.store.PlanTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	// Allow-list the template against the enrollment's own product so an
	// arbitrary template id cannot change the price.
	if !tpl.Active {
		return nil, ErrTemplateInactive
	}
	if tpl.TenantID != enr.TenantID || tpl.ProductID != enr.ProductID {
		return nil, fmt.Errorf("%w: template %d does not belong to product %d", ErrTemplateNotAllowed, tpl.ID, enr.ProductID)
	}

	product, err := c.store.Product(ctx, enr.ProductID)
	if err != nil {
		return nil, err
	}

	release, err := c.locker.Acquire(ctx, enr.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := c.store.ObligationsByEnrollment(ctx, enr.ID)
	if err != nil {
		return nil, err
	}
	for _, ob := range existing {
		if ob.Status == schedule.StatusPaid {
			return nil, fmt.Errorf("%w: obligation %d", ErrPaidObligationExists, ob.ID)
		}
	}

	anchor := c.now()
	if enr.AnchorDate != nil {
		anchor = *enr.AnchorDate
	}

	// Generate before touching anything so a bad template rejects the
	// whole operation up front.
	obs, err := Generate(*tpl, product.Price, anchor)
	if err != nil {
		return nil, err
	}

	if err := c.store.SetEnrollmentPlan(ctx, enr.ID, tpl.ID, anchor); err != nil {
		return nil, err
	}

	c.teardownExternal(ctx, enr, existing)

	err = c.store.InTransaction(ctx, func(s Store) error {
		if err := s.DeleteUnpaidObligations(ctx, enr.ID); err != nil {
			return err
		}
		if err := saveSchedule(ctx, s, enr.ID, obs); err != nil {
			return err
		}
		return reconcileEnrollment(ctx, s, enr.ID)
	})
	if err != nil {
		return nil, err
	}
	return obs, nil
}

// teardownExternal cancels payment intents and voids or deletes invoices
// attached to not-yet-paid obligations. Best effort: failures are logged
// and re-selection proceeds. A stale artifact at the processor is
// acceptable; a blocked re-selection is not.
func (c *Coordinator) teardownExternal(ctx context.Context, enr *enrollment.Enrollment, obs []schedule.PaymentObligation) {
	tenant, err := c.store.Tenant(ctx, enr.TenantID)
	if err != nil {
		log.Printf("event=plan_reselect_cleanup_skipped enrollment_id=%d err=%v", enr.ID, err)
		return
	}
	proc := c.processors.ForTenant(*tenant)

	for _, ob := range obs {
		if ob.Status == schedule.StatusPaid {
			continue
		}
		if ob.ExternalChargeRef != nil && *ob.ExternalChargeRef != "" {
			if err := proc.CancelPaymentIntent(ctx, *ob.ExternalChargeRef); err != nil {
				log.Printf("event=plan_reselect_cleanup_failed kind=payment_intent enrollment_id=%d obligation_id=%d ref=%s err=%v",
					enr.ID, ob.ID, *ob.ExternalChargeRef, err)
			}
		}
		if ob.ExternalInvoiceRef != nil && *ob.ExternalInvoiceRef != "" {
			c.removeInvoice(ctx, proc, enr.ID, ob.ID, *ob.ExternalInvoiceRef)
		}
	}
}

// removeInvoice deletes draft invoices and voids open ones; other invoice
// states are left alone.
func (c *Coordinator) removeInvoice(ctx context.Context, proc Processor, enrollmentID, obligationID uint, ref string) {
	inv, err := proc.GetInvoice(ctx, ref)
	if err != nil {
		log.Printf("event=plan_reselect_cleanup_failed kind=invoice_lookup enrollment_id=%d obligation_id=%d ref=%s err=%v",
			enrollmentID, obligationID, ref, err)
		return
	}
	switch inv.Status {
	case "draft":
		err = proc.DeleteInvoice(ctx, ref)
	case "open":
		err = proc.VoidInvoice(ctx, ref)
	default:
		return
	}
	if err != nil {
		log.Printf("event=plan_reselect_cleanup_failed kind=invoice enrollment_id=%d obligation_id=%d ref=%s status=%s err=%v",
			enrollmentID, obligationID, ref, inv.Status, err)
	}
}

// ExtendSchedule appends the next subscription period to the enrollment's
// schedule. Called by the external recurring job once the window runs low.
func (c *Coordinator) ExtendSchedule(ctx context.Context, enrollmentID uint) (*schedule.PaymentObligation, error) {
	enr, err := c.store.Enrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enr.PaymentPlanID == nil {
		return nil, fmt.Errorf("%w: enrollment %d has no plan", ErrTemplateNotFound, enr.ID)
	}
	tpl, err := c.store.PlanTemplate(ctx, *enr.PaymentPlanID)
	if err != nil {
		return nil, err
	}

	release, err := c.locker.Acquire(ctx, enr.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	obs, err := c.store.ObligationsByEnrollment(ctx, enr.ID)
	if err != nil {
		return nil, err
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("%w: enrollment %d has no schedule to extend", ErrObligationNotFound, enr.ID)
	}
	last := obs[len(obs)-1]

	next, err := AppendNextPeriod(*tpl, last)
	if err != nil {
		return nil, err
	}

	err = c.store.InTransaction(ctx, func(s Store) error {
		if err := s.CreateObligations(ctx, []schedule.PaymentObligation{next}); err != nil {
			return err
		}
		return reconcileEnrollment(ctx, s, enr.ID)
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}
