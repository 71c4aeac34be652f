package payments

import (
	"github.com/shopspring/decimal"

	"enrollment-app/internal/domain/enrollment"
	"enrollment-app/internal/domain/schedule"
)

// Reconcile recomputes the enrollment's derived ledger fields from the
// full obligation set. Every mutator calls this after an obligation
// change; nothing is patched incrementally, so the totals can never drift
// from the obligations.
//
// TotalAmount counts every obligation except cancelled ones. PaidAmount
// is the sum over paid obligations, clamped to TotalAmount.
// NextPaymentDate is the scheduled date of the lowest-numbered pending
// obligation, or nil.
func Reconcile(e *enrollment.Enrollment, obs []schedule.PaymentObligation) {
	total := decimal.Zero
	paid := decimal.Zero

	var next *schedule.PaymentObligation
	for i := range obs {
		o := obs[i]
		if o.Status != schedule.StatusCancelled {
			total = total.Add(o.Amount)
		}
		if o.Status == schedule.StatusPaid {
			paid = paid.Add(o.Amount)
		}
		if o.Status == schedule.StatusPending && (next == nil || o.PaymentNumber < next.PaymentNumber) {
			next = &obs[i]
		}
	}

	if paid.GreaterThan(total) {
		paid = total
	}

	e.TotalAmount = total
	e.PaidAmount = paid

	switch {
	case total.GreaterThan(decimal.Zero) && paid.GreaterThanOrEqual(total):
		e.PaymentStatus = enrollment.PaymentPaid
	case paid.GreaterThan(decimal.Zero):
		e.PaymentStatus = enrollment.PaymentPartial
	default:
		e.PaymentStatus = enrollment.PaymentUnpaid
	}

	if next != nil {
		d := next.ScheduledDate
		e.NextPaymentDate = &d
	} else {
		e.NextPaymentDate = nil
	}
}
