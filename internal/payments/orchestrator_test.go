package payments_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"enrollment-app/internal/domain/enrollment"
	"enrollment-app/internal/domain/schedule"
	"enrollment-app/internal/payments"
)

func TestChargeSuccess(t *testing.T) {
	fx := newFixture(t)
	fx.addEnrollment(enrollment.Enrollment{})
	obID := fx.addObligation(t, schedule.PaymentObligation{
		PaymentNumber: 1, PaymentType: schedule.PaymentDeposit,
		Amount: dec(t, "50"), ScheduledDate: anchor,
	})
	second := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	fx.addObligation(t, schedule.PaymentObligation{
		PaymentNumber: 2, Amount: dec(t, "100"), ScheduledDate: second,
	})

	res, err := fx.orchestrator.Charge(context.Background(), obID, "", "enrollee")
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if res.Outcome != payments.OutcomeSucceeded {
		t.Fatalf("outcome = %s, want succeeded", res.Outcome)
	}
	if res.IntentRef == "" {
		t.Error("result has no intent ref")
	}

	ob := fx.obligation(t, obID)
	if ob.Status != schedule.StatusPaid {
		t.Errorf("obligation status = %s, want paid", ob.Status)
	}
	if ob.PaidDate == nil {
		t.Error("paid date not set")
	}
	if ob.ExternalChargeRef == nil || *ob.ExternalChargeRef != res.IntentRef {
		t.Errorf("external charge ref = %v, want %s", ob.ExternalChargeRef, res.IntentRef)
	}

	recs := fx.store.Payments()
	if len(recs) != 1 {
		t.Fatalf("got %d payment records, want 1", len(recs))
	}
	p := recs[0]
	if p.StripePaymentIntentID != res.IntentRef || p.InitiatedBy != "enrollee" || !p.Amount.Equal(dec(t, "50")) {
		t.Errorf("payment record = %+v", p)
	}

	enr := fx.enrollment(t, enrollmentID)
	if !enr.PaidAmount.Equal(dec(t, "50")) || !enr.TotalAmount.Equal(dec(t, "150")) {
		t.Errorf("ledger paid=%s total=%s, want 50/150", enr.PaidAmount, enr.TotalAmount)
	}
	if enr.PaymentStatus != enrollment.PaymentPartial {
		t.Errorf("payment status = %s, want partial", enr.PaymentStatus)
	}
	if enr.NextPaymentDate == nil || !enr.NextPaymentDate.Equal(second) {
		t.Errorf("next payment date = %v, want %s", enr.NextPaymentDate, second)
	}
	if enr.StripeCustomerID == nil || *enr.StripeCustomerID != "cus_test_1" {
		t.Errorf("customer ref not persisted: %v", enr.StripeCustomerID)
	}
	if fx.proc.ensureCalls != 1 {
		t.Errorf("EnsureCustomer called %d times, want 1", fx.proc.ensureCalls)
	}
}

func TestChargeAlreadyPaidNeverReachesProcessor(t *testing.T) {
	fx := newFixture(t)
	fx.addEnrollment(enrollment.Enrollment{})
	paidAt := anchor
	obID := fx.addObligation(t, schedule.PaymentObligation{
		PaymentNumber: 1, Amount: dec(t, "50"), ScheduledDate: anchor,
		Status: schedule.StatusPaid, PaidDate: &paidAt,
	})

	for i := 0; i < 2; i++ {
		res, err := fx.orchestrator.Charge(context.Background(), obID, "", "enrollee")
		if err != nil {
			t.Fatalf("Charge() attempt %d error = %v", i, err)
		}
		if res.Outcome != payments.OutcomeAlreadyPaid {
			t.Fatalf("attempt %d outcome = %s, want already_paid", i, res.Outcome)
		}
	}
	if n := fx.proc.chargeCalls(); n != 0 {
		t.Errorf("processor called %d times, want 0", n)
	}
	if len(fx.store.Payments()) != 0 {
		t.Error("payment records created for already-paid obligation")
	}
}

func TestChargeDeclineLeavesStateUntouched(t *testing.T) {
	fx := newFixture(t)
	cust := "cus_existing"
	fx.addEnrollment(enrollment.Enrollment{StripeCustomerID: &cust})
	obID := fx.addObligation(t, schedule.PaymentObligation{
		PaymentNumber: 1, Amount: dec(t, "50"), ScheduledDate: anchor,
	})
	fx.proc.chargeErr = &payments.ProcessorError{Code: payments.DeclineCardDeclined, Message: "insufficient funds"}

	before := fx.obligation(t, obID)
	enrBefore := fx.enrollment(t, enrollmentID)

	res, err := fx.orchestrator.Charge(context.Background(), obID, "", "enrollee")
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if res.Outcome != payments.OutcomeFailed || res.Reason != payments.DeclineCardDeclined {
		t.Fatalf("result = %+v, want failed/card_declined", res)
	}

	after := fx.obligation(t, obID)
	if after.Status != before.Status || after.PaidDate != nil || after.ExternalChargeRef != nil {
		t.Errorf("obligation mutated on decline: %+v", after)
	}
	enrAfter := fx.enrollment(t, enrollmentID)
	if !enrAfter.PaidAmount.Equal(enrBefore.PaidAmount) || enrAfter.PaymentStatus != enrBefore.PaymentStatus {
		t.Errorf("ledger mutated on decline: %+v", enrAfter)
	}
	if len(fx.store.Payments()) != 0 {
		t.Error("payment record created on decline")
	}

	// Obligation stays pending: an explicit retry goes through.
	fx.proc.chargeErr = nil
	res, err = fx.orchestrator.Charge(context.Background(), obID, "", "enrollee")
	if err != nil || res.Outcome != payments.OutcomeSucceeded {
		t.Fatalf("retry after decline: res=%+v err=%v", res, err)
	}
}

func TestChargeLinkedEnrollmentSkipped(t *testing.T) {
	fx := newFixture(t)
	parent := uint(99)
	fx.addEnrollment(enrollment.Enrollment{LinkedParentID: &parent})
	obID := fx.addObligation(t, schedule.PaymentObligation{
		PaymentNumber: 1, Amount: dec(t, "50"), ScheduledDate: anchor,
	})

	res, err := fx.orchestrator.Charge(context.Background(), obID, "", "admin")
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if res.Outcome != payments.OutcomeSkippedLinked {
		t.Errorf("outcome = %s, want skipped_linked", res.Outcome)
	}
	if n := fx.proc.chargeCalls(); n != 0 {
		t.Errorf("processor called %d times, want 0", n)
	}
	if ob := fx.obligation(t, obID); ob.Status != schedule.StatusPending {
		t.Errorf("obligation status = %s, want pending", ob.Status)
	}
}

func TestChargeAgreementGate(t *testing.T) {
	tests := []struct {
		name    string
		status  enrollment.AgreementStatus
		blocked bool
	}{
		{"sent blocks", enrollment.AgreementSent, true},
		{"delivered blocks", enrollment.AgreementDelivered, true},
		{"declined blocks", enrollment.AgreementDeclined, true},
		{"completed passes", enrollment.AgreementCompleted, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.addEnrollment(enrollment.Enrollment{RequiresAgreement: true, AgreementStatus: tt.status})
			obID := fx.addObligation(t, schedule.PaymentObligation{
				PaymentNumber: 1, Amount: dec(t, "50"), ScheduledDate: anchor,
			})

			_, err := fx.orchestrator.Charge(context.Background(), obID, "", "enrollee")
			if tt.blocked {
				if !errors.Is(err, payments.ErrAgreementIncomplete) {
					t.Errorf("Charge() error = %v, want ErrAgreementIncomplete", err)
				}
				if n := fx.proc.chargeCalls(); n != 0 {
					t.Errorf("processor called %d times, want 0", n)
				}
			} else if err != nil {
				t.Errorf("Charge() error = %v", err)
			}
		})
	}
}

func TestChargeMethodResolution(t *testing.T) {
	tests := []struct {
		name       string
		explicit   string
		defaultRef string
		attached   []payments.PaymentMethod
		want       string
		wantErr    error
	}{
		{"explicit wins", "pm_explicit", "pm_default", []payments.PaymentMethod{{Ref: "pm_first"}}, "pm_explicit", nil},
		{"default next", "", "pm_default", []payments.PaymentMethod{{Ref: "pm_first"}}, "pm_default", nil},
		{"first attached last", "", "", []payments.PaymentMethod{{Ref: "pm_first"}, {Ref: "pm_second"}}, "pm_first", nil},
		{"nothing available", "", "", nil, "", payments.ErrNoPaymentMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.proc.defaultMethod = tt.defaultRef
			fx.proc.methods = tt.attached
			fx.addEnrollment(enrollment.Enrollment{})
			obID := fx.addObligation(t, schedule.PaymentObligation{
				PaymentNumber: 1, Amount: dec(t, "50"), ScheduledDate: anchor,
			})

			_, err := fx.orchestrator.Charge(context.Background(), obID, tt.explicit, "enrollee")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Charge() error = %v, want %v", err, tt.wantErr)
				}
				if n := fx.proc.chargeCalls(); n != 0 {
					t.Errorf("processor called %d times, want 0", n)
				}
				return
			}
			if err != nil {
				t.Fatalf("Charge() error = %v", err)
			}
			if got := fx.proc.charges[0].MethodRef; got != tt.want {
				t.Errorf("charged with method %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChargeTimeoutIsOutcomeUnknown(t *testing.T) {
	fx := newFixture(t)
	fx.addEnrollment(enrollment.Enrollment{})
	obID := fx.addObligation(t, schedule.PaymentObligation{
		PaymentNumber: 1, Amount: dec(t, "50"), ScheduledDate: anchor,
	})
	fx.proc.chargeErr = context.DeadlineExceeded

	_, err := fx.orchestrator.Charge(context.Background(), obID, "", "enrollee")
	if !errors.Is(err, payments.ErrOutcomeUnknown) {
		t.Fatalf("Charge() error = %v, want ErrOutcomeUnknown", err)
	}

	// No terminal answer, no mutation: the webhook settles the truth later.
	if ob := fx.obligation(t, obID); ob.Status != schedule.StatusPending {
		t.Errorf("obligation status = %s, want pending", ob.Status)
	}
	if len(fx.store.Payments()) != 0 {
		t.Error("payment record created without a terminal outcome")
	}
}

func TestChargeWhileLocked(t *testing.T) {
	fx := newFixture(t)
	fx.addEnrollment(enrollment.Enrollment{})
	obID := fx.addObligation(t, schedule.PaymentObligation{
		PaymentNumber: 1, Amount: dec(t, "50"), ScheduledDate: anchor,
	})

	release, err := fx.locker.Acquire(context.Background(), enrollmentID)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	if _, err := fx.orchestrator.Charge(context.Background(), obID, "", "enrollee"); !errors.Is(err, payments.ErrEnrollmentBusy) {
		t.Errorf("Charge() error = %v, want ErrEnrollmentBusy", err)
	}
	if n := fx.proc.chargeCalls(); n != 0 {
		t.Errorf("processor called %d times, want 0", n)
	}
}

func TestChargeNonPendingStates(t *testing.T) {
	fx := newFixture(t)
	fx.addEnrollment(enrollment.Enrollment{})

	cancelled := fx.addObligation(t, schedule.PaymentObligation{
		PaymentNumber: 1, Amount: dec(t, "50"), ScheduledDate: anchor,
		Status: schedule.StatusCancelled,
	})
	refunded := fx.addObligation(t, schedule.PaymentObligation{
		PaymentNumber: 2, Amount: dec(t, "50"), ScheduledDate: anchor,
		Status: schedule.StatusRefunded,
	})

	for _, id := range []uint{cancelled, refunded} {
		if _, err := fx.orchestrator.Charge(context.Background(), id, "", "admin"); !errors.Is(err, payments.ErrNotPending) {
			t.Errorf("Charge(%d) error = %v, want ErrNotPending", id, err)
		}
	}
}

func TestSettleFromWebhook(t *testing.T) {
	fx := newFixture(t)
	fx.addEnrollment(enrollment.Enrollment{})
	obID := fx.addObligation(t, schedule.PaymentObligation{
		PaymentNumber: 1, Amount: dec(t, "50"), ScheduledDate: anchor,
	})

	charge := &payments.Charge{IntentRef: "pi_webhook_1", Status: "succeeded"}
	if err := fx.orchestrator.Settle(context.Background(), obID, charge, "", "webhook"); err != nil {
		t.Fatalf("Settle() error = %v", err)
	}

	ob := fx.obligation(t, obID)
	if ob.Status != schedule.StatusPaid || ob.ExternalChargeRef == nil || *ob.ExternalChargeRef != "pi_webhook_1" {
		t.Fatalf("obligation after settle: %+v", ob)
	}
	recs := fx.store.Payments()
	if len(recs) != 1 || recs[0].InitiatedBy != "webhook" {
		t.Fatalf("payment records after settle: %+v", recs)
	}

	// Redelivered event settles nothing twice.
	if err := fx.orchestrator.Settle(context.Background(), obID, charge, "", "webhook"); err != nil {
		t.Fatalf("second Settle() error = %v", err)
	}
	if len(fx.store.Payments()) != 1 {
		t.Error("redelivered settle duplicated the payment record")
	}
}
