package payments_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"enrollment-app/internal/domain/enrollment"
	"enrollment-app/internal/domain/plans"
	"enrollment-app/internal/domain/products"
	"enrollment-app/internal/domain/schedule"
	"enrollment-app/internal/domain/tenants"
	"enrollment-app/internal/payments"
	"enrollment-app/internal/storage/inmem"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

// fakeProcessor records every call and answers from canned state. The
// zero value succeeds every charge with a fresh intent ref.
type fakeProcessor struct {
	mu sync.Mutex

	chargeErr  error
	charges    []payments.ChargeParams
	intentSeq  int
	lastIntent string

	customerRef   string
	ensureCalls   int
	defaultMethod string
	methods       []payments.PaymentMethod

	cancelErr  error
	cancelled  []string
	invoices   map[string]string // ref -> status
	invoiceErr error
	voided     []string
	deleted    []string
	attached   []string
	detached   []string
}

var _ payments.Processor = (*fakeProcessor)(nil)

func (f *fakeProcessor) CreateOffSessionCharge(_ context.Context, params payments.ChargeParams) (*payments.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charges = append(f.charges, params)
	if f.chargeErr != nil {
		return nil, f.chargeErr
	}
	f.intentSeq++
	f.lastIntent = fmt.Sprintf("pi_test_%d", f.intentSeq)
	return &payments.Charge{
		IntentRef:  f.lastIntent,
		Status:     "succeeded",
		ReceiptURL: "https://pay.example/receipts/" + f.lastIntent,
	}, nil
}

func (f *fakeProcessor) chargeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.charges)
}

func (f *fakeProcessor) EnsureCustomer(_ context.Context, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	if f.customerRef == "" {
		f.customerRef = "cus_test_1"
	}
	return f.customerRef, nil
}

func (f *fakeProcessor) DefaultPaymentMethod(_ context.Context, _ string) (string, error) {
	return f.defaultMethod, nil
}

func (f *fakeProcessor) ListPaymentMethods(_ context.Context, _ string) ([]payments.PaymentMethod, error) {
	return f.methods, nil
}

func (f *fakeProcessor) AttachPaymentMethod(_ context.Context, _, methodRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = append(f.attached, methodRef)
	return nil
}

func (f *fakeProcessor) DetachPaymentMethod(_ context.Context, methodRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detached = append(f.detached, methodRef)
	return nil
}

func (f *fakeProcessor) CancelPaymentIntent(_ context.Context, intentRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, intentRef)
	return nil
}

func (f *fakeProcessor) GetInvoice(_ context.Context, invoiceRef string) (*payments.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invoiceErr != nil {
		return nil, f.invoiceErr
	}
	status, ok := f.invoices[invoiceRef]
	if !ok {
		status = "draft"
	}
	return &payments.Invoice{Ref: invoiceRef, Status: status}, nil
}

func (f *fakeProcessor) VoidInvoice(_ context.Context, invoiceRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voided = append(f.voided, invoiceRef)
	return nil
}

func (f *fakeProcessor) DeleteInvoice(_ context.Context, invoiceRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, invoiceRef)
	return nil
}

type fakeFactory struct {
	proc *fakeProcessor
}

func (f *fakeFactory) ForTenant(_ tenants.Tenant) payments.Processor { return f.proc }

// fixture wires the engine against the in-memory store and a fake
// processor, pre-seeded with one tenant, one product and one
// deposit_installments template (deposit 50, 2 monthly installments,
// product price 250).
type fixture struct {
	store  *inmem.Store
	proc   *fakeProcessor
	locker *payments.KeyedMutex

	orchestrator *payments.Orchestrator
	coordinator  *payments.Coordinator
	lifecycle    *payments.Lifecycle
}

const (
	tenantID     = 1
	productID    = 1
	templateID   = 1
	enrollmentID = 1
)

var anchor = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := inmem.NewStore()
	proc := &fakeProcessor{defaultMethod: "pm_default"}
	locker := payments.NewKeyedMutex()

	store.AddTenant(tenants.Tenant{ID: tenantID, Name: "Acme Academy", StripeSecretKey: "sk_test_acme"})
	store.AddProduct(products.Product{ID: productID, TenantID: tenantID, Name: "Fall Program", Price: dec(t, "250"), Currency: "usd", Active: true})

	deposit := dec(t, "50")
	monthly := plans.FrequencyMonthly
	store.AddTemplate(plans.PlanTemplate{
		ID:               templateID,
		TenantID:         tenantID,
		ProductID:        productID,
		Name:             "Deposit + 2 monthly",
		Type:             plans.PlanDepositInstallments,
		DepositAmount:    &deposit,
		InstallmentCount: 2,
		Frequency:        &monthly,
		Currency:         "usd",
		Active:           true,
	})

	factory := &fakeFactory{proc: proc}
	return &fixture{
		store:        store,
		proc:         proc,
		locker:       locker,
		orchestrator: payments.NewOrchestrator(store, locker, factory),
		coordinator:  payments.NewCoordinator(store, locker, factory),
		lifecycle:    payments.NewLifecycle(store),
	}
}

func (fx *fixture) addEnrollment(e enrollment.Enrollment) {
	if e.ID == 0 {
		e.ID = enrollmentID
	}
	if e.TenantID == 0 {
		e.TenantID = tenantID
	}
	if e.ProductID == 0 {
		e.ProductID = productID
	}
	if e.PublicRef == "" {
		e.PublicRef = "enr-test-1"
	}
	if e.Status == "" {
		e.Status = enrollment.StatusOnboarding
	}
	fx.store.AddEnrollment(e)
}

func (fx *fixture) addObligation(t *testing.T, o schedule.PaymentObligation) uint {
	t.Helper()
	if o.EnrollmentID == 0 {
		o.EnrollmentID = enrollmentID
	}
	if o.PaymentType == "" {
		o.PaymentType = schedule.PaymentInstallment
	}
	if o.Currency == "" {
		o.Currency = "usd"
	}
	if o.Status == "" {
		o.Status = schedule.StatusPending
	}
	return fx.store.AddObligation(o)
}

func (fx *fixture) obligation(t *testing.T, id uint) schedule.PaymentObligation {
	t.Helper()
	o, err := fx.store.Obligation(context.Background(), id)
	if err != nil {
		t.Fatalf("Obligation(%d): %v", id, err)
	}
	return *o
}

func (fx *fixture) enrollment(t *testing.T, id uint) enrollment.Enrollment {
	t.Helper()
	e, err := fx.store.Enrollment(context.Background(), id)
	if err != nil {
		t.Fatalf("Enrollment(%d): %v", id, err)
	}
	return *e
}

func (fx *fixture) obligations(t *testing.T, enrID uint) []schedule.PaymentObligation {
	t.Helper()
	obs, err := fx.store.ObligationsByEnrollment(context.Background(), enrID)
	if err != nil {
		t.Fatalf("ObligationsByEnrollment(%d): %v", enrID, err)
	}
	return obs
}

func strptr(s string) *string { return &s }
