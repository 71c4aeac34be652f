package payments

import (
	"context"

	"enrollment-app/internal/domain/tenants"
)

// DeclineCode classifies a processor refusal for caller-level messaging.
type DeclineCode string

const (
	DeclineCardDeclined           DeclineCode = "card_declined"
	DeclineAuthenticationRequired DeclineCode = "authentication_required"
	DeclineProcessingError        DeclineCode = "processing_error"
	DeclineRateLimited            DeclineCode = "rate_limited"
)

// ProcessorError is a classified, non-retryable-by-us charge refusal. The
// obligation stays pending; retry is a caller decision.
type ProcessorError struct {
	Code    DeclineCode
	Message string
}

func (e *ProcessorError) Error() string {
	return string(e.Code) + ": " + e.Message
}

type ChargeParams struct {
	CustomerRef    string
	MethodRef      string
	AmountMinor    int64
	Currency       string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

// Charge is the processor's terminal answer to a charge submission. Only a
// terminal status triggers obligation mutation.
type Charge struct {
	IntentRef  string
	Status     string
	ReceiptURL string
}

type PaymentMethod struct {
	Ref     string `json:"ref"`
	Brand   string `json:"brand"`
	Last4   string `json:"last4"`
	Default bool   `json:"default"`
}

type Invoice struct {
	Ref    string
	Status string // draft | open | paid | void | uncollectible
}

// Processor is the opaque card-payment capability the engine needs: charge,
// payment methods, invoices. Implemented against Stripe in
// internal/infra/stripe; faked in tests.
type Processor interface {
	// CreateOffSessionCharge submits a single confirm-and-execute charge
	// using a saved method. It returns only once the processor reports a
	// terminal status, or a *ProcessorError on decline.
	CreateOffSessionCharge(ctx context.Context, params ChargeParams) (*Charge, error)

	EnsureCustomer(ctx context.Context, email, name string) (string, error)
	DefaultPaymentMethod(ctx context.Context, customerRef string) (string, error)
	ListPaymentMethods(ctx context.Context, customerRef string) ([]PaymentMethod, error)
	AttachPaymentMethod(ctx context.Context, customerRef, methodRef string) error
	DetachPaymentMethod(ctx context.Context, methodRef string) error

	CancelPaymentIntent(ctx context.Context, intentRef string) error
	GetInvoice(ctx context.Context, invoiceRef string) (*Invoice, error)
	VoidInvoice(ctx context.Context, invoiceRef string) error
	DeleteInvoice(ctx context.Context, invoiceRef string) error
}

// ProcessorFactory builds a processor client from the tenant's own
// credentials, once per operation; no client is cached at package level.
type ProcessorFactory interface {
	ForTenant(t tenants.Tenant) Processor
}
