package stripe

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"

	"enrollment-app/internal/domain/tenants"
	"enrollment-app/internal/payments"
)

// Factory builds a Stripe client from each tenant's own secret key. A
// client is constructed per operation and passed down explicitly; the
// package-global stripe.Key is never set.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (Factory) ForTenant(t tenants.Tenant) payments.Processor {
	api := &client.API{}
	api.Init(t.StripeSecretKey, nil)
	return &Client{api: api}
}

// Client implements payments.Processor against Stripe.
type Client struct {
	api *client.API
}

var _ payments.Processor = (*Client)(nil)

// CreateOffSessionCharge submits a payment intent configured to confirm
// and execute off-session in one call. Only a terminal succeeded status
// counts as success; anything else is classified for the caller.
func (c *Client) CreateOffSessionCharge(ctx context.Context, p payments.ChargeParams) (*payments.Charge, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context:        ctx,
			IdempotencyKey: stripe.String(p.IdempotencyKey),
		},
		Amount:        stripe.Int64(p.AmountMinor),
		Currency:      stripe.String(p.Currency),
		Customer:      stripe.String(p.CustomerRef),
		PaymentMethod: stripe.String(p.MethodRef),
		Description:   stripe.String(p.Description),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	params.AddExpand("latest_charge")

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, classify(err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		ch := &payments.Charge{IntentRef: pi.ID, Status: string(pi.Status)}
		if pi.LatestCharge != nil {
			ch.ReceiptURL = pi.LatestCharge.ReceiptURL
		}
		return ch, nil
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresConfirmation:
		return nil, &payments.ProcessorError{
			Code:    payments.DeclineAuthenticationRequired,
			Message: fmt.Sprintf("payment intent %s requires further action", pi.ID),
		}
	default:
		// Submission without a terminal answer never mutates an obligation.
		return nil, &payments.ProcessorError{
			Code:    payments.DeclineProcessingError,
			Message: fmt.Sprintf("payment intent %s in non-terminal status %s", pi.ID, pi.Status),
		}
	}
}

func (c *Client) EnsureCustomer(ctx context.Context, email, name string) (string, error) {
	cus, err := c.api.Customers.New(&stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
		Name:   stripe.String(name),
	})
	if err != nil {
		return "", err
	}
	return cus.ID, nil
}

func (c *Client) DefaultPaymentMethod(ctx context.Context, customerRef string) (string, error) {
	cus, err := c.api.Customers.Get(customerRef, &stripe.CustomerParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return "", err
	}
	if cus.InvoiceSettings != nil && cus.InvoiceSettings.DefaultPaymentMethod != nil {
		return cus.InvoiceSettings.DefaultPaymentMethod.ID, nil
	}
	return "", nil
}

func (c *Client) ListPaymentMethods(ctx context.Context, customerRef string) ([]payments.PaymentMethod, error) {
	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerRef),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	}
	params.Context = ctx

	var out []payments.PaymentMethod
	it := c.api.PaymentMethods.List(params)
	for it.Next() {
		pm := it.PaymentMethod()
		m := payments.PaymentMethod{Ref: pm.ID}
		if pm.Card != nil {
			m.Brand = string(pm.Card.Brand)
			m.Last4 = pm.Card.Last4
		}
		out = append(out, m)
	}
	return out, it.Err()
}

func (c *Client) AttachPaymentMethod(ctx context.Context, customerRef, methodRef string) error {
	_, err := c.api.PaymentMethods.Attach(methodRef, &stripe.PaymentMethodAttachParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerRef),
	})
	return err
}

func (c *Client) DetachPaymentMethod(ctx context.Context, methodRef string) error {
	_, err := c.api.PaymentMethods.Detach(methodRef, &stripe.PaymentMethodDetachParams{
		Params: stripe.Params{Context: ctx},
	})
	return err
}

func (c *Client) CancelPaymentIntent(ctx context.Context, intentRef string) error {
	_, err := c.api.PaymentIntents.Cancel(intentRef, &stripe.PaymentIntentCancelParams{
		Params: stripe.Params{Context: ctx},
	})
	return err
}

func (c *Client) GetInvoice(ctx context.Context, invoiceRef string) (*payments.Invoice, error) {
	inv, err := c.api.Invoices.Get(invoiceRef, &stripe.InvoiceParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return nil, err
	}
	return &payments.Invoice{Ref: inv.ID, Status: string(inv.Status)}, nil
}

func (c *Client) VoidInvoice(ctx context.Context, invoiceRef string) error {
	_, err := c.api.Invoices.VoidInvoice(invoiceRef, &stripe.InvoiceVoidInvoiceParams{
		Params: stripe.Params{Context: ctx},
	})
	return err
}

func (c *Client) DeleteInvoice(ctx context.Context, invoiceRef string) error {
	_, err := c.api.Invoices.Del(invoiceRef, &stripe.InvoiceParams{Params: stripe.Params{Context: ctx}})
	return err
}
