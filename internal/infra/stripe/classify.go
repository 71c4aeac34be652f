package stripe

import (
	"errors"
	"net/http"

	"github.com/stripe/stripe-go/v75"

	"enrollment-app/internal/payments"
)

// classify folds a Stripe API error into the engine's decline taxonomy.
// Non-Stripe errors (network, context) pass through untouched so the
// orchestrator can treat them as unknown-outcome.
func classify(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return err
	}

	if se.HTTPStatusCode == http.StatusTooManyRequests {
		return &payments.ProcessorError{Code: payments.DeclineRateLimited, Message: se.Msg}
	}

	switch se.Code {
	case stripe.ErrorCodeCardDeclined,
		stripe.ErrorCodeExpiredCard,
		stripe.ErrorCodeIncorrectCVC,
		stripe.ErrorCodeIncorrectNumber:
		return &payments.ProcessorError{Code: payments.DeclineCardDeclined, Message: se.Msg}
	case stripe.ErrorCodeAuthenticationRequired:
		return &payments.ProcessorError{Code: payments.DeclineAuthenticationRequired, Message: se.Msg}
	}

	if se.Type == stripe.ErrorTypeCard {
		return &payments.ProcessorError{Code: payments.DeclineCardDeclined, Message: se.Msg}
	}
	return &payments.ProcessorError{Code: payments.DeclineProcessingError, Message: se.Msg}
}
