package payments

import (
	"errors"
	"fmt"
)

// Configuration errors: rejected synchronously, nothing applied.
var (
	ErrBadTemplate        = errors.New("invalid plan template configuration")
	ErrTemplateNotAllowed = errors.New("plan template not allowed for this enrollment")
	ErrTemplateInactive   = errors.New("plan template is not active")
)

// State errors: short-circuit, no mutation.
var (
	ErrNotPending           = errors.New("obligation is not pending")
	ErrNotPaid              = errors.New("obligation is not paid")
	ErrEnrollmentNotPending = errors.New("enrollment already active or completed")
	ErrAgreementIncomplete  = errors.New("agreement not completed")
	ErrNoPaymentMethod      = errors.New("no payment method available")
	ErrPaidObligationExists = errors.New("enrollment has paid obligations; plan can no longer be re-selected")
	ErrEnrollmentBusy       = errors.New("another payment operation is in progress for this enrollment")
)

// Consistency errors: fatal to the operation.
var (
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrObligationNotFound = errors.New("obligation not found")
	ErrTemplateNotFound   = errors.New("plan template not found")
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrProductNotFound    = errors.New("product not found")
)

// ErrOutcomeUnknown is returned when the processor call did not reach a
// terminal status (timeout, connection drop after submit). The obligation
// is left untouched; the webhook reconciles the real outcome.
var ErrOutcomeUnknown = errors.New("charge outcome unknown; awaiting processor confirmation")

func configErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrBadTemplate, fmt.Sprintf(format, args...))
}
