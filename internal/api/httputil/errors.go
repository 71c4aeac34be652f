package httputil

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"enrollment-app/internal/payments"
)

// Error maps engine errors onto HTTP responses. Configuration and state
// errors carry their message so the caller can act; processor and
// consistency problems are reported generically and logged in full.
func Error(c *gin.Context, err error) {
	switch {
	case errors.Is(err, payments.ErrObligationNotFound),
		errors.Is(err, payments.ErrEnrollmentNotFound),
		errors.Is(err, payments.ErrTemplateNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, payments.ErrBadTemplate),
		errors.Is(err, payments.ErrTemplateNotAllowed),
		errors.Is(err, payments.ErrTemplateInactive):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	case errors.Is(err, payments.ErrNotPending),
		errors.Is(err, payments.ErrNotPaid),
		errors.Is(err, payments.ErrEnrollmentNotPending),
		errors.Is(err, payments.ErrAgreementIncomplete),
		errors.Is(err, payments.ErrNoPaymentMethod),
		errors.Is(err, payments.ErrPaidObligationExists),
		errors.Is(err, payments.ErrEnrollmentBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, payments.ErrOutcomeUnknown):
		// Not success, not failure: the caller must wait for
		// reconciliation before retrying.
		log.Printf("event=charge_outcome_unknown err=%v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment status could not be confirmed. Do not retry; the result will be reconciled shortly."})

	default:
		log.Printf("event=internal_error err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
