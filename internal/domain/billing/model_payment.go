package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is the audit record appended whenever a charge settles. One row
// per successful processor charge.
type Payment struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	TenantID              uint            `gorm:"index;not null" json:"tenant_id"`
	EnrollmentID          uint            `gorm:"index;not null" json:"enrollment_id"`
	ObligationID          uint            `gorm:"index;not null" json:"obligation_id"`
	Amount                decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency              string          `gorm:"type:varchar(3);default:'usd'" json:"currency"`
	PaymentMethodRef      string          `json:"payment_method_ref"`
	StripePaymentIntentID string          `gorm:"uniqueIndex" json:"stripe_payment_intent_id"`
	StripeInvoiceID       *string         `json:"stripe_invoice_id,omitempty"`
	ReceiptURL            *string         `json:"receipt_url,omitempty"`
	Status                string          `gorm:"type:varchar(20);default:'succeeded'" json:"status"`
	InitiatedBy           string          `gorm:"type:varchar(20)" json:"initiated_by"` // enrollee | admin | webhook
	CreatedAt             time.Time       `json:"created_at"`
}
