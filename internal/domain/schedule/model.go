package schedule

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

type PaymentType string

const (
	PaymentFull         PaymentType = "full"
	PaymentDeposit      PaymentType = "deposit"
	PaymentInstallment  PaymentType = "installment"
	PaymentSubscription PaymentType = "subscription"
)

// PaymentObligation is one expected charge for an enrollment. Obligations
// are created in a batch when a plan is selected and only mutated one at a
// time afterwards (status, paid date, external refs).
//
// "Overdue" is never stored: it is the query-time view of a pending
// obligation whose scheduled date has passed.
type PaymentObligation struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	EnrollmentID       uint            `gorm:"not null;uniqueIndex:idx_obligation_enrollment_number,priority:1" json:"enrollment_id"`
	PaymentNumber      int             `gorm:"not null;uniqueIndex:idx_obligation_enrollment_number,priority:2" json:"payment_number"`
	PaymentType        PaymentType     `gorm:"type:varchar(20);not null" json:"payment_type"`
	Amount             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency           string          `gorm:"type:varchar(3);default:'usd'" json:"currency"`
	ScheduledDate      time.Time       `gorm:"index;not null" json:"scheduled_date"`
	PaidDate           *time.Time      `json:"paid_date,omitempty"`
	Status             Status          `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	ExternalChargeRef  *string         `gorm:"index" json:"external_charge_ref,omitempty"`
	ExternalInvoiceRef *string         `json:"external_invoice_ref,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (PaymentObligation) TableName() string {
	return "payment_obligations"
}

// Overdue reports whether the obligation belongs in the overdue view at
// the given instant.
func (o PaymentObligation) Overdue(now time.Time) bool {
	return o.Status == StatusPending && o.ScheduledDate.Before(now)
}
