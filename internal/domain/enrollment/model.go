package enrollment

import (
	"time"

	"github.com/shopspring/decimal"

	"enrollment-app/internal/domain/plans"
	"enrollment-app/internal/domain/schedule"
)

type Status string

const (
	StatusOnboarding Status = "onboarding"
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// AgreementStatus mirrors the e-signature collaborator's callback states.
type AgreementStatus string

const (
	AgreementNone      AgreementStatus = "none"
	AgreementSent      AgreementStatus = "sent"
	AgreementDelivered AgreementStatus = "delivered"
	AgreementCompleted AgreementStatus = "completed"
	AgreementDeclined  AgreementStatus = "declined"
	AgreementVoided    AgreementStatus = "voided"
)

// Enrollment owns at most one active plan template and the full ordered
// obligation set. TotalAmount, PaidAmount, PaymentStatus and
// NextPaymentDate are derived from the obligations and recomputed in full
// after every mutation, never patched incrementally.
type Enrollment struct {
	ID             uint `gorm:"primaryKey" json:"id"`
	TenantID       uint `gorm:"index;not null" json:"tenant_id"`
	ProductID      uint `gorm:"index;not null" json:"product_id"`
	PublicRef      string `gorm:"type:varchar(36);uniqueIndex" json:"public_ref"`
	StudentName    string `json:"student_name"`
	StudentEmail   string `json:"student_email"`
	Status         Status `gorm:"type:varchar(20);default:'onboarding';index" json:"status"`
	PaymentPlanID  *uint  `gorm:"index" json:"payment_plan_id,omitempty"`
	PaymentPlan    *plans.PlanTemplate `gorm:"foreignKey:PaymentPlanID" json:"payment_plan,omitempty"`
	AnchorDate     *time.Time          `json:"anchor_date,omitempty"`

	// Linked/parent billing: an enrollment standing in for another (e.g.
	// multi-child billing) is never charged directly.
	LinkedParentID *uint `gorm:"index" json:"linked_parent_id,omitempty"`

	RequiresAgreement bool            `gorm:"default:false" json:"requires_agreement"`
	AgreementStatus   AgreementStatus `gorm:"type:varchar(20);default:'none'" json:"agreement_status"`

	StripeCustomerID *string `json:"stripe_customer_id,omitempty"`

	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"total_amount"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"paid_amount"`
	PaymentStatus   PaymentStatus   `gorm:"type:varchar(20);default:'unpaid'" json:"payment_status"`
	NextPaymentDate *time.Time      `json:"next_payment_date,omitempty"`

	Obligations []schedule.PaymentObligation `gorm:"foreignKey:EnrollmentID" json:"obligations,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
