package plans

import (
	"time"

	"github.com/shopspring/decimal"
)

type PlanType string

const (
	PlanOneTime             PlanType = "one_time"
	PlanDepositInstallments PlanType = "deposit_installments"
	PlanSubscription        PlanType = "subscription"
)

type Frequency string

const (
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyYearly   Frequency = "yearly"
)

// PlanTemplate is a reusable payment-plan definition. A template referenced
// by a live enrollment is never mutated; admins create a replacement row
// instead.
type PlanTemplate struct {
	ID               uint `gorm:"primaryKey" json:"id"`
	TenantID         uint `gorm:"index;not null" json:"tenant_id"`
	ProductID        uint `gorm:"index;not null" json:"product_id"`
	Name             string           `json:"name"`
	Type             PlanType         `gorm:"type:varchar(30);not null" json:"type"`
	DepositAmount    *decimal.Decimal `gorm:"type:decimal(12,2)" json:"deposit_amount,omitempty"`
	InstallmentCount int              `json:"installment_count,omitempty"`
	Frequency        *Frequency       `gorm:"type:varchar(20)" json:"frequency,omitempty"`
	Currency         string           `gorm:"type:varchar(3);default:'usd'" json:"currency"`
	Active           bool             `gorm:"default:true" json:"active"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
