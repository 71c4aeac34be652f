package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog entry an enrollment is sold against. Price is the
// authoritative total for any plan selected on the enrollment; template
// amounts are derived from it, never trusted from the request.
type Product struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	TenantID  uint            `gorm:"index;not null" json:"tenant_id"`
	Name      string          `gorm:"not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Currency  string          `gorm:"type:varchar(3);default:'usd'" json:"currency"`
	Active    bool            `gorm:"default:true" json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
