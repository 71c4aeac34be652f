package tenants

import "time"

// Tenant carries the per-tenant processor credentials. The Stripe client
// factory builds a dedicated client from StripeSecretKey per operation;
// nothing Stripe-related is cached at module scope.
type Tenant struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	Name            string `gorm:"not null" json:"name"`
	StripeSecretKey string `gorm:"not null" json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
