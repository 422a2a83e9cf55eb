package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID                   int64            `db:"id"`
	Name                 string           `db:"name"`
	Description          string           `db:"description"`
	Price                decimal.Decimal  `db:"price"`
	RefillPrice          *decimal.Decimal `db:"refill_price"`
	Stock                int32            `db:"stock"`
	Reusable             bool             `db:"reusable"`
	RequiresSubscription bool             `db:"requires_subscription"`
	RefillQuantity       *int32           `db:"refill_quantity"`
	RefillFrequencyDays  *int32           `db:"refill_frequency_days"`

	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// EffectiveRefillPrice is what a refill order pays: the dedicated refill
// price when the product has one, the regular price otherwise.
func (p Product) EffectiveRefillPrice() decimal.Decimal {
	if p.RefillPrice != nil {
		return *p.RefillPrice
	}
	return p.Price
}

// ReservedProduct is the snapshot returned by a successful stock
// reservation. UnitPrice is the price at reservation time.
type ReservedProduct struct {
	ProductID   int64
	Name        string
	UnitPrice   decimal.Decimal
	RefillPrice *decimal.Decimal
}
