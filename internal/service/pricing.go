package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Nikeeta26/Ecommerse/internal/domain"
)

// Quote is the priced breakdown of an order. Total is always
// Subtotal + Tax + Shipping.
type Quote struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// PricingCalculator is pure: no clock, no storage, no side effects.
// The tax rate and the flat shipping cost are policy constants injected
// from config.
type PricingCalculator struct {
	taxRate      decimal.Decimal
	shippingCost decimal.Decimal
}

func NewPricingCalculator(taxRate, shippingCost string) (*PricingCalculator, error) {
	rate, err := decimal.NewFromString(taxRate)
	if err != nil {
		return nil, fmt.Errorf("invalid tax rate %q: %w", taxRate, err)
	}

	shipping, err := decimal.NewFromString(shippingCost)
	if err != nil {
		return nil, fmt.Errorf("invalid shipping cost %q: %w", shippingCost, err)
	}

	if rate.IsNegative() || shipping.IsNegative() {
		return nil, fmt.Errorf("pricing constants must be non-negative")
	}

	return &PricingCalculator{taxRate: rate, shippingCost: shipping}, nil
}

// Price sums the snapshot item subtotals and applies tax and flat
// shipping on top.
func (c *PricingCalculator) Price(items []domain.OrderItem) Quote {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.ComputeSubtotal())
	}

	tax := subtotal.Mul(c.taxRate)
	total := subtotal.Add(tax).Add(c.shippingCost)

	return Quote{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: c.shippingCost,
		Total:    total,
	}
}

// PriceRefill prices an auto-generated refill order: subtotal only, no
// tax and no shipping.
func (c *PricingCalculator) PriceRefill(items []domain.OrderItem) Quote {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.ComputeSubtotal())
	}

	return Quote{
		Subtotal: subtotal,
		Tax:      decimal.Zero,
		Shipping: decimal.Zero,
		Total:    subtotal,
	}
}
