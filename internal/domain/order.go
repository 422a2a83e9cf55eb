package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderType string

const (
	OrderTypeRegular OrderType = "regular"
	OrderTypeRefill  OrderType = "refill"
)

type Order struct {
	ID                int64       `db:"id"`
	OrderNumber       string      `db:"order_number"`
	UserID            int64       `db:"user_id"`
	ShippingAddressID *int64      `db:"shipping_address_id"`
	Status            OrderStatus `db:"status"`
	Type              OrderType   `db:"order_type"`
	SubscriptionID    *int64      `db:"subscription_id"`
	Items             []OrderItem `db:"items"`

	Subtotal     decimal.Decimal `db:"subtotal"`
	Tax          decimal.Decimal `db:"tax"`
	ShippingCost decimal.Decimal `db:"shipping_cost"`
	Total        decimal.Decimal `db:"total_amount"`

	Notes           string  `db:"notes"`
	TrackingNumber  *string `db:"tracking_number"`
	CancelledReason *string `db:"cancelled_reason"`

	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	ShippedAt   *time.Time `db:"shipped_at"`
	DeliveredAt *time.Time `db:"delivered_at"`
	CancelledAt *time.Time `db:"cancelled_at"`

	Version int64 `db:"version"`
}

// OrderItem is a point-in-time snapshot: name and unit price are copied
// from the product at reservation time and never re-read afterwards.
type OrderItem struct {
	ID        int64           `db:"id"`
	OrderID   int64           `db:"order_id"`
	ProductID int64           `db:"product_id"`
	Name      string          `db:"name"`
	UnitPrice decimal.Decimal `db:"unit_price"`
	Quantity  int32           `db:"quantity"`
	Subtotal  decimal.Decimal `db:"subtotal"`
}

func (i OrderItem) ComputeSubtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusProcessing
}

// Transition applies the state machine of order_status.go. On an illegal
// pair the order is left unchanged and *InvalidTransitionError is returned.
// Entering shipped/delivered/cancelled sets the matching timestamp.
func (o *Order) Transition(next OrderStatus, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return &InvalidTransitionError{From: o.Status, To: next}
	}

	o.Status = next
	o.UpdatedAt = now

	switch next {
	case OrderStatusShipped:
		o.ShippedAt = &now
	case OrderStatusDelivered:
		o.DeliveredAt = &now
	case OrderStatusCancelled:
		o.CancelledAt = &now
	}

	return nil
}

// Cancel transitions the order to cancelled and records the reason.
// Stock restoration is the caller's responsibility; the terminal-state
// rule guarantees it runs at most once per order.
func (o *Order) Cancel(reason string, now time.Time) error {
	if err := o.Transition(OrderStatusCancelled, now); err != nil {
		return err
	}

	o.CancelledReason = &reason

	note := "Order cancelled on " + now.Format(time.RFC3339)
	if reason != "" {
		note += ": " + reason
	}
	if o.Notes != "" {
		o.Notes += "\n"
	}
	o.Notes += note

	return nil
}

// NewOrderNumber returns a unique order number. Refill orders carry a
// distinguishable prefix so they can be told apart in listings.
func NewOrderNumber(orderType OrderType) string {
	prefix := "ORD-"
	if orderType == OrderTypeRefill {
		prefix = "REF-"
	}

	token := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("%s%s", prefix, token)
}
