package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lifecycle events written to the outbox in the same transaction as the
// order mutation they describe.

type OrderPlacedEvent struct {
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      int64           `json:"user_id"`
	OrderType   OrderType       `json:"order_type"`
	Total       decimal.Decimal `json:"total"`
	Items       []EventItem     `json:"items"`
	PlacedAt    time.Time       `json:"placed_at"`
}

type OrderCancelledEvent struct {
	OrderID     int64       `json:"order_id"`
	UserID      int64       `json:"user_id"`
	Reason      string      `json:"reason"`
	Items       []EventItem `json:"items"`
	CancelledAt time.Time   `json:"cancelled_at"`
}

type OrderStatusChangedEvent struct {
	OrderID   int64       `json:"order_id"`
	OldStatus OrderStatus `json:"old_status"`
	NewStatus OrderStatus `json:"new_status"`
	ChangedAt time.Time   `json:"changed_at"`
}

type RefillOrderCreatedEvent struct {
	OrderID        int64     `json:"order_id"`
	SubscriptionID int64     `json:"subscription_id"`
	UserID         int64     `json:"user_id"`
	NextRefillDate time.Time `json:"next_refill_date"`
}

type EventItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}
