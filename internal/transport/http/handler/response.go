package handler

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/Nikeeta26/Ecommerse/internal/domain"
)

type OrderItemResponse struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int32           `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type OrderResponse struct {
	ID                int64               `json:"id"`
	OrderNumber       string              `json:"order_number"`
	Status            string              `json:"status"`
	Type              string              `json:"type"`
	ShippingAddressID *int64              `json:"shipping_address_id,omitempty"`
	SubscriptionID    *int64              `json:"subscription_id,omitempty"`
	Items             []OrderItemResponse `json:"items"`
	Subtotal          decimal.Decimal     `json:"subtotal"`
	Tax               decimal.Decimal     `json:"tax"`
	ShippingCost      decimal.Decimal     `json:"shipping_cost"`
	Total             decimal.Decimal     `json:"total"`
	Notes             string              `json:"notes,omitempty"`
	TrackingNumber    *string             `json:"tracking_number,omitempty"`
	CancelledReason   *string             `json:"cancelled_reason,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	ShippedAt         *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time          `json:"cancelled_at,omitempty"`
}

func toOrderResponse(order domain.Order) OrderResponse {
	return OrderResponse{
		ID:                order.ID,
		OrderNumber:       order.OrderNumber,
		Status:            string(order.Status),
		Type:              string(order.Type),
		ShippingAddressID: order.ShippingAddressID,
		SubscriptionID:    order.SubscriptionID,
		Items:             lo.Map(order.Items, func(item domain.OrderItem, _ int) OrderItemResponse { return toOrderItemResponse(item) }),
		Subtotal:          order.Subtotal,
		Tax:               order.Tax,
		ShippingCost:      order.ShippingCost,
		Total:             order.Total,
		Notes:             order.Notes,
		TrackingNumber:    order.TrackingNumber,
		CancelledReason:   order.CancelledReason,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
		ShippedAt:         order.ShippedAt,
		DeliveredAt:       order.DeliveredAt,
		CancelledAt:       order.CancelledAt,
	}
}

func toOrderItemResponse(item domain.OrderItem) OrderItemResponse {
	return OrderItemResponse{
		ProductID: item.ProductID,
		Name:      item.Name,
		UnitPrice: item.UnitPrice,
		Quantity:  item.Quantity,
		Subtotal:  item.Subtotal,
	}
}

type ProductResponse struct {
	ID                   int64            `json:"id"`
	Name                 string           `json:"name"`
	Price                decimal.Decimal  `json:"price"`
	RefillPrice          *decimal.Decimal `json:"refill_price,omitempty"`
	Stock                int32            `json:"stock"`
	Reusable             bool             `json:"reusable"`
	RequiresSubscription bool             `json:"requires_subscription"`
}

func toProductResponse(product *domain.Product) ProductResponse {
	return ProductResponse{
		ID:                   product.ID,
		Name:                 product.Name,
		Price:                product.Price,
		RefillPrice:          product.RefillPrice,
		Stock:                product.Stock,
		Reusable:             product.Reusable,
		RequiresSubscription: product.RequiresSubscription,
	}
}
