package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Nikeeta26/Ecommerse/internal/domain"
	"github.com/Nikeeta26/Ecommerse/internal/repository"
	"github.com/Nikeeta26/Ecommerse/pkg/logging"
)

// maxTransitionRetries bounds the optimistic-concurrency retry loop on
// status updates before surfacing a conflict.
const maxTransitionRetries = 3

// orderEventsTopic is the fallback when no topic is configured.
const orderEventsTopic = "order_events"

type OrderItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required"`
	Quantity  int32 `json:"quantity" validate:"required,gt=0"`
}

type PlaceOrderRequest struct {
	ShippingAddressID int64              `json:"shipping_address_id" validate:"required"`
	Items             []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes             string             `json:"notes"`
}

type OrderService interface {
	// PlaceOrder converts the user's cart selection into a durable order
	// and clears the cart best-effort afterwards.
	PlaceOrder(ctx context.Context, principal domain.Principal, req PlaceOrderRequest) (domain.Order, error)
	// PlaceDirectOrder is the buy-now path: same algorithm, no cart involved.
	PlaceDirectOrder(ctx context.Context, principal domain.Principal, req PlaceOrderRequest) (domain.Order, error)
	// CreateRefillOrder places an auto-generated order from an active
	// subscription's items, shipped to the user's default address. It
	// runs inside the caller's transaction so the refill date advance
	// and the order commit or roll back together.
	CreateRefillOrder(ctx context.Context, tx pgx.Tx, sub domain.Subscription) (domain.Order, error)

	UpdateStatus(ctx context.Context, orderID int64, next domain.OrderStatus) (domain.Order, error)
	Cancel(ctx context.Context, principal domain.Principal, orderID int64, reason string) (domain.Order, error)

	GetOrderForUser(ctx context.Context, principal domain.Principal, orderID int64) (domain.Order, error)
	ListOrdersForUser(ctx context.Context, userID int64) ([]domain.Order, error)
	FindRefillOrdersBySubscription(ctx context.Context, subscriptionID int64) ([]domain.Order, error)
}

type orderService struct {
	pool        TxBeginner
	logger      *zap.Logger
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	addressRepo repository.AddressRepository
	cartRepo    repository.CartRepository
	outboxRepo  repository.OutboxRepository
	pricing     *PricingCalculator
	eventsTopic string
	validate    *validator.Validate
	cartBreaker *gobreaker.CircuitBreaker
	tracer      trace.Tracer
}

func NewOrderService(
	pool TxBeginner,
	logger *zap.Logger,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	addressRepo repository.AddressRepository,
	cartRepo repository.CartRepository,
	outboxRepo repository.OutboxRepository,
	pricing *PricingCalculator,
	eventsTopic string,
) OrderService {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "cart_clear",
	})

	if eventsTopic == "" {
		eventsTopic = orderEventsTopic
	}

	return &orderService{
		pool:        pool,
		logger:      logger,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		addressRepo: addressRepo,
		cartRepo:    cartRepo,
		outboxRepo:  outboxRepo,
		pricing:     pricing,
		eventsTopic: eventsTopic,
		validate:    validator.New(),
		cartBreaker: breaker,
		tracer:      otel.Tracer("order_service"),
	}
}

func (s *orderService) PlaceOrder(ctx context.Context, principal domain.Principal, req PlaceOrderRequest) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.PlaceOrder")
	defer span.End()

	order, err := s.place(ctx, principal.UserID, req)
	if err != nil {
		return domain.Order{}, err
	}

	// Clearing the cart is deliberately outside the placement
	// transaction: the order already committed and must not be rolled
	// back if the cart collaborator misbehaves.
	if _, err := s.cartBreaker.Execute(func() (interface{}, error) {
		return nil, s.cartRepo.Clear(ctx, principal.UserID)
	}); err != nil {
		logging.Error(
			ctx,
			s.logger,
			"Failed to clear cart after order placement",
			zap.Int64("user_id", principal.UserID),
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)
	}

	return order, nil
}

func (s *orderService) PlaceDirectOrder(ctx context.Context, principal domain.Principal, req PlaceOrderRequest) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.PlaceDirectOrder")
	defer span.End()

	return s.place(ctx, principal.UserID, req)
}

// place runs the full placement algorithm inside a single transaction:
// validate, authorize the address, reserve stock for every item
// (all-or-nothing), snapshot prices, price the order, persist, and
// write the outbox event.
func (s *orderService) place(ctx context.Context, userID int64, req PlaceOrderRequest) (domain.Order, error) {
	var o domain.Order

	if err := s.validate.Struct(req); err != nil {
		return o, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	address, err := s.addressRepo.GetByIDForUser(ctx, req.ShippingAddressID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAddressNotFound) {
			return o, fmt.Errorf("shipping address %d: %w", req.ShippingAddressID, domain.ErrNotFound)
		}
		return o, fmt.Errorf("failed to resolve shipping address: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		logging.Error(ctx, s.logger, "Failed to begin transaction", zap.Error(err))
		return o, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logging.Warn(cleanupCtx, s.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, itemReq := range req.Items {
		reserved, err := s.productRepo.ReserveStock(ctx, tx, itemReq.ProductID, itemReq.Quantity)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return o, fmt.Errorf("product %d: %w", itemReq.ProductID, domain.ErrNotFound)
			}
			return o, err
		}

		item := domain.OrderItem{
			ProductID: reserved.ProductID,
			Name:      reserved.Name,
			UnitPrice: reserved.UnitPrice,
			Quantity:  itemReq.Quantity,
		}
		item.Subtotal = item.ComputeSubtotal()

		items = append(items, item)
	}

	quote := s.pricing.Price(items)

	addressID := address.ID
	order := domain.Order{
		OrderNumber:       domain.NewOrderNumber(domain.OrderTypeRegular),
		UserID:            userID,
		ShippingAddressID: &addressID,
		Status:            domain.OrderStatusPending,
		Type:              domain.OrderTypeRegular,
		Items:             items,
		Subtotal:          quote.Subtotal,
		Tax:               quote.Tax,
		ShippingCost:      quote.Shipping,
		Total:             quote.Total,
		Notes:             req.Notes,
	}

	if err := s.orderRepo.CreateOrder(ctx, tx, &order); err != nil {
		return o, fmt.Errorf("failed to create order: %w", err)
	}

	if err := s.emitOrderPlaced(ctx, tx, order); err != nil {
		return o, err
	}

	if err := tx.Commit(ctx); err != nil {
		logging.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return o, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.Info(
		ctx,
		s.logger,
		"Order placed",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("user_id", userID),
	)

	return order, nil
}

func (s *orderService) CreateRefillOrder(ctx context.Context, tx pgx.Tx, sub domain.Subscription) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateRefillOrder")
	defer span.End()

	span.SetAttributes(attribute.Int64("subscription_id", sub.ID))

	var o domain.Order

	if !sub.Active {
		return o, fmt.Errorf("%w: subscription %d is not active", domain.ErrInvalidRequest, sub.ID)
	}
	if len(sub.Items) == 0 {
		return o, fmt.Errorf("%w: subscription %d has no items", domain.ErrInvalidRequest, sub.ID)
	}

	// Refill orders ship to the default address when the user has one.
	var addressID *int64
	if address, err := s.addressRepo.GetDefaultForUser(ctx, sub.UserID); err == nil {
		addressID = &address.ID
	} else if !errors.Is(err, repository.ErrAddressNotFound) {
		return o, fmt.Errorf("failed to resolve default address: %w", err)
	}

	items := make([]domain.OrderItem, 0, len(sub.Items))
	for _, subItem := range sub.Items {
		reserved, err := s.productRepo.ReserveStock(ctx, tx, subItem.ProductID, subItem.Quantity)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return o, fmt.Errorf("product %d: %w", subItem.ProductID, domain.ErrNotFound)
			}
			return o, err
		}

		// A refill pays the dedicated refill price when the product
		// has one, the regular price otherwise.
		unitPrice := reserved.UnitPrice
		if reserved.RefillPrice != nil {
			unitPrice = *reserved.RefillPrice
		}

		item := domain.OrderItem{
			ProductID: reserved.ProductID,
			Name:      reserved.Name,
			UnitPrice: unitPrice,
			Quantity:  subItem.Quantity,
		}
		item.Subtotal = item.ComputeSubtotal()

		items = append(items, item)
	}

	quote := s.pricing.PriceRefill(items)

	subscriptionID := sub.ID
	order := domain.Order{
		OrderNumber:       domain.NewOrderNumber(domain.OrderTypeRefill),
		UserID:            sub.UserID,
		ShippingAddressID: addressID,
		Status:            domain.OrderStatusProcessing,
		Type:              domain.OrderTypeRefill,
		SubscriptionID:    &subscriptionID,
		Items:             items,
		Subtotal:          quote.Subtotal,
		Tax:               quote.Tax,
		ShippingCost:      quote.Shipping,
		Total:             quote.Total,
	}

	if err := s.orderRepo.CreateOrder(ctx, tx, &order); err != nil {
		return o, fmt.Errorf("failed to create refill order: %w", err)
	}

	if err := s.emitOrderPlaced(ctx, tx, order); err != nil {
		return o, err
	}

	return order, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, orderID int64, next domain.OrderStatus) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
		attribute.String("next_status", string(next)),
	)

	if _, err := domain.ToOrderStatus(string(next)); err != nil {
		return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	return s.transition(ctx, orderID, next, "", nil)
}

func (s *orderService) Cancel(ctx context.Context, principal domain.Principal, orderID int64, reason string) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Cancel")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
		attribute.Int64("user_id", principal.UserID),
	)

	return s.transition(ctx, orderID, domain.OrderStatusCancelled, reason, &principal)
}

// transition is the single implementation behind UpdateStatus and
// Cancel: both entry points into CANCELLED share the compensating stock
// restoration so the behaviors cannot diverge. Each attempt runs in its
// own transaction; a lost optimistic-version race rolls everything back
// (including the restoration) and retries on a fresh read.
func (s *orderService) transition(ctx context.Context, orderID int64, next domain.OrderStatus, reason string, principal *domain.Principal) (domain.Order, error) {
	var o domain.Order

	for attempt := 0; attempt < maxTransitionRetries; attempt++ {
		order, retry, err := s.tryTransition(ctx, orderID, next, reason, principal)
		if err == nil {
			return order, nil
		}
		if !retry {
			return o, err
		}

		logging.Warn(
			ctx,
			s.logger,
			"Order transition lost a version race, retrying",
			zap.Int64("order_id", orderID),
			zap.Int("attempt", attempt+1),
		)
	}

	return o, fmt.Errorf("order %d: %w", orderID, domain.ErrConflict)
}

func (s *orderService) tryTransition(ctx context.Context, orderID int64, next domain.OrderStatus, reason string, principal *domain.Principal) (_ domain.Order, retry bool, _ error) {
	var o domain.Order

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		logging.Error(ctx, s.logger, "Failed to begin transaction", zap.Error(err))
		return o, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logging.Warn(cleanupCtx, s.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	order, err := s.orderRepo.GetOrderTx(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return o, false, fmt.Errorf("order %d: %w", orderID, domain.ErrNotFound)
		}
		return o, false, err
	}

	if principal != nil && !principal.CanManageOrder(order.UserID) {
		return o, false, fmt.Errorf("order %d: %w", orderID, domain.ErrForbidden)
	}

	oldStatus := order.Status
	now := time.Now()

	if next == domain.OrderStatusCancelled {
		if err := order.Cancel(reason, now); err != nil {
			return o, false, err
		}

		// Compensate the reservation made at placement. The terminal
		// CANCELLED state guarantees this branch runs at most once per
		// order; a rollback below undoes it together with the status.
		for _, item := range order.Items {
			if err := s.productRepo.RestoreStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return o, false, fmt.Errorf("failed to restore stock: %w", err)
			}
		}
	} else {
		if err := order.Transition(next, now); err != nil {
			return o, false, err
		}
	}

	if err := s.orderRepo.UpdateOrder(ctx, tx, &order); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return o, true, err
		}
		return o, false, err
	}

	if err := s.emitStatusEvents(ctx, tx, order, oldStatus, reason); err != nil {
		return o, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		logging.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return o, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.Info(
		ctx,
		s.logger,
		"Order status changed",
		zap.Int64("order_id", order.ID),
		zap.String("from", string(oldStatus)),
		zap.String("to", string(order.Status)),
	)

	return order, false, nil
}

func (s *orderService) GetOrderForUser(ctx context.Context, principal domain.Principal, orderID int64) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrderForUser")
	defer span.End()

	order, err := s.orderRepo.GetOrderForUser(ctx, orderID, principal.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return domain.Order{}, fmt.Errorf("order %d: %w", orderID, domain.ErrNotFound)
		}
		return domain.Order{}, err
	}

	return order, nil
}

func (s *orderService) ListOrdersForUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListOrdersForUser")
	defer span.End()

	return s.orderRepo.ListOrdersForUser(ctx, userID)
}

func (s *orderService) FindRefillOrdersBySubscription(ctx context.Context, subscriptionID int64) ([]domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.FindRefillOrdersBySubscription")
	defer span.End()

	return s.orderRepo.FindRefillOrdersBySubscription(ctx, subscriptionID)
}

func (s *orderService) emitOrderPlaced(ctx context.Context, tx pgx.Tx, order domain.Order) error {
	event := domain.OrderPlacedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		OrderType:   order.Type,
		Total:       order.Total,
		Items:       eventItems(order.Items),
		PlacedAt:    order.CreatedAt,
	}

	return s.emitEvent(ctx, tx, order.ID, "OrderPlaced", event)
}

func (s *orderService) emitStatusEvents(ctx context.Context, tx pgx.Tx, order domain.Order, oldStatus domain.OrderStatus, reason string) error {
	statusEvent := domain.OrderStatusChangedEvent{
		OrderID:   order.ID,
		OldStatus: oldStatus,
		NewStatus: order.Status,
		ChangedAt: order.UpdatedAt,
	}

	if err := s.emitEvent(ctx, tx, order.ID, "OrderStatusChanged", statusEvent); err != nil {
		return err
	}

	if order.Status != domain.OrderStatusCancelled {
		return nil
	}

	cancelledEvent := domain.OrderCancelledEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Reason:      reason,
		Items:       eventItems(order.Items),
		CancelledAt: order.UpdatedAt,
	}

	return s.emitEvent(ctx, tx, order.ID, "OrderCancelled", cancelledEvent)
}

func (s *orderService) emitEvent(ctx context.Context, tx pgx.Tx, orderID int64, eventType string, payload any) error {
	wrapper := map[string]any{
		"event":   eventType,
		"payload": payload,
	}

	payloadBytes, err := json.Marshal(wrapper)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	outboxEvent := &domain.OutboxEvent{
		AggregateType: "Order",
		AggregateID:   fmt.Sprintf("%d", orderID),
		EventType:     eventType,
		Payload:       payloadBytes,
		Topic:         s.eventsTopic,
	}

	if err := s.outboxRepo.SaveOutboxEvent(ctx, tx, outboxEvent); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	return nil
}

func eventItems(items []domain.OrderItem) []domain.EventItem {
	return lo.Map(items, func(item domain.OrderItem, _ int) domain.EventItem {
		return domain.EventItem{ProductID: item.ProductID, Quantity: item.Quantity}
	})
}
