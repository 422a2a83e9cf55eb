package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nikeeta26/Ecommerse/internal/domain"
)

type orderServiceFixture struct {
	pool        *fakePool
	orderRepo   *fakeOrderRepo
	productRepo *fakeProductRepo
	addressRepo *fakeAddressRepo
	cartRepo    *fakeCartRepo
	outboxRepo  *fakeOutboxRepo
	service     OrderService
}

func newOrderServiceFixture(t *testing.T) *orderServiceFixture {
	t.Helper()

	f := &orderServiceFixture{
		pool:        &fakePool{},
		orderRepo:   newFakeOrderRepo(),
		productRepo: newFakeProductRepo(),
		addressRepo: newFakeAddressRepo(),
		cartRepo:    &fakeCartRepo{},
		outboxRepo:  &fakeOutboxRepo{},
	}

	pricing, err := NewPricingCalculator("0.10", "10.00")
	require.NoError(t, err)

	f.service = NewOrderService(
		f.pool, zap.NewNop(),
		f.orderRepo, f.productRepo, f.addressRepo, f.cartRepo, f.outboxRepo,
		pricing, testEventsTopic,
	)

	return f
}

const (
	testUserID      = int64(42)
	testAddressID   = int64(7)
	testEventsTopic = "test_order_events"
)

func (f *orderServiceFixture) seedUserWithAddress() {
	f.addressRepo.add(testAddressID, testUserID)
}

func userPrincipal() domain.Principal {
	return domain.Principal{UserID: testUserID, Role: domain.RoleUser}
}

func placeRequest(productID int64, quantity int32) PlaceOrderRequest {
	return PlaceOrderRequest{
		ShippingAddressID: testAddressID,
		Items:             []OrderItemRequest{{ProductID: productID, Quantity: quantity}},
	}
}

func TestPlaceDirectOrder_HappyPath(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.seedUserWithAddress()
	f.productRepo.add(1, "Dish Soap", "29.99", 10)

	order, err := f.service.PlaceDirectOrder(context.Background(), userPrincipal(), placeRequest(1, 2))
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.OrderTypeRegular, order.Type)
	assert.Regexp(t, `^ORD-`, order.OrderNumber)
	assert.Equal(t, testUserID, order.UserID)
	require.NotNil(t, order.ShippingAddressID)
	assert.Equal(t, testAddressID, *order.ShippingAddressID)

	require.Len(t, order.Items, 1)
	assert.Equal(t, "Dish Soap", order.Items[0].Name)
	assert.True(t, order.Items[0].UnitPrice.Equal(decimal.RequireFromString("29.99")))

	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("59.98")))
	assert.True(t, order.Tax.Equal(decimal.RequireFromString("5.998")))
	assert.True(t, order.ShippingCost.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, order.Total.Equal(decimal.RequireFromString("75.978")))

	assert.Equal(t, int32(8), f.productRepo.products[1].stock)
	assert.True(t, f.pool.lastTx().committed)
	assert.Equal(t, []string{"OrderPlaced"}, f.outboxRepo.eventTypes())
	assert.Equal(t, testEventsTopic, f.outboxRepo.events[0].Topic, "events carry the configured topic")
}

func TestPlaceOrder_ClearsCart(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.seedUserWithAddress()
	f.productRepo.add(1, "Sponges", "4.99", 5)

	_, err := f.service.PlaceOrder(context.Background(), userPrincipal(), placeRequest(1, 1))
	require.NoError(t, err)

	assert.Equal(t, []int64{testUserID}, f.cartRepo.cleared)
}

func TestPlaceOrder_CartClearFailureDoesNotFailPlacement(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.seedUserWithAddress()
	f.productRepo.add(1, "Sponges", "4.99", 5)
	f.cartRepo.failErr = errors.New("cart service down")

	order, err := f.service.PlaceOrder(context.Background(), userPrincipal(), placeRequest(1, 1))
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Len(t, f.orderRepo.orders, 1)
}

func TestPlaceDirectOrder_Validation(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.seedUserWithAddress()
	f.productRepo.add(1, "Soap", "5.00", 5)

	cases := map[string]PlaceOrderRequest{
		"no items": {ShippingAddressID: testAddressID},
		"zero quantity": {
			ShippingAddressID: testAddressID,
			Items:             []OrderItemRequest{{ProductID: 1, Quantity: 0}},
		},
		"negative quantity": {
			ShippingAddressID: testAddressID,
			Items:             []OrderItemRequest{{ProductID: 1, Quantity: -3}},
		},
		"no address": {
			Items: []OrderItemRequest{{ProductID: 1, Quantity: 1}},
		},
	}

	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.service.PlaceDirectOrder(context.Background(), userPrincipal(), req)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}

	assert.Empty(t, f.orderRepo.orders)
}

func TestPlaceDirectOrder_ForeignAddress(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.addressRepo.add(testAddressID, 999) // someone else's address
	f.productRepo.add(1, "Soap", "5.00", 5)

	_, err := f.service.PlaceDirectOrder(context.Background(), userPrincipal(), placeRequest(1, 1))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.orderRepo.orders)
}

func TestPlaceDirectOrder_UnknownProduct(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.seedUserWithAddress()

	_, err := f.service.PlaceDirectOrder(context.Background(), userPrincipal(), placeRequest(404, 1))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.orderRepo.orders)
	assert.True(t, f.pool.lastTx().rolledBack)
}

func TestPlaceDirectOrder_InsufficientStock(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.seedUserWithAddress()
	f.productRepo.add(1, "Detergent", "15.00", 3)

	_, err := f.service.PlaceDirectOrder(context.Background(), userPrincipal(), placeRequest(1, 5))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Detergent", stockErr.ProductName)
	assert.Equal(t, int32(5), stockErr.Requested)
	assert.Equal(t, int32(3), stockErr.Available)

	assert.Empty(t, f.orderRepo.orders)
	assert.Empty(t, f.outboxRepo.events)
	assert.True(t, f.pool.lastTx().rolledBack)
}

func TestPlaceDirectOrder_PriceSnapshotSurvivesPriceChange(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.seedUserWithAddress()
	f.productRepo.add(1, "Soap", "5.00", 5)

	order, err := f.service.PlaceDirectOrder(context.Background(), userPrincipal(), placeRequest(1, 1))
	require.NoError(t, err)

	f.productRepo.products[1].price = decimal.RequireFromString("9.99")

	stored, err := f.service.GetOrderForUser(context.Background(), userPrincipal(), order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Items[0].UnitPrice.Equal(decimal.RequireFromString("5.00")))
}

func TestCancel_RestoresStockOnce(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.seedUserWithAddress()
	f.productRepo.add(1, "Soap", "5.00", 10)

	order, err := f.service.PlaceDirectOrder(context.Background(), userPrincipal(), placeRequest(1, 4))
	require.NoError(t, err)
	require.Equal(t, int32(6), f.productRepo.products[1].stock)

	cancelled, err := f.service.Cancel(context.Background(), userPrincipal(), order.ID, "changed my mind")
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledReason)
	assert.Equal(t, "changed my mind", *cancelled.CancelledReason)
	assert.Equal(t, int32(10), f.productRepo.products[1].stock)

	// a second cancellation must fail and must not restore again
	_, err = f.service.Cancel(context.Background(), userPrincipal(), order.ID, "again")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, int32(10), f.productRepo.products[1].stock)

	assert.Contains(t, f.outboxRepo.eventTypes(), "OrderStatusChanged")
	assert.Contains(t, f.outboxRepo.eventTypes(), "OrderCancelled")
}

func TestCancel_ShippedOrderRejected(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.seedUserWithAddress()
	f.productRepo.add(1, "Soap", "5.00", 10)

	order, err := f.service.PlaceDirectOrder(context.Background(), userPrincipal(), placeRequest(1, 2))
	require.NoError(t, err)

	_, err = f.service.UpdateStatus(context.Background(), order.ID, domain.OrderStatusProcessing)
	require.NoError(t, err)
	_, err = f.service.UpdateStatus(context.Background(), order.ID, domain.OrderStatusShipped)
	require.NoError(t, err)

	_, err = f.service.Cancel(context.Background(), userPrincipal(), order.ID, "too late")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, int32(8), f.productRepo.products[1].stock, "no restoration on rejected cancel")
}

func TestCancel_Authorization(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.seedUserWithAddress()
	f.productRepo.add(1, "Soap", "5.00", 10)

	order, err := f.service.PlaceDirectOrder(context.Background(), userPrincipal(), placeRequest(1, 1))
	require.NoError(t, err)

	stranger := domain.Principal{UserID: 999, Role: domain.RoleUser}
	_, err = f.service.Cancel(context.Background(), stranger, order.ID, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	admin := domain.Principal{UserID: 999, Role: domain.RoleAdmin}
	cancelled, err := f.service.Cancel(context.Background(), admin, order.ID, "fraud check")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
}

func TestUpdateStatus_FullLifecycle(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.seedUserWithAddress()
	f.productRepo.add(1, "Soap", "5.00", 10)

	order, err := f.service.PlaceDirectOrder(context.Background(), userPrincipal(), placeRequest(1, 1))
	require.NoError(t, err)

	for _, next := range []domain.OrderStatus{
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
		domain.OrderStatusRefunded,
	} {
		order, err = f.service.UpdateStatus(context.Background(), order.ID, next)
		require.NoError(t, err, "to %s", next)
		assert.Equal(t, next, order.Status)
	}

	assert.NotNil(t, order.ShippedAt)
	assert.NotNil(t, order.DeliveredAt)
}

func TestUpdateStatus_SkippingAStepRejected(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.seedUserWithAddress()
	f.productRepo.add(1, "Soap", "5.00", 10)

	order, err := f.service.PlaceDirectOrder(context.Background(), userPrincipal(), placeRequest(1, 1))
	require.NoError(t, err)

	_, err = f.service.UpdateStatus(context.Background(), order.ID, domain.OrderStatusDelivered)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	f := newOrderServiceFixture(t)

	_, err := f.service.UpdateStatus(context.Background(), 1, domain.OrderStatus("teleported"))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestUpdateStatus_UnknownOrder(t *testing.T) {
	f := newOrderServiceFixture(t)

	_, err := f.service.UpdateStatus(context.Background(), 404, domain.OrderStatusProcessing)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateStatus_RetriesVersionConflict(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.seedUserWithAddress()
	f.productRepo.add(1, "Soap", "5.00", 10)

	order, err := f.service.PlaceDirectOrder(context.Background(), userPrincipal(), placeRequest(1, 1))
	require.NoError(t, err)

	f.orderRepo.conflicts = 1

	updated, err := f.service.UpdateStatus(context.Background(), order.ID, domain.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, updated.Status)
}

func TestUpdateStatus_GivesUpAfterRetries(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.seedUserWithAddress()
	f.productRepo.add(1, "Soap", "5.00", 10)

	order, err := f.service.PlaceDirectOrder(context.Background(), userPrincipal(), placeRequest(1, 1))
	require.NoError(t, err)

	f.orderRepo.conflicts = maxTransitionRetries

	_, err = f.service.UpdateStatus(context.Background(), order.ID, domain.OrderStatusProcessing)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCreateRefillOrder(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.addressRepo.addDefault(testAddressID, testUserID)

	refillPrice := decimal.RequireFromString("19.99")
	f.productRepo.add(1, "Filter", "24.99", 10).refillPrice = &refillPrice
	f.productRepo.add(2, "Hose", "8.00", 10)

	sub := domain.Subscription{
		ID:     5,
		UserID: testUserID,
		Active: true,
		Items: []domain.SubscriptionItem{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
	}

	tx, err := f.pool.Begin(context.Background())
	require.NoError(t, err)

	order, err := f.service.CreateRefillOrder(context.Background(), tx, sub)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))

	assert.Equal(t, domain.OrderStatusProcessing, order.Status)
	assert.Equal(t, domain.OrderTypeRefill, order.Type)
	assert.Regexp(t, `^REF-`, order.OrderNumber)
	require.NotNil(t, order.SubscriptionID)
	assert.Equal(t, int64(5), *order.SubscriptionID)
	require.NotNil(t, order.ShippingAddressID)
	assert.Equal(t, testAddressID, *order.ShippingAddressID)

	// refill price for the product that has one, regular price otherwise
	require.Len(t, order.Items, 2)
	assert.True(t, order.Items[0].UnitPrice.Equal(refillPrice))
	assert.True(t, order.Items[1].UnitPrice.Equal(decimal.RequireFromString("8.00")))

	// 39.98 + 8.00, no tax, no shipping
	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("47.98")))
	assert.True(t, order.Tax.IsZero())
	assert.True(t, order.ShippingCost.IsZero())
	assert.True(t, order.Total.Equal(order.Subtotal))
}

func TestCreateRefillOrder_NoDefaultAddress(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.productRepo.add(1, "Filter", "24.99", 10)

	sub := domain.Subscription{
		ID:     5,
		UserID: testUserID,
		Active: true,
		Items:  []domain.SubscriptionItem{{ProductID: 1, Quantity: 1}},
	}

	tx, err := f.pool.Begin(context.Background())
	require.NoError(t, err)

	order, err := f.service.CreateRefillOrder(context.Background(), tx, sub)
	require.NoError(t, err)
	assert.Nil(t, order.ShippingAddressID)
}

func TestCreateRefillOrder_Rejections(t *testing.T) {
	f := newOrderServiceFixture(t)

	tx, err := f.pool.Begin(context.Background())
	require.NoError(t, err)

	_, err = f.service.CreateRefillOrder(context.Background(), tx, domain.Subscription{ID: 1, Active: false})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.service.CreateRefillOrder(context.Background(), tx, domain.Subscription{ID: 1, Active: true})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest, "no items")
}

func TestGetOrderForUser_NotFoundForStranger(t *testing.T) {
	f := newOrderServiceFixture(t)
	f.seedUserWithAddress()
	f.productRepo.add(1, "Soap", "5.00", 10)

	order, err := f.service.PlaceDirectOrder(context.Background(), userPrincipal(), placeRequest(1, 1))
	require.NoError(t, err)

	stranger := domain.Principal{UserID: 999, Role: domain.RoleUser}
	_, err = f.service.GetOrderForUser(context.Background(), stranger, order.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
