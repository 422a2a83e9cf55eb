package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Nikeeta26/Ecommerse/internal/domain"
	"github.com/Nikeeta26/Ecommerse/internal/repository"
)

// fakeTx satisfies pgx.Tx through embedding; only Commit and Rollback
// are ever called by the services. Repo fakes may defer store writes
// to onCommit so a rolled-back transaction leaves no trace.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	onCommit   []func()
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	for _, apply := range t.onCommit {
		apply()
	}
	t.onCommit = nil
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type fakePool struct {
	txs []*fakeTx
}

func (p *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	tx := &fakeTx{}
	p.txs = append(p.txs, tx)
	return tx, nil
}

func (p *fakePool) lastTx() *fakeTx {
	if len(p.txs) == 0 {
		return nil
	}
	return p.txs[len(p.txs)-1]
}

type fakeProduct struct {
	name        string
	price       decimal.Decimal
	refillPrice *decimal.Decimal
	stock       int32
	deleted     bool
}

type fakeProductRepo struct {
	products map[int64]*fakeProduct
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[int64]*fakeProduct)}
}

func (r *fakeProductRepo) add(id int64, name, price string, stock int32) *fakeProduct {
	p := &fakeProduct{name: name, price: decimal.RequireFromString(price), stock: stock}
	r.products[id] = p
	return p
}

func (r *fakeProductRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	p, ok := r.products[id]
	if !ok || p.deleted {
		return nil, repository.ErrProductNotFound
	}
	return &domain.Product{ID: id, Name: p.name, Price: p.price, RefillPrice: p.refillPrice, Stock: p.stock}, nil
}

func (r *fakeProductRepo) ReserveStock(ctx context.Context, tx pgx.Tx, id int64, quantity int32) (domain.ReservedProduct, error) {
	var reserved domain.ReservedProduct

	p, ok := r.products[id]
	if !ok || p.deleted {
		return reserved, repository.ErrProductNotFound
	}
	if p.stock < quantity {
		return reserved, &domain.InsufficientStockError{
			ProductName: p.name,
			Requested:   quantity,
			Available:   p.stock,
		}
	}

	p.stock -= quantity
	return domain.ReservedProduct{
		ProductID:   id,
		Name:        p.name,
		UnitPrice:   p.price,
		RefillPrice: p.refillPrice,
	}, nil
}

func (r *fakeProductRepo) RestoreStock(ctx context.Context, tx pgx.Tx, id int64, quantity int32) error {
	p, ok := r.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.stock += quantity
	return nil
}

type fakeOrderRepo struct {
	nextID    int64
	orders    map[int64]domain.Order
	conflicts int // UpdateOrder fails with ErrVersionConflict this many times
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[int64]domain.Order)}
}

func (r *fakeOrderRepo) CreateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	r.nextID++
	order.ID = r.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	order.Version = 1

	for i := range order.Items {
		order.Items[i].ID = int64(i + 1)
		order.Items[i].OrderID = order.ID
	}

	r.orders[order.ID] = *order
	return nil
}

func (r *fakeOrderRepo) GetOrder(ctx context.Context, orderID int64) (domain.Order, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, repository.ErrOrderNotFound
	}
	return order, nil
}

func (r *fakeOrderRepo) GetOrderTx(ctx context.Context, tx pgx.Tx, orderID int64) (domain.Order, error) {
	return r.GetOrder(ctx, orderID)
}

func (r *fakeOrderRepo) GetOrderForUser(ctx context.Context, orderID, userID int64) (domain.Order, error) {
	order, ok := r.orders[orderID]
	if !ok || order.UserID != userID {
		return domain.Order{}, repository.ErrOrderNotFound
	}
	return order, nil
}

func (r *fakeOrderRepo) ListOrdersForUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	var result []domain.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			result = append(result, order)
		}
	}
	return result, nil
}

func (r *fakeOrderRepo) FindRefillOrdersBySubscription(ctx context.Context, subscriptionID int64) ([]domain.Order, error) {
	var result []domain.Order
	for _, order := range r.orders {
		if order.Type == domain.OrderTypeRefill && order.SubscriptionID != nil && *order.SubscriptionID == subscriptionID {
			result = append(result, order)
		}
	}
	return result, nil
}

func (r *fakeOrderRepo) UpdateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	if r.conflicts > 0 {
		r.conflicts--
		return repository.ErrVersionConflict
	}

	stored, ok := r.orders[order.ID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if stored.Version != order.Version {
		return repository.ErrVersionConflict
	}

	order.Version++
	r.orders[order.ID] = *order
	return nil
}

type fakeAddressRepo struct {
	addresses map[int64]domain.Address // keyed by address id
	defaults  map[int64]domain.Address // keyed by user id
}

func newFakeAddressRepo() *fakeAddressRepo {
	return &fakeAddressRepo{
		addresses: make(map[int64]domain.Address),
		defaults:  make(map[int64]domain.Address),
	}
}

func (r *fakeAddressRepo) add(id, userID int64) {
	r.addresses[id] = domain.Address{ID: id, UserID: userID}
}

func (r *fakeAddressRepo) addDefault(id, userID int64) {
	address := domain.Address{ID: id, UserID: userID, IsDefault: true}
	r.addresses[id] = address
	r.defaults[userID] = address
}

func (r *fakeAddressRepo) GetByIDForUser(ctx context.Context, id, userID int64) (domain.Address, error) {
	address, ok := r.addresses[id]
	if !ok || address.UserID != userID {
		return domain.Address{}, repository.ErrAddressNotFound
	}
	return address, nil
}

func (r *fakeAddressRepo) GetDefaultForUser(ctx context.Context, userID int64) (domain.Address, error) {
	address, ok := r.defaults[userID]
	if !ok {
		return domain.Address{}, repository.ErrAddressNotFound
	}
	return address, nil
}

type fakeCartRepo struct {
	cleared []int64
	failErr error
}

func (r *fakeCartRepo) Clear(ctx context.Context, userID int64) error {
	if r.failErr != nil {
		return r.failErr
	}
	r.cleared = append(r.cleared, userID)
	return nil
}

type fakeOutboxRepo struct {
	events []*domain.OutboxEvent
}

func (r *fakeOutboxRepo) SaveOutboxEvent(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *fakeOutboxRepo) GetUnpublishedEvents(ctx context.Context, tx pgx.Tx, batchSize int) ([]*domain.OutboxEvent, error) {
	if batchSize > len(r.events) {
		batchSize = len(r.events)
	}
	return r.events[:batchSize], nil
}

func (r *fakeOutboxRepo) MarkEventPublished(ctx context.Context, tx pgx.Tx, eventID int64) error {
	return nil
}

func (r *fakeOutboxRepo) MarkEventFailed(ctx context.Context, tx pgx.Tx, eventID int64, errMsg string) error {
	return nil
}

func (r *fakeOutboxRepo) eventTypes() []string {
	types := make([]string, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.EventType)
	}
	return types
}

type fakeSubscriptionRepo struct {
	subs      map[int64]domain.Subscription
	conflicts int
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{subs: make(map[int64]domain.Subscription)}
}

func (r *fakeSubscriptionRepo) GetByID(ctx context.Context, id int64) (domain.Subscription, error) {
	sub, ok := r.subs[id]
	if !ok {
		return domain.Subscription{}, repository.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (r *fakeSubscriptionRepo) GetByIDForUser(ctx context.Context, id, userID int64) (domain.Subscription, error) {
	sub, ok := r.subs[id]
	if !ok || sub.UserID != userID {
		return domain.Subscription{}, repository.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (r *fakeSubscriptionRepo) ListDue(ctx context.Context, now time.Time) ([]domain.Subscription, error) {
	var due []domain.Subscription
	for _, sub := range r.subs {
		if sub.Active && !now.Before(sub.NextRefillDate) {
			due = append(due, sub)
		}
	}
	return due, nil
}

func (r *fakeSubscriptionRepo) AdvanceNextRefill(ctx context.Context, tx pgx.Tx, sub *domain.Subscription) error {
	if r.conflicts > 0 {
		r.conflicts--
		return repository.ErrVersionConflict
	}

	stored, ok := r.subs[sub.ID]
	if !ok {
		return repository.ErrSubscriptionNotFound
	}
	if stored.Version != sub.Version {
		return repository.ErrVersionConflict
	}

	sub.Version++

	id := sub.ID
	next := sub.NextRefillDate
	version := sub.Version
	apply := func() {
		stored := r.subs[id]
		stored.NextRefillDate = next
		stored.Version = version
		r.subs[id] = stored
	}

	if ftx, ok := tx.(*fakeTx); ok {
		ftx.onCommit = append(ftx.onCommit, apply)
	} else {
		apply()
	}
	return nil
}

func (r *fakeSubscriptionRepo) Deactivate(ctx context.Context, sub *domain.Subscription) error {
	if r.conflicts > 0 {
		r.conflicts--
		return repository.ErrVersionConflict
	}

	stored, ok := r.subs[sub.ID]
	if !ok {
		return repository.ErrSubscriptionNotFound
	}
	if stored.Version != sub.Version {
		return repository.ErrVersionConflict
	}

	sub.Version++
	stored.Active = false
	stored.EndDate = sub.EndDate
	stored.Version = sub.Version
	r.subs[sub.ID] = stored
	return nil
}
