package service

import (
	"context"
	"errors"
	"testing"

	"medimart/internal/domain"
	"medimart/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// mockTxManager runs the transaction function directly. On error it restores
// the product mock to its pre-transaction state, mirroring a rollback.
type mockTxManager struct {
	products *mockProductRepository
	began    int
}

func (m *mockTxManager) WithinTx(ctx context.Context, fn func(q repository.Querier) error) error {
	m.began++

	var snapshot map[uuid.UUID]domain.Product
	if m.products != nil {
		snapshot = make(map[uuid.UUID]domain.Product, len(m.products.products))
		for id, p := range m.products.products {
			snapshot[id] = *p
		}
	}

	if err := fn(nil); err != nil {
		if m.products != nil {
			m.products.products = make(map[uuid.UUID]*domain.Product, len(snapshot))
			for id := range snapshot {
				p := snapshot[id]
				m.products.products[id] = &p
			}
		}
		return err
	}
	return nil
}

type mockProductRepository struct {
	products map[uuid.UUID]*domain.Product

	// lockSequence records every GetForUpdate call in order
	lockSequence []uuid.UUID

	// lockErrors maps a product ID to an error its next GetForUpdate returns
	lockErrors map[uuid.UUID]error
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products:   make(map[uuid.UUID]*domain.Product),
		lockErrors: make(map[uuid.UUID]error),
	}
}

func (m *mockProductRepository) add(price string, stock int) *domain.Product {
	product := &domain.Product{
		ID:       uuid.New(),
		Name:     "product " + uuid.NewString(),
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	m.products[product.ID] = product
	return product
}

func (m *mockProductRepository) GetForUpdate(ctx context.Context, q repository.Querier, id uuid.UUID) (*domain.Product, error) {
	m.lockSequence = append(m.lockSequence, id)

	if err, ok := m.lockErrors[id]; ok {
		delete(m.lockErrors, id)
		return nil, err
	}

	product, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	copied := *product
	return &copied, nil
}

func (m *mockProductRepository) DecrementStock(ctx context.Context, q repository.Querier, id uuid.UUID, quantity int) error {
	product, ok := m.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	if product.Stock < quantity {
		return repository.ErrInsufficientStock
	}
	product.Stock -= quantity
	return nil
}

func (m *mockProductRepository) IncrementStock(ctx context.Context, q repository.Querier, id uuid.UUID, quantity int) error {
	product, ok := m.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	product.Stock += quantity
	return nil
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	copied := *product
	return &copied, nil
}

func (m *mockProductRepository) List(ctx context.Context, categoryID *uuid.UUID, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	var out []*domain.Product
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockProductRepository) Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	return nil, 0, nil
}

type mockOrderRepository struct {
	orders map[uuid.UUID]*domain.Order
	items  map[uuid.UUID][]*domain.OrderItem
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{
		orders: make(map[uuid.UUID]*domain.Order),
		items:  make(map[uuid.UUID][]*domain.OrderItem),
	}
}

func (m *mockOrderRepository) Create(ctx context.Context, q repository.Querier, userID uuid.UUID) (*domain.Order, error) {
	order := &domain.Order{
		ID:          uuid.New(),
		UserID:      userID,
		TotalAmount: decimal.Zero,
		Status:      domain.OrderStatusPending,
	}
	m.orders[order.ID] = order
	return order, nil
}

func (m *mockOrderRepository) AppendItem(ctx context.Context, q repository.Querier, item *domain.OrderItem) error {
	if _, ok := m.orders[item.OrderID]; !ok {
		return repository.ErrOrderNotFound
	}
	m.items[item.OrderID] = append(m.items[item.OrderID], item)
	return nil
}

func (m *mockOrderRepository) FinalizeTotal(ctx context.Context, q repository.Querier, orderID uuid.UUID, total decimal.Decimal) error {
	order, ok := m.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	order.TotalAmount = total
	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	copied := *order
	copied.Items = m.items[id]
	return &copied, nil
}

func (m *mockOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Order, int, error) {
	var out []*domain.Order
	for _, order := range m.orders {
		if order.UserID == userID {
			out = append(out, order)
		}
	}
	return out, len(out), nil
}

func newOrderServiceForTest() (OrderService, *mockProductRepository, *mockOrderRepository, *mockTxManager) {
	productRepo := newMockProductRepository()
	orderRepo := newMockOrderRepository()
	txManager := &mockTxManager{products: productRepo}
	svc := NewOrderService(txManager, productRepo, orderRepo, zap.NewNop())
	return svc, productRepo, orderRepo, txManager
}

func TestPlaceOrder_RejectsEmptyOrder(t *testing.T) {
	svc, _, _, txManager := newOrderServiceForTest()

	_, err := svc.PlaceOrder(context.Background(), uuid.New(), nil)
	if err != ErrEmptyOrder {
		t.Errorf("Expected ErrEmptyOrder, got %v", err)
	}
	if txManager.began != 0 {
		t.Errorf("No transaction should start for an empty order, got %d", txManager.began)
	}
}

func TestPlaceOrder_RejectsNonPositiveQuantity(t *testing.T) {
	svc, productRepo, _, txManager := newOrderServiceForTest()
	product := productRepo.add("10.00", 5)

	for _, quantity := range []int{0, -1} {
		_, err := svc.PlaceOrder(context.Background(), uuid.New(), []LineItem{
			{ProductID: product.ID, Quantity: quantity},
		})
		if err != ErrInvalidQuantity {
			t.Errorf("Quantity %d: expected ErrInvalidQuantity, got %v", quantity, err)
		}
	}
	if txManager.began != 0 {
		t.Errorf("No transaction should start for invalid quantities, got %d", txManager.began)
	}
}

func TestPlaceOrder_SnapshotsPricesAndComputesTotal(t *testing.T) {
	svc, productRepo, orderRepo, _ := newOrderServiceForTest()

	tea := productRepo.add("4.50", 10)
	balm := productRepo.add("12.99", 3)
	userID := uuid.New()

	order, err := svc.PlaceOrder(context.Background(), userID, []LineItem{
		{ProductID: tea.ID, Quantity: 2},
		{ProductID: balm.ID, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	wantTotal := decimal.RequireFromString("21.99") // 2*4.50 + 1*12.99
	if !order.TotalAmount.Equal(wantTotal) {
		t.Errorf("Total: got %s, want %s", order.TotalAmount, wantTotal)
	}
	if order.UserID != userID {
		t.Errorf("UserID: got %s, want %s", order.UserID, userID)
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("Status: got %s, want %s", order.Status, domain.OrderStatusPending)
	}

	// Items keep submission order and the price seen under lock
	if len(order.Items) != 2 {
		t.Fatalf("Item count: got %d, want 2", len(order.Items))
	}
	if order.Items[0].ProductID != tea.ID || order.Items[0].Position != 0 {
		t.Errorf("First item out of submission order: %+v", order.Items[0])
	}
	if !order.Items[0].PriceAtPurchase.Equal(tea.Price) {
		t.Errorf("First item price: got %s, want %s", order.Items[0].PriceAtPurchase, tea.Price)
	}
	if order.Items[1].ProductID != balm.ID || order.Items[1].Position != 1 {
		t.Errorf("Second item out of submission order: %+v", order.Items[1])
	}

	// Stock was reserved
	if got := productRepo.products[tea.ID].Stock; got != 8 {
		t.Errorf("Tea stock: got %d, want 8", got)
	}
	if got := productRepo.products[balm.ID].Stock; got != 2 {
		t.Errorf("Balm stock: got %d, want 2", got)
	}

	// The order was persisted, not just returned
	persisted, err := orderRepo.FindByID(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Order not persisted: %v", err)
	}
	if !persisted.TotalAmount.Equal(wantTotal) {
		t.Errorf("Persisted total: got %s, want %s", persisted.TotalAmount, wantTotal)
	}
}

func TestPlaceOrder_LocksProductsInAscendingIDOrder(t *testing.T) {
	svc, productRepo, _, _ := newOrderServiceForTest()

	var items []LineItem
	for i := 0; i < 6; i++ {
		product := productRepo.add("1.00", 100)
		items = append(items, LineItem{ProductID: product.ID, Quantity: 1})
	}
	// Duplicate a product so distinctness is exercised too
	items = append(items, LineItem{ProductID: items[0].ProductID, Quantity: 1})

	if _, err := svc.PlaceOrder(context.Background(), uuid.New(), items); err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	locked := productRepo.lockSequence
	if len(locked) != 6 {
		t.Fatalf("Lock count: got %d, want 6 distinct locks", len(locked))
	}
	for i := 1; i < len(locked); i++ {
		if uuidLess(locked[i], locked[i-1]) {
			t.Fatalf("Locks not in ascending ID order: %v", locked)
		}
	}
}

func uuidLess(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func TestPlaceOrder_DuplicateLineItemsShareOneStockPool(t *testing.T) {
	svc, productRepo, orderRepo, _ := newOrderServiceForTest()
	product := productRepo.add("2.00", 5)

	// 3 + 3 exceeds the 5 in stock even though each line alone fits
	_, err := svc.PlaceOrder(context.Background(), uuid.New(), []LineItem{
		{ProductID: product.ID, Quantity: 3},
		{ProductID: product.ID, Quantity: 3},
	})

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}
	if stockErr.Requested != 3 || stockErr.Available != 2 {
		t.Errorf("Error details: got requested=%d available=%d, want 3 and 2", stockErr.Requested, stockErr.Available)
	}

	// Nothing committed: stock back to 5, no orders recorded
	if got := productRepo.products[product.ID].Stock; got != 5 {
		t.Errorf("Stock after abort: got %d, want 5", got)
	}
	if len(orderRepo.orders) != 0 {
		t.Errorf("Aborted order left %d order rows", len(orderRepo.orders))
	}

	// 3 + 2 fits exactly
	order, err := svc.PlaceOrder(context.Background(), uuid.New(), []LineItem{
		{ProductID: product.ID, Quantity: 3},
		{ProductID: product.ID, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("Total: got %s, want 10.00", order.TotalAmount)
	}
	if got := productRepo.products[product.ID].Stock; got != 0 {
		t.Errorf("Stock after exact fit: got %d, want 0", got)
	}
}

func TestPlaceOrder_MissingProductAbortsEverything(t *testing.T) {
	svc, productRepo, orderRepo, _ := newOrderServiceForTest()
	product := productRepo.add("3.00", 10)
	missing := uuid.New()

	_, err := svc.PlaceOrder(context.Background(), uuid.New(), []LineItem{
		{ProductID: product.ID, Quantity: 2},
		{ProductID: missing, Quantity: 1},
	})

	var notFound *ProductNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected ProductNotFoundError, got %v", err)
	}
	if notFound.ProductID != missing {
		t.Errorf("Error product: got %s, want %s", notFound.ProductID, missing)
	}

	if got := productRepo.products[product.ID].Stock; got != 10 {
		t.Errorf("Stock after abort: got %d, want 10", got)
	}
	if len(orderRepo.orders) != 0 {
		t.Errorf("Aborted order left %d order rows", len(orderRepo.orders))
	}
}

func TestPlaceOrder_RetriesTransientContention(t *testing.T) {
	svc, productRepo, _, txManager := newOrderServiceForTest()
	product := productRepo.add("7.00", 4)

	// First attempt hits a lock timeout, second succeeds
	productRepo.lockErrors[product.ID] = &pgconn.PgError{Code: "55P03"}

	order, err := svc.PlaceOrder(context.Background(), uuid.New(), []LineItem{
		{ProductID: product.ID, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if txManager.began != 2 {
		t.Errorf("Attempts: got %d, want 2", txManager.began)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("7.00")) {
		t.Errorf("Total: got %s, want 7.00", order.TotalAmount)
	}
}

func TestPlaceOrder_GivesUpAfterRepeatedContention(t *testing.T) {
	productRepo := newMockProductRepository()
	orderRepo := newMockOrderRepository()
	txManager := &mockTxManager{products: productRepo}
	svc := NewOrderService(txManager, &alwaysContendedProductRepository{productRepo}, orderRepo, zap.NewNop())

	product := productRepo.add("1.00", 10)

	_, err := svc.PlaceOrder(context.Background(), uuid.New(), []LineItem{
		{ProductID: product.ID, Quantity: 1},
	})
	if err != ErrOrderContention {
		t.Fatalf("Expected ErrOrderContention, got %v", err)
	}
	if txManager.began != MaxPlaceOrderAttempts {
		t.Errorf("Attempts: got %d, want %d", txManager.began, MaxPlaceOrderAttempts)
	}
}

// alwaysContendedProductRepository fails every lock attempt with a deadlock
type alwaysContendedProductRepository struct {
	*mockProductRepository
}

func (m *alwaysContendedProductRepository) GetForUpdate(ctx context.Context, q repository.Querier, id uuid.UUID) (*domain.Product, error) {
	return nil, &pgconn.PgError{Code: "40P01"}
}

func TestGetOrder_HidesOtherUsersOrders(t *testing.T) {
	svc, productRepo, _, _ := newOrderServiceForTest()
	product := productRepo.add("5.00", 5)

	owner := uuid.New()
	order, err := svc.PlaceOrder(context.Background(), owner, []LineItem{
		{ProductID: product.ID, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	// The owner sees it
	if _, err := svc.GetOrder(context.Background(), owner, order.ID); err != nil {
		t.Errorf("Owner could not fetch order: %v", err)
	}

	// Anyone else gets not-found, not forbidden
	if _, err := svc.GetOrder(context.Background(), uuid.New(), order.ID); err != repository.ErrOrderNotFound {
		t.Errorf("Expected ErrOrderNotFound for foreign order, got %v", err)
	}
}

func TestProperty_OrderTotalEqualsSumOfSnapshotPrices(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("total is exactly the sum of price times quantity per line", prop.ForAll(
		func(centPrices []int, quantities []int) bool {
			if len(centPrices) == 0 {
				return true
			}
			if len(quantities) > len(centPrices) {
				quantities = quantities[:len(centPrices)]
			}

			svc, productRepo, _, _ := newOrderServiceForTest()

			var items []LineItem
			want := decimal.Zero
			for i, cents := range centPrices {
				quantity := 1
				if i < len(quantities) {
					quantity = quantities[i]
				}

				price := decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100))
				product := productRepo.add(price.String(), quantity)
				items = append(items, LineItem{ProductID: product.ID, Quantity: quantity})
				want = want.Add(price.Mul(decimal.NewFromInt(int64(quantity))))
			}

			order, err := svc.PlaceOrder(context.Background(), uuid.New(), items)
			if err != nil {
				t.Logf("PlaceOrder failed: %v", err)
				return false
			}

			return order.TotalAmount.Equal(want)
		},
		gen.SliceOfN(5, gen.IntRange(1, 100000)),
		gen.SliceOfN(5, gen.IntRange(1, 50)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
