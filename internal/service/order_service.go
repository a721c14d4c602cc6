package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"medimart/internal/domain"
	"medimart/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// MaxPlaceOrderAttempts bounds how often a whole order transaction is
	// retried after transient lock contention before giving up.
	MaxPlaceOrderAttempts = 3

	// PlaceOrderBackoffBase is the first retry delay; it doubles per attempt.
	PlaceOrderBackoffBase = 50 * time.Millisecond
)

var (
	ErrEmptyOrder      = errors.New("order must contain at least one line item")
	ErrInvalidQuantity = errors.New("line item quantity must be at least 1")
	ErrOrderContention = errors.New("order aborted due to stock contention, please retry")
)

// ProductNotFoundError identifies the line item that referenced a missing product
type ProductNotFoundError struct {
	ProductID uuid.UUID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InsufficientStockError identifies the line item whose quantity exceeded the
// available stock. Available reflects what was left when the order's own
// transaction held the product lock.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// LineItem is a caller-submitted request to purchase a quantity of a product
type LineItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// OrderService defines the interface for order business logic
type OrderService interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, items []LineItem) (*domain.Order, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Order, int, error)
}

type orderService struct {
	txManager   repository.TxManager
	productRepo repository.ProductRepository
	orderRepo   repository.OrderRepository
	logger      *zap.Logger
	maxAttempts int
	backoffBase time.Duration
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	txManager repository.TxManager,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		txManager:   txManager,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		logger:      logger,
		maxAttempts: MaxPlaceOrderAttempts,
		backoffBase: PlaceOrderBackoffBase,
	}
}

// PlaceOrder atomically reserves stock for every line item and records the
// order. Either the whole order commits, decrements and items and total
// included, or nothing does. Transient lock contention retries the whole
// transaction with exponential backoff; business failures (missing product,
// insufficient stock) abort immediately and leave no trace.
func (s *orderService) PlaceOrder(ctx context.Context, userID uuid.UUID, items []LineItem) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
	}

	backoff := s.backoffBase
	for attempt := 1; ; attempt++ {
		order, err := s.placeOrderTx(ctx, userID, items)
		if err == nil {
			s.logger.Info("Order placed",
				zap.String("order_id", order.ID.String()),
				zap.String("user_id", userID.String()),
				zap.String("total", order.TotalAmount.String()),
				zap.Int("items", len(order.Items)),
			)
			return order, nil
		}

		if !repository.IsContention(err) {
			return nil, err
		}

		if attempt >= s.maxAttempts {
			s.logger.Warn("Order aborted after repeated lock contention",
				zap.String("user_id", userID.String()),
				zap.Int("attempts", attempt),
			)
			return nil, ErrOrderContention
		}

		s.logger.Debug("Retrying order after lock contention",
			zap.String("user_id", userID.String()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// placeOrderTx runs one attempt of the order transaction
func (s *orderService) placeOrderTx(ctx context.Context, userID uuid.UUID, items []LineItem) (*domain.Order, error) {
	var created *domain.Order

	err := s.txManager.WithinTx(ctx, func(q repository.Querier) error {
		// Lock every referenced product in ascending ID order. The global
		// lock order keeps two orders with overlapping product sets from
		// waiting on each other in a cycle.
		locked := make(map[uuid.UUID]*domain.Product, len(items))
		for _, productID := range sortedDistinctProductIDs(items) {
			product, err := s.productRepo.GetForUpdate(ctx, q, productID)
			if err != nil {
				if errors.Is(err, repository.ErrProductNotFound) {
					return &ProductNotFoundError{ProductID: productID}
				}
				return err
			}
			locked[productID] = product
		}

		// Reserve stock per line item in the caller's submission order,
		// snapshotting the live price while the row lock is held.
		total := decimal.Zero
		pending := make([]*domain.OrderItem, 0, len(items))
		for i, item := range items {
			product := locked[item.ProductID]
			if product.Stock < item.Quantity {
				return &InsufficientStockError{
					ProductID: item.ProductID,
					Requested: item.Quantity,
					Available: product.Stock,
				}
			}

			if err := s.productRepo.DecrementStock(ctx, q, item.ProductID, item.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return &InsufficientStockError{
						ProductID: item.ProductID,
						Requested: item.Quantity,
						Available: product.Stock,
					}
				}
				return err
			}
			// Track the remaining stock locally so a later line item for the
			// same product sees what this transaction already reserved.
			product.Stock -= item.Quantity

			pending = append(pending, &domain.OrderItem{
				ID:              uuid.New(),
				ProductID:       item.ProductID,
				Quantity:        item.Quantity,
				PriceAtPurchase: product.Price,
				Position:        i,
			})
			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		// All reservations succeeded; persist the order as a unit.
		order, err := s.orderRepo.Create(ctx, q, userID)
		if err != nil {
			return err
		}
		for _, orderItem := range pending {
			orderItem.OrderID = order.ID
			if err := s.orderRepo.AppendItem(ctx, q, orderItem); err != nil {
				return err
			}
		}
		if err := s.orderRepo.FinalizeTotal(ctx, q, order.ID, total); err != nil {
			return err
		}

		order.TotalAmount = total
		order.Items = pending
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// GetOrder retrieves one of the caller's orders. Orders belonging to other
// users are reported as not found rather than forbidden.
func (s *orderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}

	return order, nil
}

// ListOrders retrieves the caller's order history, newest first
func (s *orderService) ListOrders(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*domain.Order, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	return s.orderRepo.ListByUser(ctx, userID, page, pageSize)
}

// sortedDistinctProductIDs returns the distinct product IDs referenced by
// the line items in ascending bytewise order, which is the global lock order.
func sortedDistinctProductIDs(items []LineItem) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})

	return ids
}
