package service

import (
	"context"
	"testing"
	"time"

	"medimart/internal/domain"
	"medimart/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type mockCategoryRepository struct {
	categories map[uuid.UUID]*domain.Category
}

func newMockCategoryRepository() *mockCategoryRepository {
	return &mockCategoryRepository{categories: make(map[uuid.UUID]*domain.Category)}
}

func (m *mockCategoryRepository) add(name string) *domain.Category {
	category := &domain.Category{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	m.categories[category.ID] = category
	return category
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	m.categories[category.ID] = category
	return nil
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	var out []*domain.Category
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	category, ok := m.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return category, nil
}

func newProductServiceForTest() (ProductService, *mockProductRepository, *mockCategoryRepository) {
	productRepo := newMockProductRepository()
	categoryRepo := newMockCategoryRepository()
	txManager := &mockTxManager{products: productRepo}
	svc := NewProductService(txManager, productRepo, categoryRepo)
	return svc, productRepo, categoryRepo
}

func TestCreateProduct_RejectsNegativeValues(t *testing.T) {
	svc, _, categoryRepo := newProductServiceForTest()
	category := categoryRepo.add("supplements")

	_, err := svc.CreateProduct(context.Background(), ProductInput{
		CategoryID: category.ID,
		Name:       "tea",
		Price:      decimal.RequireFromString("-1.00"),
	})
	if err != ErrNegativePrice {
		t.Errorf("Expected ErrNegativePrice, got %v", err)
	}

	_, err = svc.CreateProduct(context.Background(), ProductInput{
		CategoryID: category.ID,
		Name:       "tea",
		Price:      decimal.RequireFromString("1.00"),
		Stock:      -5,
	})
	if err != ErrNegativeStock {
		t.Errorf("Expected ErrNegativeStock, got %v", err)
	}
}

func TestCreateProduct_RequiresExistingCategory(t *testing.T) {
	svc, _, _ := newProductServiceForTest()

	_, err := svc.CreateProduct(context.Background(), ProductInput{
		CategoryID: uuid.New(),
		Name:       "tea",
		Price:      decimal.RequireFromString("1.00"),
	})
	if err != repository.ErrCategoryNotFound {
		t.Errorf("Expected ErrCategoryNotFound, got %v", err)
	}
}

func TestGetProduct_HidesInactiveProducts(t *testing.T) {
	svc, productRepo, _ := newProductServiceForTest()

	product := productRepo.add("5.00", 3)
	product.IsActive = false

	_, err := svc.GetProduct(context.Background(), product.ID)
	if err != repository.ErrProductNotFound {
		t.Errorf("Expected ErrProductNotFound for inactive product, got %v", err)
	}

	product.IsActive = true
	got, err := svc.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if got.ID != product.ID {
		t.Errorf("Product ID: got %s, want %s", got.ID, product.ID)
	}
}

func TestRestock_ValidatesQuantityAndAddsStock(t *testing.T) {
	svc, productRepo, _ := newProductServiceForTest()
	product := productRepo.add("5.00", 3)

	for _, quantity := range []int{0, -2} {
		if _, err := svc.Restock(context.Background(), product.ID, quantity); err != ErrInvalidRestock {
			t.Errorf("Quantity %d: expected ErrInvalidRestock, got %v", quantity, err)
		}
	}

	restocked, err := svc.Restock(context.Background(), product.ID, 7)
	if err != nil {
		t.Fatalf("Restock failed: %v", err)
	}
	if restocked.Stock != 10 {
		t.Errorf("Returned stock: got %d, want 10", restocked.Stock)
	}
	if got := productRepo.products[product.ID].Stock; got != 10 {
		t.Errorf("Stored stock: got %d, want 10", got)
	}
}

func TestRestock_MissingProduct(t *testing.T) {
	svc, _, _ := newProductServiceForTest()

	if _, err := svc.Restock(context.Background(), uuid.New(), 5); err != repository.ErrProductNotFound {
		t.Errorf("Expected ErrProductNotFound, got %v", err)
	}
}
