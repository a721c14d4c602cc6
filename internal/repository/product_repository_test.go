package repository

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"medimart/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func createTestCategory(t *testing.T, name string) *domain.Category {
	t.Helper()

	repo := NewCategoryRepository(testDB)
	category := &domain.Category{
		ID:          uuid.New(),
		Name:        name,
		Description: "test category",
		CreatedAt:   time.Now(),
	}
	if err := repo.Create(context.Background(), category); err != nil {
		t.Fatalf("Failed to create category: %v", err)
	}
	t.Cleanup(func() {
		_, _ = testDB.Exec("DELETE FROM categories WHERE id = $1", category.ID)
	})
	return category
}

func createTestProduct(t *testing.T, categoryID uuid.UUID, price string, stock int) *domain.Product {
	t.Helper()

	repo := NewProductRepository(testDB)
	product := &domain.Product{
		ID:          uuid.New(),
		CategoryID:  categoryID,
		Name:        "test product " + uuid.NewString(),
		Description: "test",
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
		IsActive:    true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := repo.Create(context.Background(), product); err != nil {
		t.Fatalf("Failed to create product: %v", err)
	}
	t.Cleanup(func() {
		_, _ = testDB.Exec("DELETE FROM products WHERE id = $1", product.ID)
	})
	return product
}

func TestProperty_ProductCreationPreservesAttributes(t *testing.T) {
	productRepo := NewProductRepository(testDB)
	category := createTestCategory(t, "attributes-"+uuid.NewString())

	properties := gopter.NewProperties(nil)

	properties.Property("creating and retrieving a product preserves all attributes", prop.ForAll(
		func(name string, description string, cents int, stock int) bool {
			ctx := context.Background()

			price := decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100))
			product := &domain.Product{
				ID:          uuid.New(),
				CategoryID:  category.ID,
				Name:        name,
				Description: description,
				Price:       price,
				Stock:       stock,
				IsActive:    true,
				CreatedAt:   time.Now(),
				UpdatedAt:   time.Now(),
			}

			if err := productRepo.Create(ctx, product); err != nil {
				t.Logf("Failed to create product: %v", err)
				return false
			}
			defer testDB.Exec("DELETE FROM products WHERE id = $1", product.ID)

			retrieved, err := productRepo.FindByID(ctx, product.ID)
			if err != nil {
				t.Logf("Failed to find product: %v", err)
				return false
			}

			return retrieved.Name == name &&
				retrieved.Description == description &&
				retrieved.Price.Equal(price) &&
				retrieved.Stock == stock &&
				retrieved.CategoryID == category.ID
		},
		gen.RegexMatch(`[A-Za-z][A-Za-z0-9 ]{2,40}`),
		gen.RegexMatch(`[A-Za-z0-9 .,]{0,100}`),
		gen.IntRange(0, 1000000),
		gen.IntRange(0, 10000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProductRepository_DecrementStockGuard(t *testing.T) {
	productRepo := NewProductRepository(testDB)
	category := createTestCategory(t, "guard-"+uuid.NewString())
	product := createTestProduct(t, category.ID, "9.99", 5)

	ctx := context.Background()

	// Requesting more than available must fail and leave stock untouched
	err := productRepo.DecrementStock(ctx, testDB, product.ID, 6)
	if err != ErrInsufficientStock {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}

	retrieved, err := productRepo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("Failed to find product: %v", err)
	}
	if retrieved.Stock != 5 {
		t.Errorf("Stock changed after failed decrement: got %d, want 5", retrieved.Stock)
	}

	// An exact decrement to zero succeeds
	if err := productRepo.DecrementStock(ctx, testDB, product.ID, 5); err != nil {
		t.Fatalf("Failed to decrement stock: %v", err)
	}

	retrieved, err = productRepo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("Failed to find product: %v", err)
	}
	if retrieved.Stock != 0 {
		t.Errorf("Stock after decrement: got %d, want 0", retrieved.Stock)
	}

	// Any further decrement fails
	if err := productRepo.DecrementStock(ctx, testDB, product.ID, 1); err != ErrInsufficientStock {
		t.Errorf("Expected ErrInsufficientStock on empty stock, got %v", err)
	}
}

func TestProductRepository_ConcurrentDecrementsNeverOversell(t *testing.T) {
	productRepo := NewProductRepository(testDB)
	category := createTestCategory(t, "concurrent-"+uuid.NewString())

	// 10 units of stock, 20 goroutines each taking 1: exactly 10 must succeed
	product := createTestProduct(t, category.ID, "4.50", 10)

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- productRepo.DecrementStock(context.Background(), testDB, product.ID, 1)
		}()
	}
	wg.Wait()
	close(results)

	succeeded, failed := 0, 0
	for err := range results {
		switch err {
		case nil:
			succeeded++
		case ErrInsufficientStock:
			failed++
		default:
			t.Fatalf("Unexpected error from decrement: %v", err)
		}
	}

	if succeeded != 10 || failed != 10 {
		t.Errorf("Expected 10 successes and 10 failures, got %d and %d", succeeded, failed)
	}

	retrieved, err := productRepo.FindByID(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("Failed to find product: %v", err)
	}
	if retrieved.Stock != 0 {
		t.Errorf("Final stock: got %d, want 0", retrieved.Stock)
	}
}

func TestProductRepository_SearchMatchesNameCaseInsensitive(t *testing.T) {
	productRepo := NewProductRepository(testDB)
	category := createTestCategory(t, "search-"+uuid.NewString())

	marker := strings.ReplaceAll(uuid.NewString(), "-", "")
	product := createTestProduct(t, category.ID, "3.25", 1)
	product.Name = "Vitamin " + marker
	if err := productRepo.Update(context.Background(), product); err != nil {
		t.Fatalf("Failed to update product: %v", err)
	}

	found, total, err := productRepo.Search(context.Background(), strings.ToUpper(marker), 1, 20)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 1 || len(found) != 1 {
		t.Fatalf("Expected exactly one match, got total=%d len=%d", total, len(found))
	}
	if found[0].ID != product.ID {
		t.Errorf("Search returned wrong product: got %s, want %s", found[0].ID, product.ID)
	}
}
