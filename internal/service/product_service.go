package service

import (
	"context"
	"errors"
	"time"

	"medimart/internal/domain"
	"medimart/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNegativePrice  = errors.New("product price must not be negative")
	ErrNegativeStock  = errors.New("product stock must not be negative")
	ErrInvalidRestock = errors.New("restock quantity must be at least 1")
)

// ProductInput carries the attributes for creating or updating a product
type ProductInput struct {
	CategoryID  uuid.UUID
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	ImageURL    string
	IsActive    bool
}

// ProductService defines the interface for catalog business logic
type ProductService interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListProducts(ctx context.Context, categoryID *uuid.UUID, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error)
	SearchProducts(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)

	CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	Restock(ctx context.Context, id uuid.UUID, quantity int) (*domain.Product, error)
}

type productService struct {
	txManager    repository.TxManager
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	txManager repository.TxManager,
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
) ProductService {
	return &productService{
		txManager:    txManager,
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
	}
}

// GetProduct retrieves an active product by ID. Inactive products are hidden
// from the storefront and reported as not found.
func (s *productService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !product.IsActive {
		return nil, repository.ErrProductNotFound
	}

	return product, nil
}

// ListProducts retrieves the catalog with optional category filter
func (s *productService) ListProducts(ctx context.Context, categoryID *uuid.UUID, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	page, pageSize = normalizePaging(page, pageSize)
	return s.productRepo.List(ctx, categoryID, page, pageSize, sortBy, sortOrder)
}

// SearchProducts searches the catalog by name or description
func (s *productService) SearchProducts(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	page, pageSize = normalizePaging(page, pageSize)
	return s.productRepo.Search(ctx, query, page, pageSize)
}

// ListCategories retrieves all categories
func (s *productService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.categoryRepo.List(ctx)
}

// CreateProduct adds a product to the catalog
func (s *productService) CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	if _, err := s.categoryRepo.FindByID(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:          uuid.New(),
		CategoryID:  input.CategoryID,
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Stock:       input.Stock,
		ImageURL:    input.ImageURL,
		IsActive:    input.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

// UpdateProduct replaces a product's attributes
func (s *productService) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	product.CategoryID = input.CategoryID
	product.Name = input.Name
	product.Description = input.Description
	product.Price = input.Price
	product.Stock = input.Stock
	product.ImageURL = input.ImageURL
	product.IsActive = input.IsActive
	product.UpdatedAt = time.Now().UTC()

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

// DeleteProduct removes a product from the catalog
func (s *productService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.productRepo.Delete(ctx, id)
}

// Restock adds stock through the same locked read-modify-write primitive the
// order flow uses, so restocks and order decrements serialize on the same
// row lock.
func (s *productService) Restock(ctx context.Context, id uuid.UUID, quantity int) (*domain.Product, error) {
	if quantity < 1 {
		return nil, ErrInvalidRestock
	}

	var restocked *domain.Product
	err := s.txManager.WithinTx(ctx, func(q repository.Querier) error {
		product, err := s.productRepo.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}

		if err := s.productRepo.IncrementStock(ctx, q, id, quantity); err != nil {
			return err
		}

		product.Stock += quantity
		restocked = product
		return nil
	})
	if err != nil {
		return nil, err
	}

	return restocked, nil
}

func validateProductInput(input ProductInput) error {
	if input.Price.IsNegative() {
		return ErrNegativePrice
	}
	if input.Stock < 0 {
		return ErrNegativeStock
	}
	return nil
}

func normalizePaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
