package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"medimart/internal/domain"
	"medimart/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrInvalidApprovalStatus = errors.New("approval status must be Approved or Rejected")
)

// ComplianceService defines the interface for the compliance document workflow
type ComplianceService interface {
	Upload(ctx context.Context, productID, uploadedBy uuid.UUID, filename string, contents io.Reader) (*domain.ComplianceDocument, error)
	ListPending(ctx context.Context) ([]*domain.ComplianceDocument, error)
	Review(ctx context.Context, id, reviewerID uuid.UUID, status domain.ApprovalStatus) (*domain.ComplianceDocument, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type complianceService struct {
	complianceRepo repository.ComplianceRepository
	productRepo    repository.ProductRepository
	storageDir     string
}

// NewComplianceService creates a new instance of ComplianceService.
// Uploaded files are stored under storageDir.
func NewComplianceService(
	complianceRepo repository.ComplianceRepository,
	productRepo repository.ProductRepository,
	storageDir string,
) ComplianceService {
	return &complianceService{
		complianceRepo: complianceRepo,
		productRepo:    productRepo,
		storageDir:     storageDir,
	}
}

// Upload stores the document file and records it as Pending for the product
func (s *complianceService) Upload(ctx context.Context, productID, uploadedBy uuid.UUID, filename string, contents io.Reader) (*domain.ComplianceDocument, error) {
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		return nil, err
	}

	docID := uuid.New()
	// Prefix with the document ID so uploads cannot collide or escape the dir
	storedName := docID.String() + "_" + filepath.Base(filename)
	storedPath := filepath.Join(s.storageDir, storedName)

	if err := os.MkdirAll(s.storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create compliance storage dir: %w", err)
	}

	f, err := os.Create(storedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to store compliance document: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, contents); err != nil {
		os.Remove(storedPath)
		return nil, fmt.Errorf("failed to write compliance document: %w", err)
	}

	doc := &domain.ComplianceDocument{
		ID:             docID,
		ProductID:      productID,
		FilePath:       storedPath,
		UploadedBy:     uploadedBy,
		ApprovalStatus: domain.ApprovalStatusPending,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.complianceRepo.Create(ctx, doc); err != nil {
		os.Remove(storedPath)
		return nil, err
	}

	return doc, nil
}

// ListPending retrieves all documents awaiting review
func (s *complianceService) ListPending(ctx context.Context) ([]*domain.ComplianceDocument, error) {
	return s.complianceRepo.ListByStatus(ctx, domain.ApprovalStatusPending)
}

// Review approves or rejects a document, recording the reviewer and the time
func (s *complianceService) Review(ctx context.Context, id, reviewerID uuid.UUID, status domain.ApprovalStatus) (*domain.ComplianceDocument, error) {
	if status != domain.ApprovalStatusApproved && status != domain.ApprovalStatusRejected {
		return nil, ErrInvalidApprovalStatus
	}

	reviewedAt := time.Now().UTC()
	if err := s.complianceRepo.UpdateStatus(ctx, id, status, reviewerID, reviewedAt); err != nil {
		return nil, err
	}

	return s.complianceRepo.FindByID(ctx, id)
}

// Delete removes a document record and its stored file
func (s *complianceService) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := s.complianceRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.complianceRepo.Delete(ctx, id); err != nil {
		return err
	}

	// The record is the source of truth; a missing file is not an error
	if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove compliance document file: %w", err)
	}

	return nil
}
