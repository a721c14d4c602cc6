package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"medimart/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrComplianceDocumentNotFound = errors.New("compliance document not found")
)

// ComplianceRepository defines the interface for compliance document data access
type ComplianceRepository interface {
	Create(ctx context.Context, doc *domain.ComplianceDocument) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ComplianceDocument, error)
	ListByStatus(ctx context.Context, status domain.ApprovalStatus) ([]*domain.ComplianceDocument, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ApprovalStatus, approvedBy uuid.UUID, approvedAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type complianceRepository struct {
	db *sql.DB
}

// NewComplianceRepository creates a new instance of ComplianceRepository
func NewComplianceRepository(db *sql.DB) ComplianceRepository {
	return &complianceRepository{db: db}
}

// Create inserts a new compliance document record using parameterized queries
func (r *complianceRepository) Create(ctx context.Context, doc *domain.ComplianceDocument) error {
	query := `
		INSERT INTO compliance_documents (id, product_id, file_path, uploaded_by, approval_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.ProductID,
		doc.FilePath,
		doc.UploadedBy,
		doc.ApprovalStatus,
		doc.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create compliance document: %w", err)
	}

	return nil
}

// FindByID retrieves a compliance document by ID using parameterized queries
func (r *complianceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ComplianceDocument, error) {
	query := `
		SELECT id, product_id, file_path, uploaded_by, approval_status, approved_by, approved_at, created_at
		FROM compliance_documents
		WHERE id = $1
	`

	doc := &domain.ComplianceDocument{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID,
		&doc.ProductID,
		&doc.FilePath,
		&doc.UploadedBy,
		&doc.ApprovalStatus,
		&doc.ApprovedBy,
		&doc.ApprovedAt,
		&doc.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrComplianceDocumentNotFound
		}
		return nil, fmt.Errorf("failed to find compliance document by ID: %w", err)
	}

	return doc, nil
}

// ListByStatus retrieves all documents with the given approval status
func (r *complianceRepository) ListByStatus(ctx context.Context, status domain.ApprovalStatus) ([]*domain.ComplianceDocument, error) {
	query := `
		SELECT id, product_id, file_path, uploaded_by, approval_status, approved_by, approved_at, created_at
		FROM compliance_documents
		WHERE approval_status = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list compliance documents: %w", err)
	}
	defer rows.Close()

	docs := []*domain.ComplianceDocument{}
	for rows.Next() {
		doc := &domain.ComplianceDocument{}
		err := rows.Scan(
			&doc.ID,
			&doc.ProductID,
			&doc.FilePath,
			&doc.UploadedBy,
			&doc.ApprovalStatus,
			&doc.ApprovedBy,
			&doc.ApprovedAt,
			&doc.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan compliance document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating compliance documents: %w", err)
	}

	return docs, nil
}

// UpdateStatus records the approval decision along with the reviewer and time
func (r *complianceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ApprovalStatus, approvedBy uuid.UUID, approvedAt time.Time) error {
	query := `
		UPDATE compliance_documents
		SET approval_status = $2, approved_by = $3, approved_at = $4
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, approvedBy, approvedAt)
	if err != nil {
		return fmt.Errorf("failed to update compliance document status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrComplianceDocumentNotFound
	}

	return nil
}

// Delete removes a compliance document record using parameterized queries
func (r *complianceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM compliance_documents WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete compliance document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrComplianceDocumentNotFound
	}

	return nil
}
