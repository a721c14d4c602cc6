package domain

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus is the review state of a compliance document
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "Pending"
	ApprovalStatusApproved ApprovalStatus = "Approved"
	ApprovalStatusRejected ApprovalStatus = "Rejected"
)

// ComplianceDocument is a regulatory document attached to a product.
// It starts Pending and is approved or rejected by an authority user.
type ComplianceDocument struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	ProductID      uuid.UUID      `json:"product_id" db:"product_id"`
	FilePath       string         `json:"file_path" db:"file_path"`
	UploadedBy     uuid.UUID      `json:"uploaded_by" db:"uploaded_by"`
	ApprovalStatus ApprovalStatus `json:"approval_status" db:"approval_status"`
	ApprovedBy     *uuid.UUID     `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt     *time.Time     `json:"approved_at,omitempty" db:"approved_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}
