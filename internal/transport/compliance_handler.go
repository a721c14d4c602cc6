package transport

import (
	"errors"
	"net/http"

	"medimart/internal/domain"
	"medimart/internal/middleware"
	"medimart/internal/repository"
	"medimart/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxComplianceUploadBytes bounds multipart uploads (10 MiB)
const maxComplianceUploadBytes = 10 << 20

// ReviewRequest represents the approval decision payload
type ReviewRequest struct {
	ApprovalStatus string `json:"approval_status" validate:"required,oneof=Approved Rejected"`
}

// ComplianceResponse represents a compliance document in API responses
type ComplianceResponse struct {
	ID             string  `json:"id"`
	ProductID      string  `json:"product_id"`
	ApprovalStatus string  `json:"approval_status"`
	UploadedBy     string  `json:"uploaded_by"`
	ApprovedBy     *string `json:"approved_by,omitempty"`
	ApprovedAt     *string `json:"approved_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

// ComplianceHandler handles HTTP requests for the compliance workflow
type ComplianceHandler struct {
	complianceService service.ComplianceService
	logger            *zap.Logger
}

// NewComplianceHandler creates a new ComplianceHandler
func NewComplianceHandler(complianceService service.ComplianceService, logger *zap.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		complianceService: complianceService,
		logger:            logger,
	}
}

// RegisterRoutes registers compliance routes. Uploads require authentication,
// review requires the authority role, deletion requires admin.
func (h *ComplianceHandler) RegisterRoutes(r chi.Router, authMiddleware, authorityMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/compliance", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", h.Upload)

		r.Group(func(r chi.Router) {
			r.Use(authorityMiddleware)
			r.Get("/pending", h.ListPending)
			r.Patch("/{documentID}", h.Review)
		})

		r.Group(func(r chi.Router) {
			r.Use(adminMiddleware)
			r.Delete("/{documentID}", h.Delete)
		})
	})
}

// Upload handles multipart document uploads
func (h *ComplianceHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxComplianceUploadBytes); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	productID, err := uuid.Parse(r.FormValue("product_id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "document file is required")
		return
	}
	defer file.Close()

	doc, err := h.complianceService.Upload(r.Context(), productID, userID, header.Filename, file)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}

		h.logger.Error("Compliance upload failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to upload document")
		return
	}

	h.logger.Info("Compliance document uploaded",
		zap.String("document_id", doc.ID.String()),
		zap.String("product_id", productID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, toComplianceResponse(doc))
}

// ListPending handles listing documents awaiting review (authority)
func (h *ComplianceHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	docs, err := h.complianceService.ListPending(r.Context())
	if err != nil {
		h.logger.Error("Failed to list pending documents", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list pending documents")
		return
	}

	responses := make([]ComplianceResponse, 0, len(docs))
	for _, doc := range docs {
		responses = append(responses, toComplianceResponse(doc))
	}

	middleware.RespondWithJSON(w, http.StatusOK, responses)
}

// Review handles approving or rejecting a document (authority)
func (h *ComplianceHandler) Review(w http.ResponseWriter, r *http.Request) {
	reviewerID, ok := authenticatedUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	documentID, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid document ID")
		return
	}

	var req ReviewRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest,
			"you must supply an approval_status of 'Approved' or 'Rejected'")
		return
	}

	doc, err := h.complianceService.Review(r.Context(), documentID, reviewerID, domain.ApprovalStatus(req.ApprovalStatus))
	if err != nil {
		if errors.Is(err, repository.ErrComplianceDocumentNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "document not found")
			return
		}
		if errors.Is(err, service.ErrInvalidApprovalStatus) {
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		h.logger.Error("Compliance review failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to review document")
		return
	}

	h.logger.Info("Compliance document reviewed",
		zap.String("document_id", doc.ID.String()),
		zap.String("status", string(doc.ApprovalStatus)),
	)
	middleware.RespondWithJSON(w, http.StatusOK, toComplianceResponse(doc))
}

// Delete handles removing a document (admin)
func (h *ComplianceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid document ID")
		return
	}

	if err := h.complianceService.Delete(r.Context(), documentID); err != nil {
		if errors.Is(err, repository.ErrComplianceDocumentNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "document not found")
			return
		}

		h.logger.Error("Compliance delete failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toComplianceResponse(doc *domain.ComplianceDocument) ComplianceResponse {
	response := ComplianceResponse{
		ID:             doc.ID.String(),
		ProductID:      doc.ProductID.String(),
		ApprovalStatus: string(doc.ApprovalStatus),
		UploadedBy:     doc.UploadedBy.String(),
		CreatedAt:      doc.CreatedAt.UTC().Format(timeFormat),
	}

	if doc.ApprovedBy != nil {
		approvedBy := doc.ApprovedBy.String()
		response.ApprovedBy = &approvedBy
	}
	if doc.ApprovedAt != nil {
		approvedAt := doc.ApprovedAt.UTC().Format(timeFormat)
		response.ApprovedAt = &approvedAt
	}

	return response
}
