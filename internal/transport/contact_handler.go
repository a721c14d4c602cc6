package transport

import (
	"errors"
	"net/http"
	"strconv"

	"medimart/internal/domain"
	"medimart/internal/middleware"
	"medimart/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ContactRequest represents the contact form payload
type ContactRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Department string `json:"department" validate:"required"`
	Message    string `json:"message" validate:"required"`
}

// ContactResponse represents a contact message in API responses
type ContactResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
	Message    string `json:"message"`
	CreatedAt  string `json:"created_at"`
}

// ContactListResponse is a paginated contact message listing
type ContactListResponse struct {
	Messages []ContactResponse `json:"messages"`
	Total    int               `json:"total"`
}

// ContactHandler handles HTTP requests for contact messages
type ContactHandler struct {
	contactService service.ContactService
	logger         *zap.Logger
}

// NewContactHandler creates a new ContactHandler
func NewContactHandler(contactService service.ContactService, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{
		contactService: contactService,
		logger:         logger,
	}
}

// RegisterRoutes registers contact routes. Submission is public, listing is
// admin only.
func (h *ContactHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/contact", func(r chi.Router) {
		r.Post("/", h.Submit)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(adminMiddleware)
			r.Get("/", h.List)
		})
	})
}

// Submit handles contact form submissions
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := h.contactService.Submit(r.Context(), req.Name, req.Email, req.Department, req.Message)
	if err != nil {
		if errors.Is(err, service.ErrUnknownDepartment) {
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		h.logger.Error("Contact submission failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to submit message")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, toContactResponse(message))
}

// List handles retrieving submitted messages (admin)
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	messages, total, err := h.contactService.List(r.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("Failed to list contact messages", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	response := ContactListResponse{
		Messages: make([]ContactResponse, 0, len(messages)),
		Total:    total,
	}
	for _, message := range messages {
		response.Messages = append(response.Messages, toContactResponse(message))
	}

	middleware.RespondWithJSON(w, http.StatusOK, response)
}

func toContactResponse(message *domain.ContactMessage) ContactResponse {
	return ContactResponse{
		ID:         message.ID.String(),
		Name:       message.Name,
		Email:      message.Email,
		Department: message.Department,
		Message:    message.Message,
		CreatedAt:  message.CreatedAt.UTC().Format(timeFormat),
	}
}
