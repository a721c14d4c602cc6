package service

import (
	"context"
	"errors"
	"time"

	"medimart/internal/domain"
	"medimart/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrUnknownDepartment = errors.New("unknown contact department")
)

var validDepartments = map[string]bool{
	domain.DepartmentPharma:    true,
	domain.DepartmentSurgical:  true,
	domain.DepartmentImports:   true,
	domain.DepartmentAcademic:  true,
	domain.DepartmentEcommerce: true,
	domain.DepartmentOther:     true,
}

// ContactService defines the interface for contact message intake
type ContactService interface {
	Submit(ctx context.Context, name, email, department, message string) (*domain.ContactMessage, error)
	List(ctx context.Context, page, pageSize int) ([]*domain.ContactMessage, int, error)
}

type contactService struct {
	contactRepo repository.ContactRepository
}

// NewContactService creates a new instance of ContactService
func NewContactService(contactRepo repository.ContactRepository) ContactService {
	return &contactService{contactRepo: contactRepo}
}

// Submit records an enquiry from the public contact form
func (s *contactService) Submit(ctx context.Context, name, email, department, message string) (*domain.ContactMessage, error) {
	if !validDepartments[department] {
		return nil, ErrUnknownDepartment
	}

	contactMessage := &domain.ContactMessage{
		ID:         uuid.New(),
		Name:       name,
		Email:      email,
		Department: department,
		Message:    message,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.contactRepo.Create(ctx, contactMessage); err != nil {
		return nil, err
	}

	return contactMessage, nil
}

// List retrieves submitted messages, newest first
func (s *contactService) List(ctx context.Context, page, pageSize int) ([]*domain.ContactMessage, int, error) {
	page, pageSize = normalizePaging(page, pageSize)
	return s.contactRepo.List(ctx, page, pageSize)
}
