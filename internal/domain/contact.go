package domain

import (
	"time"

	"github.com/google/uuid"
)

// Departments a contact message can be routed to
const (
	DepartmentPharma    = "Pharma"
	DepartmentSurgical  = "Surgical"
	DepartmentImports   = "Imports"
	DepartmentAcademic  = "Academic"
	DepartmentEcommerce = "Ecommerce"
	DepartmentOther     = "Other"
)

// ContactMessage is an enquiry submitted through the public contact form
type ContactMessage struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Email      string    `json:"email" db:"email"`
	Department string    `json:"department" db:"department"`
	Message    string    `json:"message" db:"message"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
