package repository

import (
	"context"
	"database/sql"
	"fmt"

	"medimart/internal/domain"
)

// ContactRepository defines the interface for contact message data access
type ContactRepository interface {
	Create(ctx context.Context, message *domain.ContactMessage) error
	List(ctx context.Context, page, pageSize int) ([]*domain.ContactMessage, int, error)
}

type contactRepository struct {
	db *sql.DB
}

// NewContactRepository creates a new instance of ContactRepository
func NewContactRepository(db *sql.DB) ContactRepository {
	return &contactRepository{db: db}
}

// Create inserts a new contact message using parameterized queries
func (r *contactRepository) Create(ctx context.Context, message *domain.ContactMessage) error {
	query := `
		INSERT INTO contact_messages (id, name, email, department, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		message.ID,
		message.Name,
		message.Email,
		message.Department,
		message.Message,
		message.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create contact message: %w", err)
	}

	return nil
}

// List retrieves contact messages, newest first, with pagination
func (r *contactRepository) List(ctx context.Context, page, pageSize int) ([]*domain.ContactMessage, int, error) {
	countQuery := `SELECT COUNT(*) FROM contact_messages`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count contact messages: %w", err)
	}

	offset := (page - 1) * pageSize

	query := `
		SELECT id, name, email, department, message, created_at
		FROM contact_messages
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list contact messages: %w", err)
	}
	defer rows.Close()

	messages := []*domain.ContactMessage{}
	for rows.Next() {
		message := &domain.ContactMessage{}
		err := rows.Scan(
			&message.ID,
			&message.Name,
			&message.Email,
			&message.Department,
			&message.Message,
			&message.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan contact message: %w", err)
		}
		messages = append(messages, message)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating contact messages: %w", err)
	}

	return messages, total, nil
}
