package contact

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Message is a persisted contact-form submission.
type Message struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists contact messages in Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// Create inserts a contact message.
func (s *Store) Create(ctx context.Context, msg Message) (Message, error) {
	msg.ID = uuid.NewString()
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO contact_messages (id, name, email, subject, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		msg.ID, msg.Name, msg.Email, msg.Subject, msg.Message,
	)
	if err := row.Scan(&msg.CreatedAt); err != nil {
		return Message{}, err
	}
	return msg, nil
}
