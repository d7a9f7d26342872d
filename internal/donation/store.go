package donation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Status tracks the lifecycle of a persisted donation record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Record is the persisted representation of a donation.
//
// The donation flow itself does not write records yet: intents and checkout
// sessions are created without a pending row, and the webhook ingestor logs
// outcomes without updating one. The type defines the intended data shape and
// backs the admin listing endpoint.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	PaymentID string    `json:"paymentId,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DB is the subset of pgxpool.Pool the store relies on.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists donation records in Postgres.
type Store struct {
	Pool DB
}

// Create inserts a pending donation record.
func (s *Store) Create(ctx context.Context, name, email string, amount int64, currency, paymentID string) (Record, error) {
	rec := Record{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Amount:    amount,
		Currency:  currency,
		PaymentID: paymentID,
		Status:    StatusPending,
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO donations (id, name, email, amount, currency, payment_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		rec.ID, rec.Name, rec.Email, rec.Amount, rec.Currency, rec.PaymentID, rec.Status,
	)
	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// UpdateStatusByPayment transitions the record matching a processor payment id.
func (s *Store) UpdateStatusByPayment(ctx context.Context, paymentID string, status Status) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE donations SET status = $2, updated_at = now()
		WHERE payment_id = $1`,
		paymentID, status,
	)
	return err
}

// List pages through donation records, newest first.
func (s *Store) List(ctx context.Context, page, perPage int) ([]Record, int64, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	rows, err := s.Pool.Query(ctx, `
		SELECT id, name, email, amount, currency, payment_id, status, created_at, updated_at
		FROM donations
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		perPage, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := make([]Record, 0, perPage)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Email, &rec.Amount, &rec.Currency, &rec.PaymentID, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM donations`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
