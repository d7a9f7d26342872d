package user

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User is an account created through OAuth login, keyed by email.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists users in Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// FindOrCreateByEmail returns the user for the given email, creating it on
// first login. A non-empty name from the identity provider refreshes the
// stored one.
func (s *Store) FindOrCreateByEmail(ctx context.Context, email, name string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u := User{ID: uuid.NewString(), Email: email, Name: strings.TrimSpace(name)}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
		SET name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name)
		RETURNING id, email, name, created_at`,
		u.ID, u.Email, u.Name,
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt); err != nil {
		return User{}, err
	}
	return u, nil
}

// GetByID fetches a user by identifier.
func (s *Store) GetByID(ctx context.Context, id string) (User, error) {
	var u User
	row := s.Pool.QueryRow(ctx, `
		SELECT id, email, name, created_at FROM users WHERE id = $1`, id)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt); err != nil {
		return User{}, err
	}
	return u, nil
}
