// Package user manages user accounts, their subscription plans, and persistence.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Plan is a subscription tier. A nil MaxImages means the plan places no cap
// on the number of stored images.
type Plan struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MaxImages *int32 `json:"maxImages,omitempty"`
}

// User represents a registered account. Plan is nil for users without a
// subscription; such users are not subject to any upload cap.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  *string   `json:"fullName,omitempty"`
	Plan      *Plan     `json:"plan,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = errors.New("user not found")

// ErrAlreadyExists is returned when an email is already registered.
var ErrAlreadyExists = errors.New("user already exists")

// Repository handles all user database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user on the named plan and returns the created record.
func (r *Repository) Create(ctx context.Context, email, passwordHash, planName string) (*User, error) {
	u := &User{}
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, plan_id)
		 VALUES ($1, $2, (SELECT id FROM plans WHERE name = $3))
		 RETURNING id, email, full_name, created_at, updated_at`,
		email, passwordHash, planName,
	).Scan(&u.ID, &u.Email, &u.FullName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return r.GetByID(ctx, u.ID)
}

// GetByID fetches a user with their plan by UUID.
func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT u.id, u.email, u.full_name, u.created_at, u.updated_at,
		        p.id, p.name, p.max_images
		 FROM users u
		 LEFT JOIN plans p ON p.id = u.plan_id
		 WHERE u.id = $1`,
		id,
	)
	return scanUserWithPlan(row, "get user by id")
}

// GetByEmail fetches a user with their plan by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT u.id, u.email, u.full_name, u.created_at, u.updated_at,
		        p.id, p.name, p.max_images
		 FROM users u
		 LEFT JOIN plans p ON p.id = u.plan_id
		 WHERE u.email = $1`,
		email,
	)
	return scanUserWithPlan(row, "get user by email")
}

func scanUserWithPlan(row pgx.Row, op string) (*User, error) {
	u := &User{}
	var planID, planName *string
	var maxImages *int32

	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.CreatedAt, &u.UpdatedAt,
		&planID, &planName, &maxImages)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if planID != nil {
		u.Plan = &Plan{ID: *planID, Name: *planName, MaxImages: maxImages}
	}
	return u, nil
}

// isUniqueViolation checks whether an error is a PostgreSQL unique_violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
