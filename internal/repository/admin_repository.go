package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/mathcourse-portal/internal/model"
)

// AdminRepository handles admin identity data access.
type AdminRepository struct {
	db pgExecutor
}

// NewAdminRepository creates a new AdminRepository.
func NewAdminRepository(db pgExecutor) *AdminRepository {
	return &AdminRepository{db: db}
}

const adminColumns = `id, email, full_name, password_hash, created_at, updated_at`

// GetByEmail retrieves an admin by their unique email. A single indexed
// lookup; the email is matched exactly as stored.
func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (*model.Admin, error) {
	a := &model.Admin{}
	err := r.db.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admin_users WHERE email = $1`, email,
	).Scan(&a.ID, &a.Email, &a.FullName, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return a, nil
}

// GetByID retrieves an admin by ID.
func (r *AdminRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Admin, error) {
	a := &model.Admin{}
	err := r.db.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admin_users WHERE id = $1`, id,
	).Scan(&a.ID, &a.Email, &a.FullName, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return a, nil
}

// Create inserts a new admin.
func (r *AdminRepository) Create(ctx context.Context, a *model.Admin) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO admin_users (email, full_name, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		a.Email, a.FullName, a.PasswordHash,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

// UpdatePassword replaces an admin's password hash.
func (r *AdminRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE admin_users SET password_hash = $2, updated_at = now() WHERE email = $1`,
		email, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
