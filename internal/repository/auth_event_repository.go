package repository

import (
	"context"
	"fmt"

	"github.com/stemsi/mathcourse-portal/internal/model"
)

// AuthEventRepository writes the admin auth audit log.
type AuthEventRepository struct {
	db pgExecutor
}

// NewAuthEventRepository creates a new AuthEventRepository.
func NewAuthEventRepository(db pgExecutor) *AuthEventRepository {
	return &AuthEventRepository{db: db}
}

// Insert appends one audit record.
func (r *AuthEventRepository) Insert(ctx context.Context, e *model.AuthEvent) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO admin_auth_events (kind, email, source_ip, admin_id, created_at)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5)
		 RETURNING id`,
		string(e.Kind), e.Email, e.SourceIP, e.AdminID, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}
