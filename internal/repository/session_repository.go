package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/mathcourse-portal/internal/model"
)

// SessionRepository persists admin sessions keyed by token hash.
type SessionRepository struct {
	db pgExecutor
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db pgExecutor) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session row and fills in its ID and creation time.
func (r *SessionRepository) Create(ctx context.Context, s *model.SessionRecord) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO admin_sessions (token_hash, admin_id, expires_at)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		s.TokenHash, s.AdminID, s.ExpiresAt,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetActive returns the session owner for a token hash when the session
// expires strictly after now.
func (r *SessionRepository) GetActive(ctx context.Context, tokenHash string, now time.Time) (*model.SessionInfo, error) {
	info := &model.SessionInfo{}
	err := r.db.QueryRow(ctx,
		`SELECT a.id, a.email, a.full_name, s.expires_at
		 FROM admin_sessions s JOIN admin_users a ON a.id = s.admin_id
		 WHERE s.token_hash = $1 AND s.expires_at > $2`,
		tokenHash, now,
	).Scan(&info.AdminID, &info.Email, &info.FullName, &info.ExpiresAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return info, nil
}

// DeleteByTokenHash removes a session. Deleting an unknown hash is not an error;
// the bool reports whether a row existed.
func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM admin_sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteExpired removes every session whose expiry is at or before now and
// returns their token hashes.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`DELETE FROM admin_sessions WHERE expires_at <= $1 RETURNING token_hash`, now)
	if err != nil {
		return nil, fmt.Errorf("delete expired sessions: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan token hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}
