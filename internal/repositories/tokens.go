package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"folderly-api/internal/models"
)

// SessionTokenRepository manages the persisted token records that back
// session validation. A token whose row is gone is treated as revoked no
// matter what its signature says.
type SessionTokenRepository struct {
	db *sql.DB
}

func NewSessionTokenRepository(db *sql.DB) *SessionTokenRepository {
	return &SessionTokenRepository{db: db}
}

func (r *SessionTokenRepository) Create(ctx context.Context, userID int, accessToken string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_tokens (user_id, access_token)
		VALUES ($1, $2)`, userID, accessToken)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Find returns the token record for (userID, accessToken), or ErrNotFound.
func (r *SessionTokenRepository) Find(ctx context.Context, userID int, accessToken string) (*models.SessionToken, error) {
	token := &models.SessionToken{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, access_token, created_at
		FROM session_tokens
		WHERE user_id = $1 AND access_token = $2`,
		userID, accessToken).Scan(&token.ID, &token.UserID, &token.AccessToken, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

// DeleteByUser revokes every outstanding token for a user (logout,
// force-logout and rotation on refresh).
func (r *SessionTokenRepository) DeleteByUser(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM session_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteExpired purges rows created before the cutoff and reports how many
// were removed.
func (r *SessionTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM session_tokens WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	purged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return purged, nil
}
