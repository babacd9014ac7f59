package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
)

func CreateSession(ctx context.Context, db *sql.DB, userID int64, ttl time.Duration) (*models.Session, error) {
	session := &models.Session{}

	query := `
		INSERT INTO sessions (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING token, user_id, expires_at, created_at`

	err := db.QueryRowContext(ctx, query, uuid.NewString(), userID, time.Now().Add(ttl)).Scan(
		&session.Token,
		&session.UserID,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return session, nil
}

// GetUserBySession resolves a bearer token to its user. Expired or unknown
// tokens both map to ErrSessionExpired.
func GetUserBySession(ctx context.Context, db *sql.DB, token string) (*models.User, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, database.ErrSessionExpired
	}

	user := &models.User{}

	query := `
		SELECT u.id, u.email, u.first_name, u.last_name, u.role, u.phone, u.is_active, u.created_at, u.updated_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1 AND s.expires_at > NOW() AND u.is_active = TRUE`

	err := db.QueryRowContext(ctx, query, token).Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.Phone,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrSessionExpired
		}
		return nil, fmt.Errorf("get user by session: %w", err)
	}

	return user, nil
}

func DeleteSession(ctx context.Context, db *sql.DB, token string) error {
	if _, err := uuid.Parse(token); err != nil {
		return nil
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
