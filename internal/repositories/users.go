package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"folderly-api/internal/models"
)

const userColumns = `id, username, name, email, phone, password, role, is_logged_in,
	reset_password_otp, reset_password_expiry, last_login, last_activity,
	user_agent, ip, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var u models.User
	var name sql.NullString
	err := row.Scan(
		&u.ID, &u.Username, &name, &u.Email, &u.Phone, &u.Password, &u.Role,
		&u.IsLoggedIn, &u.ResetPasswordOTP, &u.ResetPasswordExpiry,
		&u.LastLogin, &u.LastActivity, &u.UserAgent, &u.IP,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	u.Name = name.String
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, username, name, email, phone, hashedPassword, role string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, name, email, phone, password, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		username, name, strings.ToLower(strings.TrimSpace(email)), phone, hashedPassword, role)

	user, err := scanUser(row)
	if err != nil {
		return nil, duplicateError(err)
	}
	return user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindByIdentity looks a user up by username or email.
func (r *UserRepository) FindByIdentity(ctx context.Context, identity string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $1`,
		strings.TrimSpace(identity))
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

func (r *UserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 OR username = $2)`,
		strings.ToLower(strings.TrimSpace(email)), username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY created_at DESC
		OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return total, nil
}

func (r *UserRepository) Update(ctx context.Context, id int, username, name, email, phone, role string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET username = $1, name = $2, email = $3, phone = $4, role = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING `+userColumns,
		username, name, strings.ToLower(strings.TrimSpace(email)), phone, role, id)

	user, err := scanUser(row)
	if err != nil {
		return nil, duplicateError(err)
	}
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordLogin marks the user as logged in and captures device metadata.
func (r *UserRepository) RecordLogin(ctx context.Context, id int, userAgent, ip string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET is_logged_in = TRUE, last_login = NOW(), last_activity = NOW(),
		    user_agent = $1, ip = $2, updated_at = NOW()
		WHERE id = $3`, userAgent, ip, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *UserRepository) SetLoggedIn(ctx context.Context, id int, loggedIn bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_logged_in = $1, updated_at = NOW() WHERE id = $2`, loggedIn, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// TouchActivity refreshes last_activity. Best-effort callers may ignore the error.
func (r *UserRepository) TouchActivity(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_activity = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *UserRepository) SetResetOTP(ctx context.Context, id int, otp string, expiry time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET reset_password_otp = $1, reset_password_expiry = $2, updated_at = NOW()
		WHERE id = $3`, otp, expiry, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *UserRepository) ClearResetOTP(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET reset_password_otp = NULL, reset_password_expiry = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// UpdatePassword stores a new password hash, clears any pending reset OTP
// and forces the user to log in again.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int, hashedPassword string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET password = $1, reset_password_otp = NULL, reset_password_expiry = NULL,
		    is_logged_in = FALSE, updated_at = NOW()
		WHERE id = $2`, hashedPassword, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
