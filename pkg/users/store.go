package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/igmrrf/bugrelay-sub004/pkg/observability"
)

var (
	// ErrNotFound means no user matched the lookup.
	ErrNotFound = errors.New("user not found")

	// ErrDuplicateEmail means the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrAccountAlreadyLinked means the provider account is attached to a
	// user already.
	ErrAccountAlreadyLinked = errors.New("provider account already linked")
)

// User is a local account. PasswordHash is empty for provider-only
// accounts.
type User struct {
	ID              string
	Email           string
	DisplayName     string
	AvatarURL       string
	PasswordHash    string
	IsAdmin         bool
	IsEmailVerified bool
	CreatedAt       time.Time
	LastActiveAt    time.Time
}

// HasPassword reports whether the account can authenticate with a local
// credential.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Store persists users and their provider links.
type Store struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewStore creates the user store and ensures its schema exists.
func NewStore(db *sql.DB, logger *observability.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	s := &Store{db: db, logger: logger}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("failed to ensure users schema: %w", err)
	}

	return s, nil
}

func (s *Store) ensureSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		avatar_url TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		is_email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		last_active_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS oauth_accounts (
		provider TEXT NOT NULL,
		provider_account_id TEXT NOT NULL,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		linked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		PRIMARY KEY (provider, provider_account_id)
	);
	CREATE INDEX IF NOT EXISTS idx_oauth_accounts_user_id ON oauth_accounts(user_id);
	`

	_, err := s.db.Exec(query)
	return err
}

// NewUser assembles an unsaved user with a fresh id.
func NewUser(email, displayName string) *User {
	return &User{
		ID:          uuid.New().String(),
		Email:       email,
		DisplayName: displayName,
	}
}

// Create inserts a new user.
func (s *Store) Create(ctx context.Context, user *User) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, display_name, avatar_url, password_hash, is_admin, is_email_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, last_active_at
	`, user.ID, user.Email, user.DisplayName, user.AvatarURL, user.PasswordHash,
		user.IsAdmin, user.IsEmailVerified,
	).Scan(&user.CreatedAt, &user.LastActiveAt)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID fetches a user by id.
func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	return s.getBy(ctx, "id = $1", id)
}

// GetByEmail fetches a user by email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getBy(ctx, "email = $1", email)
}

func (s *Store) getBy(ctx context.Context, where string, arg interface{}) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, avatar_url, password_hash,
		       is_admin, is_email_verified, created_at, last_active_at
		FROM users WHERE `+where,
		arg,
	).Scan(&user.ID, &user.Email, &user.DisplayName, &user.AvatarURL,
		&user.PasswordHash, &user.IsAdmin, &user.IsEmailVerified,
		&user.CreatedAt, &user.LastActiveAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetByProviderAccount fetches the user a provider account is linked to.
func (s *Store) GetByProviderAccount(ctx context.Context, provider, providerAccountID string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.display_name, u.avatar_url, u.password_hash,
		       u.is_admin, u.is_email_verified, u.created_at, u.last_active_at
		FROM users u
		JOIN oauth_accounts oa ON oa.user_id = u.id
		WHERE oa.provider = $1 AND oa.provider_account_id = $2
	`, provider, providerAccountID,
	).Scan(&user.ID, &user.Email, &user.DisplayName, &user.AvatarURL,
		&user.PasswordHash, &user.IsAdmin, &user.IsEmailVerified,
		&user.CreatedAt, &user.LastActiveAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by provider account: %w", err)
	}

	return &user, nil
}

// LinkProviderAccount attaches a provider account to a user. Linking the
// same account to the same user again is a no-op; linking it to a
// different user fails with ErrAccountAlreadyLinked.
func (s *Store) LinkProviderAccount(ctx context.Context, userID, provider, providerAccountID string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_accounts (provider, provider_account_id, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, provider_account_id) DO NOTHING
	`, provider, providerAccountID, userID)
	if err != nil {
		return fmt.Errorf("failed to link provider account: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to link provider account: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Conflict: fine if it is already ours, an error if it is someone else's
	existing, err := s.GetByProviderAccount(ctx, provider, providerAccountID)
	if err != nil {
		return fmt.Errorf("failed to resolve linked provider account: %w", err)
	}
	if existing.ID != userID {
		return ErrAccountAlreadyLinked
	}

	return nil
}

// SetPassword replaces the user's credential hash.
func (s *Store) SetPassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1 WHERE id = $2`,
		passwordHash, userID)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}

	return nil
}

// TouchLastLogin bumps the user's last-active timestamp. Best effort:
// a failure is logged, not surfaced, because a login must not fail over a
// bookkeeping column.
func (s *Store) TouchLastLogin(ctx context.Context, userID string) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_active_at = NOW() WHERE id = $1`, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("failed to update last_active_at")
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
