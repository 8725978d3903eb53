package users

import (
	"context"
	"database/sql"
	"io"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igmrrf/bugrelay-sub004/pkg/observability"
)

var userColumns = []string{
	"id", "email", "display_name", "avatar_url", "password_hash",
	"is_admin", "is_email_verified", "created_at", "last_active_at",
}

func userRow(id, email string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userColumns).
		AddRow(id, email, "Dev", "", "$2a$12$hash", false, true, now, now)
}

func newTestUserStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").
		WillReturnResult(sqlmock.NewResult(0, 0))

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	store, err := NewStore(db, logger)
	require.NoError(t, err)

	return store, mock
}

func TestNewUser(t *testing.T) {
	u1 := NewUser("a@example.com", "A")
	u2 := NewUser("b@example.com", "B")

	assert.NotEmpty(t, u1.ID)
	assert.NotEqual(t, u1.ID, u2.ID)
	assert.False(t, u1.HasPassword())
}

func TestCreate(t *testing.T) {
	store, mock := newTestUserStore(t)
	ctx := context.Background()

	user := NewUser("dev@example.com", "Dev")
	user.PasswordHash = "$2a$12$hash"

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(user.ID, "dev@example.com", "Dev", "", "$2a$12$hash", false, false).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "last_active_at"}).AddRow(now, now))

	require.NoError(t, store.Create(ctx, user))
	assert.Equal(t, now, user.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateEmail(t *testing.T) {
	store, mock := newTestUserStore(t)
	ctx := context.Background()

	user := NewUser("taken@example.com", "Dev")
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	err := store.Create(ctx, user)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestGetByEmail(t *testing.T) {
	store, mock := newTestUserStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("dev@example.com").
		WillReturnRows(userRow("u1", "dev@example.com"))

	user, err := store.GetByEmail(ctx, "dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.True(t, user.HasPassword())
}

func TestGetByID_NotFound(t *testing.T) {
	store, mock := newTestUserStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetByProviderAccount(t *testing.T) {
	store, mock := newTestUserStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("JOIN oauth_accounts")).
		WithArgs("github", "4242").
		WillReturnRows(userRow("u1", "dev@example.com"))

	user, err := store.GetByProviderAccount(ctx, "github", "4242")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
}

func TestGetByProviderAccount_NotLinked(t *testing.T) {
	store, mock := newTestUserStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("JOIN oauth_accounts")).
		WithArgs("google", "g-999").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetByProviderAccount(ctx, "google", "g-999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLinkProviderAccount(t *testing.T) {
	store, mock := newTestUserStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO oauth_accounts")).
		WithArgs("github", "4242", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.LinkProviderAccount(ctx, "u1", "github", "4242"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkProviderAccount_RelinkSameUser(t *testing.T) {
	store, mock := newTestUserStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO oauth_accounts")).
		WithArgs("github", "4242", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("JOIN oauth_accounts")).
		WithArgs("github", "4242").
		WillReturnRows(userRow("u1", "dev@example.com"))

	assert.NoError(t, store.LinkProviderAccount(ctx, "u1", "github", "4242"))
}

func TestLinkProviderAccount_TakenByOtherUser(t *testing.T) {
	store, mock := newTestUserStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO oauth_accounts")).
		WithArgs("github", "4242", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("JOIN oauth_accounts")).
		WithArgs("github", "4242").
		WillReturnRows(userRow("u1", "dev@example.com"))

	err := store.LinkProviderAccount(ctx, "u2", "github", "4242")
	assert.ErrorIs(t, err, ErrAccountAlreadyLinked)
}

func TestSetPassword(t *testing.T) {
	store, mock := newTestUserStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash")).
		WithArgs("$2a$12$newhash", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SetPassword(ctx, "u1", "$2a$12$newhash"))
}

func TestSetPassword_UnknownUser(t *testing.T) {
	store, mock := newTestUserStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash")).
		WithArgs("$2a$12$newhash", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetPassword(ctx, "missing", "$2a$12$newhash")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTouchLastLogin_SwallowsErrors(t *testing.T) {
	store, mock := newTestUserStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET last_active_at")).
		WithArgs("u1").
		WillReturnError(sql.ErrConnDone)

	// Must not panic or surface the error
	store.TouchLastLogin(ctx, "u1")
}
