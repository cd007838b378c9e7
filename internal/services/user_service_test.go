package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userauth/user-auth-be/internal/database"
	"github.com/userauth/user-auth-be/internal/models"
)

func newTestService(t *testing.T) *UserService {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// A pool of one keeps every query on the same in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(db))
	return NewUserService(db)
}

func TestRegister(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "testuser", "test@example.com", "testpassword123")
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "testuser", user.Username)
	assert.Equal(t, "test@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.Empty(t, user.PasswordHash, "returned view must not carry the hash")
	assert.False(t, user.CreatedAt.IsZero())
	assert.False(t, user.LastUpdated.Before(user.CreatedAt))
}

func TestRegister_DuplicateUsername(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "testuser", "test@example.com", "testpassword123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "testuser", "different@example.com", "testpassword123")
	assert.ErrorIs(t, err, models.ErrDuplicateUsername)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "user1", "same@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "user2", "same@example.com", "password123")
	assert.ErrorIs(t, err, models.ErrDuplicateEmail)
}

func TestRegister_UsernameCheckedBeforeEmail(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "testuser", "test@example.com", "testpassword123")
	require.NoError(t, err)

	// Both collide; the username error must win.
	_, err = svc.Register(ctx, "testuser", "test@example.com", "testpassword123")
	assert.ErrorIs(t, err, models.ErrDuplicateUsername)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "testuser", "test@example.com", "testpassword123")
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "testuser", "testpassword123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.Empty(t, user.PasswordHash)
}

func TestAuthenticate_FailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "testuser", "test@example.com", "testpassword123")
	require.NoError(t, err)

	_, wrongPassErr := svc.Authenticate(ctx, "testuser", "wrongpassword")
	_, unknownUserErr := svc.Authenticate(ctx, "nosuchuser", "testpassword123")

	assert.ErrorIs(t, wrongPassErr, models.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUserErr, models.ErrInvalidCredentials)
	assert.Equal(t, wrongPassErr, unknownUserErr)
}

func TestGetUserByID_NotFound(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	_, err := svc.GetUserByID(context.Background(), "missing-id")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "testuser", "test@example.com", "testpassword123")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	newUsername := "updated_user"
	newEmail := "updated@example.com"
	updated, err := svc.UpdateProfile(ctx, user.ID, &newUsername, &newEmail)
	require.NoError(t, err)

	assert.Equal(t, "updated_user", updated.Username)
	assert.Equal(t, "updated@example.com", updated.Email)
	assert.True(t, updated.LastUpdated.After(updated.CreatedAt))

	// Changes visible on a fresh read.
	got, err := svc.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated_user", got.Username)
}

func TestUpdateProfile_PartialAndOwnValues(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "testuser", "test@example.com", "testpassword123")
	require.NoError(t, err)

	// Re-submitting the current username must not trip the uniqueness check.
	same := "testuser"
	updated, err := svc.UpdateProfile(ctx, user.ID, &same, nil)
	require.NoError(t, err)
	assert.Equal(t, "testuser", updated.Username)
	assert.Equal(t, "test@example.com", updated.Email)
}

func TestUpdateProfile_DuplicateUsername(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "taken", "taken@example.com", "password123")
	require.NoError(t, err)
	user, err := svc.Register(ctx, "testuser", "test@example.com", "password123")
	require.NoError(t, err)

	taken := "taken"
	_, err = svc.UpdateProfile(ctx, user.ID, &taken, nil)
	assert.ErrorIs(t, err, models.ErrDuplicateUsername)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "testuser", "test@example.com", "testpassword123")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, user.ID, "testpassword123", "newpassword123")
	require.NoError(t, err)

	// New password works, old one does not.
	_, err = svc.Authenticate(ctx, "testuser", "newpassword123")
	assert.NoError(t, err)
	_, err = svc.Authenticate(ctx, "testuser", "testpassword123")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "testuser", "test@example.com", "testpassword123")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, user.ID, "wrongpassword", "newpassword123")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}
