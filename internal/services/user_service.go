package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/userauth/user-auth-be/internal/auth"
	"github.com/userauth/user-auth-be/internal/models"
)

// UserServiceProvider defines the interface for the authentication core.
type UserServiceProvider interface {
	Register(ctx context.Context, username, email, password string) (models.User, error)
	Authenticate(ctx context.Context, username, password string) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	UpdateProfile(ctx context.Context, id string, username, email *string) (models.User, error)
	ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error
}

// UserService provides registration, credential verification, and profile
// management on top of the credential store.
type UserService struct {
	db *sql.DB
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

// Register creates a new user, hashing their password. Username uniqueness is
// checked before email uniqueness; when both collide the username error wins.
func (s *UserService) Register(ctx context.Context, username, email, password string) (models.User, error) {
	if taken, err := s.usernameTaken(ctx, username, ""); err != nil {
		return models.User{}, err
	} else if taken {
		return models.User{}, models.ErrDuplicateUsername
	}
	if taken, err := s.emailTaken(ctx, email, ""); err != nil {
		return models.User{}, err
	} else if taken {
		return models.User{}, models.ErrDuplicateEmail
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		IsActive:     true,
		CreatedAt:    now,
		LastUpdated:  now,
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users(id, username, email, password_hash, is_active, created_at, last_updated) VALUES(?, ?, ?, ?, ?, ?, ?)",
		user.ID, user.Username, user.Email, user.PasswordHash, user.IsActive, user.CreatedAt, user.LastUpdated)
	if err != nil {
		// A concurrent registration may have won the race past the checks
		// above; the UNIQUE constraints catch it here.
		return models.User{}, translateConstraint(err)
	}

	user.PasswordHash = ""
	return user, nil
}

// Authenticate verifies a user's credentials. An unknown username and a wrong
// password yield the same error so callers cannot tell which factor failed.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	user, err := s.getUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return models.User{}, models.ErrInvalidCredentials
		}
		return models.User{}, err
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		return models.User{}, models.ErrInvalidCredentials
	}

	user.PasswordHash = ""
	return user, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx,
		"SELECT id, username, email, is_active, created_at, last_updated FROM users WHERE id = ?", id)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.IsActive, &user.CreatedAt, &user.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, models.ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return user, nil
}

// UpdateProfile updates a user's username and/or email. Nil fields are left
// unchanged. Uniqueness checks exclude the user's own current values.
func (s *UserService) UpdateProfile(ctx context.Context, id string, username, email *string) (models.User, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	if username != nil && *username != user.Username {
		if taken, err := s.usernameTaken(ctx, *username, id); err != nil {
			return models.User{}, err
		} else if taken {
			return models.User{}, models.ErrDuplicateUsername
		}
		user.Username = *username
	}
	if email != nil && *email != user.Email {
		if taken, err := s.emailTaken(ctx, *email, id); err != nil {
			return models.User{}, err
		} else if taken {
			return models.User{}, models.ErrDuplicateEmail
		}
		user.Email = *email
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE users SET username = ?, email = ?, last_updated = ? WHERE id = ?",
		user.Username, user.Email, time.Now().UTC(), id)
	if err != nil {
		return models.User{}, translateConstraint(err)
	}
	return s.GetUserByID(ctx, id)
}

// ChangePassword verifies the current password, then hashes and stores the
// new one. Previously issued tokens stay valid until they expire.
func (s *UserService) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	var storedHash string
	row := s.db.QueryRowContext(ctx, "SELECT password_hash FROM users WHERE id = ?", id)
	if err := row.Scan(&storedHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	if !auth.CheckPassword(currentPassword, storedHash) {
		return models.ErrInvalidCredentials
	}

	hashedPassword, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, last_updated = ? WHERE id = ?",
		hashedPassword, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

// getUserByUsername retrieves a user by username, including the password hash.
func (s *UserService) getUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, is_active, created_at, last_updated FROM users WHERE username = ?", username)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsActive, &user.CreatedAt, &user.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, models.ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return user, nil
}

func (s *UserService) usernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	return s.columnTaken(ctx, "username", username, excludeID)
}

func (s *UserService) emailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	return s.columnTaken(ctx, "email", email, excludeID)
}

func (s *UserService) columnTaken(ctx context.Context, column, value, excludeID string) (bool, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(1) FROM users WHERE %s = ? AND id != ?", column)
	if err := s.db.QueryRowContext(ctx, query, value, excludeID).Scan(&n); err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// translateConstraint maps a sqlite UNIQUE violation back onto the duplicate
// errors the pre-insert checks would have produced.
func translateConstraint(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "users.username"):
		return models.ErrDuplicateUsername
	case strings.Contains(msg, "users.email"):
		return models.ErrDuplicateEmail
	default:
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
}
