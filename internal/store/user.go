package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookhaven/bookhaven-server/internal/domain"
	"github.com/bookhaven/bookhaven-server/internal/trigger"
)

var (
	// ErrUserNotFound is returned when a user cannot be found by ID or email.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists is returned when attempting to register an email that's already in use.
	ErrEmailExists = errors.New("email already in use")
	// ErrSessionNotFound is returned when a session cannot be found.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when attempting to use an expired session.
	ErrSessionExpired = errors.New("session expired")
)

// CreateUser creates a new user account. The email index enforces uniqueness
// case-insensitively.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if err := s.Users.Create(ctx, user.ID, user); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return ErrEmailExists
		}
		return fmt.Errorf("create user: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("user created", "id", user.ID, "role", user.Role)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.Users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.Users.GetByIndex(ctx, "email", email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// UpdateUser updates a user and emits a user.updated event carrying the
// before and after documents so author renames can be propagated.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	oldUser, err := s.GetUser(ctx, user.ID)
	if err != nil {
		return err
	}

	user.Touch()
	if err := s.Users.Update(ctx, user.ID, user); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrUserNotFound
		}
		if errors.Is(err, ErrAlreadyExists) {
			return ErrEmailExists
		}
		return fmt.Errorf("update user: %w", err)
	}

	s.emit(trigger.NewUserUpdatedEvent(oldUser, user))

	if s.logger != nil {
		s.logger.Info("user updated", "id", user.ID)
	}
	return nil
}

// Session operations, backed by the Sessions entity.

// CreateSession creates a new user session.
func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	if err := s.Sessions.Create(ctx, session.ID, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID, rejecting expired sessions.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	session, err := s.Sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	return session, nil
}

// GetSessionByRefreshToken retrieves a session by its refresh token hash.
// This is used during the token refresh flow.
func (s *Store) GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error) {
	session, err := s.Sessions.GetByIndex(ctx, "token", tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session by token: %w", err)
	}

	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	return session, nil
}

// UpdateSession persists session changes such as token rotation.
func (s *Store) UpdateSession(ctx context.Context, session *domain.Session) error {
	if err := s.Sessions.Update(ctx, session.ID, session); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// DeleteSession removes a session. Deleting a missing session is a no-op.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := s.Sessions.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteSessionsForUser revokes every session a user holds across devices.
func (s *Store) DeleteSessionsForUser(ctx context.Context, userID string) (int, error) {
	ids, err := s.Sessions.ListByIndex(ctx, "user", userID)
	if err != nil {
		return 0, fmt.Errorf("list sessions for user: %w", err)
	}

	for _, id := range ids {
		if err := s.Sessions.Delete(ctx, id); err != nil {
			return 0, fmt.Errorf("delete session %s: %w", id, err)
		}
	}
	return len(ids), nil
}
