package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bookhaven/bookhaven-server/internal/auth"
	"github.com/bookhaven/bookhaven-server/internal/domain"
	domainerrors "github.com/bookhaven/bookhaven-server/internal/errors"
	"github.com/bookhaven/bookhaven-server/internal/normalize"
	"github.com/bookhaven/bookhaven-server/internal/store"
)

// ProfileService manages the calling user's own profile. Display-name edits
// flow through the store's change events so author renames reach books and
// saved projections.
type ProfileService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewProfileService creates a new profile service.
func NewProfileService(s *store.Store, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		store:  s,
		logger: logger,
	}
}

// UpdateProfileRequest contains the editable profile fields.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,min=1,max=100"`
}

// ChangePasswordRequest contains a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=1024"`
}

// Get returns the calling user's profile.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Update applies profile edits for the calling user.
func (s *ProfileService) Update(ctx context.Context, userID string, req UpdateProfileRequest) (*domain.User, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	changed := false
	if req.DisplayName != nil {
		name := normalize.DisplayName(*req.DisplayName)
		if name != user.DisplayName {
			user.DisplayName = name
			changed = true
		}
	}

	if !changed {
		return user, nil
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("profile updated", "user_id", userID)
	}
	return user, nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *ProfileService) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	if err := validate.Validate(req); err != nil {
		return err
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, req.CurrentPassword)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return domainerrors.InvalidCredentials("current password is incorrect")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user.PasswordHash = hash
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("password changed", "user_id", userID)
	}
	return nil
}
