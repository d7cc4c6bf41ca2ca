package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/reelplatform/reelauth/internal/apperrors"
	"github.com/reelplatform/reelauth/internal/models"
)

const adminUsername = "admin"

// SeedAdmin creates the default administrator account if it does not exist
// yet. Safe to run on every startup.
func (s *UserService) SeedAdmin(ctx context.Context, password string) error {
	_, err := s.userRepo.GetUserByUsername(ctx, adminUsername)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return fmt.Errorf("error while looking up admin user. Err: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("can't use this as admin password, Err: %w", err)
	}

	_, err = s.userRepo.CreateUser(ctx, adminUsername, hash, []string{models.RoleAdmin, models.RoleUser})
	if err != nil && !errors.Is(err, apperrors.ErrUserAlreadyExists) {
		return fmt.Errorf("can't create admin user. Err: %w", err)
	}

	return nil
}
