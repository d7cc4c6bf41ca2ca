package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/reelplatform/reelauth/internal/apperrors"
	"github.com/reelplatform/reelauth/internal/models"
	"github.com/reelplatform/reelauth/internal/repository"
)

// UserService owns user accounts and implements the credential verifier
// capability the session manager consumes
type UserService struct {
	hasher   PasswordHasher
	userRepo repository.UserRepo
}

func NewService(hasher PasswordHasher, userRepo repository.UserRepo) *UserService {
	if hasher == nil {
		hasher = DefaultHasher
	}

	return &UserService{
		hasher:   hasher,
		userRepo: userRepo,
	}
}

// Register creates a new user with the platform user role
func (s *UserService) Register(ctx context.Context, username string, password string) (models.User, error) {
	var user models.User

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err = s.userRepo.CreateUser(ctx, username, hash, []string{models.RoleUser})
	if err != nil {
		return user, err
	}

	return user, nil
}

// Authenticate verifies username/password. Unknown user and wrong password
// are indistinguishable: both fail with apperrors.ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, username string, password string) (models.Principal, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrStoreUnavailable) {
			return models.Principal{}, err
		}
		// Unknown user: burn a compare anyway so the timing matches
		// the wrong-password path
		_ = s.hasher.Compare(dummyHash, password)
		return models.Principal{}, apperrors.ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.Principal{}, apperrors.ErrInvalidCredentials
	}

	return principalOf(user), nil
}

// Resolve returns the current principal for the user id
func (s *UserService) Resolve(ctx context.Context, userID uuid.UUID) (models.Principal, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return models.Principal{}, err
	}

	return principalOf(user), nil
}

func principalOf(user models.User) models.Principal {
	return models.Principal{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    user.Roles,
	}
}

// bcrypt hash of an empty string, compared against when the user is unknown
var dummyHash = func() string {
	h, err := DefaultHasher.Hash("")
	if err != nil {
		panic(err)
	}
	return h
}()
