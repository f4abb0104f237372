package services

import (
	"context"
	"fmt"

	"github.com/tasklane/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user types.User) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByLogin(ctx context.Context, login string) (types.User, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

// UserService is the credential store: it owns password hashing and the
// uniqueness guarantees of the user repository.
type UserService struct {
	repo   UserRepository
	hasher PasswordHasher
}

func NewUserService(repo UserRepository, hasher PasswordHasher) *UserService {
	return &UserService{repo: repo, hasher: hasher}
}

// Add hashes password and stores a new user. It returns store.ErrDuplicate,
// with nothing written, when the username or email is taken.
func (s *UserService) Add(ctx context.Context, username, password, email string, role types.Role) (types.User, error) {
	if role == "" {
		role = types.RoleBasic
	}
	if !role.Valid() {
		return types.User{}, fmt.Errorf("unknown role %q", role)
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	return s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		PasswordHash: digest,
		Role:         role,
	})
}

// Find looks a user up by username or email.
func (s *UserService) Find(ctx context.Context, login string) (types.User, error) {
	return s.repo.GetByLogin(ctx, login)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}
