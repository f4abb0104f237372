package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tasklane/apiserver/internal/auth"
	"github.com/tasklane/apiserver/internal/events"
	"github.com/tasklane/apiserver/internal/store"
	"github.com/tasklane/apiserver/types"
)

// TokenTypeBearer is the token_type returned with every access token.
const TokenTypeBearer = "bearer"

var (
	// ErrInvalidCredentials is returned by Login for an unknown user or a
	// wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized is returned by Authenticate when the token is invalid,
	// expired, or names a user that no longer exists.
	ErrUnauthorized = errors.New("unauthorized")
)

// TokenService issues and validates bearer tokens.
type TokenService interface {
	Issue(subject string) (string, error)
	Validate(token string) (auth.Claims, error)
}

// Token is the result of a successful login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Username string
	Password string
	Email    string
}

// AuthService implements registration, login and token authentication.
type AuthService struct {
	users  *UserService
	hasher PasswordHasher
	tokens TokenService
	events EventPublisher
	log    *slog.Logger

	// dummyDigest is verified against when the login does not exist so both
	// failure paths cost one bcrypt comparison.
	dummyDigest string
}

func NewAuthService(users *UserService, hasher PasswordHasher, tokens TokenService, pub EventPublisher, log *slog.Logger) (*AuthService, error) {
	dummy, err := hasher.Hash("login-timing-equaliser")
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}
	return &AuthService{
		users:       users,
		hasher:      hasher,
		tokens:      tokens,
		events:      pub,
		log:         log,
		dummyDigest: dummy,
	}, nil
}

// Register creates a basic account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	return s.register(ctx, in, types.RoleBasic)
}

// RegisterPremium creates a premium account.
func (s *AuthService) RegisterPremium(ctx context.Context, in RegisterInput) (types.User, error) {
	return s.register(ctx, in, types.RolePremium)
}

func (s *AuthService) register(ctx context.Context, in RegisterInput, role types.Role) (types.User, error) {
	user, err := s.users.Add(ctx, in.Username, in.Password, in.Email, role)
	if err != nil {
		return types.User{}, err
	}

	s.log.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username, "role", user.Role)
	publish(ctx, s.log, s.events, events.TypeUserRegistered, map[string]any{
		"username": user.Username,
		"email":    user.Email,
		"role":     user.Role,
	})
	return user, nil
}

// Login checks the password of the account named by login (username or
// email) and issues an access token for it.
func (s *AuthService) Login(ctx context.Context, login, password string) (Token, error) {
	user, err := s.users.Find(ctx, login)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Result ignored: the comparison only keeps both failures equally slow.
		s.hasher.Verify(password, s.dummyDigest)
		return Token{}, ErrInvalidCredentials
	case err != nil:
		return Token{}, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return Token{}, ErrInvalidCredentials
	}

	accessToken, err := s.tokens.Issue(user.Username)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: accessToken, TokenType: TokenTypeBearer}, nil
}

// Authenticate resolves a bearer token to the user it was issued for.
func (s *AuthService) Authenticate(ctx context.Context, token string) (types.User, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return types.User{}, ErrUnauthorized
	}

	user, err := s.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUnauthorized
		}
		return types.User{}, err
	}
	return user, nil
}
