package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quoteshare/apiserver/internal/store"
	"github.com/quoteshare/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 10

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// TokenIssuer creates session tokens for authenticated users.
type TokenIssuer interface {
	Issue(identity Identity) (string, error)
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// AuthService encapsulates registration and login.
type AuthService struct {
	users      UserRepository
	tokens     TokenIssuer
	bcryptCost int
}

func NewAuthService(users UserRepository, tokens TokenIssuer, bcryptCost int) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = DefaultBcryptCost
	}
	return &AuthService{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
	}
}

// Register creates an account. It returns no credential; callers log in
// separately.
func (s *AuthService) Register(ctx context.Context, username, password string) error {
	username, password = strings.TrimSpace(username), strings.TrimSpace(password)
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if _, err := s.users.Create(ctx, types.User{
		Username:     username,
		PasswordHash: string(hashed),
	}); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("%w: username already exists", ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username, password = strings.TrimSpace(username), strings.TrimSpace(password)
	if username == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, fmt.Errorf("%w: user does not exist", ErrNotFound)
		}
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, fmt.Errorf("%w: wrong password", ErrAuth)
	}

	token, err := s.tokens.Issue(Identity{ID: user.ID, Username: user.Username})
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	return LoginResult{Token: token, Username: user.Username}, nil
}

func (s *AuthService) GetByID(ctx context.Context, id int) (types.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrNotFound
	}
	return user, err
}
