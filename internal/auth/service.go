package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/imagelify/api/internal/config"
	"github.com/imagelify/api/internal/user"
)

// defaultPlan is the plan new signups land on.
const defaultPlan = "free"

// ErrInvalidCredentials is returned when the email/password pair does not match.
var ErrInvalidCredentials = errors.New("invalid email or password")

// CredentialsStore reads stored account credentials.
type CredentialsStore interface {
	GetPasswordHash(ctx context.Context, email string) (string, error)
	UserExists(ctx context.Context, email string) (bool, error)
}

// UserRegistry creates and resolves user accounts.
type UserRegistry interface {
	Create(ctx context.Context, email, passwordHash, planName string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// Service contains the business logic for email/password authentication.
type Service struct {
	repo    CredentialsStore
	userSvc UserRegistry
	cfg     *config.Config
}

// NewService creates a new auth Service.
func NewService(repo CredentialsStore, userSvc UserRegistry, cfg *config.Config) *Service {
	return &Service{repo: repo, userSvc: userSvc, cfg: cfg}
}

// Signup creates a new account on the free plan and issues a JWT.
func (s *Service) Signup(ctx context.Context, email, password string) (string, *user.User, error) {
	// The unique constraint on users.email still backstops concurrent
	// signups that pass this check.
	exists, err := s.repo.UserExists(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("check user existence: %w", err)
	}
	if exists {
		return "", nil, user.ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.userSvc.Create(ctx, email, string(hash), defaultPlan)
	if err != nil {
		return "", nil, err
	}

	token, err := s.issueToken(u.ID, u.Email)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}

	return token, u, nil
}

// Signin verifies the credentials and issues a JWT for the existing account.
func (s *Service) Signin(ctx context.Context, email, password string) (string, *user.User, error) {
	hash, err := s.repo.GetPasswordHash(ctx, email)
	if errors.Is(err, ErrCredentialsNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("load credentials: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	u, err := s.userSvc.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("get user: %w", err)
	}

	token, err := s.issueToken(u.ID, u.Email)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}

	return token, u, nil
}

// issueToken creates a signed JWT for the given user.
func (s *Service) issueToken(userID, email string) (string, error) {
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(30 * 24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}
