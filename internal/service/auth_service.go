package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/pkg/apperrors"
)

// AuthService handles account registration, credential checks and token
// issuance.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	bcryptCost int
}

// NewAuthService constructs the service.
func NewAuthService(users repository.UserRepository, tokens *auth.TokenManager, bcryptCost int) *AuthService {
	return &AuthService{users: users, tokens: tokens, bcryptCost: bcryptCost}
}

// AuthResult carries a signed token and the authenticated user.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// UserCreateInput describes account provisioning payload.
type UserCreateInput struct {
	Name           string
	Email          string
	Password       string
	Role           domain.Role
	Agency         *string
	Phone          *string
	Specialization *string
}

// RegisterRequester creates a requester account through the public signup
// surface. Staff accounts are only provisioned by admins via CreateUser.
func (s *AuthService) RegisterRequester(ctx context.Context, name, email, password string) (*AuthResult, error) {
	user, err := s.createUser(ctx, UserCreateInput{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     domain.RoleRequester,
	})
	if err != nil {
		return nil, err
	}
	return s.issueToken(user)
}

// Login verifies credentials and issues a token. Wrong email and wrong
// password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if !user.Active {
		return nil, apperrors.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.issueToken(user)
}

// CreateUser provisions an account with any role. Admin only.
func (s *AuthService) CreateUser(ctx context.Context, actor *domain.User, input UserCreateInput) (*domain.User, error) {
	if actor == nil || actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}
	return s.createUser(ctx, input)
}

// ListTechnicians returns active technicians for assignment pickers.
func (s *AuthService) ListTechnicians(ctx context.Context) ([]domain.User, error) {
	technicians, err := s.users.ListActiveByRole(ctx, domain.RoleTechnician)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return technicians, nil
}

// ListAdjoints returns active adjoints for delegation pickers.
func (s *AuthService) ListAdjoints(ctx context.Context) ([]domain.User, error) {
	adjoints, err := s.users.ListActiveByRole(ctx, domain.RoleAdjointDSI)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return adjoints, nil
}

// SetActive toggles an account. Admin only; admins cannot deactivate
// themselves.
func (s *AuthService) SetActive(ctx context.Context, actor *domain.User, userID string, active bool) (*domain.User, error) {
	if actor == nil || actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if actor.ID == userID && !active {
		return nil, apperrors.NewValidationError("cannot deactivate own account", nil)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	user.Active = active
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

func (s *AuthService) createUser(ctx context.Context, input UserCreateInput) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("name and valid email required", nil)
	}
	if len(input.Password) < 8 {
		return nil, apperrors.NewValidationError("password must be at least 8 characters", nil)
	}
	if !input.Role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": string(input.Role)})
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	user := &domain.User{
		Name:           name,
		Email:          email,
		PasswordHash:   hash,
		Role:           input.Role,
		Agency:         input.Agency,
		Phone:          input.Phone,
		Specialization: input.Specialization,
		Active:         true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

func (s *AuthService) issueToken(user *domain.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}
