package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// UserRegisterRequest payload for requester signup.
type UserRegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateUserRequest payload for admin provisioning.
type CreateUserRequest struct {
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Password       string      `json:"password"`
	Role           domain.Role `json:"role"`
	Agency         *string     `json:"agency"`
	Phone          *string     `json:"phone"`
	Specialization *string     `json:"specialization"`
}

// SetActiveRequest payload for account toggling.
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Role           domain.Role `json:"role"`
	Agency         *string     `json:"agency"`
	Phone          *string     `json:"phone"`
	Specialization *string     `json:"specialization"`
	Active         bool        `json:"active"`
	CreatedAt      time.Time   `json:"created_at"`
}
