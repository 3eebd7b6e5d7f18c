package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/artdirector-api/internal/models"
)

// Identity is the caller as asserted by the identity provider.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// ReviewerKey returns the normalised key used to find submissions addressed to the caller.
func (i Identity) ReviewerKey() string {
	return strings.ToLower(strings.TrimSpace(i.Email))
}

// UserRoleRequest selects the caller's role.
type UserRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=student teacher"`
}

// UserResponse is the caller's stored profile.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserResponse maps the persistence model into the API shape.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}
