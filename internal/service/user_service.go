package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/artdirector-api/internal/dto"
	"github.com/noah-isme/artdirector-api/internal/models"
	"github.com/noah-isme/artdirector-api/internal/repository"
)

// ErrUserNotFound indicates the caller has not chosen a role yet.
var ErrUserNotFound = errors.New("user not found")

const defaultUserName = "Anonymous"

// UserService manages the caller's profile and role.
type UserService interface {
	Current(ctx context.Context, identity dto.Identity) (*dto.UserResponse, error)
	Register(ctx context.Context, identity dto.Identity, payload dto.UserRoleRequest) (dto.UserResponse, error)
	UpdateRole(ctx context.Context, identity dto.Identity, payload dto.UserRoleRequest) (dto.UserResponse, error)
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserService constructs a user service.
func NewUserService(repo repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) Current(ctx context.Context, identity dto.Identity) (*dto.UserResponse, error) {
	if identity.Subject == "" {
		return nil, ErrUnauthorizedAccess
	}

	user, err := s.repo.GetBySubject(ctx, identity.Subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	response := dto.NewUserResponse(user)
	return &response, nil
}

// Register creates the profile on first call and returns the existing one afterwards.
func (s *userService) Register(ctx context.Context, identity dto.Identity, payload dto.UserRoleRequest) (dto.UserResponse, error) {
	if identity.Subject == "" {
		return dto.UserResponse{}, ErrUnauthorizedAccess
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	existing, err := s.repo.GetBySubject(ctx, identity.Subject)
	if err == nil {
		return dto.NewUserResponse(existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.UserResponse{}, err
	}

	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = defaultUserName
	}

	user := models.User{
		Subject: identity.Subject,
		Name:    name,
		Email:   strings.TrimSpace(identity.Email),
		Role:    payload.Role,
	}
	if err := s.repo.Create(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Str("subject", identity.Subject).Str("role", user.Role).Msg("user registered")
	return dto.NewUserResponse(user), nil
}

func (s *userService) UpdateRole(ctx context.Context, identity dto.Identity, payload dto.UserRoleRequest) (dto.UserResponse, error) {
	if identity.Subject == "" {
		return dto.UserResponse{}, ErrUnauthorizedAccess
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	if err := s.repo.UpdateRole(ctx, identity.Subject, payload.Role); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	user, err := s.repo.GetBySubject(ctx, identity.Subject)
	if err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}
