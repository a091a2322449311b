package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"hackhub/backend/internal/model"
	"hackhub/backend/internal/pkg/auth"
	"hackhub/backend/internal/repository"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// IdentityService is the identity collaborator boundary: it resolves user
// ids to profile snapshots and verifies bearer credentials. Account signup,
// verification and password-reset flows live outside this backend.
type IdentityService struct {
	users repository.UserRepository
}

func NewIdentityService(users repository.UserRepository) *IdentityService {
	return &IdentityService{users: users}
}

// ResolveUser returns the profile snapshot the chat core needs: display
// name, avatar and push token.
func (s *IdentityService) ResolveUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnknownSender
		}
		return nil, fmt.Errorf("resolving user: %w", ErrUpstream)
	}
	return user, nil
}

// VerifyCredential validates a bearer token and returns the sender id it
// resolves to.
func (s *IdentityService) VerifyCredential(token string) (string, error) {
	claims, err := auth.ValidateToken(token)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	return claims.UserID, nil
}

// Login checks the password and issues a bearer token.
func (s *IdentityService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("looking up user: %w", ErrUpstream)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("issuing token: %w", err)
	}
	return token, user, nil
}

// RegisterPushToken stores the device token used for notification fan-out.
func (s *IdentityService) RegisterPushToken(ctx context.Context, userID, token string) error {
	if err := s.users.SetPushToken(ctx, userID, token); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUnknownSender
		}
		return fmt.Errorf("registering push token: %w", ErrUpstream)
	}
	return nil
}
