package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/google/uuid"
)

// CreateUser creates a user with an explicit role
func (s *Service) CreateUser(ctx context.Context, fullName, username, password, email, role string) (*models.User, error) {
	r, err := models.ParseRole(role)
	if err != nil {
		return nil, err
	}
	return s.createUser(ctx, fullName, username, password, email, r)
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.Repositories().Users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s", utils.ErrNotFound, id)
		}
		return nil, err
	}
	return user, nil
}

// ListUsers returns a page of users whose full name contains fullName
func (s *Service) ListUsers(ctx context.Context, fullName string, page models.PageRequest) (*models.Page[models.User], error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	users, total, err := s.store.Repositories().Users.List(ctx, fullName, page)
	if err != nil {
		return nil, err
	}
	result := models.NewPage(users, page, total)
	return &result, nil
}

// DeleteUser removes a user and all of their cards
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Repositories().Users.Delete(ctx, id); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return fmt.Errorf("%w: user %s", utils.ErrNotFound, id)
		}
		return err
	}
	s.log.WithField("user_id", id).Info("User deleted")
	return nil
}

// SeedAdmin creates the administrator account unless the username is taken.
// It reports whether a user was created.
func (s *Service) SeedAdmin(ctx context.Context, username, password, fullName string) (bool, error) {
	_, err := s.store.Repositories().Users.FindByUsername(ctx, username)
	if err == nil {
		s.log.WithField("username", username).Debug("Admin account already exists")
		return false, nil
	}
	if !errors.Is(err, utils.ErrNotFound) {
		return false, err
	}
	if _, err := s.createUser(ctx, fullName, username, password, "", models.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}
