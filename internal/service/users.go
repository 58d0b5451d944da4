package service

import (
	"context"
	"fmt"

	"github.com/udv-group/stand-control-bot/internal/model"
	"github.com/udv-group/stand-control-bot/internal/registry"
)

// UsersService manages user records: account provisioning and linking
// of notification handles via the opaque link token handed to the user
// out of band.
type UsersService struct {
	store registry.Store
}

// NewUsersService constructs a UsersService.
func NewUsersService(store registry.Store) *UsersService {
	return &UsersService{store: store}
}

// LinkUser resolves the link token and stores the notification handle
// on the matching user.  It returns the updated user, or nil when the
// token matches nobody (an unknown token is not an error; the caller
// decides how to respond).
func (s *UsersService) LinkUser(ctx context.Context, link, handle string) (*model.User, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	user, err := tx.GetUserByLink(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("read user by link: %w", err)
	}
	if user == nil {
		return nil, nil
	}
	if err := tx.SetUserNotificationHandle(ctx, user.ID, handle); err != nil {
		return nil, fmt.Errorf("set notification handle: %w", err)
	}
	updated, err := tx.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("re-read user %s: %w", user.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return updated, nil
}

// EnsureUser returns the user with the given login, creating the
// record first when it does not exist yet.  Provisioning flows call
// this after the external identity layer has authenticated the login.
func (s *UsersService) EnsureUser(ctx context.Context, login, email string) (*model.User, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	user, err := tx.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("read user by login: %w", err)
	}
	if user == nil {
		id, err := tx.AddUser(ctx, login, nil, email)
		if err != nil {
			return nil, fmt.Errorf("add user: %w", err)
		}
		user, err = tx.GetUserByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("re-read user %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return user, nil
}
