package service

import (
	"context"
	"fmt"

	"github.com/udv-group/stand-control-bot/internal/model"
	"github.com/udv-group/stand-control-bot/internal/registry"
)

// GroupsService exposes the static host-group catalogue.
type GroupsService struct {
	store registry.Store
}

// NewGroupsService constructs a GroupsService.
func NewGroupsService(store registry.Store) *GroupsService {
	return &GroupsService{store: store}
}

// GetAllGroups lists every group ordered by name.
func (s *GroupsService) GetAllGroups(ctx context.Context) ([]model.Group, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	groups, err := tx.GetGroups(ctx)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("read groups: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return groups, nil
}
