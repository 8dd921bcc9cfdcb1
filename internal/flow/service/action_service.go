package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-flow/internal/flow/apperr"
	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"github.com/bitfantasy/nimo-flow/internal/flow/repository"
	"github.com/google/uuid"
)

// ActionService 动作目录服务
type ActionService struct {
	repos *repository.Repositories
}

// NewActionService 创建动作服务
func NewActionService(repos *repository.Repositories) *ActionService {
	return &ActionService{repos: repos}
}

// CreateAction 创建动作，名称全局唯一
func (s *ActionService) CreateAction(ctx context.Context, name, description, actionType string) (*entity.Action, error) {
	action := &entity.Action{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		ActionType:  actionType,
	}
	if err := action.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repos.Action.FindByName(ctx, action.Name)
	if err != nil {
		return nil, fmt.Errorf("查询动作失败: %w", err)
	}
	if existing != nil {
		return nil, apperr.AlreadyExist("action %s already exists", action.Name)
	}

	if err := s.repos.Action.Create(ctx, action); err != nil {
		return nil, fmt.Errorf("创建动作失败: %w", err)
	}
	return action, nil
}

// FindOneAction 查找动作，带出权限目标
func (s *ActionService) FindOneAction(ctx context.Context, id string) (*entity.Action, error) {
	action, err := s.repos.Action.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("action is not found")
		}
		return nil, fmt.Errorf("查询动作失败: %w", err)
	}
	return action, nil
}

// SearchActions 按名称模糊搜索动作
func (s *ActionService) SearchActions(ctx context.Context, name string, page, pageSize int) ([]entity.Action, error) {
	return s.repos.Action.Search(ctx, name, page, pageSize)
}

// UpdateAction 更新动作，改名时做唯一性检查
func (s *ActionService) UpdateAction(ctx context.Context, id, name, description, actionType string) (*entity.Action, error) {
	action, err := s.repos.Action.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("action is not found")
		}
		return nil, fmt.Errorf("查询动作失败: %w", err)
	}

	action.Name = name
	action.Description = description
	action.ActionType = actionType
	if err := action.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repos.Action.FindByName(ctx, action.Name)
	if err != nil {
		return nil, fmt.Errorf("查询动作失败: %w", err)
	}
	if existing != nil && existing.ID != action.ID {
		return nil, apperr.AlreadyExist("action %s already exists", action.Name)
	}

	if err := s.repos.Action.Update(ctx, action); err != nil {
		return nil, fmt.Errorf("更新动作失败: %w", err)
	}
	return action, nil
}

// DeleteAction 删除动作
func (s *ActionService) DeleteAction(ctx context.Context, id string) error {
	if _, err := s.repos.Action.FindByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("action is not found")
		}
		return fmt.Errorf("查询动作失败: %w", err)
	}
	if err := s.repos.Action.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除动作失败: %w", err)
	}
	return nil
}

// AddTargetToAction 给动作挂权限目标
func (s *ActionService) AddTargetToAction(ctx context.Context, actionID, targetID string) error {
	action, err := s.repos.Action.FindByID(ctx, actionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("action is not found")
		}
		return fmt.Errorf("查询动作失败: %w", err)
	}
	target, err := s.repos.Target.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("target is not found")
		}
		return fmt.Errorf("查询目标失败: %w", err)
	}
	if err := s.repos.Action.AppendTarget(ctx, action, target); err != nil {
		return fmt.Errorf("挂载目标失败: %w", err)
	}
	return nil
}

// RemoveTargetFromAction 从动作上摘掉权限目标
func (s *ActionService) RemoveTargetFromAction(ctx context.Context, actionID, targetID string) error {
	action, err := s.repos.Action.FindByID(ctx, actionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("action is not found")
		}
		return fmt.Errorf("查询动作失败: %w", err)
	}
	target, err := s.repos.Target.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("target is not found")
		}
		return fmt.Errorf("查询目标失败: %w", err)
	}
	if err := s.repos.Action.RemoveTarget(ctx, action, target); err != nil {
		return fmt.Errorf("摘除目标失败: %w", err)
	}
	return nil
}
