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

// TargetService 目标目录服务
type TargetService struct {
	repos *repository.Repositories
}

// NewTargetService 创建目标服务
func NewTargetService(repos *repository.Repositories) *TargetService {
	return &TargetService{repos: repos}
}

// CreateTarget 创建目标，groupID 非空时校验组存在
func (s *TargetService) CreateTarget(ctx context.Context, name, description, targetType, groupID string) (*entity.Target, error) {
	target := &entity.Target{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		TargetType:  targetType,
		GroupID:     groupID,
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repos.Target.FindByName(ctx, target.Name)
	if err != nil {
		return nil, fmt.Errorf("查询目标失败: %w", err)
	}
	if existing != nil {
		return nil, apperr.AlreadyExist("target %s already exists", target.Name)
	}

	if err := s.checkGroup(ctx, target.GroupID); err != nil {
		return nil, err
	}

	if err := s.repos.Target.Create(ctx, target); err != nil {
		return nil, fmt.Errorf("创建目标失败: %w", err)
	}
	return target, nil
}

// FindOneTarget 查找目标
func (s *TargetService) FindOneTarget(ctx context.Context, id string) (*entity.Target, error) {
	target, err := s.repos.Target.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("target is not found")
		}
		return nil, fmt.Errorf("查询目标失败: %w", err)
	}
	return target, nil
}

// SearchTargets 按名称模糊搜索目标
func (s *TargetService) SearchTargets(ctx context.Context, name string, page, pageSize int) ([]entity.Target, error) {
	return s.repos.Target.Search(ctx, name, page, pageSize)
}

// UpdateTarget 更新目标
func (s *TargetService) UpdateTarget(ctx context.Context, id, name, description, targetType, groupID string) (*entity.Target, error) {
	target, err := s.repos.Target.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("target is not found")
		}
		return nil, fmt.Errorf("查询目标失败: %w", err)
	}

	target.Name = name
	target.Description = description
	target.TargetType = targetType
	target.GroupID = groupID
	if err := target.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repos.Target.FindByName(ctx, target.Name)
	if err != nil {
		return nil, fmt.Errorf("查询目标失败: %w", err)
	}
	if existing != nil && existing.ID != target.ID {
		return nil, apperr.AlreadyExist("target %s already exists", target.Name)
	}

	if err := s.checkGroup(ctx, target.GroupID); err != nil {
		return nil, err
	}

	if err := s.repos.Target.Update(ctx, target); err != nil {
		return nil, fmt.Errorf("更新目标失败: %w", err)
	}
	return target, nil
}

// DeleteTarget 删除目标
func (s *TargetService) DeleteTarget(ctx context.Context, id string) error {
	if _, err := s.repos.Target.FindByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("target is not found")
		}
		return fmt.Errorf("查询目标失败: %w", err)
	}
	if err := s.repos.Target.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除目标失败: %w", err)
	}
	return nil
}

// checkGroup 空串表示不限制，非空时组必须存在
func (s *TargetService) checkGroup(ctx context.Context, groupID string) error {
	if groupID == "" {
		return nil
	}
	if _, err := s.repos.Group.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("group is not found")
		}
		return fmt.Errorf("查询用户组失败: %w", err)
	}
	return nil
}
