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

// ActivityService 活动目录服务
type ActivityService struct {
	repos *repository.Repositories
}

// NewActivityService 创建活动服务
func NewActivityService(repos *repository.Repositories) *ActivityService {
	return &ActivityService{repos: repos}
}

// CreateActivity 创建活动，名称全局唯一
func (s *ActivityService) CreateActivity(ctx context.Context, name, description, activityType string) (*entity.Activity, error) {
	activity := &entity.Activity{
		ID:           uuid.New().String(),
		Name:         name,
		Description:  description,
		ActivityType: activityType,
	}
	if err := activity.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repos.Activity.FindByName(ctx, activity.Name)
	if err != nil {
		return nil, fmt.Errorf("查询活动失败: %w", err)
	}
	if existing != nil {
		return nil, apperr.AlreadyExist("activity %s already exists", activity.Name)
	}

	if err := s.repos.Activity.Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("创建活动失败: %w", err)
	}
	return activity, nil
}

// FindOneActivity 查找活动，带出收件目标
func (s *ActivityService) FindOneActivity(ctx context.Context, id string) (*entity.Activity, error) {
	activity, err := s.repos.Activity.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("activity is not found")
		}
		return nil, fmt.Errorf("查询活动失败: %w", err)
	}
	return activity, nil
}

// SearchActivities 按名称模糊搜索活动
func (s *ActivityService) SearchActivities(ctx context.Context, name string, page, pageSize int) ([]entity.Activity, error) {
	return s.repos.Activity.Search(ctx, name, page, pageSize)
}

// UpdateActivity 更新活动，改名时做唯一性检查
func (s *ActivityService) UpdateActivity(ctx context.Context, id, name, description, activityType string) (*entity.Activity, error) {
	activity, err := s.repos.Activity.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("activity is not found")
		}
		return nil, fmt.Errorf("查询活动失败: %w", err)
	}

	activity.Name = name
	activity.Description = description
	activity.ActivityType = activityType
	if err := activity.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repos.Activity.FindByName(ctx, activity.Name)
	if err != nil {
		return nil, fmt.Errorf("查询活动失败: %w", err)
	}
	if existing != nil && existing.ID != activity.ID {
		return nil, apperr.AlreadyExist("activity %s already exists", activity.Name)
	}

	if err := s.repos.Activity.Update(ctx, activity); err != nil {
		return nil, fmt.Errorf("更新活动失败: %w", err)
	}
	return activity, nil
}

// DeleteActivity 删除活动
func (s *ActivityService) DeleteActivity(ctx context.Context, id string) error {
	if _, err := s.repos.Activity.FindByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("activity is not found")
		}
		return fmt.Errorf("查询活动失败: %w", err)
	}
	if err := s.repos.Activity.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除活动失败: %w", err)
	}
	return nil
}

// AddTargetToActivity 给活动挂收件目标
func (s *ActivityService) AddTargetToActivity(ctx context.Context, activityID, targetID string) error {
	activity, err := s.repos.Activity.FindByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("activity is not found")
		}
		return fmt.Errorf("查询活动失败: %w", err)
	}
	target, err := s.repos.Target.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("target is not found")
		}
		return fmt.Errorf("查询目标失败: %w", err)
	}
	if err := s.repos.Activity.AppendTarget(ctx, activity, target); err != nil {
		return fmt.Errorf("挂载目标失败: %w", err)
	}
	return nil
}

// RemoveTargetFromActivity 从活动上摘掉收件目标
func (s *ActivityService) RemoveTargetFromActivity(ctx context.Context, activityID, targetID string) error {
	activity, err := s.repos.Activity.FindByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("activity is not found")
		}
		return fmt.Errorf("查询活动失败: %w", err)
	}
	target, err := s.repos.Target.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("target is not found")
		}
		return fmt.Errorf("查询目标失败: %w", err)
	}
	if err := s.repos.Activity.RemoveTarget(ctx, activity, target); err != nil {
		return fmt.Errorf("摘除目标失败: %w", err)
	}
	return nil
}
