package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-flow/internal/flow/apperr"
	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"github.com/bitfantasy/nimo-flow/internal/flow/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 组成员缓存TTL，权限判定在提交动作的热路径上
const groupMemberCacheTTL = 10 * time.Minute

// GroupService 用户组服务，成员判定走 redis 缓存
type GroupService struct {
	repos *repository.Repositories
	rdb   *redis.Client
}

// NewGroupService 创建用户组服务，rdb 为 nil 时直查数据库
func NewGroupService(repos *repository.Repositories, rdb *redis.Client) *GroupService {
	return &GroupService{repos: repos, rdb: rdb}
}

// CreateGroup 创建用户组，名称全局唯一
func (s *GroupService) CreateGroup(ctx context.Context, name, description string) (*entity.Group, error) {
	group := &entity.Group{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Status:      "active",
	}
	if err := group.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repos.Group.FindByName(ctx, group.Name)
	if err != nil {
		return nil, fmt.Errorf("查询用户组失败: %w", err)
	}
	if existing != nil {
		return nil, apperr.AlreadyExist("group %s already exists", group.Name)
	}

	if err := s.repos.Group.Create(ctx, group); err != nil {
		return nil, fmt.Errorf("创建用户组失败: %w", err)
	}
	return group, nil
}

// FindOneGroup 查找用户组
func (s *GroupService) FindOneGroup(ctx context.Context, id string) (*entity.Group, error) {
	group, err := s.repos.Group.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("group is not found")
		}
		return nil, fmt.Errorf("查询用户组失败: %w", err)
	}
	return group, nil
}

// SearchGroups 按名称模糊搜索用户组
func (s *GroupService) SearchGroups(ctx context.Context, name string, page, pageSize int) ([]entity.Group, error) {
	return s.repos.Group.Search(ctx, name, page, pageSize)
}

// UpdateGroup 更新用户组，改名时做唯一性检查
func (s *GroupService) UpdateGroup(ctx context.Context, id, name, description string) (*entity.Group, error) {
	group, err := s.repos.Group.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("group is not found")
		}
		return nil, fmt.Errorf("查询用户组失败: %w", err)
	}

	group.Name = name
	group.Description = description
	if err := group.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repos.Group.FindByName(ctx, group.Name)
	if err != nil {
		return nil, fmt.Errorf("查询用户组失败: %w", err)
	}
	if existing != nil && existing.ID != group.ID {
		return nil, apperr.AlreadyExist("group %s already exists", group.Name)
	}

	if err := s.repos.Group.Update(ctx, group); err != nil {
		return nil, fmt.Errorf("更新用户组失败: %w", err)
	}
	return group, nil
}

// DeleteGroup 删除用户组
func (s *GroupService) DeleteGroup(ctx context.Context, id string) error {
	if _, err := s.repos.Group.FindByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("group is not found")
		}
		return fmt.Errorf("查询用户组失败: %w", err)
	}
	if err := s.repos.Group.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除用户组失败: %w", err)
	}
	return nil
}

// AddMember 添加组成员并失效缓存
func (s *GroupService) AddMember(ctx context.Context, groupID, userID string) error {
	if _, err := s.FindOneGroup(ctx, groupID); err != nil {
		return err
	}
	if _, err := s.repos.User.FindByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("user is not found")
		}
		return fmt.Errorf("查询用户失败: %w", err)
	}
	if err := s.repos.Group.AddMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("添加组成员失败: %w", err)
	}
	s.invalidateMemberCache(ctx, groupID, userID)
	return nil
}

// RemoveMember 移除组成员并失效缓存
func (s *GroupService) RemoveMember(ctx context.Context, groupID, userID string) error {
	if _, err := s.FindOneGroup(ctx, groupID); err != nil {
		return err
	}
	if err := s.repos.Group.RemoveMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("移除组成员失败: %w", err)
	}
	s.invalidateMemberCache(ctx, groupID, userID)
	return nil
}

// ListMembers 列出组内全部用户
func (s *GroupService) ListMembers(ctx context.Context, groupID string) ([]entity.User, error) {
	if _, err := s.FindOneGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.repos.Group.ListMembers(ctx, groupID)
}

// IsUserInGroup 判断用户是否在组内，优先读缓存
func (s *GroupService) IsUserInGroup(ctx context.Context, groupID, userID string) (bool, error) {
	key := memberCacheKey(groupID, userID)
	if s.rdb != nil {
		val, err := s.rdb.Get(ctx, key).Result()
		if err == nil {
			return val == "1", nil
		}
		// 缓存未命中或 redis 故障都落回数据库
	}

	ok, err := s.repos.Group.IsUserInGroup(ctx, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("查询组成员失败: %w", err)
	}

	if s.rdb != nil {
		val := "0"
		if ok {
			val = "1"
		}
		s.rdb.Set(ctx, key, val, groupMemberCacheTTL)
	}
	return ok, nil
}

func (s *GroupService) invalidateMemberCache(ctx context.Context, groupID, userID string) {
	if s.rdb == nil {
		return
	}
	s.rdb.Del(ctx, memberCacheKey(groupID, userID))
}

func memberCacheKey(groupID, userID string) string {
	return fmt.Sprintf("flow:group:%s:user:%s", groupID, userID)
}
