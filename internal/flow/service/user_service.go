package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-flow/internal/flow/apperr"
	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"github.com/bitfantasy/nimo-flow/internal/flow/repository"
)

// UserService 用户目录服务，只读
type UserService struct {
	repos *repository.Repositories
}

// NewUserService 创建用户服务
func NewUserService(repos *repository.Repositories) *UserService {
	return &UserService{repos: repos}
}

// FindOneUser 查找用户
func (s *UserService) FindOneUser(ctx context.Context, id string) (*entity.User, error) {
	user, err := s.repos.User.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("user is not found")
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return user, nil
}

// ListUsers 列出活跃用户，q 非空时按名字模糊搜索
func (s *UserService) ListUsers(ctx context.Context, q string) ([]entity.User, error) {
	if q != "" {
		return s.repos.User.Search(ctx, q)
	}
	return s.repos.User.ListActive(ctx)
}
