package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Process  *ProcessRepository
	State    *StateRepository
	Route    *RouteRepository
	Action   *ActionRepository
	Activity *ActivityRepository
	Target   *TargetRepository
	Group    *GroupRepository
	User     *UserRepository
	Request  *RequestRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Process:  NewProcessRepository(db),
		State:    NewStateRepository(db),
		Route:    NewRouteRepository(db),
		Action:   NewActionRepository(db),
		Activity: NewActivityRepository(db),
		Target:   NewTargetRepository(db),
		Group:    NewGroupRepository(db),
		User:     NewUserRepository(db),
		Request:  NewRequestRepository(db),
	}
}

// notFound 统一把 gorm 的未找到错误换成仓库哨兵错误
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
