package repository

import (
	"context"

	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"gorm.io/gorm"
)

// ActionRepository 动作仓库
type ActionRepository struct {
	db *gorm.DB
}

// NewActionRepository 创建动作仓库
func NewActionRepository(db *gorm.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// Create 创建动作
func (r *ActionRepository) Create(ctx context.Context, action *entity.Action) error {
	return r.db.WithContext(ctx).Create(action).Error
}

// FindByID 根据ID查找动作，带出目标
func (r *ActionRepository) FindByID(ctx context.Context, id string) (*entity.Action, error) {
	var action entity.Action
	err := r.db.WithContext(ctx).
		Preload("Targets").
		Where("id = ?", id).
		First(&action).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &action, nil
}

// FindByName 根据名称精确查找动作，不存在时返回 nil
func (r *ActionRepository) FindByName(ctx context.Context, name string) (*entity.Action, error) {
	var action entity.Action
	err := r.db.WithContext(ctx).
		Preload("Targets").
		Where("name = ?", name).
		First(&action).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &action, nil
}

// Search 按名称模糊搜索动作
func (r *ActionRepository) Search(ctx context.Context, name string, page, pageSize int) ([]entity.Action, error) {
	var actions []entity.Action
	query := r.db.WithContext(ctx)
	if name != "" {
		query = query.Where("name LIKE ?", "%"+name+"%")
	}
	err := query.
		Order("created_at ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&actions).Error
	return actions, err
}

// Update 更新动作
func (r *ActionRepository) Update(ctx context.Context, action *entity.Action) error {
	return r.db.WithContext(ctx).Save(action).Error
}

// Delete 删除动作
func (r *ActionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Action{}).Error
}

// AppendTarget 给动作挂一个权限目标
func (r *ActionRepository) AppendTarget(ctx context.Context, action *entity.Action, target *entity.Target) error {
	return r.db.WithContext(ctx).Model(action).Association("Targets").Append(target)
}

// RemoveTarget 从动作上摘掉一个权限目标
func (r *ActionRepository) RemoveTarget(ctx context.Context, action *entity.Action, target *entity.Target) error {
	return r.db.WithContext(ctx).Model(action).Association("Targets").Delete(target)
}
