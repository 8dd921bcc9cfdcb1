package repository

import (
	"context"

	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"gorm.io/gorm"
)

// TargetRepository 目标仓库
type TargetRepository struct {
	db *gorm.DB
}

// NewTargetRepository 创建目标仓库
func NewTargetRepository(db *gorm.DB) *TargetRepository {
	return &TargetRepository{db: db}
}

// Create 创建目标
func (r *TargetRepository) Create(ctx context.Context, target *entity.Target) error {
	return r.db.WithContext(ctx).Create(target).Error
}

// FindByID 根据ID查找目标
func (r *TargetRepository) FindByID(ctx context.Context, id string) (*entity.Target, error) {
	var target entity.Target
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&target).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &target, nil
}

// FindByName 根据名称精确查找目标，不存在时返回 nil
func (r *TargetRepository) FindByName(ctx context.Context, name string) (*entity.Target, error) {
	var target entity.Target
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&target).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &target, nil
}

// Search 按名称模糊搜索目标
func (r *TargetRepository) Search(ctx context.Context, name string, page, pageSize int) ([]entity.Target, error) {
	var targets []entity.Target
	query := r.db.WithContext(ctx)
	if name != "" {
		query = query.Where("name LIKE ?", "%"+name+"%")
	}
	err := query.
		Order("created_at ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&targets).Error
	return targets, err
}

// Update 更新目标
func (r *TargetRepository) Update(ctx context.Context, target *entity.Target) error {
	return r.db.WithContext(ctx).Save(target).Error
}

// Delete 删除目标
func (r *TargetRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Target{}).Error
}
