package repository

import (
	"context"

	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"gorm.io/gorm"
)

// ActivityRepository 活动仓库
type ActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository 创建活动仓库
func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create 创建活动
func (r *ActivityRepository) Create(ctx context.Context, activity *entity.Activity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

// FindByID 根据ID查找活动，带出目标
func (r *ActivityRepository) FindByID(ctx context.Context, id string) (*entity.Activity, error) {
	var activity entity.Activity
	err := r.db.WithContext(ctx).
		Preload("Targets").
		Where("id = ?", id).
		First(&activity).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &activity, nil
}

// FindByName 根据名称精确查找活动，不存在时返回 nil
func (r *ActivityRepository) FindByName(ctx context.Context, name string) (*entity.Activity, error) {
	var activity entity.Activity
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&activity).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &activity, nil
}

// Search 按名称模糊搜索活动
func (r *ActivityRepository) Search(ctx context.Context, name string, page, pageSize int) ([]entity.Activity, error) {
	var activities []entity.Activity
	query := r.db.WithContext(ctx)
	if name != "" {
		query = query.Where("name LIKE ?", "%"+name+"%")
	}
	err := query.
		Order("created_at ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&activities).Error
	return activities, err
}

// Update 更新活动
func (r *ActivityRepository) Update(ctx context.Context, activity *entity.Activity) error {
	return r.db.WithContext(ctx).Save(activity).Error
}

// Delete 删除活动
func (r *ActivityRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Activity{}).Error
}

// AppendTarget 给活动挂一个收件目标
func (r *ActivityRepository) AppendTarget(ctx context.Context, activity *entity.Activity, target *entity.Target) error {
	return r.db.WithContext(ctx).Model(activity).Association("Targets").Append(target)
}

// RemoveTarget 从活动上摘掉一个收件目标
func (r *ActivityRepository) RemoveTarget(ctx context.Context, activity *entity.Activity, target *entity.Target) error {
	return r.db.WithContext(ctx).Model(activity).Association("Targets").Delete(target)
}
