package repository

import (
	"context"

	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"gorm.io/gorm"
)

// ProcessRepository 流程仓库
type ProcessRepository struct {
	db *gorm.DB
}

// NewProcessRepository 创建流程仓库
func NewProcessRepository(db *gorm.DB) *ProcessRepository {
	return &ProcessRepository{db: db}
}

// Create 创建流程
func (r *ProcessRepository) Create(ctx context.Context, process *entity.Process) error {
	return r.db.WithContext(ctx).Create(process).Error
}

// FindByID 根据ID查找流程
func (r *ProcessRepository) FindByID(ctx context.Context, id string) (*entity.Process, error) {
	var process entity.Process
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&process).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &process, nil
}

// FindByIDWithChildren 根据ID查找流程并带出全部状态和路由
func (r *ProcessRepository) FindByIDWithChildren(ctx context.Context, id string) (*entity.Process, error) {
	var process entity.Process
	err := r.db.WithContext(ctx).
		Preload("States").
		Preload("States.Activities").
		Preload("Routes").
		Preload("Routes.Actions").
		Preload("Routes.Activities").
		Where("id = ?", id).
		First(&process).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &process, nil
}

// FindByName 根据名称精确查找流程，不存在时返回 nil
func (r *ProcessRepository) FindByName(ctx context.Context, name string) (*entity.Process, error) {
	var process entity.Process
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&process).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &process, nil
}

// Search 按名称模糊搜索流程
func (r *ProcessRepository) Search(ctx context.Context, name string, page, pageSize int) ([]entity.Process, error) {
	var processes []entity.Process
	query := r.db.WithContext(ctx)
	if name != "" {
		query = query.Where("name LIKE ?", "%"+name+"%")
	}
	err := query.
		Order("created_at ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&processes).Error
	return processes, err
}

// Update 更新流程
func (r *ProcessRepository) Update(ctx context.Context, process *entity.Process) error {
	return r.db.WithContext(ctx).Save(process).Error
}

// Delete 软删除流程
func (r *ProcessRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Process{}).Error
}
