package repository

import (
	"context"

	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"gorm.io/gorm"
)

// StateRepository 状态仓库
type StateRepository struct {
	db *gorm.DB
}

// NewStateRepository 创建状态仓库
func NewStateRepository(db *gorm.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Create 创建状态
func (r *StateRepository) Create(ctx context.Context, state *entity.State) error {
	return r.db.WithContext(ctx).Create(state).Error
}

// FindByID 根据ID查找状态
func (r *StateRepository) FindByID(ctx context.Context, id string) (*entity.State, error) {
	var state entity.State
	err := r.db.WithContext(ctx).
		Preload("Activities").
		Preload("Activities.Targets").
		Where("id = ?", id).
		First(&state).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &state, nil
}

// FindByParent 在指定流程下根据ID查找状态
func (r *StateRepository) FindByParent(ctx context.Context, processID, stateID string) (*entity.State, error) {
	var state entity.State
	err := r.db.WithContext(ctx).
		Preload("Activities").
		Where("process_id = ? AND id = ?", processID, stateID).
		First(&state).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &state, nil
}

// FindByNameAndParent 在指定流程下根据名称查找状态，不存在时返回 nil
func (r *StateRepository) FindByNameAndParent(ctx context.Context, processID, name string) (*entity.State, error) {
	var state entity.State
	err := r.db.WithContext(ctx).
		Where("process_id = ? AND name = ?", processID, name).
		First(&state).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

// ListByProcess 列出流程下全部状态
func (r *StateRepository) ListByProcess(ctx context.Context, processID string) ([]entity.State, error) {
	var states []entity.State
	err := r.db.WithContext(ctx).
		Where("process_id = ?", processID).
		Order("created_at ASC").
		Find(&states).Error
	return states, err
}

// ListByProcessAndType 列出流程下指定类型的状态
func (r *StateRepository) ListByProcessAndType(ctx context.Context, processID, stateType string) ([]entity.State, error) {
	var states []entity.State
	err := r.db.WithContext(ctx).
		Where("process_id = ? AND state_type = ?", processID, stateType).
		Order("created_at ASC").
		Find(&states).Error
	return states, err
}

// Update 更新状态
func (r *StateRepository) Update(ctx context.Context, state *entity.State) error {
	return r.db.WithContext(ctx).Save(state).Error
}

// Delete 删除状态
func (r *StateRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.State{}).Error
}

// AppendActivity 给状态挂一个进入活动
func (r *StateRepository) AppendActivity(ctx context.Context, state *entity.State, activity *entity.Activity) error {
	return r.db.WithContext(ctx).Model(state).Association("Activities").Append(activity)
}

// RemoveActivity 从状态上摘掉一个进入活动
func (r *StateRepository) RemoveActivity(ctx context.Context, state *entity.State, activity *entity.Activity) error {
	return r.db.WithContext(ctx).Model(state).Association("Activities").Delete(activity)
}
