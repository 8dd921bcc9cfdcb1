package repository

import (
	"context"

	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"gorm.io/gorm"
)

// RouteRepository 路由仓库
type RouteRepository struct {
	db *gorm.DB
}

// NewRouteRepository 创建路由仓库
func NewRouteRepository(db *gorm.DB) *RouteRepository {
	return &RouteRepository{db: db}
}

// Create 创建路由
func (r *RouteRepository) Create(ctx context.Context, route *entity.Route) error {
	return r.db.WithContext(ctx).Create(route).Error
}

// FindByParent 在指定流程下根据ID查找路由
func (r *RouteRepository) FindByParent(ctx context.Context, processID, routeID string) (*entity.Route, error) {
	var route entity.Route
	err := r.db.WithContext(ctx).
		Preload("Actions").
		Preload("Activities").
		Where("process_id = ? AND id = ?", processID, routeID).
		First(&route).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &route, nil
}

// FindForDuplication 查找 (流程, 当前状态, 下一状态) 三元组上的已有路由
// 用于重复路由检查，不存在时返回 nil
func (r *RouteRepository) FindForDuplication(ctx context.Context, processID, currentStateID, nextStateID string) (*entity.Route, error) {
	var route entity.Route
	err := r.db.WithContext(ctx).
		Where("process_id = ? AND current_state_id = ? AND next_state_id = ?",
			processID, currentStateID, nextStateID).
		First(&route).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &route, nil
}

// ListByCurrentState 列出从指定状态出发的全部路由
// 带出动作、动作目标和路由活动，提交动作时一次取全
func (r *RouteRepository) ListByCurrentState(ctx context.Context, processID, currentStateID string) ([]entity.Route, error) {
	var routes []entity.Route
	err := r.db.WithContext(ctx).
		Preload("Actions").
		Preload("Actions.Targets").
		Preload("Activities").
		Preload("Activities.Targets").
		Where("process_id = ? AND current_state_id = ?", processID, currentStateID).
		Order("created_at ASC").
		Find(&routes).Error
	return routes, err
}

// Update 更新路由
func (r *RouteRepository) Update(ctx context.Context, route *entity.Route) error {
	return r.db.WithContext(ctx).Save(route).Error
}

// Delete 删除路由
func (r *RouteRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Route{}).Error
}

// AppendAction 给路由挂一个动作
func (r *RouteRepository) AppendAction(ctx context.Context, route *entity.Route, action *entity.Action) error {
	return r.db.WithContext(ctx).Model(route).Association("Actions").Append(action)
}

// RemoveAction 从路由上摘掉一个动作
func (r *RouteRepository) RemoveAction(ctx context.Context, route *entity.Route, action *entity.Action) error {
	return r.db.WithContext(ctx).Model(route).Association("Actions").Delete(action)
}

// AppendActivity 给路由挂一个流转活动
func (r *RouteRepository) AppendActivity(ctx context.Context, route *entity.Route, activity *entity.Activity) error {
	return r.db.WithContext(ctx).Model(route).Association("Activities").Append(activity)
}

// RemoveActivity 从路由上摘掉一个流转活动
func (r *RouteRepository) RemoveActivity(ctx context.Context, route *entity.Route, activity *entity.Activity) error {
	return r.db.WithContext(ctx).Model(route).Association("Activities").Delete(activity)
}
