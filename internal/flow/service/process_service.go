package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-flow/internal/flow/apperr"
	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"github.com/bitfantasy/nimo-flow/internal/flow/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProcessService 流程图编排服务：流程、状态、路由以及它们之间的挂载关系
type ProcessService struct {
	db    *gorm.DB
	repos *repository.Repositories
}

// NewProcessService 创建流程服务
func NewProcessService(db *gorm.DB, repos *repository.Repositories) *ProcessService {
	return &ProcessService{db: db, repos: repos}
}

// CreateProcess 创建流程，名称全局唯一
func (s *ProcessService) CreateProcess(ctx context.Context, name, description, status string) (*entity.Process, error) {
	process := &entity.Process{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Status:      status,
	}
	if err := process.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repos.Process.FindByName(ctx, process.Name)
	if err != nil {
		return nil, fmt.Errorf("查询流程失败: %w", err)
	}
	if existing != nil {
		return nil, apperr.AlreadyExist("process %s already exists", process.Name)
	}

	if err := s.repos.Process.Create(ctx, process); err != nil {
		return nil, fmt.Errorf("创建流程失败: %w", err)
	}
	return process, nil
}

// FindOneProcess 查找流程并带出全部状态和路由
func (s *ProcessService) FindOneProcess(ctx context.Context, id string) (*entity.Process, error) {
	process, err := s.repos.Process.FindByIDWithChildren(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("process is not found")
		}
		return nil, fmt.Errorf("查询流程失败: %w", err)
	}
	return process, nil
}

// FindOneProcessByName 根据名称查找流程
func (s *ProcessService) FindOneProcessByName(ctx context.Context, name string) (*entity.Process, error) {
	process, err := s.repos.Process.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("查询流程失败: %w", err)
	}
	if process == nil {
		return nil, apperr.NotFound("process is not found")
	}
	return process, nil
}

// SearchProcesses 按名称模糊搜索流程
func (s *ProcessService) SearchProcesses(ctx context.Context, name string, page, pageSize int) ([]entity.Process, error) {
	return s.repos.Process.Search(ctx, name, page, pageSize)
}

// UpdateProcess 更新流程，改名时做唯一性检查
func (s *ProcessService) UpdateProcess(ctx context.Context, id, name, description, status string) (*entity.Process, error) {
	process, err := s.repos.Process.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("process is not found")
		}
		return nil, fmt.Errorf("查询流程失败: %w", err)
	}

	process.Name = name
	process.Description = description
	process.Status = status
	if err := process.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repos.Process.FindByName(ctx, process.Name)
	if err != nil {
		return nil, fmt.Errorf("查询流程失败: %w", err)
	}
	if existing != nil && existing.ID != process.ID {
		return nil, apperr.AlreadyExist("process %s already exists", process.Name)
	}

	if err := s.repos.Process.Update(ctx, process); err != nil {
		return nil, fmt.Errorf("更新流程失败: %w", err)
	}
	return process, nil
}

// DeleteProcess 软删除流程
func (s *ProcessService) DeleteProcess(ctx context.Context, id string) error {
	if _, err := s.repos.Process.FindByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("process is not found")
		}
		return fmt.Errorf("查询流程失败: %w", err)
	}
	if err := s.repos.Process.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除流程失败: %w", err)
	}
	return nil
}

// AddStateToProcess 给流程添加状态
// 同一流程下状态名唯一，且起点状态最多一个
func (s *ProcessService) AddStateToProcess(ctx context.Context, processID, name, description, stateType string) (*entity.State, error) {
	if _, err := s.repos.Process.FindByID(ctx, processID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("process is not found")
		}
		return nil, fmt.Errorf("查询流程失败: %w", err)
	}

	state := &entity.State{
		ID:          uuid.New().String(),
		ProcessID:   processID,
		Name:        name,
		Description: description,
		StateType:   stateType,
	}
	if err := state.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repos.State.FindByNameAndParent(ctx, processID, state.Name)
	if err != nil {
		return nil, fmt.Errorf("查询状态失败: %w", err)
	}
	if existing != nil {
		return nil, apperr.AlreadyExist("state %s already exists in process", state.Name)
	}

	if state.StateType == entity.StateTypeStart {
		if err := s.checkSingleStartState(ctx, processID, ""); err != nil {
			return nil, err
		}
	}

	if err := s.repos.State.Create(ctx, state); err != nil {
		return nil, fmt.Errorf("创建状态失败: %w", err)
	}
	return state, nil
}

// UpdateStateOnProcess 更新流程下的状态，改名和改类型都要重新过不变量检查
func (s *ProcessService) UpdateStateOnProcess(ctx context.Context, processID, stateID, name, description, stateType string) (*entity.State, error) {
	state, err := s.repos.State.FindByParent(ctx, processID, stateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("state is not found")
		}
		return nil, fmt.Errorf("查询状态失败: %w", err)
	}

	state.Name = name
	state.Description = description
	state.StateType = stateType
	if err := state.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repos.State.FindByNameAndParent(ctx, processID, state.Name)
	if err != nil {
		return nil, fmt.Errorf("查询状态失败: %w", err)
	}
	if existing != nil && existing.ID != state.ID {
		return nil, apperr.AlreadyExist("state %s already exists in process", state.Name)
	}

	if state.StateType == entity.StateTypeStart {
		if err := s.checkSingleStartState(ctx, processID, state.ID); err != nil {
			return nil, err
		}
	}

	if err := s.repos.State.Update(ctx, state); err != nil {
		return nil, fmt.Errorf("更新状态失败: %w", err)
	}
	return state, nil
}

// RemoveStateFromProcess 删除流程下的状态
func (s *ProcessService) RemoveStateFromProcess(ctx context.Context, processID, stateID string) error {
	state, err := s.repos.State.FindByParent(ctx, processID, stateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("state is not found")
		}
		return fmt.Errorf("查询状态失败: %w", err)
	}
	if err := s.repos.State.Delete(ctx, state.ID); err != nil {
		return fmt.Errorf("删除状态失败: %w", err)
	}
	return nil
}

// checkSingleStartState 保证每个流程最多只有一个起点状态
// excludeID 用于更新场景：允许把起点状态自己再保存一次
func (s *ProcessService) checkSingleStartState(ctx context.Context, processID, excludeID string) error {
	starts, err := s.repos.State.ListByProcessAndType(ctx, processID, entity.StateTypeStart)
	if err != nil {
		return fmt.Errorf("查询起点状态失败: %w", err)
	}
	for _, st := range starts {
		if st.ID != excludeID {
			return apperr.Validation("process already has a start state: %s", st.Name)
		}
	}
	return nil
}

// FindStartState 查找流程的起点状态
// 编排侧已保证至多一个，这里对脏数据仍然报错而不是取第一个
func (s *ProcessService) FindStartState(ctx context.Context, processID string) (*entity.State, error) {
	starts, err := s.repos.State.ListByProcessAndType(ctx, processID, entity.StateTypeStart)
	if err != nil {
		return nil, fmt.Errorf("查询起点状态失败: %w", err)
	}
	switch len(starts) {
	case 0:
		return nil, apperr.NotFound("process does not have a start state")
	case 1:
		return &starts[0], nil
	default:
		return nil, apperr.Validation("process has more than one start state")
	}
}

// AddRouteToProcess 给流程添加路由
// nextStateID 为空串表示原地路由。同一 (当前状态, 下一状态) 只允许一条路由。
func (s *ProcessService) AddRouteToProcess(ctx context.Context, processID, currentStateID, nextStateID string) (*entity.Route, error) {
	if _, err := s.repos.State.FindByParent(ctx, processID, currentStateID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("current state is not found")
		}
		return nil, fmt.Errorf("查询状态失败: %w", err)
	}
	if nextStateID != "" {
		if _, err := s.repos.State.FindByParent(ctx, processID, nextStateID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperr.NotFound("next state is not found")
			}
			return nil, fmt.Errorf("查询状态失败: %w", err)
		}
	}

	if err := s.checkDuplicateRoute(ctx, processID, currentStateID, nextStateID, ""); err != nil {
		return nil, err
	}

	route := &entity.Route{
		ID:             uuid.New().String(),
		ProcessID:      processID,
		CurrentStateID: currentStateID,
		NextStateID:    nextStateID,
	}
	if err := s.repos.Route.Create(ctx, route); err != nil {
		return nil, fmt.Errorf("创建路由失败: %w", err)
	}
	return route, nil
}

// UpdateRouteOnProcess 更新流程下的路由，更新后的三元组同样要过重复检查
func (s *ProcessService) UpdateRouteOnProcess(ctx context.Context, processID, routeID, currentStateID, nextStateID string) (*entity.Route, error) {
	route, err := s.repos.Route.FindByParent(ctx, processID, routeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("route is not found")
		}
		return nil, fmt.Errorf("查询路由失败: %w", err)
	}

	if _, err := s.repos.State.FindByParent(ctx, processID, currentStateID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("current state is not found")
		}
		return nil, fmt.Errorf("查询状态失败: %w", err)
	}
	if nextStateID != "" {
		if _, err := s.repos.State.FindByParent(ctx, processID, nextStateID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperr.NotFound("next state is not found")
			}
			return nil, fmt.Errorf("查询状态失败: %w", err)
		}
	}

	if err := s.checkDuplicateRoute(ctx, processID, currentStateID, nextStateID, route.ID); err != nil {
		return nil, err
	}

	route.CurrentStateID = currentStateID
	route.NextStateID = nextStateID
	if err := s.repos.Route.Update(ctx, route); err != nil {
		return nil, fmt.Errorf("更新路由失败: %w", err)
	}
	return route, nil
}

// RemoveRouteFromProcess 删除流程下的路由
func (s *ProcessService) RemoveRouteFromProcess(ctx context.Context, processID, routeID string) error {
	route, err := s.repos.Route.FindByParent(ctx, processID, routeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("route is not found")
		}
		return fmt.Errorf("查询路由失败: %w", err)
	}
	if err := s.repos.Route.Delete(ctx, route.ID); err != nil {
		return fmt.Errorf("删除路由失败: %w", err)
	}
	return nil
}

// checkDuplicateRoute 重复路由检查，excludeID 用于更新时跳过自身
func (s *ProcessService) checkDuplicateRoute(ctx context.Context, processID, currentStateID, nextStateID, excludeID string) error {
	existing, err := s.repos.Route.FindForDuplication(ctx, processID, currentStateID, nextStateID)
	if err != nil {
		return fmt.Errorf("查询路由失败: %w", err)
	}
	if existing != nil && existing.ID != excludeID {
		return apperr.AlreadyExist("route between these states already exists")
	}
	return nil
}

// AddActionToRoute 把动作挂到路由上
func (s *ProcessService) AddActionToRoute(ctx context.Context, processID, routeID, actionID string) error {
	route, err := s.repos.Route.FindByParent(ctx, processID, routeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("route is not found")
		}
		return fmt.Errorf("查询路由失败: %w", err)
	}
	action, err := s.repos.Action.FindByID(ctx, actionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("action is not found")
		}
		return fmt.Errorf("查询动作失败: %w", err)
	}
	if err := s.repos.Route.AppendAction(ctx, route, action); err != nil {
		return fmt.Errorf("挂载动作失败: %w", err)
	}
	return nil
}

// RemoveActionFromRoute 把动作从路由上摘掉
func (s *ProcessService) RemoveActionFromRoute(ctx context.Context, processID, routeID, actionID string) error {
	route, err := s.repos.Route.FindByParent(ctx, processID, routeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("route is not found")
		}
		return fmt.Errorf("查询路由失败: %w", err)
	}
	action, err := s.repos.Action.FindByID(ctx, actionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("action is not found")
		}
		return fmt.Errorf("查询动作失败: %w", err)
	}
	if err := s.repos.Route.RemoveAction(ctx, route, action); err != nil {
		return fmt.Errorf("摘除动作失败: %w", err)
	}
	return nil
}

// AddActivityToRoute 把流转活动挂到路由上
func (s *ProcessService) AddActivityToRoute(ctx context.Context, processID, routeID, activityID string) error {
	route, err := s.repos.Route.FindByParent(ctx, processID, routeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("route is not found")
		}
		return fmt.Errorf("查询路由失败: %w", err)
	}
	activity, err := s.repos.Activity.FindByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("activity is not found")
		}
		return fmt.Errorf("查询活动失败: %w", err)
	}
	if err := s.repos.Route.AppendActivity(ctx, route, activity); err != nil {
		return fmt.Errorf("挂载活动失败: %w", err)
	}
	return nil
}

// RemoveActivityFromRoute 把流转活动从路由上摘掉
func (s *ProcessService) RemoveActivityFromRoute(ctx context.Context, processID, routeID, activityID string) error {
	route, err := s.repos.Route.FindByParent(ctx, processID, routeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("route is not found")
		}
		return fmt.Errorf("查询路由失败: %w", err)
	}
	activity, err := s.repos.Activity.FindByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("activity is not found")
		}
		return fmt.Errorf("查询活动失败: %w", err)
	}
	if err := s.repos.Route.RemoveActivity(ctx, route, activity); err != nil {
		return fmt.Errorf("摘除活动失败: %w", err)
	}
	return nil
}

// AddActivityToState 把进入活动挂到状态上
func (s *ProcessService) AddActivityToState(ctx context.Context, processID, stateID, activityID string) error {
	state, err := s.repos.State.FindByParent(ctx, processID, stateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("state is not found")
		}
		return fmt.Errorf("查询状态失败: %w", err)
	}
	activity, err := s.repos.Activity.FindByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("activity is not found")
		}
		return fmt.Errorf("查询活动失败: %w", err)
	}
	if err := s.repos.State.AppendActivity(ctx, state, activity); err != nil {
		return fmt.Errorf("挂载活动失败: %w", err)
	}
	return nil
}

// RemoveActivityFromState 把进入活动从状态上摘掉
func (s *ProcessService) RemoveActivityFromState(ctx context.Context, processID, stateID, activityID string) error {
	state, err := s.repos.State.FindByParent(ctx, processID, stateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("state is not found")
		}
		return fmt.Errorf("查询状态失败: %w", err)
	}
	activity, err := s.repos.Activity.FindByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("activity is not found")
		}
		return fmt.Errorf("查询活动失败: %w", err)
	}
	if err := s.repos.State.RemoveActivity(ctx, state, activity); err != nil {
		return fmt.Errorf("摘除活动失败: %w", err)
	}
	return nil
}
