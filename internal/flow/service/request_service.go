package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bitfantasy/nimo-flow/internal/flow/apperr"
	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"github.com/bitfantasy/nimo-flow/internal/flow/repository"
	"github.com/bitfantasy/nimo-flow/internal/shared/mail"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestService 请求流转引擎：开请求、算可用动作、提交动作推进状态机
type RequestService struct {
	db         *gorm.DB
	repos      *repository.Repositories
	group      *GroupService
	mailer     mail.Mailer
	dispatcher *ActivityDispatcher
}

// NewRequestService 创建请求服务，mailer 为 nil 时跳过邮件投递
func NewRequestService(db *gorm.DB, repos *repository.Repositories, group *GroupService, mailer mail.Mailer) *RequestService {
	return &RequestService{
		db:         db,
		repos:      repos,
		group:      group,
		mailer:     mailer,
		dispatcher: NewActivityDispatcher(repos),
	}
}

// CreateRequestReq 创建请求参数
type CreateRequestReq struct {
	ProcessID      string      `json:"process_id" binding:"required"`
	Title          string      `json:"title" binding:"required"`
	Content        interface{} `json:"content"`
	Note           string      `json:"note"`
	StakeholderIDs []string    `json:"stakeholder_ids"`
	EntityModel    string      `json:"entity_model"`
	EntityID       string      `json:"entity_id"`
}

// CreateRequest 在流程的起点状态上开一个请求
// 请求本体、内容载荷、开场备注、干系人一次落库
func (s *RequestService) CreateRequest(ctx context.Context, req CreateRequestReq, userID string) (*entity.Request, error) {
	process, err := s.repos.Process.FindByID(ctx, req.ProcessID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("process is not found")
		}
		return nil, fmt.Errorf("查询流程失败: %w", err)
	}
	user, err := s.repos.User.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("user is not found")
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	startState, err := s.findStartState(ctx, process.ID)
	if err != nil {
		return nil, err
	}

	request := &entity.Request{
		ID:             uuid.New().String(),
		Title:          req.Title,
		ProcessID:      process.ID,
		UserID:         user.ID,
		CurrentStateID: startState.ID,
		Status:         entity.RequestStatusActive,
		EntityModel:    req.EntityModel,
		EntityID:       req.EntityID,
		Version:        1,
	}
	if err := request.Validate(); err != nil {
		return nil, err
	}

	if req.Content != nil {
		raw, err := json.Marshal(req.Content)
		if err != nil {
			return nil, apperr.Validation("content is not serializable: %v", err)
		}
		data := entity.RequestData{
			ID:        uuid.New().String(),
			RequestID: request.ID,
			DataType:  entity.DataTypeJSON,
			Name:      "content",
			Value:     string(raw),
		}
		if err := data.Validate(); err != nil {
			return nil, err
		}
		request.Data = append(request.Data, data)
	}

	if req.Note != "" {
		note := entity.RequestNote{
			ID:        uuid.New().String(),
			RequestID: request.ID,
			UserID:    user.ID,
			NoteType:  entity.NoteTypeUser,
			Note:      req.Note,
		}
		if err := note.Validate(); err != nil {
			return nil, err
		}
		request.Notes = append(request.Notes, note)
	}

	// 显式递增时间戳，按创建顺序读回时次序稳定
	now := time.Now()
	for i, sid := range req.StakeholderIDs {
		stakeholder := entity.RequestStakeholder{
			ID:              uuid.New().String(),
			RequestID:       request.ID,
			StakeholderID:   sid,
			StakeholderType: entity.StakeholderTypeUser,
			CreatedAt:       now.Add(time.Duration(i) * time.Millisecond),
		}
		if err := stakeholder.Validate(); err != nil {
			return nil, err
		}
		request.Stakeholders = append(request.Stakeholders, stakeholder)
	}

	if err := s.repos.Request.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	return s.FindOneRequest(ctx, request.ID)
}

// findStartState 起点状态必须恰好一个
func (s *RequestService) findStartState(ctx context.Context, processID string) (*entity.State, error) {
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

// FindOneRequest 查找请求并带出全部子记录
func (s *RequestService) FindOneRequest(ctx context.Context, id string) (*entity.Request, error) {
	request, err := s.repos.Request.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("request is not found")
		}
		return nil, fmt.Errorf("查询请求失败: %w", err)
	}
	return request, nil
}

// SearchRequests 列出流程下的请求
func (s *RequestService) SearchRequests(ctx context.Context, processID string, page, pageSize int) ([]entity.Request, error) {
	return s.repos.Request.ListByProcess(ctx, processID, page, pageSize)
}

// SearchRequestsByUser 列出用户发起的请求
func (s *RequestService) SearchRequestsByUser(ctx context.Context, userID string, page, pageSize int) ([]entity.Request, error) {
	return s.repos.Request.ListByUser(ctx, userID, page, pageSize)
}

// ArchiveRequest 归档请求，归档后不再接受任何动作
func (s *RequestService) ArchiveRequest(ctx context.Context, id string) error {
	if _, err := s.FindOneRequest(ctx, id); err != nil {
		return err
	}
	if err := s.repos.Request.Archive(ctx, id); err != nil {
		return fmt.Errorf("归档请求失败: %w", err)
	}
	return nil
}

// AllowedActions 当前状态出发的全部路由上挂的动作并集，未做用户过滤
func (s *RequestService) AllowedActions(ctx context.Context, requestID string) ([]entity.Action, error) {
	request, err := s.FindOneRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	routes, err := s.repos.Route.ListByCurrentState(ctx, request.ProcessID, request.CurrentStateID)
	if err != nil {
		return nil, fmt.Errorf("查询路由失败: %w", err)
	}
	return unionActions(routes), nil
}

// AllowedActionsForUser 可用动作再过一遍权限过滤
func (s *RequestService) AllowedActionsForUser(ctx context.Context, requestID, userID string) ([]entity.Action, error) {
	actions, err := s.AllowedActions(ctx, requestID)
	if err != nil {
		return nil, err
	}
	var allowed []entity.Action
	for i := range actions {
		ok, err := s.MayPerform(ctx, userID, &actions[i])
		if err != nil {
			return nil, err
		}
		if ok {
			allowed = append(allowed, actions[i])
		}
	}
	return allowed, nil
}

// MayPerform 用户能否提交动作
// 动作上任一目标不限组（GroupID 为空）即放行，否则看用户是否在目标组内。
// 动作一个目标都没挂时视为对谁都不开放。
func (s *RequestService) MayPerform(ctx context.Context, userID string, action *entity.Action) (bool, error) {
	for i := range action.Targets {
		target := &action.Targets[i]
		if target.IsOpen() {
			return true, nil
		}
		ok, err := s.group.IsUserInGroup(ctx, target.GroupID, userID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// CommitAction 提交动作，整个流转在一个事务里完成：
// 权限校验、找流转路由、压缩审计日志、追加新日志、
// 乐观锁推进状态、执行路由活动和新状态的进入活动。
// 并发提交只允许一个成功，输家拿到冲突错误后可重试。
func (s *RequestService) CommitAction(ctx context.Context, requestID, userID, actionID string) (*entity.Request, error) {
	request, err := s.FindOneRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status == entity.RequestStatusArchived {
		return nil, apperr.Validation("request is archived")
	}
	actor, err := s.repos.User.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("user is not found")
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if _, err := s.repos.Action.FindByID(ctx, actionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("action is not found")
		}
		return nil, fmt.Errorf("查询动作失败: %w", err)
	}

	routes, err := s.repos.Route.ListByCurrentState(ctx, request.ProcessID, request.CurrentStateID)
	if err != nil {
		return nil, fmt.Errorf("查询路由失败: %w", err)
	}

	// 流转路由：当前状态出发且挂了该动作的那条边
	// 多条路由挂同一动作时取创建最早的一条，路由列表已按 created_at 排序
	var turningRoute *entity.Route
	var action *entity.Action
	for i := range routes {
		for j := range routes[i].Actions {
			if routes[i].Actions[j].ID == actionID {
				turningRoute = &routes[i]
				action = &routes[i].Actions[j]
				break
			}
		}
		if turningRoute != nil {
			break
		}
	}
	if turningRoute == nil {
		return nil, apperr.DontHaveRight("action is not available at the current state")
	}
	ok, err := s.MayPerform(ctx, userID, action)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.DontHaveRight("you don't have right to perform action %s", action.Name)
	}

	var queued []mail.Message
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 日志压缩：历史提交全部置为 done，只有最新一条保持 active
		if err := tx.Model(&entity.RequestAction{}).
			Where("request_id = ? AND status = ?", request.ID, entity.RequestActionStatusActive).
			Update("status", entity.RequestActionStatusDone).Error; err != nil {
			return fmt.Errorf("压缩审计日志失败: %w", err)
		}

		record := &entity.RequestAction{
			ID:        uuid.New().String(),
			RequestID: request.ID,
			ActionID:  action.ID,
			UserID:    actor.ID,
			RouteID:   turningRoute.ID,
			Status:    entity.RequestActionStatusActive,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("写入审计日志失败: %w", err)
		}

		// 乐观锁：版本对不上说明有并发提交抢先落库，本次作废
		updates := map[string]interface{}{"version": request.Version + 1}
		var nextState *entity.State
		if !turningRoute.IsSelfLoop() {
			var st entity.State
			if err := tx.Preload("Activities").Preload("Activities.Targets").
				Where("id = ?", turningRoute.NextStateID).First(&st).Error; err != nil {
				return fmt.Errorf("查询下一状态失败: %w", err)
			}
			nextState = &st
			updates["current_state_id"] = nextState.ID
			if nextState.IsTerminal() {
				updates["status"] = entity.RequestStatusDone
			}
		}
		result := tx.Model(&entity.Request{}).
			Where("id = ? AND version = ?", request.ID, request.Version).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("推进请求状态失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.Conflict("request was modified concurrently, retry the action")
		}

		for i := range turningRoute.Activities {
			msgs, err := s.dispatcher.Fire(ctx, tx, request, &turningRoute.Activities[i], actor, action)
			if err != nil {
				return err
			}
			queued = append(queued, msgs...)
		}
		if nextState != nil {
			for i := range nextState.Activities {
				msgs, err := s.dispatcher.Fire(ctx, tx, request, &nextState.Activities[i], actor, action)
				if err != nil {
					return err
				}
				queued = append(queued, msgs...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 事务提交后异步投递邮件，失败只记日志不影响流转
	if s.mailer != nil && len(queued) > 0 {
		go func(msgs []mail.Message) {
			for _, msg := range msgs {
				if err := s.mailer.Send(msg); err != nil {
					log.Printf("send mail failed: %v", err)
				}
			}
		}(queued)
	}

	return s.FindOneRequest(ctx, request.ID)
}

// ListRequestActions 请求的审计日志，按提交时间正序
func (s *RequestService) ListRequestActions(ctx context.Context, requestID string) ([]entity.RequestAction, error) {
	if _, err := s.FindOneRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return s.repos.Request.ListActions(ctx, requestID)
}

// unionActions 把多条路由上的动作去重合并
func unionActions(routes []entity.Route) []entity.Action {
	seen := make(map[string]bool)
	var actions []entity.Action
	for i := range routes {
		for _, a := range routes[i].Actions {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			actions = append(actions, a)
		}
	}
	return actions
}
