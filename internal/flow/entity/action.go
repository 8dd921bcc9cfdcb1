package entity

import (
	"time"

	"github.com/bitfantasy/nimo-flow/internal/flow/apperr"
)

// 动作类型常量
const (
	ActionTypeStart   = "start"   // 发起：请求送审
	ActionTypeApprove = "approve" // 同意：推进到下一状态
	ActionTypeCancel  = "cancel"  // 取消：发起人撤回
	ActionTypeReject  = "reject"  // 退回：打回发起人修改后可重新提交
	ActionTypeDeny    = "deny"    // 拒绝：进入终态
	ActionTypeRestart = "restart" // 重来：送回起点状态
	ActionTypeResolve = "resolve" // 了结：直接送到完成状态
	ActionTypeEdit    = "edit"    // 编辑：原地动作，不推进状态
)

// Action 用户可以在请求上执行的操作，挂在路由上解锁流转
type Action struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Name        string    `json:"name" gorm:"size:128;not null;uniqueIndex"`
	Description string    `json:"description" gorm:"size:500"`
	ActionType  string    `json:"action_type" gorm:"size:20;not null;default:'approve'"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// 关联
	Routes  []Route  `json:"routes,omitempty" gorm:"many2many:route_actions;"`
	Targets []Target `json:"targets,omitempty" gorm:"many2many:action_targets;"`
}

func (Action) TableName() string {
	return "actions"
}

// Validate 规范化并校验字段
func (a *Action) Validate() error {
	name, err := validateName(a.Name)
	if err != nil {
		return err
	}
	a.Name = name

	desc, err := validateShortParagraph(a.Description)
	if err != nil {
		return err
	}
	a.Description = desc

	a.ActionType = normalizeEnum(a.ActionType)
	switch a.ActionType {
	case ActionTypeStart, ActionTypeApprove, ActionTypeCancel, ActionTypeReject,
		ActionTypeDeny, ActionTypeRestart, ActionTypeResolve, ActionTypeEdit:
		return nil
	default:
		return apperr.Validation("invalid action_type, receive %s", a.ActionType)
	}
}
