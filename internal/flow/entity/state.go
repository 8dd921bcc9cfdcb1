package entity

import (
	"time"

	"github.com/bitfantasy/nimo-flow/internal/flow/apperr"
)

// 状态类型常量
const (
	StateTypeStart    = "start"    // 起点状态，请求创建后落在这里
	StateTypeNormal   = "normal"   // 中间状态
	StateTypeComplete = "complete" // 终态：已完成
	StateTypeDenied   = "denied"   // 终态：已拒绝
)

// State 流程图上的节点，进入时可触发活动
type State struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	ProcessID   string    `json:"process_id" gorm:"size:36;not null;index"`
	Name        string    `json:"name" gorm:"size:128;not null"`
	Description string    `json:"description" gorm:"size:500"`
	StateType   string    `json:"state_type" gorm:"size:20;not null;default:'normal'"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// 关联
	Process    *Process   `json:"process,omitempty" gorm:"foreignKey:ProcessID"`
	Activities []Activity `json:"activities,omitempty" gorm:"many2many:state_activities;"`
}

func (State) TableName() string {
	return "states"
}

// IsTerminal complete/denied 约定为终态，但引擎只看路由是否存在
func (s *State) IsTerminal() bool {
	return s.StateType == StateTypeComplete || s.StateType == StateTypeDenied
}

// Validate 规范化并校验字段
func (s *State) Validate() error {
	name, err := validateName(s.Name)
	if err != nil {
		return err
	}
	s.Name = name

	desc, err := validateShortParagraph(s.Description)
	if err != nil {
		return err
	}
	s.Description = desc

	s.StateType = normalizeEnum(s.StateType)
	switch s.StateType {
	case StateTypeStart, StateTypeNormal, StateTypeComplete, StateTypeDenied:
		return nil
	default:
		return apperr.Validation("invalid state_type, receive %s", s.StateType)
	}
}
