package entity

import (
	"time"
)

// Route 两个状态之间的有向边
// NextStateID 为空串表示原地路由：动作提交后请求停留在当前状态（如 edit）
type Route struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	ProcessID      string    `json:"process_id" gorm:"size:36;not null;index"`
	CurrentStateID string    `json:"current_state_id" gorm:"size:36;not null;index"`
	NextStateID    string    `json:"next_state_id" gorm:"size:36;not null;default:''"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// 关联
	Process      *Process   `json:"process,omitempty" gorm:"foreignKey:ProcessID"`
	CurrentState *State     `json:"current_state,omitempty" gorm:"foreignKey:CurrentStateID"`
	Actions      []Action   `json:"actions,omitempty" gorm:"many2many:route_actions;"`
	Activities   []Activity `json:"activities,omitempty" gorm:"many2many:route_activities;"`
}

func (Route) TableName() string {
	return "routes"
}

// IsSelfLoop 是否为原地路由（不推进状态）
func (r *Route) IsSelfLoop() bool {
	return r.NextStateID == ""
}

// HasAction 路由上是否挂了指定动作
func (r *Route) HasAction(actionID string) bool {
	for _, a := range r.Actions {
		if a.ID == actionID {
			return true
		}
	}
	return false
}
