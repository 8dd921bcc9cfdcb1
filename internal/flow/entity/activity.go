package entity

import (
	"time"

	"github.com/bitfantasy/nimo-flow/internal/flow/apperr"
)

// 活动类型常量
const (
	ActivityTypeAddNote           = "add_note"           // 自动给请求追加一条系统备注
	ActivityTypeSendEmail         = "send_email"         // 给干系人发邮件通知
	ActivityTypeAddStakeholder    = "add_stakeholder"    // 已声明未实现
	ActivityTypeRemoveStakeholder = "remove_stakeholder" // 已声明未实现
)

// Activity 请求进入状态或走过路由时触发的副作用
type Activity struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Name         string    `json:"name" gorm:"size:128;not null;uniqueIndex"`
	Description  string    `json:"description" gorm:"size:500"`
	ActivityType string    `json:"activity_type" gorm:"size:20;not null;default:'add_note'"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// 关联
	Routes  []Route  `json:"routes,omitempty" gorm:"many2many:route_activities;"`
	States  []State  `json:"states,omitempty" gorm:"many2many:state_activities;"`
	Targets []Target `json:"targets,omitempty" gorm:"many2many:activity_targets;"`
}

func (Activity) TableName() string {
	return "activities"
}

// Validate 规范化并校验字段
func (a *Activity) Validate() error {
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

	a.ActivityType = normalizeEnum(a.ActivityType)
	switch a.ActivityType {
	case ActivityTypeAddNote, ActivityTypeSendEmail,
		ActivityTypeAddStakeholder, ActivityTypeRemoveStakeholder:
		return nil
	default:
		return apperr.Validation("invalid activity_type, receive %s", a.ActivityType)
	}
}
