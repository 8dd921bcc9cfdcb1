package entity

import (
	"time"

	"github.com/bitfantasy/nimo-flow/internal/flow/apperr"
)

// 目标类型常量
const (
	TargetTypeUser  = "user"
	TargetTypeGroup = "group"
)

// Target 权限锚点，挂在动作和活动上
//
// 挂在动作上：组内任意成员可以提交该动作。
// 挂在活动上：组内全部成员接收该活动（例如所有人收到邮件）。
// GroupID 为空串表示不限制：任何人可提交 / 按干系人收取。
type Target struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Name        string    `json:"name" gorm:"size:128;not null;uniqueIndex"`
	Description string    `json:"description" gorm:"size:500"`
	TargetType  string    `json:"target_type" gorm:"size:20;not null;default:'group'"`
	GroupID     string    `json:"group_id" gorm:"size:36;not null;default:''"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// 关联
	Actions    []Action   `json:"actions,omitempty" gorm:"many2many:action_targets;"`
	Activities []Activity `json:"activities,omitempty" gorm:"many2many:activity_targets;"`
}

func (Target) TableName() string {
	return "targets"
}

// IsOpen 无组限制的目标
func (t *Target) IsOpen() bool {
	return t.GroupID == ""
}

// Validate 规范化并校验字段
func (t *Target) Validate() error {
	name, err := validateName(t.Name)
	if err != nil {
		return err
	}
	t.Name = name

	desc, err := validateShortParagraph(t.Description)
	if err != nil {
		return err
	}
	t.Description = desc

	t.TargetType = normalizeEnum(t.TargetType)
	if t.TargetType == "" {
		t.TargetType = TargetTypeGroup
	}
	if t.TargetType != TargetTypeUser && t.TargetType != TargetTypeGroup {
		return apperr.Validation("invalid target_type, receive %s", t.TargetType)
	}
	return nil
}
