package entity

import (
	"time"

	"github.com/bitfantasy/nimo-flow/internal/flow/apperr"
	"gorm.io/gorm"
)

// 流程状态常量
const (
	ProcessStatusActive   = "active"
	ProcessStatusInactive = "inactive"
)

// Process 流程模板：状态和路由构成的审批图
type Process struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	// 软删除后名字要能复用，唯一索引只约束未删除的行
	Name        string         `json:"name" gorm:"size:128;not null;uniqueIndex:uidx_processes_name,where:deleted_at is null"`
	Description string         `json:"description" gorm:"size:500"`
	Status      string         `json:"status" gorm:"size:20;not null;default:'inactive'"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	// 关联
	States   []State   `json:"states,omitempty" gorm:"foreignKey:ProcessID"`
	Routes   []Route   `json:"routes,omitempty" gorm:"foreignKey:ProcessID"`
	Requests []Request `json:"requests,omitempty" gorm:"foreignKey:ProcessID"`
}

func (Process) TableName() string {
	return "processes"
}

// Validate 规范化并校验字段，失败返回 ValidationError
func (p *Process) Validate() error {
	name, err := validateName(p.Name)
	if err != nil {
		return err
	}
	p.Name = name

	desc, err := validateShortParagraph(p.Description)
	if err != nil {
		return err
	}
	p.Description = desc

	p.Status = normalizeEnum(p.Status)
	if p.Status == "" {
		p.Status = ProcessStatusInactive
	}
	if p.Status != ProcessStatusActive && p.Status != ProcessStatusInactive {
		return apperr.Validation("invalid status, receive %s", p.Status)
	}
	return nil
}
