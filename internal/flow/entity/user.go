package entity

import (
	"time"
)

// User 用户实体（目录只读，账号体系由认证层维护）
type User struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	Username  string     `json:"username" gorm:"size:64;not null;uniqueIndex"`
	Name      string     `json:"name" gorm:"size:64;not null"`
	Email     string     `json:"email" gorm:"size:128;uniqueIndex"`
	Status    string     `json:"status" gorm:"size:16;not null;default:active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" gorm:"index"`

	// 关联
	Groups []Group `json:"groups,omitempty" gorm:"many2many:group_members;"`
}

func (User) TableName() string {
	return "users"
}

// Group 用户组，Target 的权限判定和收件范围都落在组成员上
type Group struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Name        string    `json:"name" gorm:"size:128;not null;uniqueIndex"`
	Description string    `json:"description" gorm:"size:500"`
	Status      string    `json:"status" gorm:"size:16;not null;default:active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// 关联
	Members []User `json:"members,omitempty" gorm:"many2many:group_members;"`
}

func (Group) TableName() string {
	return "groups"
}

// Validate 规范化并校验字段
func (g *Group) Validate() error {
	name, err := validateName(g.Name)
	if err != nil {
		return err
	}
	g.Name = name

	desc, err := validateShortParagraph(g.Description)
	if err != nil {
		return err
	}
	g.Description = desc
	return nil
}

// GroupMember 组成员关系表
type GroupMember struct {
	GroupID   string    `json:"group_id" gorm:"primaryKey;size:36"`
	UserID    string    `json:"user_id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`
}

func (GroupMember) TableName() string {
	return "group_members"
}
