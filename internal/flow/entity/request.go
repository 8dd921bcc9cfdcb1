package entity

import (
	"time"

	"github.com/bitfantasy/nimo-flow/internal/flow/apperr"
	"gorm.io/gorm"
)

// 请求状态常量
const (
	RequestStatusActive   = "active"
	RequestStatusArchived = "archived"
	RequestStatusDone     = "done"
)

// 请求数据类型常量
const (
	DataTypeJSON = "json"
	DataTypeText = "text"
)

// 备注类型常量
const (
	NoteTypeUser   = "user_note"
	NoteTypeSystem = "system_note"
)

// 干系人类型常量
const (
	StakeholderTypeUser  = "user"
	StakeholderTypeGroup = "group"
)

// 审计日志状态常量
const (
	RequestActionStatusActive = "active"
	RequestActionStatusDone   = "done"
	RequestActionStatusRevert = "revert"
)

// Request 跑在流程上的请求实例，跟踪当前状态和历史
//
// EntityModel/EntityID 把请求挂到外部业务对象上。为空时请求数据不约束schema。
// Version 单调递增，提交动作时做乐观锁比对，并发提交只允许一个成功。
type Request struct {
	ID             string         `json:"id" gorm:"primaryKey;size:36"`
	Title          string         `json:"title" gorm:"size:500;not null"`
	ProcessID      string         `json:"process_id" gorm:"size:36;not null;index"`
	UserID         string         `json:"user_id" gorm:"size:36;not null;index"`
	CurrentStateID string         `json:"current_state_id" gorm:"size:36;not null"`
	Status         string         `json:"status" gorm:"size:20;not null;default:'active'"`
	EntityModel    string         `json:"entity_model" gorm:"size:128;not null;default:''"`
	EntityID       string         `json:"entity_id" gorm:"size:36;not null;default:''"`
	Version        int64          `json:"version" gorm:"not null;default:1"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	// 关联
	Process      *Process             `json:"process,omitempty" gorm:"foreignKey:ProcessID"`
	CurrentState *State               `json:"current_state,omitempty" gorm:"foreignKey:CurrentStateID"`
	User         *User                `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Data         []RequestData        `json:"request_data,omitempty" gorm:"foreignKey:RequestID"`
	Notes        []RequestNote        `json:"request_note,omitempty" gorm:"foreignKey:RequestID"`
	Stakeholders []RequestStakeholder `json:"request_stakeholder,omitempty" gorm:"foreignKey:RequestID"`
	Actions      []RequestAction      `json:"request_action,omitempty" gorm:"foreignKey:RequestID"`
}

func (Request) TableName() string {
	return "requests"
}

// Validate 规范化并校验字段
func (r *Request) Validate() error {
	title, err := validateShortParagraph(r.Title)
	if err != nil {
		return err
	}
	r.Title = title

	if r.EntityModel != "" {
		model, err := validateNameWithoutSpace(r.EntityModel)
		if err != nil {
			return err
		}
		r.EntityModel = model
	}

	if r.Status == "" {
		r.Status = RequestStatusActive
	}
	r.Status = normalizeEnum(r.Status)
	switch r.Status {
	case RequestStatusActive, RequestStatusArchived, RequestStatusDone:
		return nil
	default:
		return apperr.Validation("invalid status, receive %s", r.Status)
	}
}

// RequestData 挂在请求上的数据载荷
// data_type=json 时 value 存 JSON 编码后的内容，否则为纯文本
type RequestData struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	RequestID string    `json:"request_id" gorm:"size:36;not null;index"`
	DataType  string    `json:"data_type" gorm:"size:20;not null;default:'text'"`
	Status    string    `json:"status" gorm:"size:20;not null;default:'active'"`
	Name      string    `json:"name" gorm:"size:128;not null;default:'content'"`
	Value     string    `json:"value" gorm:"size:4000"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RequestData) TableName() string {
	return "request_data"
}

// Validate 规范化并校验字段
func (d *RequestData) Validate() error {
	if d.Status == "" {
		d.Status = RequestStatusActive
	}
	d.Status = normalizeEnum(d.Status)
	switch d.Status {
	case RequestStatusActive, RequestStatusArchived, RequestStatusDone:
	default:
		return apperr.Validation("invalid status, receive %s", d.Status)
	}

	if d.Name == "" {
		d.Name = "content"
	}
	name, err := validateNameWithoutSpace(d.Name)
	if err != nil {
		return err
	}
	d.Name = name

	value, err := validateMediumParagraph(d.Value)
	if err != nil {
		return err
	}
	d.Value = value

	if d.DataType == "" {
		d.DataType = DataTypeText
	}
	d.DataType = normalizeEnum(d.DataType)
	if d.DataType != DataTypeJSON && d.DataType != DataTypeText {
		return apperr.Validation("invalid data_type, receive %s", d.DataType)
	}
	return nil
}

// RequestNote 请求上的备注，可以是用户评论或系统生成
type RequestNote struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	RequestID string    `json:"request_id" gorm:"size:36;not null;index"`
	UserID    string    `json:"user_id" gorm:"size:36;not null;default:''"`
	NoteType  string    `json:"note_type" gorm:"size:20;not null;default:'user_note'"`
	Status    string    `json:"status" gorm:"size:20;not null;default:'active'"`
	Note      string    `json:"note" gorm:"size:4000"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RequestNote) TableName() string {
	return "request_notes"
}

// Validate 规范化并校验字段
func (n *RequestNote) Validate() error {
	if n.NoteType == "" {
		n.NoteType = NoteTypeUser
	}
	n.NoteType = normalizeEnum(n.NoteType)
	if n.NoteType != NoteTypeUser && n.NoteType != NoteTypeSystem {
		return apperr.Validation("invalid note_type, receive %s", n.NoteType)
	}

	if n.Status == "" {
		n.Status = RequestStatusActive
	}
	n.Status = normalizeEnum(n.Status)
	switch n.Status {
	case RequestStatusActive, RequestStatusArchived, RequestStatusDone:
	default:
		return apperr.Validation("invalid status, receive %s", n.Status)
	}

	note, err := validateMediumParagraph(n.Note)
	if err != nil {
		return err
	}
	n.Note = note
	return nil
}

// RequestStakeholder 被抄送到请求上的用户或用户组
type RequestStakeholder struct {
	ID              string    `json:"id" gorm:"primaryKey;size:36"`
	RequestID       string    `json:"request_id" gorm:"size:36;not null;index"`
	StakeholderID   string    `json:"stakeholder_id" gorm:"size:36;not null"`
	StakeholderType string    `json:"stakeholder_type" gorm:"size:20;not null;default:'user'"`
	CreatedAt       time.Time `json:"created_at"`
}

func (RequestStakeholder) TableName() string {
	return "request_stakeholders"
}

// Validate 规范化并校验字段
func (s *RequestStakeholder) Validate() error {
	if s.StakeholderType == "" {
		s.StakeholderType = StakeholderTypeUser
	}
	s.StakeholderType = normalizeEnum(s.StakeholderType)
	if s.StakeholderType != StakeholderTypeUser && s.StakeholderType != StakeholderTypeGroup {
		return apperr.Validation("invalid stakeholder_type, receive %s", s.StakeholderType)
	}
	if s.StakeholderID == "" {
		return apperr.Validation("missing stakeholder id")
	}
	return nil
}

// RequestAction 审计日志：请求上每次成功提交的动作
//
// 只追加不修改，每次提交写入一行 active，同时把之前所有行压缩为 done，
// 所以任意时刻最多只有最近一次提交是 active。
type RequestAction struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	RequestID string    `json:"request_id" gorm:"size:36;not null;index"`
	ActionID  string    `json:"action_id" gorm:"size:36;not null"`
	UserID    string    `json:"user_id" gorm:"size:36;not null"`
	RouteID   string    `json:"route_id" gorm:"size:36;not null"`
	Status    string    `json:"status" gorm:"size:20;not null;default:'active'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Action *Action `json:"action,omitempty" gorm:"foreignKey:ActionID"`
	Route  *Route  `json:"route,omitempty" gorm:"foreignKey:RouteID"`
}

func (RequestAction) TableName() string {
	return "request_actions"
}

// Validate 规范化并校验字段
func (a *RequestAction) Validate() error {
	if a.Status == "" {
		a.Status = RequestActionStatusActive
	}
	a.Status = normalizeEnum(a.Status)
	switch a.Status {
	case RequestActionStatusActive, RequestActionStatusDone, RequestActionStatusRevert:
		return nil
	default:
		return apperr.Validation("invalid status, receive %s", a.Status)
	}
}
