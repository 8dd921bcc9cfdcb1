package repository

import (
	"context"

	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"gorm.io/gorm"
)

// RequestRepository 请求仓库
type RequestRepository struct {
	db *gorm.DB
}

// NewRequestRepository 创建请求仓库
func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create 创建请求，子记录（数据、备注、干系人）一并落库
func (r *RequestRepository) Create(ctx context.Context, request *entity.Request) error {
	return r.db.WithContext(ctx).Create(request).Error
}

// FindByID 根据ID查找请求并带出全部子记录
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*entity.Request, error) {
	var request entity.Request
	err := r.db.WithContext(ctx).
		Preload("CurrentState").
		Preload("User").
		Preload("Data", orderByCreatedAt).
		Preload("Notes", orderByCreatedAt).
		Preload("Stakeholders", orderByCreatedAt).
		Preload("Actions", orderByCreatedAt).
		Preload("Actions.Action").
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &request, nil
}

// orderByCreatedAt 子集合按创建顺序返回
func orderByCreatedAt(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

// ListByProcess 列出流程下的请求
func (r *RequestRepository) ListByProcess(ctx context.Context, processID string, page, pageSize int) ([]entity.Request, error) {
	var requests []entity.Request
	err := r.db.WithContext(ctx).
		Where("process_id = ?", processID).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&requests).Error
	return requests, err
}

// ListByUser 列出用户发起的请求
func (r *RequestRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]entity.Request, error) {
	var requests []entity.Request
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&requests).Error
	return requests, err
}

// Update 更新请求
func (r *RequestRepository) Update(ctx context.Context, request *entity.Request) error {
	return r.db.WithContext(ctx).Save(request).Error
}

// Archive 归档请求（软归档，不删除）
func (r *RequestRepository) Archive(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Request{}).
		Where("id = ?", id).
		Update("status", entity.RequestStatusArchived).Error
}

// ListActions 列出请求的审计日志
func (r *RequestRepository) ListActions(ctx context.Context, requestID string) ([]entity.RequestAction, error) {
	var actions []entity.RequestAction
	err := r.db.WithContext(ctx).
		Preload("Action").
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&actions).Error
	return actions, err
}
