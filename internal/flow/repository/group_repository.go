package repository

import (
	"context"

	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"gorm.io/gorm"
)

// GroupRepository 用户组仓库
type GroupRepository struct {
	db *gorm.DB
}

// NewGroupRepository 创建用户组仓库
func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create 创建用户组
func (r *GroupRepository) Create(ctx context.Context, group *entity.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

// FindByID 根据ID查找用户组
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*entity.Group, error) {
	var group entity.Group
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&group).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &group, nil
}

// FindByName 根据名称精确查找用户组，不存在时返回 nil
func (r *GroupRepository) FindByName(ctx context.Context, name string) (*entity.Group, error) {
	var group entity.Group
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&group).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

// Search 按名称模糊搜索用户组
func (r *GroupRepository) Search(ctx context.Context, name string, page, pageSize int) ([]entity.Group, error) {
	var groups []entity.Group
	query := r.db.WithContext(ctx)
	if name != "" {
		query = query.Where("name LIKE ?", "%"+name+"%")
	}
	err := query.
		Order("created_at ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&groups).Error
	return groups, err
}

// Update 更新用户组
func (r *GroupRepository) Update(ctx context.Context, group *entity.Group) error {
	return r.db.WithContext(ctx).Save(group).Error
}

// Delete 删除用户组
func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Group{}).Error
}

// AddMember 添加组成员，重复添加直接忽略
func (r *GroupRepository) AddMember(ctx context.Context, groupID, userID string) error {
	member := entity.GroupMember{GroupID: groupID, UserID: userID}
	err := r.db.WithContext(ctx).Create(&member).Error
	if err == gorm.ErrDuplicatedKey {
		return nil
	}
	return err
}

// RemoveMember 移除组成员
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	return r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&entity.GroupMember{}).Error
}

// IsUserInGroup 判断用户是否在组内
func (r *GroupRepository) IsUserInGroup(ctx context.Context, groupID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

// ListMembers 列出组内全部用户
func (r *GroupRepository) ListMembers(ctx context.Context, groupID string) ([]entity.User, error) {
	var users []entity.User
	err := r.db.WithContext(ctx).
		Joins("JOIN group_members ON group_members.user_id = users.id").
		Where("group_members.group_id = ?", groupID).
		Find(&users).Error
	return users, err
}
