package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-flow/internal/flow/apperr"
	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"github.com/bitfantasy/nimo-flow/internal/flow/repository"
	"github.com/bitfantasy/nimo-flow/internal/shared/mail"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityDispatcher 活动分发器：请求走过路由或进入状态时执行挂载的副作用
type ActivityDispatcher struct {
	repos *repository.Repositories
}

// NewActivityDispatcher 创建活动分发器
func NewActivityDispatcher(repos *repository.Repositories) *ActivityDispatcher {
	return &ActivityDispatcher{repos: repos}
}

// Fire 执行一个活动
// 数据库写入走 tx 保证和流转同事务；邮件不直接发送，
// 攒成消息返回，由调用方在事务提交后异步投递。
func (d *ActivityDispatcher) Fire(ctx context.Context, tx *gorm.DB, request *entity.Request, activity *entity.Activity, actor *entity.User, action *entity.Action) ([]mail.Message, error) {
	switch activity.ActivityType {
	case entity.ActivityTypeAddNote:
		note := &entity.RequestNote{
			ID:        uuid.New().String(),
			RequestID: request.ID,
			UserID:    actor.ID,
			NoteType:  entity.NoteTypeSystem,
			Note:      action.Name,
		}
		if err := note.Validate(); err != nil {
			return nil, err
		}
		if err := tx.Create(note).Error; err != nil {
			return nil, fmt.Errorf("创建系统备注失败: %w", err)
		}
		return nil, nil

	case entity.ActivityTypeSendEmail:
		recipients, err := d.resolveRecipients(ctx, request, activity)
		if err != nil {
			return nil, err
		}
		if len(recipients) == 0 {
			return nil, nil
		}
		msg := mail.Message{
			To:      recipients,
			Subject: fmt.Sprintf("[%s] %s", request.Title, action.Name),
			Body: fmt.Sprintf("%s performed %q on request %q.\n\nRequest ID: %s",
				actor.Name, action.Name, request.Title, request.ID),
		}
		return []mail.Message{msg}, nil

	case entity.ActivityTypeAddStakeholder, entity.ActivityTypeRemoveStakeholder:
		// 枚举里声明了但引擎没有实现，显式报错而不是静默跳过
		return nil, apperr.NotImplemented("activity type %s is not implemented", activity.ActivityType)

	default:
		// 未知类型属于图配置错误，整个流转失败
		return nil, fmt.Errorf("未知活动类型: %s", activity.ActivityType)
	}
}

// resolveRecipients 收件人 = 请求干系人（组展开成成员）∪ 活动目标组的成员
func (d *ActivityDispatcher) resolveRecipients(ctx context.Context, request *entity.Request, activity *entity.Activity) ([]string, error) {
	seen := make(map[string]bool)
	var emails []string
	add := func(users []entity.User) {
		for _, u := range users {
			if u.Email == "" || seen[u.Email] {
				continue
			}
			seen[u.Email] = true
			emails = append(emails, u.Email)
		}
	}

	var userIDs []string
	for _, st := range request.Stakeholders {
		switch st.StakeholderType {
		case entity.StakeholderTypeGroup:
			members, err := d.repos.Group.ListMembers(ctx, st.StakeholderID)
			if err != nil {
				return nil, fmt.Errorf("展开干系人组失败: %w", err)
			}
			add(members)
		default:
			userIDs = append(userIDs, st.StakeholderID)
		}
	}
	users, err := d.repos.User.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("查询干系人失败: %w", err)
	}
	add(users)

	for _, target := range activity.Targets {
		if target.IsOpen() {
			continue
		}
		members, err := d.repos.Group.ListMembers(ctx, target.GroupID)
		if err != nil {
			return nil, fmt.Errorf("展开目标组失败: %w", err)
		}
		add(members)
	}
	return emails, nil
}
