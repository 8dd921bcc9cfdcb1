package service

import (
	"github.com/bitfantasy/nimo-flow/internal/flow/repository"
	"github.com/bitfantasy/nimo-flow/internal/shared/mail"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Process  *ProcessService
	Action   *ActionService
	Activity *ActivityService
	Target   *TargetService
	Group    *GroupService
	User     *UserService
	Request  *RequestService
}

// NewServices 创建服务集合
// rdb 为 nil 时组成员缓存退化为直查数据库；mailer 为 nil 时跳过邮件发送
func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, mailer mail.Mailer) *Services {
	group := NewGroupService(repos, rdb)
	return &Services{
		Process:  NewProcessService(db, repos),
		Action:   NewActionService(repos),
		Activity: NewActivityService(repos),
		Target:   NewTargetService(repos),
		Group:    group,
		User:     NewUserService(repos),
		Request:  NewRequestService(db, repos, group, mailer),
	}
}
