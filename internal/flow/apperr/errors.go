package apperr

import (
	"errors"
	"fmt"
)

// 业务错误码，前三位对应HTTP状态码
const (
	CodeBadRequest   = 40000 // 参数/校验错误
	CodeForbidden    = 40300 // 无权限
	CodeNotFound     = 40400 // 记录不存在
	CodeConflict     = 40900 // 重复记录或并发冲突
	CodeNotImplement = 50100 // 已声明但未实现的能力
	CodeInternal     = 50000 // 未知错误
)

// Error 业务错误，携带错误码和可读信息
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// NotFound 记录不存在
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExist 记录已存在（重名、重复路由）
func AlreadyExist(format string, args ...interface{}) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// Validation 实体校验失败（枚举、长度、格式）
func Validation(format string, args ...interface{}) *Error {
	return &Error{Code: CodeBadRequest, Message: fmt.Sprintf(format, args...)}
}

// DontHaveRight 提交动作时的权限拒绝
func DontHaveRight(format string, args ...interface{}) *Error {
	return &Error{Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

// Conflict 乐观锁冲突，调用方可重试
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// NotImplemented 枚举中声明但尚未实现的活动类型
func NotImplemented(format string, args ...interface{}) *Error {
	return &Error{Code: CodeNotImplement, Message: fmt.Sprintf(format, args...)}
}

// CodeOf 返回错误的业务码，非业务错误视为50000
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsNotFound 判断是否为记录不存在错误
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == CodeNotFound
}

// IsDontHaveRight 判断是否为权限拒绝错误
func IsDontHaveRight(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == CodeForbidden
}

// IsConflict 判断是否为重复记录/并发冲突错误
func IsConflict(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == CodeConflict
}
