// Package errors 提供统一错误辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误（可按需扩展错误码）
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")
)

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// UserError 携带面向用户的简短提示；技术细节保留在 Err 中仅用于日志与追踪
type UserError struct {
	Message string // 发送给最终用户的文案
	Err     error
}

// Error 实现 error
func (e *UserError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

// Unwrap 支持 errors.Is / errors.As
func (e *UserError) Unwrap() error { return e.Err }

// WithUserMessage 为 err 附加用户文案；err 为 nil 时返回 nil
func WithUserMessage(err error, message string) error {
	if err == nil {
		return nil
	}
	return &UserError{Message: message, Err: err}
}

// UserMessage 提取错误链上的用户文案；没有则返回 fallback
func UserMessage(err error, fallback string) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message
	}
	return fallback
}
