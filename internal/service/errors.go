package service

import (
	"errors"
)

// 操作错误类别。每个前置条件在任何变更之前检查，
// 失败时整个操作回滚，不留下部分效果。
var (
	// ErrInvalidInput 参数非法：零号零件号、空名称、数量越界
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized 调用者对引用的零件既非持有者也非受托账户
	ErrUnauthorized = errors.New("caller not owner nor approved")
	// ErrInvalidState 锁定状态前置条件不满足：零件已锁定、非组合件等
	ErrInvalidState = errors.New("invalid part state")
	// ErrOwnerMismatch 多零件操作中的零件不属于同一账户
	ErrOwnerMismatch = errors.New("parts not held by one owner")
	// ErrNotFound 引用的零件或子件不存在
	ErrNotFound = errors.New("part not found")
)
