package domain

import "errors"

// 业务错误分类
// HTTP 层用 errors.Is 判断并映射到对应的状态码
var (
	// ErrNotFound 引用的用户/工单不存在
	ErrNotFound = errors.New("not found")

	// ErrWrongRole 用户存在但角色不符（如把非患者分配给护士）
	ErrWrongRole = errors.New("wrong role")

	// ErrNotAssigned 解除一个不存在的分配关系
	ErrNotAssigned = errors.New("patient is not assigned to this nurse")

	// ErrForbidden 用户不是该工单/分配关系的参与者
	ErrForbidden = errors.New("forbidden")

	// ErrBadRequest 必填字段为空或格式非法
	ErrBadRequest = errors.New("bad request")

	// ErrPartial 双向分配关系只写入了一侧（可安全重试，assign 幂等）
	ErrPartial = errors.New("partial assignment update")

	// ErrResolved 工单已解决，不允许继续追加消息（策略可配置）
	ErrResolved = errors.New("form already resolved")
)
