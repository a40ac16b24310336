package repository

import (
	"context"
	"time"

	"wisefido-care/internal/domain"
)

// UsersRepository 用户/分配关系 Repository 接口
// 使用强类型领域模型；Repository 层只负责数据访问，
// 角色/参与者等业务校验在 Service 层完成
type UsersRepository interface {
	// ========== 查询 ==========
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	// GetUsers 按 ID 批量查询（用于填充护士的患者列表），结果顺序与 ids 无关
	GetUsers(ctx context.Context, ids []string) ([]*domain.User, error)

	// ========== 创建/删除 ==========
	CreateUser(ctx context.Context, user *domain.User) error
	DeleteUser(ctx context.Context, userID string) error

	// ========== 分配关系（双向写入） ==========
	// AssignPatient 在同一事务中：把患者加入护士的 assigned_patients，
	// 并把患者的 nurse_id 指向该护士。任一侧未生效返回 ErrPartial（可重试）
	AssignPatient(ctx context.Context, nurseID, patientID string) error
	// UnassignPatient 在同一事务中：把患者移出护士的 assigned_patients，
	// 并仅当患者的 nurse_id 仍指向该护士时清除它
	UnassignPatient(ctx context.Context, nurseID, patientID string) error

	// ListNursesFor 返回 assigned_patients 包含该患者的全部护士
	// 从护士侧读取，分配关系两侧短暂不一致时以此为准（通知路由用）
	ListNursesFor(ctx context.Context, patientID string) ([]*domain.User, error)

	// ========== 跌倒状态 ==========
	// SetFallStatus 更新患者的 fall_active；active=true 时同时写入 last_fall_at
	// 返回更新后的患者记录
	SetFallStatus(ctx context.Context, patientID string, active bool, at time.Time) (*domain.User, error)
	// ListActiveFalls 返回所有 fall_active=true 的患者，按 last_fall_at 降序
	ListActiveFalls(ctx context.Context) ([]*domain.User, error)
}

// FormFilters 工单查询过滤器
type FormFilters struct {
	PatientID string            // 按患者过滤（空=不过滤）
	NurseID   string            // 按护士过滤（空=不过滤）
	Resolved  *bool             // 按 resolved 派生桶过滤
	Status    domain.FormStatus // 按精确状态过滤（空=不过滤）
}

// FormsRepository 工单 Repository 接口
type FormsRepository interface {
	// CreateForm 创建工单并在同一事务中写入首条消息
	CreateForm(ctx context.Context, form *domain.Form, seed *domain.FormMessage) error
	// GetForm 返回工单及按 created_at 升序的完整消息线程
	GetForm(ctx context.Context, formID string) (*domain.Form, error)
	// AppendMessage 追加消息并更新 updated_at；newStatus 非空时同时迁移状态
	AppendMessage(ctx context.Context, formID string, msg *domain.FormMessage, newStatus domain.FormStatus, updatedAt time.Time) error
	// ResolveForm 置 resolved/resolved_by/resolved_at/status='resolved'
	ResolveForm(ctx context.Context, formID, resolvedBy string, at time.Time) error
	// CancelForm 管理员终止：status='cancelled'
	CancelForm(ctx context.Context, formID string, at time.Time) error
	// ListForms 按过滤条件查询，updated_at 降序，消息线程已填充
	ListForms(ctx context.Context, filters FormFilters) ([]*domain.Form, error)
}

// FallEventsRepository 跌倒事件审计 Repository 接口
type FallEventsRepository interface {
	CreateFallEvent(ctx context.Context, event *domain.FallEvent) error
	// ListFallEvents patientID 为空时查询全部；reported_at 降序分页
	ListFallEvents(ctx context.Context, patientID string, page, size int) ([]*domain.FallEvent, int, error)
}
