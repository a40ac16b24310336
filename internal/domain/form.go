package domain

import (
	"database/sql"
	"time"
)

// FormStatus 工单状态
// 状态机：pending --(护士首次回复)--> in-progress --(resolve)--> resolved
// pending --(resolve)--> resolved 也合法；cancelled 为管理员终止状态
type FormStatus string

const (
	FormPending    FormStatus = "pending"
	FormInProgress FormStatus = "in-progress"
	FormResolved   FormStatus = "resolved"
	FormCancelled  FormStatus = "cancelled"
)

// Terminal 是否为终止状态（不再发生状态迁移）
func (s FormStatus) Terminal() bool {
	return s == FormResolved || s == FormCancelled
}

// Form 工单领域模型（对应 forms 表）
// 患者对指定护士发起的支持工单，消息线程只追加不修改
type Form struct {
	FormID    string     `db:"form_id"` // UUID, PRIMARY KEY
	Title     string     `db:"title"`   // NOT NULL
	PatientID string     `db:"patient_id"` // NOT NULL, 创建后不变
	NurseID   string     `db:"nurse_id"`   // NOT NULL, 创建后不变
	Status    FormStatus `db:"status"`     // NOT NULL, default 'pending'

	// resolved 与 status 保持一致：resolved=true ⇔ status='resolved'
	Resolved   bool           `db:"resolved"`
	ResolvedBy sql.NullString `db:"resolved_by"` // nullable
	ResolvedAt sql.NullTime   `db:"resolved_at"` // nullable

	Messages []FormMessage `db:"-"` // 消息线程（form_messages 表，按 created_at 升序）

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// FormMessage 工单消息（对应 form_messages 表）
// sender 必须是工单的 patient 或 nurse
type FormMessage struct {
	MessageID  string         `db:"message_id"` // UUID, PRIMARY KEY
	FormID     string         `db:"form_id"`    // NOT NULL
	SenderID   string         `db:"sender_id"`  // NOT NULL
	Body       string         `db:"body"`       // NOT NULL, 非空
	Attachment sql.NullString `db:"attachment"` // nullable, 附件 URL
	CreatedAt  time.Time      `db:"created_at"`
}

// Participant 用户是否为工单参与者（患者或护士）
func (f *Form) Participant(userID string) bool {
	return f.PatientID == userID || f.NurseID == userID
}

// FormStats 工单统计（按调用者可见范围）
type FormStats struct {
	Total      int `json:"total"`
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Cancelled  int `json:"cancelled"`
}
