package domain

import "time"

// FallSource 跌倒事件来源
const (
	FallSourceManual = "manual" // 手动上报（患者/护士/管理员）
	FallSourceDevice = "device" // 可穿戴设备经 MQTT 上报
)

// FallEvent 跌倒事件审计记录（对应 fall_events 表）
// 事件是边沿触发的：患者的 fall_active 在通知扇出完成后自动复位，
// 持久化的历史记录以此表为准
type FallEvent struct {
	EventID    string    `db:"event_id"`    // UUID, PRIMARY KEY
	PatientID  string    `db:"patient_id"`  // NOT NULL
	ReportedAt time.Time `db:"reported_at"` // NOT NULL
	Source     string    `db:"source"`      // 'manual' | 'device'

	// 通知扇出结果（观测数据，不影响事件生命周期）
	NotifyAttempted int `db:"notify_attempted"`
	NotifyDelivered int `db:"notify_delivered"`
	NotifyFailed    int `db:"notify_failed"`

	CreatedAt time.Time `db:"created_at"`
}
