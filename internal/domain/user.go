package domain

import (
	"database/sql"
	"regexp"
	"time"

	"github.com/lib/pq"
)

// Role 用户角色（患者/护士/管理员）
// 一个用户在任意时刻只能有一个角色
type Role string

const (
	RolePatient Role = "patient"
	RoleNurse   Role = "nurse"
	RoleAdmin   Role = "admin"
)

// Valid 角色是否合法
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleNurse, RoleAdmin:
		return true
	}
	return false
}

// User 用户领域模型（对应 users 表）
// role 决定哪些字段有意义：
//   - patient: FallActive / LastFallAt / NurseID（反向引用）
//   - nurse:   AssignedPatients（患者 ID 列表）
//   - admin:   无额外字段
type User struct {
	// 主键
	UserID string `db:"user_id"` // UUID, PRIMARY KEY

	// 基本信息
	Name  string         `db:"name"`  // NOT NULL
	Email string         `db:"email"` // NOT NULL, UNIQUE
	Phone sql.NullString `db:"phone"` // nullable, E.164 格式
	Role  Role           `db:"role"`  // NOT NULL

	// 患者字段
	FallActive bool         `db:"fall_active"`  // 跌倒报警是否处于激活状态
	LastFallAt sql.NullTime `db:"last_fall_at"` // 最近一次跌倒时间（只设置，不清除）
	NurseID    sql.NullString `db:"nurse_id"`   // 负责护士（反向引用），nullable

	// 护士字段
	AssignedPatients pq.StringArray `db:"assigned_patients"` // UUID[], 分配的患者列表

	CreatedAt time.Time `db:"created_at"`
}

// IsPatient / IsNurse / IsAdmin 角色判断
func (u *User) IsPatient() bool { return u.Role == RolePatient }
func (u *User) IsNurse() bool   { return u.Role == RoleNurse }
func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }

// HasPatient 护士的分配列表中是否包含指定患者
func (u *User) HasPatient(patientID string) bool {
	for _, id := range u.AssignedPatients {
		if id == patientID {
			return true
		}
	}
	return false
}

// phoneRe E.164 电话号码校验
var phoneRe = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// ValidPhone 校验 E.164 格式电话号码
func ValidPhone(phone string) bool {
	return phoneRe.MatchString(phone)
}

// PatientSummary 患者摘要（API 返回/通知路由用）
type PatientSummary struct {
	UserID     string     `json:"userId"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Phone      string     `json:"phoneNumber,omitempty"`
	FallActive bool       `json:"fallActive"`
	LastFallAt *time.Time `json:"lastFallAt,omitempty"`
}

// NurseSummary 护士摘要
type NurseSummary struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phoneNumber,omitempty"`
}

// Summary 生成患者摘要
func (u *User) Summary() PatientSummary {
	s := PatientSummary{
		UserID:     u.UserID,
		Name:       u.Name,
		Email:      u.Email,
		FallActive: u.FallActive,
	}
	if u.Phone.Valid {
		s.Phone = u.Phone.String
	}
	if u.LastFallAt.Valid {
		t := u.LastFallAt.Time
		s.LastFallAt = &t
	}
	return s
}

// NurseView 生成护士摘要
func (u *User) NurseView() NurseSummary {
	s := NurseSummary{
		UserID: u.UserID,
		Name:   u.Name,
		Email:  u.Email,
	}
	if u.Phone.Valid {
		s.Phone = u.Phone.String
	}
	return s
}
