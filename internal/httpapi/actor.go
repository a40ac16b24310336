package httpapi

import (
	"net/http"

	"wisefido-care/internal/domain"
)

// Actor 调用者身份（由上游认证网关写入请求头）
// 认证协议本身（OAuth/会话）不在本服务范围内
type Actor struct {
	ID   string
	Role domain.Role
}

const (
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
)

// actorFrom 提取调用者身份；未认证请求返回零值 Actor
func actorFrom(r *http.Request) Actor {
	return Actor{
		ID:   r.Header.Get(headerActorID),
		Role: domain.Role(r.Header.Get(headerActorRole)),
	}
}

// Authenticated 是否携带了有效身份
func (a Actor) Authenticated() bool {
	return a.ID != "" && a.Role.Valid()
}

// IsAdmin / IsNurse / IsPatient 角色判断
func (a Actor) IsAdmin() bool   { return a.Role == domain.RoleAdmin }
func (a Actor) IsNurse() bool   { return a.Role == domain.RoleNurse }
func (a Actor) IsPatient() bool { return a.Role == domain.RolePatient }

// CanActAsNurse 护士本人或管理员
func (a Actor) CanActAsNurse(nurseID string) bool {
	return a.IsAdmin() || (a.IsNurse() && a.ID == nurseID)
}

// CanActAsPatient 患者本人或管理员
func (a Actor) CanActAsPatient(patientID string) bool {
	return a.IsAdmin() || (a.IsPatient() && a.ID == patientID)
}
