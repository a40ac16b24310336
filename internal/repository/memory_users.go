package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"wisefido-care/internal/domain"
)

// MemoryUsersRepo 内存实现：DB 不可用时的降级，以及 Service 层测试用
// 双向分配关系在同一把锁内更新，天然满足一致性不变量
type MemoryUsersRepo struct {
	mu    sync.RWMutex
	users map[string]*domain.User // userID -> User
}

func NewMemoryUsersRepo() *MemoryUsersRepo {
	return &MemoryUsersRepo{
		users: map[string]*domain.User{},
	}
}

var _ UsersRepository = (*MemoryUsersRepo)(nil)

// clone 防止调用方拿到内部指针后绕过锁修改
func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.AssignedPatients = append([]string(nil), u.AssignedPatients...)
	return &c
}

func (r *MemoryUsersRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (r *MemoryUsersRepo) GetUsers(_ context.Context, ids []string) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			users = append(users, cloneUser(u))
		}
	}
	return users, nil
}

func (r *MemoryUsersRepo) CreateUser(_ context.Context, user *domain.User) error {
	if user.Phone.Valid && !domain.ValidPhone(user.Phone.String) {
		return fmt.Errorf("invalid phone number %q: %w", user.Phone.String, domain.ErrBadRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.UserID]; ok {
		return fmt.Errorf("user %s already exists", user.UserID)
	}
	r.users[user.UserID] = cloneUser(user)
	return nil
}

func (r *MemoryUsersRepo) DeleteUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; !ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	delete(r.users, userID)
	return nil
}

func (r *MemoryUsersRepo) AssignPatient(_ context.Context, nurseID, patientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	nurse, ok := r.users[nurseID]
	if !ok {
		return fmt.Errorf("user %s: %w", nurseID, domain.ErrNotFound)
	}
	if nurse.Role != domain.RoleNurse {
		return fmt.Errorf("user %s is not a nurse: %w", nurseID, domain.ErrWrongRole)
	}
	patient, ok := r.users[patientID]
	if !ok {
		return fmt.Errorf("user %s: %w", patientID, domain.ErrNotFound)
	}
	if patient.Role != domain.RolePatient {
		return fmt.Errorf("user %s is not a patient: %w", patientID, domain.ErrWrongRole)
	}

	if !nurse.HasPatient(patientID) {
		nurse.AssignedPatients = append(nurse.AssignedPatients, patientID)
	}
	patient.NurseID.String = nurseID
	patient.NurseID.Valid = true
	return nil
}

func (r *MemoryUsersRepo) UnassignPatient(_ context.Context, nurseID, patientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	nurse, ok := r.users[nurseID]
	if !ok {
		return fmt.Errorf("user %s: %w", nurseID, domain.ErrNotFound)
	}
	if !nurse.HasPatient(patientID) {
		return fmt.Errorf("unassign %s -> %s: %w", nurseID, patientID, domain.ErrNotAssigned)
	}

	kept := nurse.AssignedPatients[:0]
	for _, id := range nurse.AssignedPatients {
		if id != patientID {
			kept = append(kept, id)
		}
	}
	nurse.AssignedPatients = kept

	if patient, ok := r.users[patientID]; ok {
		if patient.NurseID.Valid && patient.NurseID.String == nurseID {
			patient.NurseID.Valid = false
			patient.NurseID.String = ""
		}
	}
	return nil
}

func (r *MemoryUsersRepo) ListNursesFor(_ context.Context, patientID string) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var nurses []*domain.User
	for _, u := range r.users {
		if u.Role == domain.RoleNurse && u.HasPatient(patientID) {
			nurses = append(nurses, cloneUser(u))
		}
	}
	sort.Slice(nurses, func(i, j int) bool { return nurses[i].UserID < nurses[j].UserID })
	return nurses, nil
}

func (r *MemoryUsersRepo) SetFallStatus(_ context.Context, patientID string, active bool, at time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[patientID]
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", patientID, domain.ErrNotFound)
	}
	u.FallActive = active
	if active {
		u.LastFallAt.Time = at
		u.LastFallAt.Valid = true
	}
	return cloneUser(u), nil
}

func (r *MemoryUsersRepo) ListActiveFalls(_ context.Context) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var users []*domain.User
	for _, u := range r.users {
		if u.Role == domain.RolePatient && u.FallActive {
			users = append(users, cloneUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].LastFallAt.Time.After(users[j].LastFallAt.Time)
	})
	return users, nil
}
