package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"wisefido-care/internal/domain"
)

// MemoryFormsRepo 工单内存实现（降级/测试用）
type MemoryFormsRepo struct {
	mu    sync.RWMutex
	forms map[string]*domain.Form // formID -> Form
}

func NewMemoryFormsRepo() *MemoryFormsRepo {
	return &MemoryFormsRepo{
		forms: map[string]*domain.Form{},
	}
}

var _ FormsRepository = (*MemoryFormsRepo)(nil)

func cloneForm(f *domain.Form) *domain.Form {
	c := *f
	c.Messages = append([]domain.FormMessage(nil), f.Messages...)
	return &c
}

func (r *MemoryFormsRepo) CreateForm(_ context.Context, form *domain.Form, seed *domain.FormMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.forms[form.FormID]; ok {
		return fmt.Errorf("form %s already exists", form.FormID)
	}
	c := cloneForm(form)
	c.Messages = []domain.FormMessage{*seed}
	r.forms[form.FormID] = c
	return nil
}

func (r *MemoryFormsRepo) GetForm(_ context.Context, formID string) (*domain.Form, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.forms[formID]
	if !ok {
		return nil, fmt.Errorf("form %s: %w", formID, domain.ErrNotFound)
	}
	return cloneForm(f), nil
}

func (r *MemoryFormsRepo) AppendMessage(_ context.Context, formID string, msg *domain.FormMessage, newStatus domain.FormStatus, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.forms[formID]
	if !ok {
		return fmt.Errorf("form %s: %w", formID, domain.ErrNotFound)
	}
	f.Messages = append(f.Messages, *msg)
	if newStatus != "" {
		f.Status = newStatus
	}
	f.UpdatedAt = updatedAt
	return nil
}

func (r *MemoryFormsRepo) ResolveForm(_ context.Context, formID, resolvedBy string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.forms[formID]
	if !ok {
		return fmt.Errorf("form %s: %w", formID, domain.ErrNotFound)
	}
	f.Resolved = true
	f.Status = domain.FormResolved
	f.ResolvedBy.String = resolvedBy
	f.ResolvedBy.Valid = true
	f.ResolvedAt.Time = at
	f.ResolvedAt.Valid = true
	f.UpdatedAt = at
	return nil
}

func (r *MemoryFormsRepo) CancelForm(_ context.Context, formID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.forms[formID]
	if !ok {
		return fmt.Errorf("form %s: %w", formID, domain.ErrNotFound)
	}
	f.Status = domain.FormCancelled
	f.UpdatedAt = at
	return nil
}

func (r *MemoryFormsRepo) ListForms(_ context.Context, filters FormFilters) ([]*domain.Form, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	forms := make([]*domain.Form, 0, len(r.forms))
	for _, f := range r.forms {
		if filters.PatientID != "" && f.PatientID != filters.PatientID {
			continue
		}
		if filters.NurseID != "" && f.NurseID != filters.NurseID {
			continue
		}
		if filters.Resolved != nil && f.Resolved != *filters.Resolved {
			continue
		}
		if filters.Status != "" && f.Status != filters.Status {
			continue
		}
		forms = append(forms, cloneForm(f))
	}
	sort.Slice(forms, func(i, j int) bool {
		return forms[i].UpdatedAt.After(forms[j].UpdatedAt)
	})
	return forms, nil
}
