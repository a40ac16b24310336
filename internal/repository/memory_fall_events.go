package repository

import (
	"context"
	"sort"
	"sync"

	"wisefido-care/internal/domain"
)

// MemoryFallEventsRepo 跌倒事件内存实现（降级/测试用）
type MemoryFallEventsRepo struct {
	mu     sync.RWMutex
	events []*domain.FallEvent
}

func NewMemoryFallEventsRepo() *MemoryFallEventsRepo {
	return &MemoryFallEventsRepo{}
}

var _ FallEventsRepository = (*MemoryFallEventsRepo)(nil)

func (r *MemoryFallEventsRepo) CreateFallEvent(_ context.Context, event *domain.FallEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *event
	r.events = append(r.events, &c)
	return nil
}

func (r *MemoryFallEventsRepo) ListFallEvents(_ context.Context, patientID string, page, size int) ([]*domain.FallEvent, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}

	var all []*domain.FallEvent
	for _, e := range r.events {
		if patientID != "" && e.PatientID != patientID {
			continue
		}
		c := *e
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ReportedAt.After(all[j].ReportedAt)
	})

	total := len(all)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}
