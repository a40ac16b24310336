package repository

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-care/internal/domain"
)

// PostgresFallEventsRepository 跌倒事件审计 Repository 实现
type PostgresFallEventsRepository struct {
	db *sql.DB
}

// NewPostgresFallEventsRepository 创建跌倒事件 Repository
func NewPostgresFallEventsRepository(db *sql.DB) *PostgresFallEventsRepository {
	return &PostgresFallEventsRepository{db: db}
}

var _ FallEventsRepository = (*PostgresFallEventsRepository)(nil)

// CreateFallEvent 写入一条跌倒事件审计记录
func (r *PostgresFallEventsRepository) CreateFallEvent(ctx context.Context, event *domain.FallEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO fall_events
			(event_id, patient_id, reported_at, source, notify_attempted, notify_delivered, notify_failed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.EventID,
		event.PatientID,
		event.ReportedAt,
		event.Source,
		event.NotifyAttempted,
		event.NotifyDelivered,
		event.NotifyFailed,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fall event: %w", err)
	}
	return nil
}

// ListFallEvents 查询跌倒事件历史（reported_at 降序，分页）
// patientID 为空时返回全部患者的事件
func (r *PostgresFallEventsRepository) ListFallEvents(ctx context.Context, patientID string, page, size int) ([]*domain.FallEvent, int, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}

	where := ""
	args := []any{}
	if patientID != "" {
		where = " WHERE patient_id = $1"
		args = append(args, patientID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fall_events`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count fall events: %w", err)
	}

	query := `SELECT
			event_id::text,
			patient_id::text,
			reported_at,
			source,
			notify_attempted,
			notify_delivered,
			notify_failed,
			created_at
		FROM fall_events` + where +
		fmt.Sprintf(" ORDER BY reported_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list fall events: %w", err)
	}
	defer rows.Close()

	var events []*domain.FallEvent
	for rows.Next() {
		var e domain.FallEvent
		err := rows.Scan(
			&e.EventID,
			&e.PatientID,
			&e.ReportedAt,
			&e.Source,
			&e.NotifyAttempted,
			&e.NotifyDelivered,
			&e.NotifyFailed,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan fall event: %w", err)
		}
		events = append(events, &e)
	}
	return events, total, rows.Err()
}
