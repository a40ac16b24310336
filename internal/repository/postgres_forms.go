package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"wisefido-care/internal/domain"
)

// PostgresFormsRepository 工单 Repository 实现
// forms 表存工单头，form_messages 表存消息线程（只追加）
type PostgresFormsRepository struct {
	db *sql.DB
}

// NewPostgresFormsRepository 创建工单 Repository
func NewPostgresFormsRepository(db *sql.DB) *PostgresFormsRepository {
	return &PostgresFormsRepository{db: db}
}

var _ FormsRepository = (*PostgresFormsRepository)(nil)

const formColumns = `
	form_id::text,
	title,
	patient_id::text,
	nurse_id::text,
	status,
	resolved,
	resolved_by::text,
	resolved_at,
	created_at,
	updated_at`

func scanForm(row interface{ Scan(...any) error }) (*domain.Form, error) {
	var f domain.Form
	err := row.Scan(
		&f.FormID,
		&f.Title,
		&f.PatientID,
		&f.NurseID,
		&f.Status,
		&f.Resolved,
		&f.ResolvedBy,
		&f.ResolvedAt,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateForm 创建工单并写入首条消息（单事务）
func (r *PostgresFormsRepository) CreateForm(ctx context.Context, form *domain.Form, seed *domain.FormMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO forms (form_id, title, patient_id, nurse_id, status, resolved, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, FALSE, $6, $6)`,
		form.FormID, form.Title, form.PatientID, form.NurseID, form.Status, form.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert form: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO form_messages (message_id, form_id, sender_id, body, attachment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		seed.MessageID, seed.FormID, seed.SenderID, seed.Body, seed.Attachment, seed.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert seed message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit form: %w", err)
	}
	return nil
}

// GetForm 查询工单及完整消息线程
func (r *PostgresFormsRepository) GetForm(ctx context.Context, formID string) (*domain.Form, error) {
	f, err := scanForm(r.db.QueryRowContext(ctx,
		`SELECT `+formColumns+` FROM forms WHERE form_id = $1`, formID,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("form %s: %w", formID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get form: %w", err)
	}

	messages, err := r.loadMessages(ctx, []string{formID})
	if err != nil {
		return nil, err
	}
	f.Messages = messages[formID]
	return f, nil
}

// AppendMessage 追加消息并更新 updated_at（单事务）
// newStatus 非空时在同一事务中迁移状态（pending → in-progress）
func (r *PostgresFormsRepository) AppendMessage(ctx context.Context, formID string, msg *domain.FormMessage, newStatus domain.FormStatus, updatedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO form_messages (message_id, form_id, sender_id, body, attachment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.MessageID, msg.FormID, msg.SenderID, msg.Body, msg.Attachment, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	var res sql.Result
	if newStatus != "" {
		res, err = tx.ExecContext(ctx,
			`UPDATE forms SET status = $2, updated_at = $3 WHERE form_id = $1`,
			formID, newStatus, updatedAt,
		)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE forms SET updated_at = $2 WHERE form_id = $1`,
			formID, updatedAt,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to update form: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("form %s: %w", formID, domain.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	return nil
}

// ResolveForm 标记工单为已解决
func (r *PostgresFormsRepository) ResolveForm(ctx context.Context, formID, resolvedBy string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE forms
		 SET resolved = TRUE, status = 'resolved', resolved_by = $2, resolved_at = $3, updated_at = $3
		 WHERE form_id = $1`,
		formID, resolvedBy, at,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve form: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("form %s: %w", formID, domain.ErrNotFound)
	}
	return nil
}

// CancelForm 管理员终止工单
func (r *PostgresFormsRepository) CancelForm(ctx context.Context, formID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE forms SET status = 'cancelled', updated_at = $2 WHERE form_id = $1`,
		formID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel form: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("form %s: %w", formID, domain.ErrNotFound)
	}
	return nil
}

// ListForms 按过滤条件查询工单（updated_at 降序），两段查询填充消息线程
func (r *PostgresFormsRepository) ListForms(ctx context.Context, filters FormFilters) ([]*domain.Form, error) {
	query := `SELECT ` + formColumns + ` FROM forms WHERE 1=1`
	args := []any{}
	idx := 1

	if filters.PatientID != "" {
		query += fmt.Sprintf(" AND patient_id = $%d", idx)
		args = append(args, filters.PatientID)
		idx++
	}
	if filters.NurseID != "" {
		query += fmt.Sprintf(" AND nurse_id = $%d", idx)
		args = append(args, filters.NurseID)
		idx++
	}
	if filters.Resolved != nil {
		query += fmt.Sprintf(" AND resolved = $%d", idx)
		args = append(args, *filters.Resolved)
		idx++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, filters.Status)
		idx++
	}
	query += " ORDER BY updated_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	defer rows.Close()

	var forms []*domain.Form
	var formIDs []string
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan form: %w", err)
		}
		forms = append(forms, f)
		formIDs = append(formIDs, f.FormID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(forms) == 0 {
		return []*domain.Form{}, nil
	}

	messages, err := r.loadMessages(ctx, formIDs)
	if err != nil {
		return nil, err
	}
	for _, f := range forms {
		f.Messages = messages[f.FormID]
	}
	return forms, nil
}

// loadMessages 批量加载消息线程，按 created_at 升序
func (r *PostgresFormsRepository) loadMessages(ctx context.Context, formIDs []string) (map[string][]domain.FormMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT message_id::text, form_id::text, sender_id::text, body, attachment, created_at
		 FROM form_messages
		 WHERE form_id = ANY($1)
		 ORDER BY created_at ASC`,
		pq.Array(formIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]domain.FormMessage)
	for rows.Next() {
		var m domain.FormMessage
		if err := rows.Scan(&m.MessageID, &m.FormID, &m.SenderID, &m.Body, &m.Attachment, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		result[m.FormID] = append(result[m.FormID], m)
	}
	return result, rows.Err()
}
