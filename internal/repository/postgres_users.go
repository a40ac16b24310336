package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"wisefido-care/internal/domain"
)

// PostgresUsersRepository 用户 Repository 实现（强类型版本）
// 分配关系的双向写入在单个事务中完成（FOR UPDATE 串行化同对并发操作）
type PostgresUsersRepository struct {
	db *sql.DB
}

// NewPostgresUsersRepository 创建用户 Repository
func NewPostgresUsersRepository(db *sql.DB) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db}
}

// 确保实现了接口
var _ UsersRepository = (*PostgresUsersRepository)(nil)

const userColumns = `
	user_id::text,
	name,
	email,
	phone,
	role,
	fall_active,
	last_fall_at,
	nurse_id::text,
	COALESCE(assigned_patients, '{}') as assigned_patients,
	created_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.UserID,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.Role,
		&u.FallActive,
		&u.LastFallAt,
		&u.NurseID,
		&u.AssignedPatients,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser 根据 user_id 获取用户
func (r *PostgresUsersRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required: %w", domain.ErrBadRequest)
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUsers 按 ID 批量查询
func (r *PostgresUsersRepository) GetUsers(ctx context.Context, ids []string) ([]*domain.User, error) {
	if len(ids) == 0 {
		return []*domain.User{}, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateUser 创建用户
func (r *PostgresUsersRepository) CreateUser(ctx context.Context, user *domain.User) error {
	if user.Phone.Valid && !domain.ValidPhone(user.Phone.String) {
		return fmt.Errorf("invalid phone number %q: %w", user.Phone.String, domain.ErrBadRequest)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (user_id, name, email, phone, role, fall_active, assigned_patients, created_at)
		 VALUES ($1, $2, $3, $4, $5, FALSE, '{}', $6)`,
		user.UserID, user.Name, user.Email, user.Phone, user.Role, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// DeleteUser 删除用户（管理员操作）
func (r *PostgresUsersRepository) DeleteUser(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return nil
}

// AssignPatient 双向写入分配关系（单事务）
// 1) 患者加入护士的 assigned_patients（已存在则跳过，幂等）
// 2) 患者的 nurse_id 指向该护士
// 第二步未生效时回滚并返回 ErrPartial
func (r *PostgresUsersRepository) AssignPatient(ctx context.Context, nurseID, patientID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	// 锁定两条记录，串行化同对并发分配
	if err := lockUserWithRole(ctx, tx, nurseID, domain.RoleNurse); err != nil {
		return err
	}
	if err := lockUserWithRole(ctx, tx, patientID, domain.RolePatient); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users
		 SET assigned_patients = array_append(assigned_patients, $2::uuid)
		 WHERE user_id = $1 AND NOT ($2 = ANY(assigned_patients))`,
		nurseID, patientID,
	)
	if err != nil {
		return fmt.Errorf("failed to update nurse assignment: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET nurse_id = $1 WHERE user_id = $2`,
		nurseID, patientID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient back-reference: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("assign %s -> %s: %w", nurseID, patientID, domain.ErrPartial)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit assignment: %w", err)
	}
	return nil
}

// UnassignPatient 解除分配关系（单事务）
// 仅当患者的 nurse_id 仍指向该护士时才清除反向引用
func (r *PostgresUsersRepository) UnassignPatient(ctx context.Context, nurseID, patientID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := lockUserWithRole(ctx, tx, nurseID, domain.RoleNurse); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE users
		 SET assigned_patients = array_remove(assigned_patients, $2::uuid)
		 WHERE user_id = $1 AND $2 = ANY(assigned_patients)`,
		nurseID, patientID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove nurse assignment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unassign %s -> %s: %w", nurseID, patientID, domain.ErrNotAssigned)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET nurse_id = NULL WHERE user_id = $1 AND nurse_id = $2`,
		patientID, nurseID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear patient back-reference: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit unassignment: %w", err)
	}
	return nil
}

// lockUserWithRole 行级锁 + 角色校验
func lockUserWithRole(ctx context.Context, tx *sql.Tx, userID string, role domain.Role) error {
	var got domain.Role
	err := tx.QueryRowContext(ctx,
		`SELECT role FROM users WHERE user_id = $1 FOR UPDATE`, userID,
	).Scan(&got)
	if err == sql.ErrNoRows {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to lock user: %w", err)
	}
	if got != role {
		return fmt.Errorf("user %s is not a %s: %w", userID, role, domain.ErrWrongRole)
	}
	return nil
}

// ListNursesFor 返回分配了该患者的全部护士
func (r *PostgresUsersRepository) ListNursesFor(ctx context.Context, patientID string) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE role = 'nurse' AND $1 = ANY(assigned_patients)`

	rows, err := r.db.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list nurses for patient: %w", err)
	}
	defer rows.Close()

	var nurses []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan nurse: %w", err)
		}
		nurses = append(nurses, u)
	}
	return nurses, rows.Err()
}

// SetFallStatus 更新患者跌倒状态
// active=true 时同时写入 last_fall_at；last_fall_at 只设置，不清除
func (r *PostgresUsersRepository) SetFallStatus(ctx context.Context, patientID string, active bool, at time.Time) (*domain.User, error) {
	var row *sql.Row
	if active {
		row = r.db.QueryRowContext(ctx,
			`UPDATE users SET fall_active = TRUE, last_fall_at = $2
			 WHERE user_id = $1
			 RETURNING `+userColumns,
			patientID, at,
		)
	} else {
		row = r.db.QueryRowContext(ctx,
			`UPDATE users SET fall_active = FALSE
			 WHERE user_id = $1
			 RETURNING `+userColumns,
			patientID,
		)
	}

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("patient %s: %w", patientID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set fall status: %w", err)
	}
	return u, nil
}

// ListActiveFalls 返回所有跌倒报警激活的患者（last_fall_at 降序）
func (r *PostgresUsersRepository) ListActiveFalls(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE role = 'patient' AND fall_active = TRUE
		ORDER BY last_fall_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active falls: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
