package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisefido-care/internal/domain"
)

func setupUsersMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresUsersRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewPostgresUsersRepository(db)
	return db, mock, repo
}

var userCols = []string{
	"user_id", "name", "email", "phone", "role",
	"fall_active", "last_fall_at", "nurse_id", "assigned_patients", "created_at",
}

func userRow(id, name, role string) *sqlmock.Rows {
	return sqlmock.NewRows(userCols).
		AddRow(id, name, id+"@test.local", nil, role, false, nil, nil, "{}", time.Now())
}

func TestGetUser_Success(t *testing.T) {
	db, mock, repo := setupUsersMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT(.|\s)+FROM users WHERE user_id = \$1`).
		WithArgs("nurse-1").
		WillReturnRows(userRow("nurse-1", "Nurse Joy", "nurse"))

	u, err := repo.GetUser(context.Background(), "nurse-1")
	require.NoError(t, err)
	assert.Equal(t, "nurse-1", u.UserID)
	assert.Equal(t, domain.RoleNurse, u.Role)
	assert.Empty(t, u.AssignedPatients)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser_NotFound(t *testing.T) {
	db, mock, repo := setupUsersMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT(.|\s)+FROM users WHERE user_id = \$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser_EmptyID(t *testing.T) {
	db, _, repo := setupUsersMock(t)
	defer db.Close()

	_, err := repo.GetUser(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestCreateUser_InvalidPhone(t *testing.T) {
	db, _, repo := setupUsersMock(t)
	defer db.Close()

	err := repo.CreateUser(context.Background(), &domain.User{
		UserID: "nurse-1",
		Name:   "Nurse Joy",
		Email:  "joy@test.local",
		Phone:  sql.NullString{String: "not-a-phone", Valid: true},
		Role:   domain.RoleNurse,
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestAssignPatient_Transactional(t *testing.T) {
	db, mock, repo := setupUsersMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT role FROM users WHERE user_id = \$1 FOR UPDATE`).
		WithArgs("nurse-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("nurse"))
	mock.ExpectQuery(`SELECT role FROM users WHERE user_id = \$1 FOR UPDATE`).
		WithArgs("patient-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("patient"))
	mock.ExpectExec(`array_append`).
		WithArgs("nurse-1", "patient-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET nurse_id = \$1 WHERE user_id = \$2`).
		WithArgs("nurse-1", "patient-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.AssignPatient(context.Background(), "nurse-1", "patient-1")
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignPatient_WrongRoleRollsBack(t *testing.T) {
	db, mock, repo := setupUsersMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT role FROM users WHERE user_id = \$1 FOR UPDATE`).
		WithArgs("patient-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("patient"))
	mock.ExpectRollback()

	// 护士位置传入患者：锁定后角色不符，整体回滚
	err := repo.AssignPatient(context.Background(), "patient-1", "patient-2")
	assert.ErrorIs(t, err, domain.ErrWrongRole)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignPatient_PartialWriteRollsBack(t *testing.T) {
	db, mock, repo := setupUsersMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("nurse-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("nurse"))
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("patient-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("patient"))
	mock.ExpectExec(`array_append`).
		WithArgs("nurse-1", "patient-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// 反向引用未写入任何行：回滚，两侧都不留痕
	mock.ExpectExec(`UPDATE users SET nurse_id = \$1 WHERE user_id = \$2`).
		WithArgs("nurse-1", "patient-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.AssignPatient(context.Background(), "nurse-1", "patient-1")
	assert.ErrorIs(t, err, domain.ErrPartial)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnassignPatient_NotAssigned(t *testing.T) {
	db, mock, repo := setupUsersMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("nurse-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("nurse"))
	mock.ExpectExec(`array_remove`).
		WithArgs("nurse-1", "patient-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.UnassignPatient(context.Background(), "nurse-1", "patient-1")
	assert.ErrorIs(t, err, domain.ErrNotAssigned)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnassignPatient_ClearsGuardedBackRef(t *testing.T) {
	db, mock, repo := setupUsersMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("nurse-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("nurse"))
	mock.ExpectExec(`array_remove`).
		WithArgs("nurse-1", "patient-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// 反向引用清除带 nurse_id 守卫，已被其他护士接手时 0 行也不报错
	mock.ExpectExec(`UPDATE users SET nurse_id = NULL WHERE user_id = \$1 AND nurse_id = \$2`).
		WithArgs("patient-1", "nurse-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UnassignPatient(context.Background(), "nurse-1", "patient-1")
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetFallStatus_Active(t *testing.T) {
	db, mock, repo := setupUsersMock(t)
	defer db.Close()

	at := time.Now()
	rows := sqlmock.NewRows(userCols).
		AddRow("patient-1", "Alice", "alice@test.local", nil, "patient", true, at, nil, "{}", time.Now())

	mock.ExpectQuery(`UPDATE users SET fall_active = TRUE, last_fall_at = \$2`).
		WithArgs("patient-1", at).
		WillReturnRows(rows)

	u, err := repo.SetFallStatus(context.Background(), "patient-1", true, at)
	require.NoError(t, err)
	assert.True(t, u.FallActive)
	assert.True(t, u.LastFallAt.Valid)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetFallStatus_NotFound(t *testing.T) {
	db, mock, repo := setupUsersMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE users SET fall_active = FALSE`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.SetFallStatus(context.Background(), "ghost", false, time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListNursesFor(t *testing.T) {
	db, mock, repo := setupUsersMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(userCols).
		AddRow("nurse-1", "Nurse Joy", "joy@test.local", "+15005550006", "nurse", false, nil, nil, `{patient-1}`, time.Now()).
		AddRow("nurse-2", "Nurse Chapel", "chapel@test.local", nil, "nurse", false, nil, nil, `{patient-1,patient-2}`, time.Now())

	mock.ExpectQuery(`WHERE role = 'nurse' AND \$1 = ANY\(assigned_patients\)`).
		WithArgs("patient-1").
		WillReturnRows(rows)

	nurses, err := repo.ListNursesFor(context.Background(), "patient-1")
	require.NoError(t, err)
	require.Len(t, nurses, 2)
	assert.True(t, nurses[0].Phone.Valid)
	assert.True(t, nurses[0].HasPatient("patient-1"))
	assert.True(t, nurses[1].HasPatient("patient-2"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
