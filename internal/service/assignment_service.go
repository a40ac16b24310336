package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"wisefido-care/internal/domain"
	"wisefido-care/internal/repository"
)

// NurseWithPatients 护士及其完整患者列表（分配操作的返回形状）
type NurseWithPatients struct {
	Nurse    domain.NurseSummary     `json:"nurse"`
	Patients []domain.PatientSummary `json:"patients"`
}

// AssignmentService 护士↔患者分配登记服务接口
// 不变量：患者在护士的 assigned_patients 中 ⇔ 患者的 nurse_id 指向该护士
type AssignmentService interface {
	// AssignPatient 建立分配关系；已分配时为幂等 no-op
	AssignPatient(ctx context.Context, nurseID, patientID string) (*NurseWithPatients, error)
	// UnassignPatient 解除分配关系；不存在的关系返回 ErrNotAssigned
	UnassignPatient(ctx context.Context, nurseID, patientID string) (*NurseWithPatients, error)
	// BulkAssign 批量分配：先校验全部 ID，任一非法则不做任何变更
	BulkAssign(ctx context.Context, nurseID string, patientIDs []string) (*NurseWithPatients, error)
	// ListPatients 护士的患者摘要列表
	ListPatients(ctx context.Context, nurseID string) ([]domain.PatientSummary, error)
	// GetNurseOf 患者的责任护士；未分配时返回 ErrNotFound
	GetNurseOf(ctx context.Context, patientID string) (*domain.NurseSummary, error)
}

// assignmentService 实现
type assignmentService struct {
	usersRepo repository.UsersRepository
	logger    *zap.Logger
}

// NewAssignmentService 创建 AssignmentService 实例
func NewAssignmentService(usersRepo repository.UsersRepository, logger *zap.Logger) AssignmentService {
	return &assignmentService{
		usersRepo: usersRepo,
		logger:    logger,
	}
}

// getNurse 读取并校验护士角色
func (s *assignmentService) getNurse(ctx context.Context, nurseID string) (*domain.User, error) {
	nurse, err := s.usersRepo.GetUser(ctx, nurseID)
	if err != nil {
		return nil, err
	}
	if !nurse.IsNurse() {
		return nil, fmt.Errorf("user %s is not a nurse: %w", nurseID, domain.ErrWrongRole)
	}
	return nurse, nil
}

// getPatient 读取并校验患者角色
func (s *assignmentService) getPatient(ctx context.Context, patientID string) (*domain.User, error) {
	patient, err := s.usersRepo.GetUser(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !patient.IsPatient() {
		return nil, fmt.Errorf("user %s is not a patient: %w", patientID, domain.ErrWrongRole)
	}
	return patient, nil
}

// populate 重新读取护士并填充患者摘要列表
func (s *assignmentService) populate(ctx context.Context, nurseID string) (*NurseWithPatients, error) {
	nurse, err := s.usersRepo.GetUser(ctx, nurseID)
	if err != nil {
		return nil, err
	}
	patients, err := s.usersRepo.GetUsers(ctx, nurse.AssignedPatients)
	if err != nil {
		return nil, fmt.Errorf("failed to populate patients: %w", err)
	}

	result := &NurseWithPatients{
		Nurse:    nurse.NurseView(),
		Patients: make([]domain.PatientSummary, 0, len(patients)),
	}
	for _, p := range patients {
		result.Patients = append(result.Patients, p.Summary())
	}
	return result, nil
}

func (s *assignmentService) AssignPatient(ctx context.Context, nurseID, patientID string) (*NurseWithPatients, error) {
	nurse, err := s.getNurse(ctx, nurseID)
	if err != nil {
		return nil, err
	}
	if _, err := s.getPatient(ctx, patientID); err != nil {
		return nil, err
	}

	// 已分配：幂等 no-op，直接返回当前状态
	if nurse.HasPatient(patientID) {
		return s.populate(ctx, nurseID)
	}

	if err := s.usersRepo.AssignPatient(ctx, nurseID, patientID); err != nil {
		s.logger.Error("Failed to assign patient",
			zap.String("nurse_id", nurseID),
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Patient assigned",
		zap.String("nurse_id", nurseID),
		zap.String("patient_id", patientID),
	)
	return s.populate(ctx, nurseID)
}

func (s *assignmentService) UnassignPatient(ctx context.Context, nurseID, patientID string) (*NurseWithPatients, error) {
	if _, err := s.getNurse(ctx, nurseID); err != nil {
		return nil, err
	}

	if err := s.usersRepo.UnassignPatient(ctx, nurseID, patientID); err != nil {
		return nil, err
	}

	s.logger.Info("Patient unassigned",
		zap.String("nurse_id", nurseID),
		zap.String("patient_id", patientID),
	)
	return s.populate(ctx, nurseID)
}

func (s *assignmentService) BulkAssign(ctx context.Context, nurseID string, patientIDs []string) (*NurseWithPatients, error) {
	nurse, err := s.getNurse(ctx, nurseID)
	if err != nil {
		return nil, err
	}

	// 先校验全部 ID：任一非法则不做任何变更，错误指明第一个非法 ID
	var toAssign []string
	for _, patientID := range patientIDs {
		if _, err := s.getPatient(ctx, patientID); err != nil {
			return nil, err
		}
		if !nurse.HasPatient(patientID) {
			toAssign = append(toAssign, patientID)
		}
	}

	for _, patientID := range toAssign {
		if err := s.usersRepo.AssignPatient(ctx, nurseID, patientID); err != nil {
			s.logger.Error("Bulk assign interrupted",
				zap.String("nurse_id", nurseID),
				zap.String("patient_id", patientID),
				zap.Error(err),
			)
			// assign 幂等，调用方可整体重试
			return nil, err
		}
	}

	s.logger.Info("Bulk assign completed",
		zap.String("nurse_id", nurseID),
		zap.Int("assigned", len(toAssign)),
	)
	return s.populate(ctx, nurseID)
}

func (s *assignmentService) ListPatients(ctx context.Context, nurseID string) ([]domain.PatientSummary, error) {
	result, err := s.populateForNurse(ctx, nurseID)
	if err != nil {
		return nil, err
	}
	return result.Patients, nil
}

// populateForNurse 带角色校验的 populate
func (s *assignmentService) populateForNurse(ctx context.Context, nurseID string) (*NurseWithPatients, error) {
	if _, err := s.getNurse(ctx, nurseID); err != nil {
		return nil, err
	}
	return s.populate(ctx, nurseID)
}

func (s *assignmentService) GetNurseOf(ctx context.Context, patientID string) (*domain.NurseSummary, error) {
	patient, err := s.getPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !patient.NurseID.Valid {
		return nil, fmt.Errorf("no nurse assigned to patient %s: %w", patientID, domain.ErrNotFound)
	}

	nurse, err := s.usersRepo.GetUser(ctx, patient.NurseID.String)
	if err != nil {
		return nil, err
	}
	view := nurse.NurseView()
	return &view, nil
}
