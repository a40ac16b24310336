package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-care/internal/domain"
	"wisefido-care/internal/repository"
)

// FormListFilter 工单列表过滤（派生桶或精确状态，二者互斥）
type FormListFilter struct {
	Bucket string            // "" | "resolved" | "unresolved"
	Status domain.FormStatus // 精确状态（空=不过滤）
}

// FormService 工单线程管理服务接口
// 状态机：pending --(护士首次回复)--> in-progress --(resolve)--> resolved
// pending --(resolve)--> resolved 也合法；cancelled 由管理员触发
type FormService interface {
	// CreateForm 患者向指定护士发起工单，首条消息由创建负载合成
	CreateForm(ctx context.Context, patientID, nurseID, title, body, attachment string) (*domain.Form, error)
	// AppendMessage 追加消息；护士在 pending 状态下回复时状态推进到 in-progress
	AppendMessage(ctx context.Context, formID, senderID, body, attachment string) (*domain.Form, error)
	// Resolve 标记已解决；对已解决工单幂等 no-op
	Resolve(ctx context.Context, formID, actorID string) (*domain.Form, error)
	// Cancel 管理员终止工单
	Cancel(ctx context.Context, formID, actorID string) (*domain.Form, error)
	// ListFor 按调用者可见范围列出工单：患者看自己发起的，护士看分配给自己的，管理员看全部
	ListFor(ctx context.Context, actorID string, filter FormListFilter) ([]*domain.Form, error)
	// Stats 按相同可见范围统计
	Stats(ctx context.Context, actorID string) (*domain.FormStats, error)
}

// formService 实现
type formService struct {
	formsRepo repository.FormsRepository
	usersRepo repository.UsersRepository
	// allowResolvedAppend 已解决的工单是否允许继续追加消息（策略可配置）
	allowResolvedAppend bool
	logger              *zap.Logger
}

// NewFormService 创建 FormService 实例
func NewFormService(
	formsRepo repository.FormsRepository,
	usersRepo repository.UsersRepository,
	allowResolvedAppend bool,
	logger *zap.Logger,
) FormService {
	return &formService{
		formsRepo:           formsRepo,
		usersRepo:           usersRepo,
		allowResolvedAppend: allowResolvedAppend,
		logger:              logger,
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func (s *formService) CreateForm(ctx context.Context, patientID, nurseID, title, body, attachment string) (*domain.Form, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("title is required: %w", domain.ErrBadRequest)
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("body is required: %w", domain.ErrBadRequest)
	}

	if _, err := s.usersRepo.GetUser(ctx, patientID); err != nil {
		return nil, err
	}
	if _, err := s.usersRepo.GetUser(ctx, nurseID); err != nil {
		return nil, err
	}

	now := time.Now()
	form := &domain.Form{
		FormID:    uuid.New().String(),
		Title:     title,
		PatientID: patientID,
		NurseID:   nurseID,
		Status:    domain.FormPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	seed := &domain.FormMessage{
		MessageID:  uuid.New().String(),
		FormID:     form.FormID,
		SenderID:   patientID,
		Body:       body,
		Attachment: nullString(attachment),
		CreatedAt:  now,
	}

	if err := s.formsRepo.CreateForm(ctx, form, seed); err != nil {
		s.logger.Error("Failed to create form",
			zap.String("patient_id", patientID),
			zap.String("nurse_id", nurseID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Form created",
		zap.String("form_id", form.FormID),
		zap.String("patient_id", patientID),
		zap.String("nurse_id", nurseID),
	)
	return s.formsRepo.GetForm(ctx, form.FormID)
}

func (s *formService) AppendMessage(ctx context.Context, formID, senderID, body, attachment string) (*domain.Form, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("body is required: %w", domain.ErrBadRequest)
	}

	form, err := s.formsRepo.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	if _, err := s.usersRepo.GetUser(ctx, senderID); err != nil {
		return nil, err
	}
	if !form.Participant(senderID) {
		return nil, fmt.Errorf("only the patient or assigned nurse can add messages to this form: %w", domain.ErrForbidden)
	}
	if form.Status == domain.FormCancelled {
		return nil, fmt.Errorf("form %s is cancelled: %w", formID, domain.ErrResolved)
	}
	if form.Resolved && !s.allowResolvedAppend {
		return nil, fmt.Errorf("form %s: %w", formID, domain.ErrResolved)
	}

	now := time.Now()
	msg := &domain.FormMessage{
		MessageID:  uuid.New().String(),
		FormID:     formID,
		SenderID:   senderID,
		Body:       body,
		Attachment: nullString(attachment),
		CreatedAt:  now,
	}

	// 护士在 pending 状态下首次回复：推进到 in-progress
	var newStatus domain.FormStatus
	if form.Status == domain.FormPending && senderID == form.NurseID {
		newStatus = domain.FormInProgress
	}

	if err := s.formsRepo.AppendMessage(ctx, formID, msg, newStatus, now); err != nil {
		s.logger.Error("Failed to append message",
			zap.String("form_id", formID),
			zap.String("sender_id", senderID),
			zap.Error(err),
		)
		return nil, err
	}
	return s.formsRepo.GetForm(ctx, formID)
}

func (s *formService) Resolve(ctx context.Context, formID, actorID string) (*domain.Form, error) {
	form, err := s.formsRepo.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	actor, err := s.usersRepo.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !form.Participant(actorID) {
		return nil, fmt.Errorf("only the patient or assigned nurse can resolve this form: %w", domain.ErrForbidden)
	}

	// 已解决：幂等 no-op，原样返回
	if form.Resolved {
		return form, nil
	}

	if err := s.formsRepo.ResolveForm(ctx, formID, actorID, time.Now()); err != nil {
		s.logger.Error("Failed to resolve form",
			zap.String("form_id", formID),
			zap.String("actor_id", actorID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Form resolved",
		zap.String("form_id", formID),
		zap.String("actor_id", actorID),
	)
	return s.formsRepo.GetForm(ctx, formID)
}

func (s *formService) Cancel(ctx context.Context, formID, actorID string) (*domain.Form, error) {
	form, err := s.formsRepo.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	actor, err := s.usersRepo.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("only an admin can cancel a form: %w", domain.ErrForbidden)
	}
	if form.Status.Terminal() {
		return form, nil
	}

	if err := s.formsRepo.CancelForm(ctx, formID, time.Now()); err != nil {
		return nil, err
	}

	s.logger.Info("Form cancelled",
		zap.String("form_id", formID),
		zap.String("actor_id", actorID),
	)
	return s.formsRepo.GetForm(ctx, formID)
}

// scopedFilters 依据调用者角色生成可见范围过滤
func (s *formService) scopedFilters(ctx context.Context, actorID string) (repository.FormFilters, error) {
	actor, err := s.usersRepo.GetUser(ctx, actorID)
	if err != nil {
		return repository.FormFilters{}, err
	}

	switch actor.Role {
	case domain.RolePatient:
		return repository.FormFilters{PatientID: actorID}, nil
	case domain.RoleNurse:
		return repository.FormFilters{NurseID: actorID}, nil
	case domain.RoleAdmin:
		return repository.FormFilters{}, nil
	}
	return repository.FormFilters{}, fmt.Errorf("invalid role %q: %w", actor.Role, domain.ErrWrongRole)
}

func (s *formService) ListFor(ctx context.Context, actorID string, filter FormListFilter) ([]*domain.Form, error) {
	filters, err := s.scopedFilters(ctx, actorID)
	if err != nil {
		return nil, err
	}

	switch filter.Bucket {
	case "":
	case "resolved":
		t := true
		filters.Resolved = &t
	case "unresolved":
		f := false
		filters.Resolved = &f
	default:
		return nil, fmt.Errorf("invalid filter bucket %q: %w", filter.Bucket, domain.ErrBadRequest)
	}
	if filter.Status != "" {
		filters.Status = filter.Status
	}

	return s.formsRepo.ListForms(ctx, filters)
}

func (s *formService) Stats(ctx context.Context, actorID string) (*domain.FormStats, error) {
	filters, err := s.scopedFilters(ctx, actorID)
	if err != nil {
		return nil, err
	}

	forms, err := s.formsRepo.ListForms(ctx, filters)
	if err != nil {
		return nil, err
	}

	stats := &domain.FormStats{Total: len(forms)}
	for _, f := range forms {
		if f.Resolved {
			stats.Resolved++
		} else {
			stats.Unresolved++
		}
		switch f.Status {
		case domain.FormPending:
			stats.Pending++
		case domain.FormInProgress:
			stats.InProgress++
		case domain.FormCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}
