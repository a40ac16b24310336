package httpapi

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"wisefido-care/internal/domain"
	"wisefido-care/internal/service"
)

// FormHandler 工单 API
type FormHandler struct {
	svc    service.FormService
	logger *zap.Logger
}

func NewFormHandler(svc service.FormService, logger *zap.Logger) *FormHandler {
	return &FormHandler{svc: svc, logger: logger}
}

// formView API 返回形状（sql.Null* 不直接外泄）
type formView struct {
	FormID     string         `json:"formId"`
	Title      string         `json:"title"`
	PatientID  string         `json:"patientId"`
	NurseID    string         `json:"nurseId"`
	Status     string         `json:"status"`
	Resolved   bool           `json:"resolved"`
	ResolvedBy string         `json:"resolvedBy,omitempty"`
	ResolvedAt string         `json:"resolvedAt,omitempty"`
	Messages   []messageView  `json:"messages"`
	CreatedAt  string         `json:"createdAt"`
	UpdatedAt  string         `json:"updatedAt"`
}

type messageView struct {
	MessageID  string `json:"messageId"`
	SenderID   string `json:"senderId"`
	Body       string `json:"body"`
	Attachment string `json:"attachment,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func toFormView(f *domain.Form) formView {
	v := formView{
		FormID:    f.FormID,
		Title:     f.Title,
		PatientID: f.PatientID,
		NurseID:   f.NurseID,
		Status:    string(f.Status),
		Resolved:  f.Resolved,
		Messages:  make([]messageView, 0, len(f.Messages)),
		CreatedAt: f.CreatedAt.Format(timeLayout),
		UpdatedAt: f.UpdatedAt.Format(timeLayout),
	}
	if f.ResolvedBy.Valid {
		v.ResolvedBy = f.ResolvedBy.String
	}
	if f.ResolvedAt.Valid {
		v.ResolvedAt = f.ResolvedAt.Time.Format(timeLayout)
	}
	for _, m := range f.Messages {
		mv := messageView{
			MessageID: m.MessageID,
			SenderID:  m.SenderID,
			Body:      m.Body,
			CreatedAt: m.CreatedAt.Format(timeLayout),
		}
		if m.Attachment.Valid {
			mv.Attachment = m.Attachment.String
		}
		v.Messages = append(v.Messages, mv)
	}
	return v
}

func toFormViews(forms []*domain.Form) []formView {
	views := make([]formView, 0, len(forms))
	for _, f := range forms {
		views = append(views, toFormView(f))
	}
	return views
}

// POST /care/api/v1/forms
// body: {"patient_id","nurse_id","title","body","attachment"?}
func (h *FormHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req struct {
		PatientID  string `json:"patient_id"`
		NurseID    string `json:"nurse_id"`
		Title      string `json:"title"`
		Body       string `json:"body"`
		Attachment string `json:"attachment"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", domain.ErrBadRequest))
		return
	}

	// 患者只能以自己的身份发起
	if actor.IsPatient() {
		req.PatientID = actor.ID
	} else if !actor.IsAdmin() {
		writeError(w, fmt.Errorf("only a patient or admin can open a form: %w", domain.ErrForbidden))
		return
	}

	form, err := h.svc.CreateForm(r.Context(), req.PatientID, req.NurseID, req.Title, req.Body, req.Attachment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(toFormView(form)))
}

// POST /care/api/v1/forms/{id}/messages
// body: {"body","attachment"?}
func (h *FormHandler) AppendMessage(w http.ResponseWriter, r *http.Request, formID string) {
	actor := actorFrom(r)
	if !actor.Authenticated() {
		writeError(w, fmt.Errorf("authentication required: %w", domain.ErrForbidden))
		return
	}

	var req struct {
		Body       string `json:"body"`
		Attachment string `json:"attachment"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", domain.ErrBadRequest))
		return
	}

	form, err := h.svc.AppendMessage(r.Context(), formID, actor.ID, req.Body, req.Attachment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(toFormView(form)))
}

// POST /care/api/v1/forms/{id}/resolve
func (h *FormHandler) Resolve(w http.ResponseWriter, r *http.Request, formID string) {
	actor := actorFrom(r)
	if !actor.Authenticated() {
		writeError(w, fmt.Errorf("authentication required: %w", domain.ErrForbidden))
		return
	}

	form, err := h.svc.Resolve(r.Context(), formID, actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(toFormView(form)))
}

// POST /care/api/v1/forms/{id}/cancel
func (h *FormHandler) Cancel(w http.ResponseWriter, r *http.Request, formID string) {
	actor := actorFrom(r)
	if !actor.Authenticated() {
		writeError(w, fmt.Errorf("authentication required: %w", domain.ErrForbidden))
		return
	}

	form, err := h.svc.Cancel(r.Context(), formID, actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(toFormView(form)))
}

// GET /care/api/v1/forms?filter=resolved|unresolved&status=pending|in-progress|resolved|cancelled
func (h *FormHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if !actor.Authenticated() {
		writeError(w, fmt.Errorf("authentication required: %w", domain.ErrForbidden))
		return
	}

	filter := service.FormListFilter{
		Bucket: r.URL.Query().Get("filter"),
		Status: domain.FormStatus(r.URL.Query().Get("status")),
	}

	forms, err := h.svc.ListFor(r.Context(), actor.ID, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(toFormViews(forms)))
}

// GET /care/api/v1/forms/stats
func (h *FormHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if !actor.Authenticated() {
		writeError(w, fmt.Errorf("authentication required: %w", domain.ErrForbidden))
		return
	}

	stats, err := h.svc.Stats(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(stats))
}
