package httpapi

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"wisefido-care/internal/domain"
	"wisefido-care/internal/service"
)

// FallHandler 跌倒事件 API
type FallHandler struct {
	svc    service.FallService
	logger *zap.Logger
}

func NewFallHandler(svc service.FallService, logger *zap.Logger) *FallHandler {
	return &FallHandler{svc: svc, logger: logger}
}

// POST /care/api/v1/falls/{patientID}/report
// 患者本人、护士/管理员，以及未认证的设备 webhook 都可以上报
func (h *FallHandler) Report(w http.ResponseWriter, r *http.Request, patientID string) {
	actor := actorFrom(r)

	source := domain.FallSourceDevice
	if actor.Authenticated() {
		source = domain.FallSourceManual
		if actor.IsPatient() && actor.ID != patientID {
			writeError(w, fmt.Errorf("patients can only report their own falls: %w", domain.ErrForbidden))
			return
		}
	}

	patient, err := h.svc.ReportFall(r.Context(), patientID, source)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(patient))
}

// POST /care/api/v1/falls/{patientID}/reset
func (h *FallHandler) Reset(w http.ResponseWriter, r *http.Request, patientID string) {
	actor := actorFrom(r)
	if !actor.IsNurse() && !actor.IsAdmin() {
		writeError(w, fmt.Errorf("resetting fall status requires a nurse or admin: %w", domain.ErrForbidden))
		return
	}

	patient, err := h.svc.ResetFallStatus(r.Context(), patientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(patient))
}

// GET /care/api/v1/falls/active
func (h *FallHandler) Active(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if !actor.IsNurse() && !actor.IsAdmin() {
		writeError(w, fmt.Errorf("listing active falls requires a nurse or admin: %w", domain.ErrForbidden))
		return
	}

	patients, err := h.svc.GetActiveFalls(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(patients))
}

// GET /care/api/v1/falls/events?patient_id=&page=&size=
func (h *FallHandler) Events(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if !actor.IsNurse() && !actor.IsAdmin() {
		writeError(w, fmt.Errorf("fall history requires a nurse or admin: %w", domain.ErrForbidden))
		return
	}

	patientID := r.URL.Query().Get("patient_id")
	page := parseInt(r.URL.Query().Get("page"), 1)
	size := parseInt(r.URL.Query().Get("size"), 20)

	events, total, err := h.svc.ListFallEvents(r.Context(), patientID, page, size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": events,
		"total": total,
		"page":  page,
		"size":  size,
	}))
}

// GET /care/api/v1/falls/export
// 跌倒事件历史导出为 Excel（护士/管理员）
func (h *FallHandler) Export(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if !actor.IsNurse() && !actor.IsAdmin() {
		writeError(w, fmt.Errorf("fall history export requires a nurse or admin: %w", domain.ErrForbidden))
		return
	}

	patientID := r.URL.Query().Get("patient_id")
	events, _, err := h.svc.ListFallEvents(r.Context(), patientID, 1, 10000)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := GenerateFallEventsExport(events)
	if err != nil {
		h.logger.Error("Failed to generate fall events export", zap.Error(err))
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="fall_events.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
