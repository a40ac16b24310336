package httpapi

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"wisefido-care/internal/domain"
	"wisefido-care/internal/service"
)

// AssignmentHandler 护士↔患者分配 API
type AssignmentHandler struct {
	svc    service.AssignmentService
	logger *zap.Logger
}

func NewAssignmentHandler(svc service.AssignmentService, logger *zap.Logger) *AssignmentHandler {
	return &AssignmentHandler{svc: svc, logger: logger}
}

// POST /care/api/v1/nurses/{id}/patients
// body: {"patient_id": "..."}
func (h *AssignmentHandler) Assign(w http.ResponseWriter, r *http.Request, nurseID string) {
	actor := actorFrom(r)
	if !actor.CanActAsNurse(nurseID) {
		writeError(w, fmt.Errorf("assignment requires the nurse or an admin: %w", domain.ErrForbidden))
		return
	}

	var req struct {
		PatientID string `json:"patient_id"`
	}
	if err := readBodyJSON(r, 1<<16, &req); err != nil || req.PatientID == "" {
		writeError(w, fmt.Errorf("patient_id is required: %w", domain.ErrBadRequest))
		return
	}

	nurse, err := h.svc.AssignPatient(r.Context(), nurseID, req.PatientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(nurse))
}

// DELETE /care/api/v1/nurses/{id}/patients/{pid}
func (h *AssignmentHandler) Unassign(w http.ResponseWriter, r *http.Request, nurseID, patientID string) {
	actor := actorFrom(r)
	if !actor.CanActAsNurse(nurseID) {
		writeError(w, fmt.Errorf("assignment requires the nurse or an admin: %w", domain.ErrForbidden))
		return
	}

	nurse, err := h.svc.UnassignPatient(r.Context(), nurseID, patientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(nurse))
}

// POST /care/api/v1/nurses/{id}/patients/bulk
// body: {"patient_ids": ["...", ...]}
func (h *AssignmentHandler) BulkAssign(w http.ResponseWriter, r *http.Request, nurseID string) {
	actor := actorFrom(r)
	if !actor.CanActAsNurse(nurseID) {
		writeError(w, fmt.Errorf("assignment requires the nurse or an admin: %w", domain.ErrForbidden))
		return
	}

	var req struct {
		PatientIDs []string `json:"patient_ids"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil || len(req.PatientIDs) == 0 {
		writeError(w, fmt.Errorf("patient_ids is required: %w", domain.ErrBadRequest))
		return
	}

	nurse, err := h.svc.BulkAssign(r.Context(), nurseID, req.PatientIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(nurse))
}

// GET /care/api/v1/nurses/{id}/patients
func (h *AssignmentHandler) ListPatients(w http.ResponseWriter, r *http.Request, nurseID string) {
	actor := actorFrom(r)
	if !actor.CanActAsNurse(nurseID) {
		writeError(w, fmt.Errorf("listing patients requires the nurse or an admin: %w", domain.ErrForbidden))
		return
	}

	patients, err := h.svc.ListPatients(r.Context(), nurseID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(patients))
}

// GET /care/api/v1/patients/{id}/nurse
func (h *AssignmentHandler) GetNurseOf(w http.ResponseWriter, r *http.Request, patientID string) {
	actor := actorFrom(r)
	if !actor.CanActAsPatient(patientID) {
		writeError(w, fmt.Errorf("only the patient or an admin can view the assigned nurse: %w", domain.ErrForbidden))
		return
	}

	nurse, err := h.svc.GetNurseOf(r.Context(), patientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(nurse))
}
