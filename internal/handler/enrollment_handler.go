package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/roofline/roofline-backend/internal/model"
	"github.com/roofline/roofline-backend/internal/repository"
)

// Enroller is the piece of the enrollment manager the HTTP surface
// needs.
type Enroller interface {
	Enroll(campaignID, tenantID uuid.UUID, contactID, projectID *uuid.UUID, source model.EnrollmentSource) (*uuid.UUID, error)
}

// StageChangeReceiver accepts pipeline stage changes for trigger
// matching.
type StageChangeReceiver interface {
	OnStageChange(ev model.StageChangeEvent)
}

// EnrollmentHandler covers manual enrollment, pause/resume, the
// stage-change ingestion endpoint, and the operator execution views.
type EnrollmentHandler struct {
	Enrollments repository.EnrollmentRepositoryInterface
	Executions  repository.ExecutionRepositoryInterface
	Manager     Enroller
	Dispatcher  StageChangeReceiver
}

// EnrollHandler enrolls a contact (or a project's contact) into a
// campaign. Re-enrolling while a live enrollment exists returns the
// existing one.
func (h *EnrollmentHandler) EnrollHandler(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var payload struct {
		TenantID  uuid.UUID              `json:"tenant_id"`
		ContactID *uuid.UUID             `json:"contact_id,omitempty"`
		ProjectID *uuid.UUID             `json:"project_id,omitempty"`
		Source    model.EnrollmentSource `json:"source,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if payload.TenantID == uuid.Nil {
		http.Error(w, "tenant_id is required", http.StatusBadRequest)
		return
	}
	if payload.ContactID == nil && payload.ProjectID == nil {
		http.Error(w, "contact_id or project_id is required", http.StatusBadRequest)
		return
	}

	source := payload.Source
	if source == "" {
		source = model.SourceManual
	}

	enrollmentID, err := h.Manager.Enroll(campaignID, payload.TenantID, payload.ContactID, payload.ProjectID, source)
	if err != nil {
		http.Error(w, "failed to enroll: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if enrollmentID == nil {
		http.Error(w, "no contact could be resolved for enrollment", http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{"enrollment_id": enrollmentID})
}

// StageChangeHandler ingests a pipeline stage change and runs trigger
// matching synchronously. The AMQP consumer feeds the same dispatcher.
func (h *EnrollmentHandler) StageChangeHandler(w http.ResponseWriter, r *http.Request) {
	var ev model.StageChangeEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if ev.TenantID == uuid.Nil || ev.ProjectID == uuid.Nil || ev.ToStage == "" {
		http.Error(w, "tenant_id, project_id and to_stage are required", http.StatusBadRequest)
		return
	}
	if ev.ChangedAt.IsZero() {
		ev.ChangedAt = time.Now()
	}

	h.Dispatcher.OnStageChange(ev)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{"accepted": true})
}

// PauseHandler suspends an enrollment. Its pending executions stay in
// place but the poller stops admitting them until resume.
func (h *EnrollmentHandler) PauseHandler(w http.ResponseWriter, r *http.Request) {
	h.setEnrollmentStatus(w, r, model.EnrollmentPaused)
}

// ResumeHandler reactivates a paused enrollment.
func (h *EnrollmentHandler) ResumeHandler(w http.ResponseWriter, r *http.Request) {
	h.setEnrollmentStatus(w, r, model.EnrollmentActive)
}

func (h *EnrollmentHandler) setEnrollmentStatus(w http.ResponseWriter, r *http.Request, status model.EnrollmentStatus) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid enrollment id", http.StatusBadRequest)
		return
	}

	enrollment, err := h.Enrollments.GetByID(id)
	if err != nil {
		http.Error(w, "failed to fetch enrollment: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if enrollment == nil {
		http.Error(w, "enrollment not found", http.StatusNotFound)
		return
	}
	if enrollment.Status != model.EnrollmentActive && enrollment.Status != model.EnrollmentPaused {
		http.Error(w, "enrollment is "+string(enrollment.Status), http.StatusConflict)
		return
	}

	if err := h.Enrollments.SetStatus(id, status); err != nil {
		http.Error(w, "failed to update enrollment: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"id": id, "status": status})
}

// ListExecutionsHandler is the operator view over executions, mainly
// for spotting rows stuck in "running" after a crash.
func (h *EnrollmentHandler) ListExecutionsHandler(w http.ResponseWriter, r *http.Request) {
	status := model.ExecutionStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = model.ExecutionRunning
	}

	limit := 100
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = n
	}

	executions, err := h.Executions.ListByStatus(status, limit)
	if err != nil {
		http.Error(w, "failed to fetch executions: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"data": executions})
}
