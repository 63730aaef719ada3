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

// CampaignHandler holds the dependencies for campaign-related HTTP handlers
type CampaignHandler struct {
	Campaigns   repository.CampaignRepositoryInterface
	Enrollments repository.EnrollmentRepositoryInterface
}

type stepPayload struct {
	StepOrder  int             `json:"step_order"`
	StepType   model.StepType  `json:"step_type"`
	Config     json.RawMessage `json:"config"`
	DelayValue int             `json:"delay_value"`
	DelayUnit  model.DelayUnit `json:"delay_unit"`
}

// CreateCampaignHandler creates a campaign with its ordered steps.
// Campaigns start inactive; activation is a separate call.
func (h *CampaignHandler) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TenantID    uuid.UUID           `json:"tenant_id"`
		Name        string              `json:"name"`
		TriggerType string              `json:"trigger_type"`
		Trigger     model.TriggerConfig `json:"trigger_config"`
		Steps       []stepPayload       `json:"steps"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if payload.TenantID == uuid.Nil || payload.Name == "" {
		http.Error(w, "tenant_id and name are required", http.StatusBadRequest)
		return
	}

	seen := map[int]bool{}
	for _, s := range payload.Steps {
		if !s.StepType.IsValid() {
			http.Error(w, "unknown step type: "+string(s.StepType), http.StatusBadRequest)
			return
		}
		if seen[s.StepOrder] {
			http.Error(w, "duplicate step_order: "+strconv.Itoa(s.StepOrder), http.StatusBadRequest)
			return
		}
		seen[s.StepOrder] = true
	}

	campaign := &model.Campaign{
		TenantID:    payload.TenantID,
		Name:        payload.Name,
		Status:      model.CampaignStatusInactive,
		TriggerType: payload.TriggerType,
		Trigger:     payload.Trigger,
	}
	if campaign.TriggerType == "" {
		campaign.TriggerType = model.TriggerTypeStageChange
	}

	if err := h.Campaigns.Create(campaign); err != nil {
		http.Error(w, "failed to create campaign: "+err.Error(), http.StatusInternalServerError)
		return
	}

	steps := make([]*model.Step, 0, len(payload.Steps))
	for _, s := range payload.Steps {
		step := &model.Step{
			CampaignID: campaign.ID,
			StepOrder:  s.StepOrder,
			StepType:   s.StepType,
			Config:     s.Config,
			DelayValue: s.DelayValue,
			DelayUnit:  s.DelayUnit,
		}
		if len(step.Config) == 0 {
			step.Config = json.RawMessage(`{}`)
		}
		if err := h.Campaigns.CreateStep(step); err != nil {
			http.Error(w, "failed to create step: "+err.Error(), http.StatusInternalServerError)
			return
		}
		steps = append(steps, step)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"campaign": campaign,
		"steps":    steps,
	})
}

// ListCampaignsHandler returns a paginated list of campaigns
func (h *CampaignHandler) ListCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.URL.Query().Get("tenant_id"))
	if err != nil {
		http.Error(w, "invalid tenant_id", http.StatusBadRequest)
		return
	}

	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if ps, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && ps > 0 {
		pageSize = ps
	}
	status := r.URL.Query().Get("status")

	campaigns, total, err := h.Campaigns.ListCampaigns(tenantID, (page-1)*pageSize, pageSize, status)
	if err != nil {
		http.Error(w, "failed to fetch campaigns: "+err.Error(), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": campaigns,
		"pagination": map[string]interface{}{
			"page":        page,
			"page_size":   pageSize,
			"total_count": total,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// GetCampaignHandler returns a campaign with its steps and enrollment
// stats broken down by status.
func (h *CampaignHandler) GetCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	campaign, err := h.Campaigns.GetByID(id)
	if err != nil {
		http.Error(w, "failed to fetch campaign: "+err.Error(), http.StatusNotFound)
		return
	}

	steps, err := h.Campaigns.ListSteps(id)
	if err != nil {
		http.Error(w, "failed to fetch steps: "+err.Error(), http.StatusInternalServerError)
		return
	}

	stats, err := h.Enrollments.CountByCampaign(id)
	if err != nil {
		http.Error(w, "failed to fetch stats: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"campaign":         campaign,
		"steps":            steps,
		"enrollment_stats": stats,
	})
}

// UpdateCampaignStatusHandler flips a campaign between active and
// inactive. Deactivation stops new enrollments; in-flight enrollments
// keep running.
func (h *CampaignHandler) UpdateCampaignStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var payload struct {
		Status model.CampaignStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if !payload.Status.IsValid() {
		http.Error(w, "invalid status: "+string(payload.Status), http.StatusBadRequest)
		return
	}

	if err := h.Campaigns.UpdateStatus(id, payload.Status); err != nil {
		http.Error(w, "failed to update status: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":         id,
		"status":     payload.Status,
		"updated_at": time.Now(),
	})
}
