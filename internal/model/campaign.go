package model

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus controls whether a campaign accepts new enrollments.
type CampaignStatus string

const (
	CampaignStatusActive   CampaignStatus = "active"
	CampaignStatusInactive CampaignStatus = "inactive"
)

func (s CampaignStatus) IsValid() bool {
	switch s {
	case CampaignStatusActive, CampaignStatusInactive:
		return true
	default:
		return false
	}
}

// TriggerTypeStageChange is currently the only automatic entry trigger.
// Manual and API enrollments bypass trigger matching entirely.
const TriggerTypeStageChange = "stage_change"

// TriggerConfig describes which domain event enrolls a contact.
// An empty FromStage matches a change from any stage.
type TriggerConfig struct {
	EntityType string `json:"entity_type"`
	ToStage    string `json:"to_stage"`
	FromStage  string `json:"from_stage,omitempty"`
}

type Campaign struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	TenantID      uuid.UUID      `db:"tenant_id" json:"tenant_id"`
	Name          string         `db:"name" json:"name"`
	Status        CampaignStatus `db:"status" json:"status"`
	TriggerType   string         `db:"trigger_type" json:"trigger_type"`
	Trigger       TriggerConfig  `db:"trigger_config" json:"trigger_config"`
	EnrolledCount int            `db:"enrolled_count" json:"enrolled_count"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}
