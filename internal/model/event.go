package model

import (
	"time"

	"github.com/google/uuid"
)

// StageChangeEvent is the domain event that drives trigger matching.
// ContactID may be nil; the enrollment manager resolves it from the
// project when absent.
type StageChangeEvent struct {
	TenantID  uuid.UUID  `json:"tenant_id"`
	ProjectID uuid.UUID  `json:"project_id"`
	ContactID *uuid.UUID `json:"contact_id,omitempty"`
	FromStage string     `json:"from_stage,omitempty"`
	ToStage   string     `json:"to_stage"`
	ChangedAt time.Time  `json:"changed_at"`
}
