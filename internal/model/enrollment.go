package model

import (
	"time"

	"github.com/google/uuid"
)

// EnrollmentStatus is the lifecycle state of a contact's run through a
// campaign. Only active enrollments are admitted by the poll; paused
// ones are frozen until resumed.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentPaused    EnrollmentStatus = "paused"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentExited    EnrollmentStatus = "exited"
)

func (s EnrollmentStatus) IsValid() bool {
	switch s {
	case EnrollmentActive, EnrollmentPaused, EnrollmentCompleted, EnrollmentExited:
		return true
	default:
		return false
	}
}

// EnrollmentSource records how the contact entered the campaign.
type EnrollmentSource string

const (
	SourceTrigger    EnrollmentSource = "automatic_trigger"
	SourceManual     EnrollmentSource = "manual"
	SourceAPI        EnrollmentSource = "api"
	SourceBulkImport EnrollmentSource = "bulk_import"
)

// Exit reasons written by the engine itself. Exit steps may carry a
// custom reason in their config.
const (
	ExitReasonStageChanged = "stage_changed"
	ExitReasonStep         = "exit_step"
)

type Enrollment struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	TenantID         uuid.UUID        `db:"tenant_id" json:"tenant_id"`
	CampaignID       uuid.UUID        `db:"campaign_id" json:"campaign_id"`
	ContactID        uuid.UUID        `db:"contact_id" json:"contact_id"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	Source           EnrollmentSource `db:"source" json:"source"`
	CurrentStepID    *uuid.UUID       `db:"current_step_id" json:"current_step_id,omitempty"`
	CurrentStepOrder int              `db:"current_step_order" json:"current_step_order"`
	StepsCompleted   int              `db:"steps_completed" json:"steps_completed"`
	EmailsSent       int              `db:"emails_sent" json:"emails_sent"`
	SMSSent          int              `db:"sms_sent" json:"sms_sent"`
	ExitReason       string           `db:"exit_reason" json:"exit_reason,omitempty"`
	EnrolledAt       time.Time        `db:"enrolled_at" json:"enrolled_at"`
	LastStepAt       *time.Time       `db:"last_step_at" json:"last_step_at,omitempty"`
	CompletedAt      *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
}
