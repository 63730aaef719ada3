package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the lifecycle of one scheduled step run. The poll
// only ever selects pending rows, so a crash between running and
// completed leaves a stuck record for operators to reconcile.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// StepExecution is one scheduled/attempted run of a step for an
// enrollment. Rows are append-only; they are never deleted.
type StepExecution struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EnrollmentID uuid.UUID       `db:"enrollment_id" json:"enrollment_id"`
	StepID       uuid.UUID       `db:"step_id" json:"step_id"`
	Status       ExecutionStatus `db:"status" json:"status"`
	ScheduledAt  time.Time       `db:"scheduled_at" json:"scheduled_at"`
	StartedAt    *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	Result       json.RawMessage `db:"result" json:"result,omitempty"`
	LastError    string          `db:"last_error" json:"last_error,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
