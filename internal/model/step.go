package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/roofline-backend/internal/condition"
)

// StepType tags a step with the executor that runs it.
type StepType string

const (
	StepSendEmail           StepType = "send_email"
	StepSendSMS             StepType = "send_sms"
	StepCreateTask          StepType = "create_task"
	StepWait                StepType = "wait"
	StepUpdateField         StepType = "update_field"
	StepManageTags          StepType = "manage_tags"
	StepNotifyUsers         StepType = "notify_users"
	StepCallWebhook         StepType = "call_webhook"
	StepConditionalBranch   StepType = "conditional_branch"
	StepExitCampaign        StepType = "exit_campaign"
	StepChangePipelineStage StepType = "change_pipeline_stage"
)

func (t StepType) IsValid() bool {
	switch t {
	case StepSendEmail, StepSendSMS, StepCreateTask, StepWait,
		StepUpdateField, StepManageTags, StepNotifyUsers, StepCallWebhook,
		StepConditionalBranch, StepExitCampaign, StepChangePipelineStage:
		return true
	default:
		return false
	}
}

// DelayUnit is the unit applied to a step's delay relative to the
// previous step's completion.
type DelayUnit string

const (
	DelayHours DelayUnit = "hours"
	DelayDays  DelayUnit = "days"
	DelayWeeks DelayUnit = "weeks"
)

// Step is one action definition inside a campaign. StepOrder is unique
// per campaign; Config is decoded per StepType by the executor.
type Step struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	CampaignID     uuid.UUID       `db:"campaign_id" json:"campaign_id"`
	StepOrder      int             `db:"step_order" json:"step_order"`
	StepType       StepType        `db:"step_type" json:"step_type"`
	Config         json.RawMessage `db:"config" json:"config"`
	DelayValue     int             `db:"delay_value" json:"delay_value"`
	DelayUnit      DelayUnit       `db:"delay_unit" json:"delay_unit"`
	TotalAttempted int             `db:"total_attempted" json:"total_attempted"`
	TotalFailed    int             `db:"total_failed" json:"total_failed"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// Per-type config payloads.

type SendEmailConfig struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type SendSMSConfig struct {
	Body string `json:"body"`
}

type CreateTaskConfig struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueInDays   int    `json:"due_in_days,omitempty"`
}

type UpdateFieldConfig struct {
	Entity string `json:"entity"` // "contact" or "project"
	Field  string `json:"field"`
	Value  string `json:"value"`
}

type ManageTagsConfig struct {
	Action string   `json:"action"` // "add" or "remove"
	Tags   []string `json:"tags"`
}

type NotifyUsersConfig struct {
	UserIDs []uuid.UUID `json:"user_ids"`
	Channel string      `json:"channel"` // "email", "in_app", or "both"
	Subject string      `json:"subject,omitempty"`
	Body    string      `json:"body"`
}

type CallWebhookConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Payload json.RawMessage   `json:"payload,omitempty"`
}

type ConditionalBranchConfig struct {
	Conditions  condition.Group `json:"conditions"`
	TrueStepID  *uuid.UUID      `json:"true_step_id,omitempty"`
	FalseStepID *uuid.UUID      `json:"false_step_id,omitempty"`
}

type ExitCampaignConfig struct {
	Reason     string `json:"reason,omitempty"`
	CreateTask bool   `json:"create_task,omitempty"`
	TaskTitle  string `json:"task_title,omitempty"`
}

type ChangePipelineStageConfig struct {
	ToStage string `json:"to_stage"`
}
