package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/roofline-backend/internal/condition"
	appErrors "github.com/roofline/roofline-backend/internal/errors"
	"github.com/roofline/roofline-backend/internal/model"
	"github.com/roofline/roofline-backend/internal/pipeline"
	"github.com/roofline/roofline-backend/internal/repository"
	"github.com/roofline/roofline-backend/internal/sender"
)

// ExecContext is everything a step executor may read.
type ExecContext struct {
	Enrollment *model.Enrollment
	Step       *model.Step
	Contact    *model.Contact
}

// Result is the outcome payload persisted on a completed execution.
// Skipped marks a successful no-op (unconfigured provider), which is
// deliberately not a failure. NextStepID is set only by
// conditional_branch and consumed by the scheduler.
type Result struct {
	Skipped    bool           `json:"skipped,omitempty"`
	SkipReason string         `json:"skip_reason,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
	NextStepID *uuid.UUID     `json:"next_step_id,omitempty"`
}

// StageChangeSink receives the events change_pipeline_stage emits.
type StageChangeSink interface {
	Publish(ev model.StageChangeEvent) bool
}

// Executor dispatches a step to the handler for its type. All handlers
// are side-effecting but stateless; every dependency is injected.
type Executor struct {
	Contacts    repository.ContactRepositoryInterface
	Projects    repository.ProjectRepositoryInterface
	Enrollments repository.EnrollmentRepositoryInterface
	Activity    repository.ActivityRepositoryInterface
	Email       sender.EmailSender
	SMS         sender.SMSSender
	Webhook     sender.WebhookCaller
	Events      StageChangeSink
}

// Execute runs one step. A returned error is a recorded failure; a
// Result with Skipped set is a successful no-op.
func (x *Executor) Execute(ctx context.Context, ec ExecContext) (*Result, error) {
	switch ec.Step.StepType {
	case model.StepSendEmail:
		return x.sendEmail(ctx, ec)
	case model.StepSendSMS:
		return x.sendSMS(ctx, ec)
	case model.StepCreateTask:
		return x.createTask(ec)
	case model.StepWait:
		// the delay lives on the *next* step's schedule, not here
		return &Result{Output: map[string]any{"waited": true}}, nil
	case model.StepUpdateField:
		return x.updateField(ec)
	case model.StepManageTags:
		return x.manageTags(ec)
	case model.StepNotifyUsers:
		return x.notifyUsers(ctx, ec)
	case model.StepCallWebhook:
		return x.callWebhook(ctx, ec)
	case model.StepConditionalBranch:
		return x.conditionalBranch(ec)
	case model.StepExitCampaign:
		return x.exitCampaign(ec)
	case model.StepChangePipelineStage:
		return x.changePipelineStage(ec)
	default:
		return nil, appErrors.NewPermanent("unknown step type %q", ec.Step.StepType)
	}
}

func (x *Executor) sendEmail(ctx context.Context, ec ExecContext) (*Result, error) {
	var cfg model.SendEmailConfig
	if err := json.Unmarshal(ec.Step.Config, &cfg); err != nil {
		return nil, appErrors.NewPermanent("bad send_email config: %v", err)
	}
	if ec.Contact.Email == "" {
		return nil, appErrors.NewPermanent("contact %s has no email address", ec.Contact.ID)
	}
	if x.Email == nil || !x.Email.IsConfigured() {
		return &Result{Skipped: true, SkipReason: "email provider not configured"}, nil
	}

	data := personalization(ec.Contact)
	subject := RenderTemplate(cfg.Subject, data)
	body := RenderTemplate(cfg.Body, data)

	id, err := x.Email.SendEmail(ctx, ec.Contact.Email, subject, body)
	if err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}
	return &Result{Output: map[string]any{"message_id": id, "to": ec.Contact.Email}}, nil
}

func (x *Executor) sendSMS(ctx context.Context, ec ExecContext) (*Result, error) {
	var cfg model.SendSMSConfig
	if err := json.Unmarshal(ec.Step.Config, &cfg); err != nil {
		return nil, appErrors.NewPermanent("bad send_sms config: %v", err)
	}
	if ec.Contact.Phone == "" {
		return nil, appErrors.NewPermanent("contact %s has no phone number", ec.Contact.ID)
	}
	if x.SMS == nil || !x.SMS.IsConfigured() {
		return &Result{Skipped: true, SkipReason: "sms provider not configured"}, nil
	}

	body := RenderTemplate(cfg.Body, personalization(ec.Contact))

	id, err := x.SMS.SendSMS(ctx, ec.Contact.Phone, body)
	if err != nil {
		return nil, fmt.Errorf("send sms: %w", err)
	}
	return &Result{Output: map[string]any{"message_id": id, "to": ec.Contact.Phone}}, nil
}

func (x *Executor) createTask(ec ExecContext) (*Result, error) {
	var cfg model.CreateTaskConfig
	if err := json.Unmarshal(ec.Step.Config, &cfg); err != nil {
		return nil, appErrors.NewPermanent("bad create_task config: %v", err)
	}

	task := &model.Task{
		TenantID:  ec.Enrollment.TenantID,
		ContactID: ec.Contact.ID,
		Title:     RenderTemplate(cfg.Title, personalization(ec.Contact)),
		Notes:     cfg.Description,
		DueAt:     time.Now().AddDate(0, 0, cfg.DueInDays),
	}
	if err := x.Activity.CreateTask(task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &Result{Output: map[string]any{"task_id": task.ID.String()}}, nil
}

func (x *Executor) updateField(ec ExecContext) (*Result, error) {
	var cfg model.UpdateFieldConfig
	if err := json.Unmarshal(ec.Step.Config, &cfg); err != nil {
		return nil, appErrors.NewPermanent("bad update_field config: %v", err)
	}

	switch cfg.Entity {
	case "contact":
		if err := x.Contacts.UpdateField(ec.Contact.ID, cfg.Field, cfg.Value); err != nil {
			return nil, err
		}
	case "project":
		project, err := x.Projects.GetLatestOpenByContact(ec.Contact.ID)
		if err != nil {
			return nil, err
		}
		if project == nil {
			return nil, appErrors.NewPermanent("contact %s has no open project", ec.Contact.ID)
		}
		if err := x.Projects.UpdateField(project.ID, cfg.Field, cfg.Value); err != nil {
			return nil, err
		}
	default:
		return nil, appErrors.NewPermanent("update_field: unrecognized entity %q", cfg.Entity)
	}

	return &Result{Output: map[string]any{"entity": cfg.Entity, "field": cfg.Field, "value": cfg.Value}}, nil
}

func (x *Executor) manageTags(ec ExecContext) (*Result, error) {
	var cfg model.ManageTagsConfig
	if err := json.Unmarshal(ec.Step.Config, &cfg); err != nil {
		return nil, appErrors.NewPermanent("bad manage_tags config: %v", err)
	}

	current := map[string]bool{}
	for _, t := range ec.Contact.Tags {
		current[t] = true
	}

	switch cfg.Action {
	case "add":
		for _, t := range cfg.Tags {
			current[t] = true
		}
	case "remove":
		for _, t := range cfg.Tags {
			delete(current, t)
		}
	default:
		return nil, appErrors.NewPermanent("manage_tags: unrecognized action %q", cfg.Action)
	}

	final := make([]string, 0, len(current))
	for t := range current {
		final = append(final, t)
	}
	sort.Strings(final)

	if err := x.Contacts.SetTags(ec.Contact.ID, final); err != nil {
		return nil, fmt.Errorf("set tags: %w", err)
	}
	return &Result{Output: map[string]any{"tags": final}}, nil
}

func (x *Executor) notifyUsers(ctx context.Context, ec ExecContext) (*Result, error) {
	var cfg model.NotifyUsersConfig
	if err := json.Unmarshal(ec.Step.Config, &cfg); err != nil {
		return nil, appErrors.NewPermanent("bad notify_users config: %v", err)
	}

	data := personalization(ec.Contact)
	subject := RenderTemplate(cfg.Subject, data)
	body := RenderTemplate(cfg.Body, data)

	// Each delivery is independent; one user's failure must not block
	// the rest.
	breakdown := map[string]bool{}
	notified := 0
	for _, userID := range cfg.UserIDs {
		ok := x.notifyOne(ctx, ec, userID, cfg.Channel, subject, body)
		breakdown[userID.String()] = ok
		if ok {
			notified++
		}
	}

	return &Result{Output: map[string]any{"results": breakdown, "notified": notified}}, nil
}

func (x *Executor) notifyOne(ctx context.Context, ec ExecContext, userID uuid.UUID, channel, subject, body string) bool {
	user, err := x.Activity.GetUser(userID)
	if err != nil || user == nil {
		log.Printf("[Executor] notify_users: user %s lookup failed: %v", userID, err)
		return false
	}

	delivered := false
	if channel == "email" || channel == "both" {
		if x.Email != nil && x.Email.IsConfigured() && user.Email != "" {
			if _, err := x.Email.SendEmail(ctx, user.Email, subject, body); err != nil {
				log.Printf("[Executor] notify_users: email to %s failed: %v", user.Email, err)
			} else {
				delivered = true
			}
		}
	}
	if channel == "in_app" || channel == "both" {
		n := &model.Notification{
			TenantID: ec.Enrollment.TenantID,
			UserID:   user.ID,
			Subject:  subject,
			Body:     body,
		}
		if err := x.Activity.CreateNotification(n); err != nil {
			log.Printf("[Executor] notify_users: in-app record for %s failed: %v", user.ID, err)
		} else {
			delivered = true
		}
	}
	return delivered
}

func (x *Executor) callWebhook(ctx context.Context, ec ExecContext) (*Result, error) {
	var cfg model.CallWebhookConfig
	if err := json.Unmarshal(ec.Step.Config, &cfg); err != nil {
		return nil, appErrors.NewPermanent("bad call_webhook config: %v", err)
	}
	if cfg.URL == "" {
		return nil, appErrors.NewPermanent("call_webhook: no url configured")
	}

	payload := []byte(cfg.Payload)
	if len(payload) == 0 {
		raw, err := json.Marshal(map[string]any{"contact": ec.Contact})
		if err != nil {
			return nil, err
		}
		payload = raw
	}

	status, err := x.Webhook.Call(ctx, strings.ToUpper(cfg.Method), cfg.URL, cfg.Headers, payload)
	if err != nil {
		return nil, err
	}
	return &Result{Output: map[string]any{"status_code": status}}, nil
}

func (x *Executor) conditionalBranch(ec ExecContext) (*Result, error) {
	var cfg model.ConditionalBranchConfig
	if err := json.Unmarshal(ec.Step.Config, &cfg); err != nil {
		return nil, appErrors.NewPermanent("bad conditional_branch config: %v", err)
	}

	passed := condition.Evaluate(cfg.Conditions, ec.Contact.Snapshot())

	target := cfg.FalseStepID
	if passed {
		target = cfg.TrueStepID
	}

	// A nil target means "fall through to the next step by order".
	return &Result{
		Output:     map[string]any{"condition_passed": passed},
		NextStepID: target,
	}, nil
}

func (x *Executor) exitCampaign(ec ExecContext) (*Result, error) {
	var cfg model.ExitCampaignConfig
	if err := json.Unmarshal(ec.Step.Config, &cfg); err != nil {
		return nil, appErrors.NewPermanent("bad exit_campaign config: %v", err)
	}

	reason := cfg.Reason
	if reason == "" {
		reason = model.ExitReasonStep
	}

	// The only executor allowed to change enrollment status directly.
	if err := x.Enrollments.MarkExited(ec.Enrollment.ID, reason, time.Now()); err != nil {
		return nil, fmt.Errorf("exit enrollment: %w", err)
	}

	out := map[string]any{"exited": true, "reason": reason}
	if cfg.CreateTask {
		task := &model.Task{
			TenantID:  ec.Enrollment.TenantID,
			ContactID: ec.Contact.ID,
			Title:     cfg.TaskTitle,
			DueAt:     time.Now(),
		}
		if task.Title == "" {
			task.Title = "Follow up after campaign exit"
		}
		if err := x.Activity.CreateTask(task); err != nil {
			log.Printf("[Executor] exit_campaign: final task failed: %v", err)
		} else {
			out["task_id"] = task.ID.String()
		}
	}
	return &Result{Output: out}, nil
}

func (x *Executor) changePipelineStage(ec ExecContext) (*Result, error) {
	var cfg model.ChangePipelineStageConfig
	if err := json.Unmarshal(ec.Step.Config, &cfg); err != nil {
		return nil, appErrors.NewPermanent("bad change_pipeline_stage config: %v", err)
	}

	project, err := x.Projects.GetLatestOpenByContact(ec.Contact.ID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, appErrors.NewPermanent("contact %s has no active project", ec.Contact.ID)
	}

	fromStage := project.Stage
	if !pipeline.IsValidTransition(fromStage, cfg.ToStage) {
		return nil, appErrors.NewPermanent("invalid stage transition: %s", pipeline.TransitionError(fromStage, cfg.ToStage))
	}

	if err := x.Projects.UpdateStage(project.ID, cfg.ToStage); err != nil {
		return nil, fmt.Errorf("update project stage: %w", err)
	}

	// Hand the event to the bounded queue rather than calling the
	// trigger dispatcher on this call stack; the engine drains it in
	// the same poll pass. This is how campaigns chain.
	contactID := ec.Contact.ID
	x.Events.Publish(model.StageChangeEvent{
		TenantID:  ec.Enrollment.TenantID,
		ProjectID: project.ID,
		ContactID: &contactID,
		FromStage: fromStage,
		ToStage:   cfg.ToStage,
		ChangedAt: time.Now(),
	})

	return &Result{Output: map[string]any{
		"project_id": project.ID.String(),
		"from_stage": fromStage,
		"to_stage":   cfg.ToStage,
	}}, nil
}
