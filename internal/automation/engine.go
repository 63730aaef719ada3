package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/roofline/roofline-backend/internal/errors"
	"github.com/roofline/roofline-backend/internal/model"
	"github.com/roofline/roofline-backend/internal/repository"
)

// Engine is the composition root: it polls due step executions,
// dispatches them to the executor, advances the scheduler, and drains
// stage-change events emitted mid-pass. One logical pass per
// invocation; isolation is per execution, never all-or-nothing.
type Engine struct {
	Campaigns   repository.CampaignRepositoryInterface
	Enrollments repository.EnrollmentRepositoryInterface
	Executions  repository.ExecutionRepositoryInterface
	Contacts    repository.ContactRepositoryInterface

	Executor   *Executor
	Scheduler  *Scheduler
	Dispatcher *TriggerDispatcher
	Events     *EventQueue

	PollLimit int

	// Now is swappable for tests.
	Now func() time.Time

	cancel    context.CancelFunc
	lastRunAt time.Time
}

// PollResult summarizes one pass.
type PollResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Start runs the poll loop on a ticker until Stop or ctx cancellation.
func (e *Engine) Start(ctx context.Context, interval time.Duration) {
	ctx, e.cancel = context.WithCancel(ctx)
	go func() {
		log.Println("[Engine] starting campaign automation engine")
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Println("[Engine] stopped")
				return
			case <-ticker.C:
				result := e.ProcessPendingExecutions(ctx)
				if result.Processed > 0 {
					log.Printf("[Engine] pass complete: processed=%d succeeded=%d failed=%d",
						result.Processed, result.Succeeded, result.Failed)
				}
			}
		}
	}()
}

func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) LastRunAt() time.Time { return e.lastRunAt }

// ProcessPendingExecutions is the polling entry point. It selects all
// due pending executions owned by active enrollments and runs each one
// independently; a failure in one never blocks its siblings. After
// each execution the stage-event queue is drained so chained campaigns
// enroll within the same pass.
func (e *Engine) ProcessPendingExecutions(ctx context.Context) PollResult {
	e.lastRunAt = e.now()
	var result PollResult

	limit := e.PollLimit
	if limit <= 0 {
		limit = 100
	}

	due, err := e.Executions.ListDue(e.now(), limit)
	if err != nil {
		log.Printf("[Engine] listing due executions failed: %v", err)
		return result
	}

	for _, exec := range due {
		if ctx.Err() != nil {
			return result
		}
		result.Processed++
		if err := e.ExecuteStep(ctx, exec.ID); err != nil {
			result.Failed++
			log.Printf("[Engine] execution %s failed: %v", exec.ID, err)
		} else {
			result.Succeeded++
		}
		e.drainEvents()
	}

	return result
}

// drainEvents feeds queued stage changes back into the trigger
// dispatcher. The queue's capacity bounds chain depth per pass.
func (e *Engine) drainEvents() {
	if e.Events == nil || e.Dispatcher == nil {
		return
	}
	for {
		ev, ok := e.Events.Pop()
		if !ok {
			return
		}
		e.Dispatcher.OnStageChange(ev)
	}
}

// ExecuteStep runs a single execution through its lifecycle:
// pending -> running -> completed or failed. Failures are recorded and
// never retried automatically; the enrollment stalls at its current
// step until an operator intervenes.
func (e *Engine) ExecuteStep(ctx context.Context, executionID uuid.UUID) error {
	exec, err := e.Executions.GetByID(executionID)
	if err != nil {
		return err
	}
	if exec == nil {
		return fmt.Errorf("execution %s not found", executionID)
	}
	if exec.Status != model.ExecutionPending {
		// Already picked up by a previous pass; nothing to do.
		log.Printf("[Engine] execution %s is %s, skipping", exec.ID, exec.Status)
		return nil
	}

	// Mark running first so a crash mid-step leaves a detectable
	// stuck record instead of a silently re-runnable one.
	if err := e.Executions.MarkRunning(exec.ID, e.now()); err != nil {
		return err
	}

	step, err := e.Campaigns.GetStep(exec.StepID)
	if err != nil {
		return e.fail(exec, nil, err)
	}
	if step == nil {
		return e.fail(exec, nil, appErrors.NewPermanent("step %s no longer exists", exec.StepID))
	}

	if err := e.Campaigns.IncrementStepAttempted(step.ID); err != nil {
		log.Printf("[Engine] attempted counter bump for step %s failed: %v", step.ID, err)
	}

	enrollment, err := e.Enrollments.GetByID(exec.EnrollmentID)
	if err != nil {
		return e.fail(exec, step, err)
	}
	if enrollment == nil {
		return e.fail(exec, step, appErrors.NewPermanent("enrollment %s not found", exec.EnrollmentID))
	}

	contact, err := e.Contacts.GetByID(enrollment.ContactID)
	if err != nil {
		return e.fail(exec, step, err)
	}
	if contact == nil {
		return e.fail(exec, step, appErrors.NewPermanent("contact %s not found", enrollment.ContactID))
	}

	if !step.StepType.IsValid() {
		return e.fail(exec, step, appErrors.NewPermanent("unknown step type %q", step.StepType))
	}

	result, err := e.Executor.Execute(ctx, ExecContext{
		Enrollment: enrollment,
		Step:       step,
		Contact:    contact,
	})
	if err != nil {
		return e.fail(exec, step, err)
	}

	now := e.now()
	payload, merr := json.Marshal(result)
	if merr != nil {
		payload = nil
	}
	if err := e.Executions.MarkCompleted(exec.ID, now, payload); err != nil {
		return err
	}

	// Skipped sends still complete the step, but they never count as
	// messages sent.
	counterType := step.StepType
	if result.Skipped {
		counterType = model.StepWait
	}
	if err := e.Enrollments.RecordStepCompleted(enrollment.ID, counterType, now); err != nil {
		log.Printf("[Engine] progress counters for enrollment %s failed: %v", enrollment.ID, err)
	}

	// Exit steps already terminated the enrollment; everything else
	// advances.
	if step.StepType == model.StepExitCampaign {
		return nil
	}

	if err := e.Scheduler.ScheduleNext(enrollment, step, result.NextStepID); err != nil {
		log.Printf("[Engine] scheduling after execution %s failed: %v", exec.ID, err)
		return err
	}
	return nil
}

// fail records the failure on the execution and the step's counter.
func (e *Engine) fail(exec *model.StepExecution, step *model.Step, cause error) error {
	if err := e.Executions.MarkFailed(exec.ID, e.now(), cause.Error()); err != nil {
		log.Printf("[Engine] marking execution %s failed errored: %v", exec.ID, err)
	}
	if step != nil {
		if err := e.Campaigns.IncrementStepFailed(step.ID); err != nil {
			log.Printf("[Engine] failure counter bump for step %s failed: %v", step.ID, err)
		}
	}
	return cause
}
