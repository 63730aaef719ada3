package automation

import (
	"time"

	"github.com/google/uuid"

	appErrors "github.com/roofline/roofline-backend/internal/errors"
	"github.com/roofline/roofline-backend/internal/model"
	"github.com/roofline/roofline-backend/internal/repository"
)

// Scheduler queues the next step after a non-exit step completes, or
// marks the enrollment completed when the campaign runs out of steps.
type Scheduler struct {
	Campaigns   repository.CampaignRepositoryInterface
	Enrollments repository.EnrollmentRepositoryInterface
	Executions  repository.ExecutionRepositoryInterface

	// Now is swappable so delay arithmetic is testable.
	Now func() time.Time
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ScheduleNext advances the enrollment. branchTarget, when set by a
// conditional_branch result, names the step to jump to; it must be a
// forward jump (strictly greater step_order) so completed orders stay
// strictly increasing and loops are impossible.
func (s *Scheduler) ScheduleNext(enrollment *model.Enrollment, completed *model.Step, branchTarget *uuid.UUID) error {
	var next *model.Step
	var err error

	if branchTarget != nil {
		next, err = s.Campaigns.GetStep(*branchTarget)
		if err != nil {
			return err
		}
		if next == nil || next.CampaignID != completed.CampaignID {
			return appErrors.NewPermanent("branch target %s is not a step of campaign %s", *branchTarget, completed.CampaignID)
		}
		if next.StepOrder <= completed.StepOrder {
			return appErrors.NewPermanent("branch target %s would jump backwards (order %d -> %d)",
				*branchTarget, completed.StepOrder, next.StepOrder)
		}
	} else {
		next, err = s.Campaigns.GetNextStep(completed.CampaignID, completed.StepOrder)
		if err != nil {
			return err
		}
	}

	if next == nil {
		// Normal exhaustion: distinct from an exit step.
		return s.Enrollments.MarkCompleted(enrollment.ID, s.now())
	}

	exec := &model.StepExecution{
		EnrollmentID: enrollment.ID,
		StepID:       next.ID,
		Status:       model.ExecutionPending,
		ScheduledAt:  delayedTime(s.now(), next.DelayValue, next.DelayUnit),
	}
	if err := s.Executions.Create(exec); err != nil {
		return err
	}

	return s.Enrollments.AdvancePointer(enrollment.ID, next.ID, next.StepOrder)
}

// delayedTime applies a step delay with calendar arithmetic for days
// and weeks so DST boundaries don't drift the schedule.
func delayedTime(from time.Time, value int, unit model.DelayUnit) time.Time {
	if value <= 0 {
		return from
	}
	switch unit {
	case model.DelayDays:
		return from.AddDate(0, 0, value)
	case model.DelayWeeks:
		return from.AddDate(0, 0, 7*value)
	default: // hours
		return from.Add(time.Duration(value) * time.Hour)
	}
}
