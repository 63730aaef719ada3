package automation

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/roofline-backend/internal/model"
	"github.com/roofline/roofline-backend/internal/repository"
)

// EnrollmentManager creates enrollments and guards the one-live-
// enrollment-per-(campaign, contact) invariant by lookup-before-insert.
type EnrollmentManager struct {
	Campaigns   repository.CampaignRepositoryInterface
	Enrollments repository.EnrollmentRepositoryInterface
	Projects    repository.ProjectRepositoryInterface
	Executions  repository.ExecutionRepositoryInterface
}

// Enroll adds a contact to a campaign. Either contactID or projectID
// must be given; a project resolves to its contact. A nil return with
// nil error means no addressable contact could be resolved — logged,
// never an error, because trigger loops must not abort over one bad
// candidate.
func (m *EnrollmentManager) Enroll(
	campaignID, tenantID uuid.UUID,
	contactID, projectID *uuid.UUID,
	source model.EnrollmentSource,
) (*uuid.UUID, error) {
	resolved, err := m.resolveContact(contactID, projectID)
	if err != nil {
		return nil, err
	}
	if resolved == uuid.Nil {
		log.Printf("[Enrollment] campaign %s: no contact resolvable (project=%v), skipping", campaignID, projectID)
		return nil, nil
	}

	// Idempotency: a live enrollment wins over a new one.
	existing, err := m.Enrollments.FindActiveOrPaused(campaignID, resolved)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &existing.ID, nil
	}

	enrollment := &model.Enrollment{
		TenantID:   tenantID,
		CampaignID: campaignID,
		ContactID:  resolved,
		Status:     model.EnrollmentActive,
		Source:     source,
	}

	first, err := m.Campaigns.GetFirstStep(campaignID)
	if err != nil {
		return nil, err
	}
	if first != nil {
		enrollment.CurrentStepID = &first.ID
		enrollment.CurrentStepOrder = first.StepOrder
	}

	if err := m.Enrollments.Create(enrollment); err != nil {
		return nil, err
	}

	// First execution is due immediately; the next poll picks it up.
	if first != nil {
		exec := &model.StepExecution{
			EnrollmentID: enrollment.ID,
			StepID:       first.ID,
			Status:       model.ExecutionPending,
			ScheduledAt:  time.Now(),
		}
		if err := m.Executions.Create(exec); err != nil {
			return nil, err
		}
	}

	if err := m.Campaigns.IncrementEnrolledCount(campaignID); err != nil {
		log.Printf("[Enrollment] campaign %s: enrolled counter bump failed: %v", campaignID, err)
	}

	return &enrollment.ID, nil
}

func (m *EnrollmentManager) resolveContact(contactID, projectID *uuid.UUID) (uuid.UUID, error) {
	if contactID != nil && *contactID != uuid.Nil {
		return *contactID, nil
	}
	if projectID != nil && *projectID != uuid.Nil {
		return m.Projects.GetContactID(*projectID)
	}
	return uuid.Nil, nil
}
