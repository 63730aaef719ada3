package automation

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/roofline-backend/internal/model"
	"github.com/roofline/roofline-backend/internal/repository"
)

// TriggerDispatcher matches stage-change domain events against
// campaign triggers. Failures on one candidate are logged and never
// abort the loop over the rest: independent automations stay isolated.
type TriggerDispatcher struct {
	Campaigns   repository.CampaignRepositoryInterface
	Enrollments repository.EnrollmentRepositoryInterface
	Projects    repository.ProjectRepositoryInterface
	Manager     *EnrollmentManager
}

// OnStageChange runs the two trigger passes: first auto-exit
// enrollments whose premise no longer holds, then enroll the contact
// into every matching campaign.
func (d *TriggerDispatcher) OnStageChange(ev model.StageChangeEvent) {
	contactID := d.resolveContact(ev)

	if ev.FromStage != "" && contactID != uuid.Nil {
		d.autoExit(ev, contactID)
	}

	d.enrollMatches(ev, contactID)
}

// autoExit terminates active enrollments whose campaign trigger named
// the stage the project just left: the automation was about being in
// that stage, and leaving it ends the automation.
func (d *TriggerDispatcher) autoExit(ev model.StageChangeEvent, contactID uuid.UUID) {
	enrollments, err := d.Enrollments.ListActiveByContact(ev.TenantID, contactID)
	if err != nil {
		log.Printf("[Trigger] auto-exit: listing enrollments for contact %s failed: %v", contactID, err)
		return
	}

	for _, e := range enrollments {
		campaign, err := d.Campaigns.GetByID(e.CampaignID)
		if err != nil {
			log.Printf("[Trigger] auto-exit: campaign %s lookup failed: %v", e.CampaignID, err)
			continue
		}
		if campaign.TriggerType != model.TriggerTypeStageChange {
			continue
		}
		if campaign.Trigger.ToStage != ev.FromStage {
			continue
		}
		if err := d.Enrollments.MarkExited(e.ID, model.ExitReasonStageChanged, time.Now()); err != nil {
			log.Printf("[Trigger] auto-exit: enrollment %s exit failed: %v", e.ID, err)
			continue
		}
		log.Printf("[Trigger] auto-exited enrollment %s (campaign %s, left stage %q)", e.ID, campaign.ID, ev.FromStage)
	}
}

func (d *TriggerDispatcher) enrollMatches(ev model.StageChangeEvent, contactID uuid.UUID) {
	campaigns, err := d.Campaigns.ListActiveByTrigger(ev.TenantID, model.TriggerTypeStageChange)
	if err != nil {
		log.Printf("[Trigger] listing campaigns for tenant %s failed: %v", ev.TenantID, err)
		return
	}

	for _, c := range campaigns {
		if !matches(c.Trigger, ev) {
			continue
		}

		var cid *uuid.UUID
		if contactID != uuid.Nil {
			cid = &contactID
		}
		enrollmentID, err := d.Manager.Enroll(c.ID, ev.TenantID, cid, &ev.ProjectID, model.SourceTrigger)
		if err != nil {
			log.Printf("[Trigger] enroll into campaign %s failed: %v", c.ID, err)
			continue
		}
		if enrollmentID != nil {
			log.Printf("[Trigger] campaign %s matched stage %q, enrollment %s", c.ID, ev.ToStage, *enrollmentID)
		}
	}
}

// matches applies the trigger rule: project entity, exact to_stage,
// and from_stage either unset or equal to the stage being left.
func matches(t model.TriggerConfig, ev model.StageChangeEvent) bool {
	if t.EntityType != "project" {
		return false
	}
	if t.ToStage != ev.ToStage {
		return false
	}
	return t.FromStage == "" || t.FromStage == ev.FromStage
}

func (d *TriggerDispatcher) resolveContact(ev model.StageChangeEvent) uuid.UUID {
	if ev.ContactID != nil && *ev.ContactID != uuid.Nil {
		return *ev.ContactID
	}
	contactID, err := d.Projects.GetContactID(ev.ProjectID)
	if err != nil {
		log.Printf("[Trigger] contact lookup via project %s failed: %v", ev.ProjectID, err)
		return uuid.Nil
	}
	return contactID
}
