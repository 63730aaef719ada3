package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/roofline-backend/internal/model"
)

type EnrollmentRepositoryInterface interface {
	Create(e *model.Enrollment) error
	GetByID(id uuid.UUID) (*model.Enrollment, error)
	FindActiveOrPaused(campaignID, contactID uuid.UUID) (*model.Enrollment, error)
	ListActiveByContact(tenantID, contactID uuid.UUID) ([]*model.Enrollment, error)
	AdvancePointer(id, stepID uuid.UUID, stepOrder int) error
	RecordStepCompleted(id uuid.UUID, stepType model.StepType, at time.Time) error
	MarkCompleted(id uuid.UUID, at time.Time) error
	MarkExited(id uuid.UUID, reason string, at time.Time) error
	SetStatus(id uuid.UUID, status model.EnrollmentStatus) error
	CountByCampaign(campaignID uuid.UUID) (map[string]int, error)
}

type EnrollmentRepository struct {
	DB *sql.DB
}

const enrollmentCols = `id, tenant_id, campaign_id, contact_id, status, source,
    current_step_id, current_step_order, steps_completed, emails_sent, sms_sent,
    exit_reason, enrolled_at, last_step_at, completed_at`

func (r *EnrollmentRepository) Create(e *model.Enrollment) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.EnrolledAt = time.Now()
	if e.Status == "" {
		e.Status = model.EnrollmentActive
	}
	query := `
        INSERT INTO campaign_enrollments
            (id, tenant_id, campaign_id, contact_id, status, source, current_step_id, current_step_order, enrolled_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	_, err := r.DB.Exec(query, e.ID, e.TenantID, e.CampaignID, e.ContactID,
		e.Status, e.Source, e.CurrentStepID, e.CurrentStepOrder, e.EnrolledAt)
	return err
}

func (r *EnrollmentRepository) GetByID(id uuid.UUID) (*model.Enrollment, error) {
	query := `SELECT ` + enrollmentCols + ` FROM campaign_enrollments WHERE id=$1`
	e, err := scanEnrollment(r.DB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// FindActiveOrPaused is the idempotency lookup: at most one enrollment
// per (campaign, contact) may be in a live state.
func (r *EnrollmentRepository) FindActiveOrPaused(campaignID, contactID uuid.UUID) (*model.Enrollment, error) {
	query := `SELECT ` + enrollmentCols + ` FROM campaign_enrollments
        WHERE campaign_id=$1 AND contact_id=$2 AND status IN ('active','paused')
        LIMIT 1`
	e, err := scanEnrollment(r.DB.QueryRow(query, campaignID, contactID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (r *EnrollmentRepository) ListActiveByContact(tenantID, contactID uuid.UUID) ([]*model.Enrollment, error) {
	query := `SELECT ` + enrollmentCols + ` FROM campaign_enrollments
        WHERE tenant_id=$1 AND contact_id=$2 AND status='active'`
	rows, err := r.DB.Query(query, tenantID, contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enrollments []*model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

func (r *EnrollmentRepository) AdvancePointer(id, stepID uuid.UUID, stepOrder int) error {
	query := `UPDATE campaign_enrollments
        SET current_step_id=$1, current_step_order=$2
        WHERE id=$3`
	_, err := r.DB.Exec(query, stepID, stepOrder, id)
	return err
}

// RecordStepCompleted bumps the progress counters atomically. Message
// steps also bump their channel counter.
func (r *EnrollmentRepository) RecordStepCompleted(id uuid.UUID, stepType model.StepType, at time.Time) error {
	channelCol := ""
	switch stepType {
	case model.StepSendEmail:
		channelCol = ", emails_sent = emails_sent + 1"
	case model.StepSendSMS:
		channelCol = ", sms_sent = sms_sent + 1"
	}
	query := `UPDATE campaign_enrollments
        SET steps_completed = steps_completed + 1, last_step_at=$1` + channelCol + `
        WHERE id=$2`
	_, err := r.DB.Exec(query, at, id)
	return err
}

func (r *EnrollmentRepository) MarkCompleted(id uuid.UUID, at time.Time) error {
	query := `UPDATE campaign_enrollments
        SET status='completed', completed_at=$1
        WHERE id=$2 AND status='active'`
	_, err := r.DB.Exec(query, at, id)
	return err
}

func (r *EnrollmentRepository) MarkExited(id uuid.UUID, reason string, at time.Time) error {
	query := `UPDATE campaign_enrollments
        SET status='exited', exit_reason=$1, completed_at=$2
        WHERE id=$3 AND status IN ('active','paused')`
	_, err := r.DB.Exec(query, reason, at, id)
	return err
}

// SetStatus is the operator pause/resume surface. It only flips
// between the two live states.
func (r *EnrollmentRepository) SetStatus(id uuid.UUID, status model.EnrollmentStatus) error {
	query := `UPDATE campaign_enrollments SET status=$1
        WHERE id=$2 AND status IN ('active','paused')`
	_, err := r.DB.Exec(query, status, id)
	return err
}

func (r *EnrollmentRepository) CountByCampaign(campaignID uuid.UUID) (map[string]int, error) {
	rows, err := r.DB.Query(
		`SELECT status, COUNT(*) FROM campaign_enrollments WHERE campaign_id=$1 GROUP BY status`,
		campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{"active": 0, "paused": 0, "completed": 0, "exited": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func scanEnrollment(row rowScanner) (*model.Enrollment, error) {
	var e model.Enrollment
	var exitReason sql.NullString
	err := row.Scan(&e.ID, &e.TenantID, &e.CampaignID, &e.ContactID, &e.Status, &e.Source,
		&e.CurrentStepID, &e.CurrentStepOrder, &e.StepsCompleted, &e.EmailsSent, &e.SMSSent,
		&exitReason, &e.EnrolledAt, &e.LastStepAt, &e.CompletedAt)
	if err != nil {
		return nil, err
	}
	e.ExitReason = exitReason.String
	return &e, nil
}

var _ EnrollmentRepositoryInterface = (*EnrollmentRepository)(nil)
