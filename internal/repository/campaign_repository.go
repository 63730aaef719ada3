package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/roofline/roofline-backend/internal/errors"
	"github.com/roofline/roofline-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	Create(c *model.Campaign) error
	GetByID(id uuid.UUID) (*model.Campaign, error)
	ListCampaigns(tenantID uuid.UUID, offset, limit int, status string) ([]*model.Campaign, int, error)
	ListActiveByTrigger(tenantID uuid.UUID, triggerType string) ([]*model.Campaign, error)
	UpdateStatus(id uuid.UUID, status model.CampaignStatus) error
	IncrementEnrolledCount(id uuid.UUID) error

	// Steps
	CreateStep(s *model.Step) error
	GetStep(id uuid.UUID) (*model.Step, error)
	ListSteps(campaignID uuid.UUID) ([]*model.Step, error)
	GetFirstStep(campaignID uuid.UUID) (*model.Step, error)
	GetNextStep(campaignID uuid.UUID, afterOrder int) (*model.Step, error)
	IncrementStepAttempted(id uuid.UUID) error
	IncrementStepFailed(id uuid.UUID) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignCols = `id, tenant_id, name, status, trigger_type, trigger_config, enrolled_count, created_at, updated_at`

func (r *CampaignRepository) Create(c *model.Campaign) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignStatusInactive
	}
	trigger, err := json.Marshal(c.Trigger)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO campaigns (id, tenant_id, name, status, trigger_type, trigger_config, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err = r.DB.Exec(query, c.ID, c.TenantID, c.Name, c.Status, c.TriggerType, trigger, c.CreatedAt)
	return err
}

func (r *CampaignRepository) GetByID(id uuid.UUID) (*model.Campaign, error) {
	query := `SELECT ` + campaignCols + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, appErrors.NewCampaignNotFound(id.String())
	}
	return c, err
}

func (r *CampaignRepository) ListCampaigns(tenantID uuid.UUID, offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignCols + ` FROM campaigns WHERE tenant_id=$1`
	args := []interface{}{tenantID}
	argPos := 2

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE tenant_id=$1`
	countArgs := []interface{}{tenantID}
	if status != "" {
		countQuery += " AND status=$2"
		countArgs = append(countArgs, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) ListActiveByTrigger(tenantID uuid.UUID, triggerType string) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignCols + `
        FROM campaigns
        WHERE tenant_id=$1 AND trigger_type=$2 AND status='active'`
	rows, err := r.DB.Query(query, tenantID, triggerType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []*model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (r *CampaignRepository) UpdateStatus(id uuid.UUID, status model.CampaignStatus) error {
	_, err := r.DB.Exec(`UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	return err
}

// IncrementEnrolledCount bumps the counter atomically in the store.
func (r *CampaignRepository) IncrementEnrolledCount(id uuid.UUID) error {
	_, err := r.DB.Exec(`UPDATE campaigns SET enrolled_count = enrolled_count + 1 WHERE id=$1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var trigger []byte
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Status, &c.TriggerType, &trigger, &c.EnrolledCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(trigger) > 0 {
		if err := json.Unmarshal(trigger, &c.Trigger); err != nil {
			return nil, fmt.Errorf("decode trigger config for campaign %s: %w", c.ID, err)
		}
	}
	return &c, nil
}

// ====================== Steps ======================

const stepCols = `id, campaign_id, step_order, step_type, config, delay_value, delay_unit, total_attempted, total_failed, created_at`

func (r *CampaignRepository) CreateStep(s *model.Step) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now()
	if s.DelayUnit == "" {
		s.DelayUnit = model.DelayHours
	}
	query := `
        INSERT INTO campaign_steps (id, campaign_id, step_order, step_type, config, delay_value, delay_unit, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	_, err := r.DB.Exec(query, s.ID, s.CampaignID, s.StepOrder, s.StepType, []byte(s.Config), s.DelayValue, s.DelayUnit, s.CreatedAt)
	return err
}

func (r *CampaignRepository) GetStep(id uuid.UUID) (*model.Step, error) {
	query := `SELECT ` + stepCols + ` FROM campaign_steps WHERE id=$1`
	s, err := scanStep(r.DB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *CampaignRepository) ListSteps(campaignID uuid.UUID) ([]*model.Step, error) {
	query := `SELECT ` + stepCols + ` FROM campaign_steps WHERE campaign_id=$1 ORDER BY step_order ASC`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := []*model.Step{}
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// GetFirstStep returns the lowest-order step of a campaign, or nil.
func (r *CampaignRepository) GetFirstStep(campaignID uuid.UUID) (*model.Step, error) {
	query := `SELECT ` + stepCols + ` FROM campaign_steps
        WHERE campaign_id=$1 ORDER BY step_order ASC LIMIT 1`
	s, err := scanStep(r.DB.QueryRow(query, campaignID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// GetNextStep returns the step with the lowest order strictly greater
// than afterOrder, or nil when the campaign has run out of steps.
func (r *CampaignRepository) GetNextStep(campaignID uuid.UUID, afterOrder int) (*model.Step, error) {
	query := `SELECT ` + stepCols + ` FROM campaign_steps
        WHERE campaign_id=$1 AND step_order > $2 ORDER BY step_order ASC LIMIT 1`
	s, err := scanStep(r.DB.QueryRow(query, campaignID, afterOrder))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *CampaignRepository) IncrementStepAttempted(id uuid.UUID) error {
	_, err := r.DB.Exec(`UPDATE campaign_steps SET total_attempted = total_attempted + 1 WHERE id=$1`, id)
	return err
}

func (r *CampaignRepository) IncrementStepFailed(id uuid.UUID) error {
	_, err := r.DB.Exec(`UPDATE campaign_steps SET total_failed = total_failed + 1 WHERE id=$1`, id)
	return err
}

func scanStep(row rowScanner) (*model.Step, error) {
	var s model.Step
	var config []byte
	err := row.Scan(&s.ID, &s.CampaignID, &s.StepOrder, &s.StepType, &config, &s.DelayValue, &s.DelayUnit, &s.TotalAttempted, &s.TotalFailed, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.Config = config
	return &s, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
