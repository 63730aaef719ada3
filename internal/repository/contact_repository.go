package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/lib/pq"

	appErrors "github.com/roofline/roofline-backend/internal/errors"
	"github.com/roofline/roofline-backend/internal/model"
)

type ContactRepositoryInterface interface {
	GetByID(id uuid.UUID) (*model.Contact, error)
	UpdateField(id uuid.UUID, field, value string) error
	SetTags(id uuid.UUID, tags []string) error
}

type ContactRepository struct {
	DB *sql.DB
}

// Columns that update_field may write directly; anything else lands in
// custom_fields so step configs cannot name arbitrary columns.
var contactColumns = map[string]string{
	"first_name": "first_name",
	"last_name":  "last_name",
	"email":      "email",
	"phone":      "phone",
}

func (r *ContactRepository) GetByID(id uuid.UUID) (*model.Contact, error) {
	query := `
        SELECT id, tenant_id, first_name, last_name, COALESCE(email,''), COALESCE(phone,''),
               tags, custom_fields, created_at
        FROM contacts WHERE id=$1
    `
	var c model.Contact
	var custom []byte
	err := r.DB.QueryRow(query, id).Scan(&c.ID, &c.TenantID, &c.FirstName, &c.LastName,
		&c.Email, &c.Phone, pq.Array(&c.Tags), &custom, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if len(custom) > 0 {
		json.Unmarshal(custom, &c.CustomFields)
	}
	return &c, nil
}

func (r *ContactRepository) UpdateField(id uuid.UUID, field, value string) error {
	if col, ok := contactColumns[field]; ok {
		_, err := r.DB.Exec(`UPDATE contacts SET `+col+`=$1 WHERE id=$2`, value, id)
		return err
	}
	patch, err := json.Marshal(map[string]string{field: value})
	if err != nil {
		return err
	}
	_, err = r.DB.Exec(
		`UPDATE contacts SET custom_fields = COALESCE(custom_fields, '{}'::jsonb) || $1::jsonb WHERE id=$2`,
		patch, id)
	return err
}

func (r *ContactRepository) SetTags(id uuid.UUID, tags []string) error {
	_, err := r.DB.Exec(`UPDATE contacts SET tags=$1 WHERE id=$2`, pq.Array(tags), id)
	return err
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)

// ====================== Projects ======================

type ProjectRepositoryInterface interface {
	GetByID(id uuid.UUID) (*model.Project, error)
	GetContactID(projectID uuid.UUID) (uuid.UUID, error)
	GetLatestOpenByContact(contactID uuid.UUID) (*model.Project, error)
	UpdateStage(id uuid.UUID, stage string) error
	UpdateField(id uuid.UUID, field, value string) error
}

type ProjectRepository struct {
	DB *sql.DB
}

const projectCols = `id, tenant_id, contact_id, name, stage, created_at, updated_at`

func (r *ProjectRepository) GetByID(id uuid.UUID) (*model.Project, error) {
	query := `SELECT ` + projectCols + ` FROM projects WHERE id=$1`
	p, err := scanProject(r.DB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *ProjectRepository) GetContactID(projectID uuid.UUID) (uuid.UUID, error) {
	var contactID uuid.UUID
	err := r.DB.QueryRow(`SELECT contact_id FROM projects WHERE id=$1`, projectID).Scan(&contactID)
	if err == sql.ErrNoRows {
		return uuid.Nil, nil
	}
	return contactID, err
}

// GetLatestOpenByContact returns the contact's most recent project that
// has not reached a terminal stage, or nil.
func (r *ProjectRepository) GetLatestOpenByContact(contactID uuid.UUID) (*model.Project, error) {
	query := `SELECT ` + projectCols + ` FROM projects
        WHERE contact_id=$1 AND stage NOT IN ('completed','lost')
        ORDER BY created_at DESC LIMIT 1`
	p, err := scanProject(r.DB.QueryRow(query, contactID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *ProjectRepository) UpdateStage(id uuid.UUID, stage string) error {
	_, err := r.DB.Exec(`UPDATE projects SET stage=$1, updated_at=NOW() WHERE id=$2`, stage, id)
	return err
}

var projectColumns = map[string]string{
	"name":  "name",
	"stage": "stage",
}

func (r *ProjectRepository) UpdateField(id uuid.UUID, field, value string) error {
	col, ok := projectColumns[field]
	if !ok {
		return appErrors.NewPermanent("project has no writable field %q", field)
	}
	_, err := r.DB.Exec(`UPDATE projects SET `+col+`=$1, updated_at=NOW() WHERE id=$2`, value, id)
	return err
}

func scanProject(row rowScanner) (*model.Project, error) {
	var p model.Project
	err := row.Scan(&p.ID, &p.TenantID, &p.ContactID, &p.Name, &p.Stage, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

var _ ProjectRepositoryInterface = (*ProjectRepository)(nil)
