package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/roofline-backend/internal/model"
)

// ActivityRepositoryInterface covers the side-effect records steps
// write: follow-up tasks, in-app notifications, and the internal user
// lookups notify_users needs.
type ActivityRepositoryInterface interface {
	CreateTask(t *model.Task) error
	CreateNotification(n *model.Notification) error
	GetUser(id uuid.UUID) (*model.InternalUser, error)
}

type ActivityRepository struct {
	DB *sql.DB
}

func (r *ActivityRepository) CreateTask(t *model.Task) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	query := `
        INSERT INTO tasks (id, tenant_id, contact_id, title, notes, due_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := r.DB.Exec(query, t.ID, t.TenantID, t.ContactID, t.Title, t.Notes, t.DueAt, t.CreatedAt)
	return err
}

func (r *ActivityRepository) CreateNotification(n *model.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = time.Now()
	query := `
        INSERT INTO notifications (id, tenant_id, user_id, subject, body, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := r.DB.Exec(query, n.ID, n.TenantID, n.UserID, n.Subject, n.Body, n.CreatedAt)
	return err
}

func (r *ActivityRepository) GetUser(id uuid.UUID) (*model.InternalUser, error) {
	var u model.InternalUser
	err := r.DB.QueryRow(
		`SELECT id, tenant_id, name, COALESCE(email,'') FROM internal_users WHERE id=$1`, id,
	).Scan(&u.ID, &u.TenantID, &u.Name, &u.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

var _ ActivityRepositoryInterface = (*ActivityRepository)(nil)
