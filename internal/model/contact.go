package model

import (
	"time"

	"github.com/google/uuid"
)

type Contact struct {
	ID           uuid.UUID         `db:"id" json:"id"`
	TenantID     uuid.UUID         `db:"tenant_id" json:"tenant_id"`
	FirstName    string            `db:"first_name" json:"first_name"`
	LastName     string            `db:"last_name" json:"last_name"`
	Email        string            `db:"email" json:"email"`
	Phone        string            `db:"phone" json:"phone"`
	Tags         []string          `db:"tags" json:"tags"`
	CustomFields map[string]string `db:"custom_fields" json:"custom_fields,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
}

// Snapshot flattens the contact into the record shape the condition
// evaluator and template renderer consume. Custom fields never shadow
// the built-in ones.
func (c *Contact) Snapshot() map[string]any {
	snap := map[string]any{}
	for k, v := range c.CustomFields {
		snap[k] = v
	}
	snap["first_name"] = c.FirstName
	snap["last_name"] = c.LastName
	snap["email"] = c.Email
	snap["phone"] = c.Phone
	return snap
}

type Project struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	TenantID  uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	ContactID uuid.UUID  `db:"contact_id" json:"contact_id"`
	Name      string     `db:"name" json:"name"`
	Stage     string     `db:"stage" json:"stage"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Task is the follow-up activity record written by create_task and
// exit_campaign steps.
type Task struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TenantID  uuid.UUID `db:"tenant_id" json:"tenant_id"`
	ContactID uuid.UUID `db:"contact_id" json:"contact_id"`
	Title     string    `db:"title" json:"title"`
	Notes     string    `db:"notes" json:"notes,omitempty"`
	DueAt     time.Time `db:"due_at" json:"due_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Notification is the in-app record written by notify_users steps.
type Notification struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TenantID  uuid.UUID `db:"tenant_id" json:"tenant_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Subject   string    `db:"subject" json:"subject"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// InternalUser is a tenant staff member targeted by notify_users.
type InternalUser struct {
	ID       uuid.UUID `db:"id" json:"id"`
	TenantID uuid.UUID `db:"tenant_id" json:"tenant_id"`
	Name     string    `db:"name" json:"name"`
	Email    string    `db:"email" json:"email"`
}
