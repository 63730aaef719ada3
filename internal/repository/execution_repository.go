package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/roofline-backend/internal/model"
)

type ExecutionRepositoryInterface interface {
	Create(x *model.StepExecution) error
	GetByID(id uuid.UUID) (*model.StepExecution, error)
	ListDue(now time.Time, limit int) ([]*model.StepExecution, error)
	ListByStatus(status model.ExecutionStatus, limit int) ([]*model.StepExecution, error)
	ListByEnrollment(enrollmentID uuid.UUID) ([]*model.StepExecution, error)
	MarkRunning(id uuid.UUID, at time.Time) error
	MarkCompleted(id uuid.UUID, at time.Time, result []byte) error
	MarkFailed(id uuid.UUID, at time.Time, errMsg string) error
}

type ExecutionRepository struct {
	DB *sql.DB
}

const executionCols = `id, enrollment_id, step_id, status, scheduled_at, started_at, completed_at, result, last_error, created_at`

func (r *ExecutionRepository) Create(x *model.StepExecution) error {
	if x.ID == uuid.Nil {
		x.ID = uuid.New()
	}
	x.CreatedAt = time.Now()
	if x.Status == "" {
		x.Status = model.ExecutionPending
	}
	query := `
        INSERT INTO step_executions (id, enrollment_id, step_id, status, scheduled_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := r.DB.Exec(query, x.ID, x.EnrollmentID, x.StepID, x.Status, x.ScheduledAt, x.CreatedAt)
	return err
}

func (r *ExecutionRepository) GetByID(id uuid.UUID) (*model.StepExecution, error) {
	query := `SELECT ` + executionCols + ` FROM step_executions WHERE id=$1`
	x, err := scanExecution(r.DB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return x, err
}

// ListDue is the poll's sole admission filter: pending, due, and owned
// by an active enrollment. Paused or exited enrollments' pending rows
// stay invisible until reactivated.
func (r *ExecutionRepository) ListDue(now time.Time, limit int) ([]*model.StepExecution, error) {
	query := `
        SELECT x.id, x.enrollment_id, x.step_id, x.status, x.scheduled_at,
               x.started_at, x.completed_at, x.result, x.last_error, x.created_at
        FROM step_executions x
        JOIN campaign_enrollments e ON e.id = x.enrollment_id
        WHERE x.status='pending' AND x.scheduled_at <= $1 AND e.status='active'
        ORDER BY x.scheduled_at ASC
        LIMIT $2
    `
	return r.queryExecutions(query, now, limit)
}

// ListByStatus backs the operator view, e.g. stuck "running" rows.
func (r *ExecutionRepository) ListByStatus(status model.ExecutionStatus, limit int) ([]*model.StepExecution, error) {
	query := `SELECT ` + executionCols + ` FROM step_executions
        WHERE status=$1 ORDER BY scheduled_at ASC LIMIT $2`
	return r.queryExecutions(query, status, limit)
}

func (r *ExecutionRepository) ListByEnrollment(enrollmentID uuid.UUID) ([]*model.StepExecution, error) {
	query := `SELECT ` + executionCols + ` FROM step_executions
        WHERE enrollment_id=$1 ORDER BY created_at ASC`
	return r.queryExecutions(query, enrollmentID)
}

func (r *ExecutionRepository) MarkRunning(id uuid.UUID, at time.Time) error {
	query := `UPDATE step_executions SET status='running', started_at=$1
        WHERE id=$2 AND status='pending'`
	_, err := r.DB.Exec(query, at, id)
	return err
}

func (r *ExecutionRepository) MarkCompleted(id uuid.UUID, at time.Time, result []byte) error {
	query := `UPDATE step_executions SET status='completed', completed_at=$1, result=$2
        WHERE id=$3`
	_, err := r.DB.Exec(query, at, result, id)
	return err
}

func (r *ExecutionRepository) MarkFailed(id uuid.UUID, at time.Time, errMsg string) error {
	query := `UPDATE step_executions SET status='failed', completed_at=$1, last_error=$2
        WHERE id=$3`
	_, err := r.DB.Exec(query, at, errMsg, id)
	return err
}

func (r *ExecutionRepository) queryExecutions(query string, args ...interface{}) ([]*model.StepExecution, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	executions := []*model.StepExecution{}
	for rows.Next() {
		x, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, x)
	}
	return executions, rows.Err()
}

func scanExecution(row rowScanner) (*model.StepExecution, error) {
	var x model.StepExecution
	var result []byte
	var lastError sql.NullString
	err := row.Scan(&x.ID, &x.EnrollmentID, &x.StepID, &x.Status, &x.ScheduledAt,
		&x.StartedAt, &x.CompletedAt, &result, &lastError, &x.CreatedAt)
	if err != nil {
		return nil, err
	}
	x.Result = result
	x.LastError = lastError.String
	return &x, nil
}

var _ ExecutionRepositoryInterface = (*ExecutionRepository)(nil)
