package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/putevi/briefing-api/internal/models"
)

const employeeColumns = "id, name, profession, organization, responsible, birth_date, training_date, additional_trainings, photo_url, comment, created_at, updated_at"

// EmployeeRepository manages persistence for the briefing roster.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs an EmployeeRepository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// List returns every employee matching filter ordered by name.
// Status filtering and paging happen after derivation, so no LIMIT is applied here.
func (r *EmployeeRepository) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, error) {
	var (
		conditions = []string{"1=1"}
		args       []interface{}
	)

	// organizations are compared trimmed, the same way the analytics groups key them
	switch org := strings.TrimSpace(filter.Organization); {
	case org == models.NoOrganization:
		conditions = append(conditions, "COALESCE(TRIM(organization), '') = ''")
	case org != "":
		conditions = append(conditions, fmt.Sprintf("TRIM(organization) = $%d", len(args)+1))
		args = append(args, org)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(profession) LIKE $%d OR LOWER(responsible) LIKE $%d)", n, n, n))
		args = append(args, "%"+strings.ToLower(search)+"%")
	}

	query := fmt.Sprintf("SELECT %s FROM employees WHERE %s ORDER BY name ASC, id ASC", employeeColumns, strings.Join(conditions, " AND "))

	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, query, args...); err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return employees, nil
}

// FindByID fetches one employee. sql.ErrNoRows is returned unwrapped when absent.
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	query := "SELECT " + employeeColumns + " FROM employees WHERE id = $1"
	var emp models.Employee
	if err := r.db.GetContext(ctx, &emp, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find employee: %w", err)
	}
	return &emp, nil
}

// Create inserts a new employee, assigning id and timestamps.
func (r *EmployeeRepository) Create(ctx context.Context, emp *models.Employee) error {
	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if emp.CreatedAt.IsZero() {
		emp.CreatedAt = now
	}
	emp.UpdatedAt = now
	if emp.AdditionalTrainings == nil {
		emp.AdditionalTrainings = models.TrainingRecords{}
	}

	const query = `INSERT INTO employees (id, name, profession, organization, responsible, birth_date, training_date, additional_trainings, photo_url, comment, created_at, updated_at)
        VALUES (:id, :name, :profession, :organization, :responsible, :birth_date, :training_date, :additional_trainings, :photo_url, :comment, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, emp); err != nil {
		return fmt.Errorf("create employee: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields. created_at is never touched.
func (r *EmployeeRepository) Update(ctx context.Context, emp *models.Employee) error {
	emp.UpdatedAt = time.Now().UTC()
	if emp.AdditionalTrainings == nil {
		emp.AdditionalTrainings = models.TrainingRecords{}
	}
	const query = `UPDATE employees SET name = :name, profession = :profession, organization = :organization, responsible = :responsible,
        birth_date = :birth_date, training_date = :training_date, additional_trainings = :additional_trainings, photo_url = :photo_url,
        comment = :comment, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, emp)
	if err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	return expectAffected(res)
}

// UpdateTrainingDate records a retrain.
func (r *EmployeeRepository) UpdateTrainingDate(ctx context.Context, id string, date models.Date) error {
	const query = `UPDATE employees SET training_date = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, date, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update training date: %w", err)
	}
	return expectAffected(res)
}

// UpdatePhoto stores the public path of an uploaded photo.
func (r *EmployeeRepository) UpdatePhoto(ctx context.Context, id, photoURL string) error {
	const query = `UPDATE employees SET photo_url = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, photoURL, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update photo: %w", err)
	}
	return expectAffected(res)
}

// Delete removes an employee permanently.
func (r *EmployeeRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}
	return expectAffected(res)
}

// DistinctOrganizations lists the non-empty organization names in use.
func (r *EmployeeRepository) DistinctOrganizations(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT TRIM(organization) FROM employees WHERE COALESCE(TRIM(organization), '') <> '' ORDER BY 1`
	var orgs []string
	if err := r.db.SelectContext(ctx, &orgs, query); err != nil {
		return nil, fmt.Errorf("distinct organizations: %w", err)
	}
	return orgs, nil
}

// Ping verifies the database connection.
func (r *EmployeeRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
