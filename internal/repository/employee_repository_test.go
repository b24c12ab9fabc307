package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/putevi/briefing-api/internal/models"
)

var employeeCols = []string{"id", "name", "profession", "organization", "responsible", "birth_date", "training_date", "additional_trainings", "photo_url", "comment", "created_at", "updated_at"}

func TestEmployeeRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmployeeRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(employeeCols).
		AddRow("e1", "Иванов Иван", "Электрик", "ПУТЕВИ", "Петров", nil, "2024-01-10",
			[]byte(`[{"title":"Охрана труда","completed_at":"2023-05-01","expiryMonths":"12","duration":"16"}]`),
			"", "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+employeeColumns+" FROM employees WHERE 1=1 AND TRIM(organization) = $1 AND (LOWER(name) LIKE $2 OR LOWER(profession) LIKE $2 OR LOWER(responsible) LIKE $2) ORDER BY name ASC, id ASC")).
		WithArgs("ПУТЕВИ", "%иван%").
		WillReturnRows(rows)

	employees, err := repo.List(context.Background(), models.EmployeeFilter{Organization: "ПУТЕВИ", Search: " Иван "})
	require.NoError(t, err)
	require.Len(t, employees, 1)

	emp := employees[0]
	assert.Nil(t, emp.BirthDate)
	require.True(t, emp.HasTrainingDate())
	assert.Equal(t, "2024-01-10", emp.TrainingDate.String())
	require.Len(t, emp.AdditionalTrainings, 1)
	assert.Equal(t, "Охрана труда", emp.AdditionalTrainings[0].Type)
	assert.Equal(t, 12, emp.AdditionalTrainings[0].ExpiryMonths)
	assert.Equal(t, 16.0, emp.AdditionalTrainings[0].Hours)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRepositoryListWithoutOrganization(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmployeeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND COALESCE(TRIM(organization), '') = '' ORDER BY")).
		WithArgs().
		WillReturnRows(sqlmock.NewRows(employeeCols).
			AddRow("e2", "Без орг", "", "  ", "", nil, "2024-01-10", []byte(`[]`), "", "", time.Now(), time.Now()))

	employees, err := repo.List(context.Background(), models.EmployeeFilter{Organization: " " + models.NoOrganization + " "})
	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.Equal(t, "e2", employees[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmployeeRepository(db)

	mock.ExpectExec("INSERT INTO employees").WillReturnResult(sqlmock.NewResult(1, 1))

	trained := models.MustDate("2024-03-01")
	emp := &models.Employee{Name: "Сидоров", TrainingDate: &trained}
	require.NoError(t, repo.Create(context.Background(), emp))
	assert.NotEmpty(t, emp.ID)
	assert.Equal(t, emp.CreatedAt, emp.UpdatedAt)
	assert.NotNil(t, emp.AdditionalTrainings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmployeeRepository(db)

	mock.ExpectExec("UPDATE employees SET name").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Employee{ID: "missing", Name: "X"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRepositoryUpdateTrainingDate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmployeeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE employees SET training_date = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("e1", "2024-06-01", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateTrainingDate(context.Background(), "e1", models.MustDate("2024-06-01")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmployeeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM employees WHERE id = $1")).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM employees WHERE id = $1")).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "e1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "e1"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRepositoryDistinctOrganizations(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmployeeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT TRIM(organization) FROM employees")).
		WillReturnRows(sqlmock.NewRows([]string{"organization"}).AddRow("Альфа").AddRow("ПУТЕВИ"))

	orgs, err := repo.DistinctOrganizations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Альфа", "ПУТЕВИ"}, orgs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrganizationRepositoryUpsertDocs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOrganizationRepository(db)

	mock.ExpectExec("(?s)INSERT INTO organization_docs .* ON CONFLICT \\(organization\\) DO UPDATE").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT organization, docs, updated_at FROM organization_docs").
		WillReturnRows(sqlmock.NewRows([]string{"organization", "docs", "updated_at"}).
			AddRow("ПУТЕВИ", []byte(`{"Приказы":true}`), time.Now()))

	docs := &models.OrganizationDocs{Organization: "ПУТЕВИ", Docs: models.DocChecklist{"Приказы": true}}
	require.NoError(t, repo.UpsertDocs(context.Background(), docs))
	assert.False(t, docs.UpdatedAt.IsZero())

	stored, err := repo.ListDocs(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Docs["Приказы"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
