package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/putevi/briefing-api/internal/dto"
	"github.com/putevi/briefing-api/internal/models"
)

func withProfession(emp models.Employee, profession string) models.Employee {
	emp.Profession = profession
	return emp
}

func TestDashboardServiceComposesOverview(t *testing.T) {
	repo := newFakeEmployeeRepo(
		withProfession(newEmployee("1", "Анна", "Alpha", 10), "Сварщик"),
		withProfession(newEmployee("2", "Борис", "Alpha", 95), "Сварщик"),
		withProfession(newEmployee("3", "Вера", "Beta", 89), "Монтажник"),
		withProfession(newEmployee("4", "Глеб", "", 60), ""),
		withProfession(newEmployee("5", "Дина", "Beta", 70), "Электрик"),
		models.Employee{ID: "6", Name: "Егор", Organization: "Gamma"},
	)
	svc := NewDashboardService(DashboardServiceParams{Repo: repo, Engine: testEngine(t), Logger: zap.NewNop()}).WithClock(fixedClock)

	resp, hit, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)

	assert.Equal(t, 6, resp.Total)
	assert.Equal(t, 1, resp.NeedRetrain)
	assert.Equal(t, 1, resp.Invalid)
	// Alpha, Beta, Gamma and the blank-organization group
	assert.Equal(t, 4, resp.OrganizationCount)
	assert.Equal(t, []dto.NamedCount{
		{Name: "Alpha", Count: 2},
		{Name: "Beta", Count: 2},
		{Name: "Gamma", Count: 1},
		{Name: models.NoOrganization, Count: 1},
	}, resp.EmployeesByOrganization)
	assert.Equal(t, dto.NamedCount{Name: "Сварщик", Count: 2}, resp.TopProfessions[0])
	assert.Len(t, resp.TopProfessions, 3)

	require.Len(t, resp.ExpiringSoon, 3)
	assert.Equal(t, "3", resp.ExpiringSoon[0].ID)
	assert.Equal(t, 89, resp.ExpiringSoon[0].Days)
	assert.Equal(t, "5", resp.ExpiringSoon[1].ID)
	assert.Equal(t, "4", resp.ExpiringSoon[2].ID)
	assert.Equal(t, fixedNow, resp.GeneratedAt)
}

func TestDashboardServiceLimitsExpiringSoon(t *testing.T) {
	var items []models.Employee
	for i, days := range []int{60, 61, 62, 63, 64, 65, 66} {
		items = append(items, newEmployee(string(rune('a'+i)), string(rune('A'+i)), "Alpha", days))
	}
	svc := NewDashboardService(DashboardServiceParams{
		Repo:   newFakeEmployeeRepo(items...),
		Engine: testEngine(t),
		Config: DashboardServiceConfig{ExpiringSoonLimit: 3},
	}).WithClock(fixedClock)

	resp, _, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.ExpiringSoon, 3)
	assert.Equal(t, 66, resp.ExpiringSoon[0].Days)
	assert.Equal(t, 64, resp.ExpiringSoon[2].Days)
}

func TestDashboardServiceUsesCache(t *testing.T) {
	repo := newFakeEmployeeRepo(newEmployee("1", "Анна", "Alpha", 10))
	cache := NewCacheService(newMemoryCacheRepo(), nil, 0, nil, true)
	svc := NewDashboardService(DashboardServiceParams{Repo: repo, Engine: testEngine(t), Cache: cache}).WithClock(fixedClock)

	_, hit, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)

	resp, hit, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, resp.Total)
	assert.Len(t, repo.filters, 1)
}
