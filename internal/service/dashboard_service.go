package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/putevi/briefing-api/internal/compliance"
	"github.com/putevi/briefing-api/internal/dto"
	"github.com/putevi/briefing-api/internal/models"
)

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL           time.Duration
	TopProfessions     int
	ExpiringSoonLimit  int
	ExpiringSoonWindow int
}

// DashboardService composes the roster dashboard.
type DashboardService struct {
	repo    rosterReader
	engine  *compliance.Engine
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
	cfg     DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Repo    rosterReader
	Engine  *compliance.Engine
	Cache   *CacheService
	Metrics *MetricsService
	Logger  *zap.Logger
	Config  DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.TopProfessions <= 0 {
		cfg.TopProfessions = 5
	}
	if cfg.ExpiringSoonLimit <= 0 {
		cfg.ExpiringSoonLimit = 5
	}
	if cfg.ExpiringSoonWindow <= 0 {
		cfg.ExpiringSoonWindow = 30
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		repo:    params.Repo,
		engine:  params.Engine,
		cache:   params.Cache,
		metrics: params.Metrics,
		logger:  logger,
		now:     time.Now,
		cfg:     cfg,
	}
}

// WithClock overrides the time source.
func (s *DashboardService) WithClock(clock func() time.Time) *DashboardService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Dashboard returns the roster overview. The boolean reports a cache hit.
func (s *DashboardService) Dashboard(ctx context.Context) (*dto.DashboardResponse, bool, error) {
	now := s.now()
	cacheKey := makeAnalyticsCacheKey(cacheKeyDashboard+"overview", dayKey(now, s.engine.Location()))

	var cached dto.DashboardResponse
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
		s.logger.Warn("dashboard cache unavailable", zap.Error(err))
	} else if hit {
		return &cached, true, nil
	}

	evals, err := evaluateRoster(ctx, s.repo, s.engine, s.metrics, models.EmployeeFilter{}, now)
	if err != nil {
		return nil, false, err
	}
	resp := s.compose(evals, now)

	if err := s.cache.Set(ctx, cacheKey, resp, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("cache dashboard", zap.Error(err))
	}
	return resp, false, nil
}

func (s *DashboardService) compose(evals []compliance.Evaluation, now time.Time) *dto.DashboardResponse {
	resp := &dto.DashboardResponse{
		Total:                   len(evals),
		EmployeesByOrganization: []dto.NamedCount{},
		TopProfessions:          []dto.NamedCount{},
		ExpiringSoon:            []dto.ExpiringSoonRow{},
		GeneratedAt:             now.UTC(),
	}

	byOrg := map[string]int{}
	byProfession := map[string]int{}
	windowStart := s.engine.ExpiryDays() - s.cfg.ExpiringSoonWindow

	for _, ev := range evals {
		org := strings.TrimSpace(ev.Employee.Organization)
		if org == "" {
			org = models.NoOrganization
		}
		byOrg[org]++
		if p := strings.TrimSpace(ev.Employee.Profession); p != "" {
			byProfession[p]++
		}

		if ev.Status == nil {
			resp.Invalid++
			continue
		}
		if ev.Expired() {
			resp.NeedRetrain++
			continue
		}
		if days := ev.Status.DaysSinceTraining; days >= windowStart && days < s.engine.ExpiryDays() {
			resp.ExpiringSoon = append(resp.ExpiringSoon, dto.ExpiringSoonRow{
				ID:           ev.Employee.ID,
				Name:         ev.Employee.Name,
				Organization: ev.Employee.Organization,
				Days:         days,
				DaysToExpire: ev.Status.DaysToExpire,
			})
		}
	}

	// employees without an organization count as one more organization
	resp.OrganizationCount = len(byOrg)
	resp.EmployeesByOrganization = rankCounts(byOrg, 0)
	resp.TopProfessions = rankCounts(byProfession, s.cfg.TopProfessions)

	sort.SliceStable(resp.ExpiringSoon, func(i, j int) bool {
		a, b := resp.ExpiringSoon[i], resp.ExpiringSoon[j]
		if a.Days != b.Days {
			return a.Days > b.Days
		}
		return a.Name < b.Name
	})
	if len(resp.ExpiringSoon) > s.cfg.ExpiringSoonLimit {
		resp.ExpiringSoon = resp.ExpiringSoon[:s.cfg.ExpiringSoonLimit]
	}
	return resp
}

// rankCounts orders by count desc then name; limit <= 0 keeps everything.
func rankCounts(counts map[string]int, limit int) []dto.NamedCount {
	out := make([]dto.NamedCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, dto.NamedCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
