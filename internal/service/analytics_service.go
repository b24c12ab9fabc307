package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/putevi/briefing-api/internal/compliance"
	"github.com/putevi/briefing-api/internal/models"
	appErrors "github.com/putevi/briefing-api/pkg/errors"
)

// AnalyticsService computes roster compliance summaries with cache integration.
type AnalyticsService struct {
	repo    rosterReader
	engine  *compliance.Engine
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	clock   func() time.Time
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo rosterReader, engine *compliance.Engine, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{repo: repo, engine: engine, cache: cache, metrics: metrics, logger: logger, clock: time.Now}
}

// WithClock overrides the time source.
func (s *AnalyticsService) WithClock(clock func() time.Time) *AnalyticsService {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// Summary aggregates the roster, optionally scoped to one organization, grouped by organization
// and responsible. The boolean reports whether the payload came from cache.
func (s *AnalyticsService) Summary(ctx context.Context, organization string) (compliance.Summary, bool, error) {
	now := s.clock()
	organization = strings.TrimSpace(organization)
	cacheKey := makeAnalyticsCacheKey(cacheKeyAnalytics+"summary", organization, dayKey(now, s.engine.Location()))

	var cached compliance.Summary
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
		s.logger.Warn("analytics cache unavailable", zap.Error(err))
	} else if hit {
		return cached, true, nil
	}

	evals, err := evaluateRoster(ctx, s.repo, s.engine, s.metrics, models.EmployeeFilter{Organization: organization}, now)
	if err != nil {
		return compliance.Summary{}, false, err
	}
	summary := s.engine.Summarize(evals, now, compliance.ByOrganization, compliance.ByResponsible)
	if organization == "" {
		s.metrics.ObserveRoster(summary)
	}
	if summary.InvalidCount > 0 {
		s.logger.Debug("records without a usable briefing date", zap.Int("count", summary.InvalidCount))
	}

	if err := s.cache.Set(ctx, cacheKey, summary, 0); err != nil {
		s.logger.Warn("cache analytics summary", zap.Error(err))
	}
	return summary, false, nil
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.SystemMetrics {
	if s.metrics == nil {
		return models.SystemMetrics{}
	}
	return s.metrics.Snapshot()
}

// evaluateRoster loads the roster slice and derives every record against now.
func evaluateRoster(ctx context.Context, repo rosterReader, engine *compliance.Engine, metrics *MetricsService, filter models.EmployeeFilter, now time.Time) ([]compliance.Evaluation, error) {
	start := time.Now()
	employees, err := repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	metrics.ObserveDBQuery("employees_list", time.Since(start))
	return engine.Evaluate(employees, now), nil
}

func makeAnalyticsCacheKey(prefix string, parts ...string) string {
	var builder strings.Builder
	builder.Grow(len(prefix) + len(parts)*16)
	builder.WriteString(prefix)
	for _, part := range parts {
		builder.WriteByte(':')
		builder.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return builder.String()
}

// dayKey is the calendar day of now in loc; cached payloads roll over at local midnight.
func dayKey(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}
