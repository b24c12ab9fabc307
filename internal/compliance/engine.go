// Package compliance derives briefing status from training dates and rolls it up
// into roster statistics. Every function takes "now" explicitly and owns no state.
package compliance

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/putevi/briefing-api/internal/models"
)

const (
	DefaultWarningDays = 75
	DefaultExpiryDays  = 90
)

// Horizons are the upcoming-expiry windows reported by Aggregate, in days.
var Horizons = []int{7, 14, 30}

// StatusClass is the three-way briefing status.
type StatusClass string

const (
	StatusValid   StatusClass = "valid"
	StatusWarning StatusClass = "warning"
	StatusExpired StatusClass = "expired"
)

// Classify maps elapsed days onto a status. Both thresholds are inclusive lower bounds.
func Classify(days, warning, expiry int) (StatusClass, error) {
	if err := validateThresholds(warning, expiry); err != nil {
		return "", err
	}
	return classify(days, warning, expiry), nil
}

func classify(days, warning, expiry int) StatusClass {
	switch {
	case days >= expiry:
		return StatusExpired
	case days >= warning:
		return StatusWarning
	default:
		return StatusValid
	}
}

func validateThresholds(warning, expiry int) error {
	if warning < 0 || expiry < 0 {
		return invalidConfig("thresholds must be non-negative (warning=%d, expiry=%d)", warning, expiry)
	}
	if warning >= expiry {
		return invalidConfig("warning threshold %d must be below expiry threshold %d", warning, expiry)
	}
	return nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocation sets the timezone in which calendar dates start.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// Engine evaluates records against validated thresholds.
type Engine struct {
	warning int
	expiry  int
	loc     *time.Location
}

// NewEngine validates the thresholds up front.
func NewEngine(warning, expiry int, opts ...Option) (*Engine, error) {
	if err := validateThresholds(warning, expiry); err != nil {
		return nil, err
	}
	e := &Engine{warning: warning, expiry: expiry, loc: time.UTC}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// WarningDays returns the warning threshold.
func (e *Engine) WarningDays() int { return e.warning }

// ExpiryDays returns the expiry threshold.
func (e *Engine) ExpiryDays() int { return e.expiry }

// Location returns the timezone calendar dates are anchored in.
func (e *Engine) Location() *time.Location { return e.loc }

// Classify applies the engine thresholds.
func (e *Engine) Classify(days int) StatusClass {
	return classify(days, e.warning, e.expiry)
}

// DerivedStatus is recomputed on every read and never stored.
type DerivedStatus struct {
	DaysSinceTraining int         `json:"daysSinceTraining"`
	Status            StatusClass `json:"status"`
	NextDueDate       models.Date `json:"nextDueDate"`
	DaysToExpire      int         `json:"daysToExpire"`
}

// Derive computes the status of one employee. A trainingDate later than now is an invalid date.
// DaysSinceTraining floors while DaysToExpire ceils, so the two may disagree by one near a boundary.
func (e *Engine) Derive(emp models.Employee, now time.Time) (DerivedStatus, error) {
	if !emp.HasTrainingDate() {
		return DerivedStatus{}, &InvalidDateError{RecordID: emp.ID, Field: "trainingDate"}
	}
	start := emp.TrainingDate.In(e.loc)
	days, err := DaysElapsed(start, now)
	if err != nil || days < 0 {
		return DerivedStatus{}, &InvalidDateError{RecordID: emp.ID, Field: "trainingDate"}
	}
	due := start.AddDate(0, 0, e.expiry)
	return DerivedStatus{
		DaysSinceTraining: days,
		Status:            e.Classify(days),
		NextDueDate:       models.NewDate(due),
		DaysToExpire:      ceilDays(due.Sub(now)),
	}, nil
}

// Evaluation pairs an employee with its derived state. Status is nil when Err is set.
type Evaluation struct {
	Employee             models.Employee
	Status               *DerivedStatus
	Err                  error
	HasExpiredAdditional bool
}

// Expired reports whether the primary briefing has lapsed.
func (ev Evaluation) Expired() bool {
	return ev.Status != nil && ev.Status.Status == StatusExpired
}

// Evaluate derives every record against the same instant.
func (e *Engine) Evaluate(employees []models.Employee, now time.Time) []Evaluation {
	out := make([]Evaluation, 0, len(employees))
	for _, emp := range employees {
		ev := Evaluation{Employee: emp, HasExpiredAdditional: e.HasExpiredAdditional(emp.AdditionalTrainings, now)}
		status, err := e.Derive(emp, now)
		if err != nil {
			ev.Err = err
		} else {
			ev.Status = &status
		}
		out = append(out, ev)
	}
	return out
}

// GroupSelector extracts a grouping key; blank keys fall into Sentinel.
type GroupSelector struct {
	Key      string
	Sentinel string
	Value    func(models.Employee) string
}

var (
	ByOrganization = GroupSelector{
		Key:      "organization",
		Sentinel: models.NoOrganization,
		Value:    func(e models.Employee) string { return e.Organization },
	}
	ByResponsible = GroupSelector{
		Key:      "responsible",
		Sentinel: "Без ответственного",
		Value:    func(e models.Employee) string { return e.Responsible },
	}
)

func (s GroupSelector) keyOf(emp models.Employee) string {
	if s.Value == nil {
		return s.Sentinel
	}
	if v := strings.TrimSpace(s.Value(emp)); v != "" {
		return v
	}
	return s.Sentinel
}

// StatusCounts holds per-status totals.
type StatusCounts struct {
	Valid   int `json:"valid"`
	Warning int `json:"warning"`
	Expired int `json:"expired"`
}

func (c *StatusCounts) add(s StatusClass) {
	switch s {
	case StatusValid:
		c.Valid++
	case StatusWarning:
		c.Warning++
	case StatusExpired:
		c.Expired++
	}
}

// HorizonCount is the number of records expiring within Days.
type HorizonCount struct {
	Days  int `json:"days"`
	Count int `json:"count"`
}

// GroupStats is the per-group slice of a Summary.
type GroupStats struct {
	Name           string       `json:"name"`
	Total          int          `json:"total"`
	Counts         StatusCounts `json:"counts"`
	ConformityRate float64      `json:"conformityRate"`
	OverdueRate    float64      `json:"overdueRate"`
}

// Grouping is the ordered group list for one selector, worst conformity first.
type Grouping struct {
	Key    string       `json:"key"`
	Groups []GroupStats `json:"groups"`
}

// Summary aggregates a roster at one instant.
type Summary struct {
	Total              int            `json:"total"`
	Counts             StatusCounts   `json:"counts"`
	ConformityRate     float64        `json:"conformityRate"`
	OverdueRate        float64        `json:"overdueRate"`
	AverageDaysOverdue float64        `json:"averageDaysOverdue"`
	Upcoming           []HorizonCount `json:"upcoming"`
	InvalidCount       int            `json:"invalidCount"`
	Groupings          []Grouping     `json:"groupings,omitempty"`
	WarningDays        int            `json:"warningDays"`
	ExpiryDays         int            `json:"expiryDays"`
	GeneratedAt        time.Time      `json:"generatedAt"`
}

// UpcomingWithin returns the count for horizon h, or 0 if h is not tracked.
func (s Summary) UpcomingWithin(h int) int {
	for _, u := range s.Upcoming {
		if u.Days == h {
			return u.Count
		}
	}
	return 0
}

// Group returns the grouping for key.
func (s Summary) Group(key string) (Grouping, bool) {
	for _, g := range s.Groupings {
		if g.Key == key {
			return g, true
		}
	}
	return Grouping{}, false
}

// Aggregate evaluates and summarises employees.
func (e *Engine) Aggregate(employees []models.Employee, now time.Time, selectors ...GroupSelector) Summary {
	return e.Summarize(e.Evaluate(employees, now), now, selectors...)
}

// Summarize rolls up evaluations that were derived at now. Invalid records only count towards InvalidCount.
func (e *Engine) Summarize(evals []Evaluation, now time.Time, selectors ...GroupSelector) Summary {
	sum := Summary{
		Upcoming:    make([]HorizonCount, len(Horizons)),
		WarningDays: e.warning,
		ExpiryDays:  e.expiry,
		GeneratedAt: now,
	}
	for i, h := range Horizons {
		sum.Upcoming[i].Days = h
	}

	overdueTotal := 0
	for _, ev := range evals {
		if ev.Status == nil {
			sum.InvalidCount++
			continue
		}
		st := ev.Status
		sum.Total++
		sum.Counts.add(st.Status)
		if st.Status == StatusExpired {
			if over := st.DaysSinceTraining - e.expiry; over > 0 {
				overdueTotal += over
			}
		}
		for i, h := range Horizons {
			if st.DaysToExpire >= 0 && st.DaysToExpire <= h {
				sum.Upcoming[i].Count++
			}
		}
	}

	sum.ConformityRate = percent(sum.Counts.Valid, sum.Total)
	sum.OverdueRate = percent(sum.Counts.Expired, sum.Total)
	if sum.Counts.Expired > 0 {
		sum.AverageDaysOverdue = float64(overdueTotal) / float64(sum.Counts.Expired)
	}

	for _, sel := range selectors {
		sum.Groupings = append(sum.Groupings, group(evals, sel))
	}
	return sum
}

func group(evals []Evaluation, sel GroupSelector) Grouping {
	index := make(map[string]*GroupStats)
	for _, ev := range evals {
		if ev.Status == nil {
			continue
		}
		key := sel.keyOf(ev.Employee)
		g, ok := index[key]
		if !ok {
			g = &GroupStats{Name: key}
			index[key] = g
		}
		g.Total++
		g.Counts.add(ev.Status.Status)
	}

	groups := make([]GroupStats, 0, len(index))
	for _, g := range index {
		g.ConformityRate = percent(g.Counts.Valid, g.Total)
		g.OverdueRate = percent(g.Counts.Expired, g.Total)
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].ConformityRate != groups[j].ConformityRate {
			return groups[i].ConformityRate < groups[j].ConformityRate
		}
		return groups[i].Name < groups[j].Name
	})
	return Grouping{Key: sel.Key, Groups: groups}
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// Round1 rounds to one decimal place for display.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
