package compliance

import (
	"time"

	"github.com/putevi/briefing-api/internal/models"
)

// TrainingStatus is the evaluated state of one additional training.
type TrainingStatus struct {
	Type         string      `json:"type"`
	DateReceived models.Date `json:"dateReceived"`
	ExpiryMonths int         `json:"expiryMonths"`
	ExpiresOn    models.Date `json:"expiresOn"`
	IsExpired    bool        `json:"isExpired"`
	DaysLeft     int         `json:"daysLeft"`
}

// TrainingStatusOf evaluates rec with its date anchored at UTC midnight, whatever zone now is expressed in.
// Expiry is strict: a training is still valid at the expiry instant itself.
func TrainingStatusOf(rec models.TrainingRecord, now time.Time) (TrainingStatus, error) {
	return trainingStatus(rec, now, time.UTC)
}

// TrainingStatus evaluates rec with its date anchored in the engine location.
func (e *Engine) TrainingStatus(rec models.TrainingRecord, now time.Time) (TrainingStatus, error) {
	return trainingStatus(rec, now, e.loc)
}

func trainingStatus(rec models.TrainingRecord, now time.Time, loc *time.Location) (TrainingStatus, error) {
	if rec.ExpiryMonths <= 0 {
		return TrainingStatus{}, invalidConfig("training %q has non-positive expiryMonths %d", rec.Type, rec.ExpiryMonths)
	}
	if rec.DateReceived == nil || rec.DateReceived.IsZero() {
		return TrainingStatus{}, &InvalidDateError{Field: "dateReceived"}
	}
	expires := AddMonths(rec.DateReceived.In(loc), rec.ExpiryMonths)
	return TrainingStatus{
		Type:         rec.Type,
		DateReceived: *rec.DateReceived,
		ExpiryMonths: rec.ExpiryMonths,
		ExpiresOn:    models.NewDate(expires),
		IsExpired:    now.After(expires),
		DaysLeft:     ceilDays(expires.Sub(now)),
	}, nil
}

// HasExpiredAdditional is true when any evaluable training has lapsed. Records that cannot be evaluated are skipped.
func HasExpiredAdditional(records []models.TrainingRecord, now time.Time) bool {
	for _, rec := range records {
		if st, err := TrainingStatusOf(rec, now); err == nil && st.IsExpired {
			return true
		}
	}
	return false
}

// HasExpiredAdditional is the engine-located variant of the package function.
func (e *Engine) HasExpiredAdditional(records []models.TrainingRecord, now time.Time) bool {
	for _, rec := range records {
		if st, err := e.TrainingStatus(rec, now); err == nil && st.IsExpired {
			return true
		}
	}
	return false
}
