package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 75, cfg.Compliance.WarningDays)
	assert.Equal(t, 90, cfg.Compliance.ExpiryDays)
	assert.Equal(t, time.UTC, cfg.Compliance.Location())
	assert.Equal(t, DefaultTrainingTypes, cfg.Compliance.TrainingTypes)
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIBaseURL)
	assert.Equal(t, int64(5*1024*1024), cfg.Photos.MaxFileSizeBytes)
	assert.Contains(t, cfg.Photos.AllowedMIMEs, "image/png")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("COMPLIANCE_WARNING_DAYS", "20")
	t.Setenv("COMPLIANCE_EXPIRY_DAYS", "30")
	t.Setenv("TRAINING_TYPES", "Охрана труда, Прочее ,")
	t.Setenv("TELEGRAM_ALLOWED_CHAT_IDS", "1, 2")
	t.Setenv("TELEGRAM_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Compliance.WarningDays)
	assert.Equal(t, 30, cfg.Compliance.ExpiryDays)
	assert.Equal(t, []string{"Охрана труда", "Прочее"}, cfg.Compliance.TrainingTypes)
	assert.Equal(t, []string{"1", "2"}, cfg.Telegram.AllowedChatIDs)
	assert.Equal(t, 10*time.Second, cfg.Telegram.Timeout)
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	t.Setenv("COMPLIANCE_WARNING_DAYS", "90")
	t.Setenv("COMPLIANCE_EXPIRY_DAYS", "90")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be less than")
}

func TestComplianceValidateTimezone(t *testing.T) {
	cfg := ComplianceConfig{WarningDays: 1, ExpiryDays: 2, Timezone: "Mars/Olympus"}
	assert.Error(t, cfg.Validate())

	cfg.Timezone = ""
	assert.NoError(t, cfg.Validate())
}

func TestDatabaseURL(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "briefing", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/briefing?sslmode=disable", db.URL())
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=briefing sslmode=disable", db.DSN())
}
