package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainingRecordLegacyFieldNames(t *testing.T) {
	payload := `[
		{"type":"Охрана труда","dateReceived":"2024-02-01","expiryMonths":12},
		{"title":"Первая помощь","completed_at":"2024-03-05T10:00:00Z","expiryMonths":"6","certificate_url":"https://c/1","duration":"4,5"},
		{"title":"Прочее","date":"05.04.2024","expiryMonths":3,"url":"https://c/2","hours":8}
	]`

	var records TrainingRecords
	require.NoError(t, records.Scan([]byte(payload)))
	require.Len(t, records, 3)

	assert.Equal(t, "Охрана труда", records[0].Type)
	assert.Equal(t, "2024-02-01", records[0].DateReceived.String())
	assert.Equal(t, 12, records[0].ExpiryMonths)

	assert.Equal(t, "Первая помощь", records[1].Type)
	assert.Equal(t, "2024-03-05", records[1].DateReceived.String())
	assert.Equal(t, 6, records[1].ExpiryMonths)
	assert.Equal(t, "https://c/1", records[1].CertificateURL)
	assert.InDelta(t, 4.5, records[1].Hours, 0.0001)

	assert.Equal(t, "2024-04-05", records[2].DateReceived.String())
	assert.Equal(t, "https://c/2", records[2].CertificateURL)
	assert.InDelta(t, 8, records[2].Hours, 0.0001)

	assert.Equal(t, []string{"Охрана труда", "Первая помощь", "Прочее"}, records.Types())
}

func TestTrainingRecordsCanonicalRoundTrip(t *testing.T) {
	d := MustDate("2024-01-15")
	records := TrainingRecords{{Type: "A", DateReceived: &d, ExpiryMonths: 12}}

	value, err := records.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"A","dateReceived":"2024-01-15","expiryMonths":12}]`, string(value.([]byte)))

	var nilRecords TrainingRecords
	value, err = nilRecords.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", string(value.([]byte)))

	var scanned TrainingRecords
	require.NoError(t, scanned.Scan(nil))
	assert.NotNil(t, scanned)
	assert.Empty(t, scanned)
}

func TestTrainingRecordRejectsGarbageDate(t *testing.T) {
	var rec TrainingRecord
	err := json.Unmarshal([]byte(`{"type":"A","dateReceived":"yesterday","expiryMonths":1}`), &rec)
	assert.Error(t, err)
}

func TestDateJSONAndScan(t *testing.T) {
	var e Employee
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Иванов","trainingDate":"2024-01-01","birthDate":null}`), &e))
	require.NotNil(t, e.TrainingDate)
	assert.True(t, e.HasTrainingDate())
	assert.Nil(t, e.BirthDate)

	out, err := json.Marshal(e.TrainingDate)
	require.NoError(t, err)
	assert.Equal(t, `"2024-01-01"`, string(out))

	var d Date
	require.NoError(t, d.Scan(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-05-06", d.String())
	require.NoError(t, d.Scan([]byte("2024-05-07")))
	assert.Equal(t, "2024-05-07", d.String())
	assert.Error(t, d.Scan(42))

	moscow := time.FixedZone("MSK", 3*3600)
	assert.Equal(t, time.Date(2024, 5, 7, 0, 0, 0, 0, moscow), d.In(moscow))
}

func TestEmployeeWithoutTrainingDate(t *testing.T) {
	assert.False(t, Employee{}.HasTrainingDate())
	assert.False(t, Employee{TrainingDate: &Date{}}.HasTrainingDate())
}

func TestDocChecklistScan(t *testing.T) {
	var docs DocChecklist
	require.NoError(t, docs.Scan([]byte(`{"Приказы":true,"Журналы":false}`)))
	assert.True(t, docs["Приказы"])
	assert.False(t, docs["Журналы"])

	require.NoError(t, docs.Scan(nil))
	assert.Empty(t, docs)
}
