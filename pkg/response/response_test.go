package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	appErrors "github.com/putevi/briefing-api/pkg/errors"
)

func TestErrorEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, appErrors.Clone(appErrors.ErrNotFound, "employee not found"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":{"code":"NOT_FOUND","message":"employee not found","status":404}}`, w.Body.String())

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	Error(c, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Len(t, c.Errors, 1)
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename="report_2024-06-01.csv"; filename*=UTF-8''report_2024-06-01.csv`, ContentDisposition("report_2024-06-01.csv"))

	h := ContentDisposition("Обучения_Иванов.csv")
	assert.Contains(t, h, `filename="_________`)
	assert.Contains(t, h, "filename*=UTF-8''%D0%9E")
}
