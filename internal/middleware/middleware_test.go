package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/putevi/briefing-api/internal/models"
	appErrors "github.com/putevi/briefing-api/pkg/errors"
	"github.com/putevi/briefing-api/pkg/middleware/requestid"
)

type stubValidator map[string]*models.JWTClaims

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type recordingObserver struct {
	path   string
	status int
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	r.path = path
	r.status = status
}

func newProtectedRouter(obs *recordingObserver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validator := stubValidator{
		"admin":  {UserID: "1", Role: models.RoleAdmin},
		"viewer": {UserID: "2", Role: models.RoleViewer},
	}
	r := gin.New()
	r.Use(Metrics(obs), WithResponseMeta())
	api := r.Group("/", JWT(validator))
	api.GET("/employees", ReadAccess(), func(c *gin.Context) {
		SetCacheHit(c, true)
		c.JSON(http.StatusOK, gin.H{"user": Claims(c).UserID})
	})
	api.POST("/employees", WriteAccess(), func(c *gin.Context) { c.Status(http.StatusCreated) })
	return r
}

func serve(r *gin.Engine, method, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/employees", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRejectsMissingAndMalformedTokens(t *testing.T) {
	r := newProtectedRouter(&recordingObserver{})

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "Token admin").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "Bearer nope").Code)
}

func TestRolesGateWrites(t *testing.T) {
	obs := &recordingObserver{}
	r := newProtectedRouter(obs)

	w := serve(r, http.MethodGet, "Bearer viewer")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, "/employees", obs.path)

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, "bearer viewer").Code)
	assert.Equal(t, http.StatusForbidden, obs.status)
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "Bearer admin").Code)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestResponseMetaCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware(), WithResponseMeta())
	r.GET("/x", func(c *gin.Context) {
		SetCacheHit(c, false)
		c.JSON(http.StatusOK, Processing(c, time.Now()))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestid.HeaderKey, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	body := w.Body.String()
	assert.Contains(t, body, `"request_id":"req-42"`)
	assert.Contains(t, body, `"cache_hit":false`)
	assert.Contains(t, body, `"processing_time_ms":`)
}
