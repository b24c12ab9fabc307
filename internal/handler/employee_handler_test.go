package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/putevi/briefing-api/internal/dto"
	"github.com/putevi/briefing-api/internal/models"
	appErrors "github.com/putevi/briefing-api/pkg/errors"
)

type fakeEmployeeSrv struct {
	views       []dto.EmployeeView
	lastQuery   dto.EmployeeQuery
	lastReq     dto.EmployeeRequest
	photoType   string
	photoBytes  []byte
	deleteErr   error
	exportFile  *models.ExportFile
	trainingSet []string
}

func (f *fakeEmployeeSrv) List(_ context.Context, q dto.EmployeeQuery) ([]dto.EmployeeView, *models.Pagination, error) {
	f.lastQuery = q
	return f.views, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(f.views)}, nil
}

func (f *fakeEmployeeSrv) Get(_ context.Context, id string) (*dto.EmployeeView, error) {
	for i := range f.views {
		if f.views[i].ID == id {
			return &f.views[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
}

func (f *fakeEmployeeSrv) Create(_ context.Context, req dto.EmployeeRequest) (*dto.EmployeeView, error) {
	f.lastReq = req
	return &dto.EmployeeView{Employee: models.Employee{ID: "new", Name: req.Name}}, nil
}

func (f *fakeEmployeeSrv) Update(_ context.Context, id string, req dto.EmployeeRequest) (*dto.EmployeeView, error) {
	f.lastReq = req
	return &dto.EmployeeView{Employee: models.Employee{ID: id, Name: req.Name}}, nil
}

func (f *fakeEmployeeSrv) Delete(context.Context, string) error { return f.deleteErr }

func (f *fakeEmployeeSrv) Retrain(ctx context.Context, id string) (*dto.EmployeeView, error) {
	return f.Get(ctx, id)
}

func (f *fakeEmployeeSrv) UploadPhoto(_ context.Context, id, _, contentType string, body io.Reader) (*dto.EmployeeView, error) {
	f.photoType = contentType
	f.photoBytes, _ = io.ReadAll(body)
	return &dto.EmployeeView{Employee: models.Employee{ID: id, PhotoURL: "/files/photos/" + id + ".png"}}, nil
}

func (f *fakeEmployeeSrv) TrainingStatuses(context.Context, string) ([]dto.TrainingStatusView, error) {
	return []dto.TrainingStatusView{}, nil
}

func (f *fakeEmployeeSrv) ExportTrainings(context.Context, string) (*models.ExportFile, error) {
	if f.exportFile == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
	}
	return f.exportFile, nil
}

func (f *fakeEmployeeSrv) Organizations(context.Context) ([]string, error) {
	return []string{"Alpha", "Beta"}, nil
}

func (f *fakeEmployeeSrv) TrainingTypes() []string { return f.trainingSet }

func newEmployeeRouter(srv *fakeEmployeeSrv) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewEmployeeHandler(srv)
	r := gin.New()
	r.GET("/employees", h.List)
	r.POST("/employees", h.Create)
	r.GET("/employees/:id", h.Get)
	r.PUT("/employees/:id", h.Update)
	r.DELETE("/employees/:id", h.Delete)
	r.POST("/employees/:id/photo", h.UploadPhoto)
	r.GET("/employees/:id/trainings/export", h.ExportTrainings)
	r.GET("/training-types", h.TrainingTypes)
	return r
}

func TestEmployeeHandlerListBindsQuery(t *testing.T) {
	srv := &fakeEmployeeSrv{views: []dto.EmployeeView{{Employee: models.Employee{ID: "1", Name: "Анна"}}}}
	r := newEmployeeRouter(srv)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/employees?status=expired&sort=days&order=desc&page=2&limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.EmployeeQuery{Status: "expired", Sort: "days", Order: "desc", Page: 2, Limit: 5}, srv.lastQuery)

	var body struct {
		Data       []map[string]interface{} `json:"data"`
		Pagination models.Pagination        `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Анна", body.Data[0]["name"])
	assert.Equal(t, 1, body.Pagination.TotalCount)
}

func TestEmployeeHandlerListRejectsBadPage(t *testing.T) {
	r := newEmployeeRouter(&fakeEmployeeSrv{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/employees?page=abc", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEmployeeHandlerGetNotFound(t *testing.T) {
	r := newEmployeeRouter(&fakeEmployeeSrv{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/employees/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, appErrors.ErrNotFound.Code, body.Error.Code)
}

func TestEmployeeHandlerCreate(t *testing.T) {
	srv := &fakeEmployeeSrv{}
	r := newEmployeeRouter(srv)

	payload := `{"name":"Вера","organization":"ПУТЕВИ","trainingDate":"2024-06-01"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/employees", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Вера", srv.lastReq.Name)
	require.NotNil(t, srv.lastReq.TrainingDate)
	assert.Equal(t, "2024-06-01", srv.lastReq.TrainingDate.String())

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/employees", strings.NewReader(`{"name":`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEmployeeHandlerDelete(t *testing.T) {
	r := newEmployeeRouter(&fakeEmployeeSrv{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/employees/1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	r = newEmployeeRouter(&fakeEmployeeSrv{deleteErr: appErrors.Clone(appErrors.ErrNotFound, "employee not found")})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/employees/1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmployeeHandlerUploadPhoto(t *testing.T) {
	srv := &fakeEmployeeSrv{}
	r := newEmployeeRouter(srv)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="photo"; filename="me.png"`)
	header.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, writer.Close())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/employees/7/photo", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", srv.photoType)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), srv.photoBytes)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/employees/7/photo", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEmployeeHandlerExportTrainings(t *testing.T) {
	srv := &fakeEmployeeSrv{exportFile: &models.ExportFile{
		Filename:    "Анна_trainings.csv",
		ContentType: "text/csv; charset=utf-8",
		Data:        []byte("\ufeffTraining Type\r\n"),
	}}
	r := newEmployeeRouter(srv)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/employees/1/trainings/export", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "filename*=UTF-8''")
	assert.Equal(t, "\ufeffTraining Type\r\n", rec.Body.String())
}

func TestEmployeeHandlerTrainingTypes(t *testing.T) {
	r := newEmployeeRouter(&fakeEmployeeSrv{trainingSet: []string{"Высота", "Электробезопасность"}})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/training-types", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, []interface{}{"Высота", "Электробезопасность"}, envelope.Data["types"])
}
