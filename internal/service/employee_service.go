package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/putevi/briefing-api/internal/compliance"
	"github.com/putevi/briefing-api/internal/dto"
	"github.com/putevi/briefing-api/internal/models"
	"github.com/putevi/briefing-api/internal/report"
	appErrors "github.com/putevi/briefing-api/pkg/errors"
	"github.com/putevi/briefing-api/pkg/storage"
)

// rosterReader is the read side shared by every service that evaluates the roster.
type rosterReader interface {
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, error)
}

type employeeRepository interface {
	rosterReader
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	Create(ctx context.Context, emp *models.Employee) error
	Update(ctx context.Context, emp *models.Employee) error
	Delete(ctx context.Context, id string) error
	UpdateTrainingDate(ctx context.Context, id string, date models.Date) error
	UpdatePhoto(ctx context.Context, id, photoURL string) error
	DistinctOrganizations(ctx context.Context) ([]string, error)
}

type photoStore interface {
	SaveStream(name string, r io.Reader, limit int64) (string, error)
	Delete(name string) error
}

// Status filter value selecting records whose date cannot be evaluated.
const statusInvalid = "invalid"

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// PhotoConfig bounds employee photo uploads.
type PhotoConfig struct {
	MaxBytes     int64
	AllowedMIMEs []string
	URLPrefix    string
}

// EmployeeService handles roster use-cases.
type EmployeeService struct {
	repo          employeeRepository
	engine        *compliance.Engine
	validator     *validator.Validate
	cache         *CacheService
	photos        photoStore
	photoCfg      PhotoConfig
	trainingTypes []string
	logger        *zap.Logger
	clock         func() time.Time
}

// NewEmployeeService constructs the employee service.
func NewEmployeeService(repo employeeRepository, engine *compliance.Engine, validate *validator.Validate, cache *CacheService, photos photoStore, photoCfg PhotoConfig, trainingTypes []string, logger *zap.Logger) *EmployeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if photoCfg.MaxBytes <= 0 {
		photoCfg.MaxBytes = 5 * 1024 * 1024
	}
	return &EmployeeService{
		repo:          repo,
		engine:        engine,
		validator:     validate,
		cache:         cache,
		photos:        photos,
		photoCfg:      photoCfg,
		trainingTypes: trainingTypes,
		logger:        logger,
		clock:         time.Now,
	}
}

// WithClock overrides the time source.
func (s *EmployeeService) WithClock(clock func() time.Time) *EmployeeService {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// List returns the roster with derived statuses, filtered, sorted and paged in memory.
func (s *EmployeeService) List(ctx context.Context, q dto.EmployeeQuery) ([]dto.EmployeeView, *models.Pagination, error) {
	status := strings.ToLower(strings.TrimSpace(q.Status))
	if status != "" && !validStatusFilter(status) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", q.Status))
	}

	employees, err := s.repo.List(ctx, models.EmployeeFilter{Organization: q.Organization, Search: q.Search})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}

	evals := s.engine.Evaluate(employees, s.clock())
	filtered := evals[:0]
	for _, ev := range evals {
		if status == "" || statusOf(ev) == status {
			filtered = append(filtered, ev)
		}
	}
	sortEvaluations(filtered, q.Sort, q.Order)

	page := q.Page
	if page < 1 {
		page = 1
	}
	size := q.Limit
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	start := (page - 1) * size
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + size
	if end > len(filtered) {
		end = len(filtered)
	}

	views := make([]dto.EmployeeView, 0, end-start)
	for _, ev := range filtered[start:end] {
		views = append(views, toView(ev))
	}
	return views, &models.Pagination{Page: page, PageSize: size, TotalCount: len(filtered)}, nil
}

// Get returns one employee with its derived status.
func (s *EmployeeService) Get(ctx context.Context, id string) (*dto.EmployeeView, error) {
	emp, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	view := toView(s.engine.Evaluate([]models.Employee{*emp}, s.clock())[0])
	return &view, nil
}

// Create registers a new employee.
func (s *EmployeeService) Create(ctx context.Context, req dto.EmployeeRequest) (*dto.EmployeeView, error) {
	if err := s.validate(req, s.clock()); err != nil {
		return nil, err
	}
	emp := applyRequest(&models.Employee{}, req)
	if err := s.repo.Create(ctx, emp); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create employee")
	}
	s.invalidate(ctx)
	s.logger.Info("employee created", zap.String("employee_id", emp.ID), zap.String("organization", emp.Organization))
	view := toView(s.engine.Evaluate([]models.Employee{*emp}, s.clock())[0])
	return &view, nil
}

// Update replaces the editable fields of an employee. The photo is managed separately.
// Recorded training dates cannot be rewritten here; the primary briefing moves only through Retrain.
func (s *EmployeeService) Update(ctx context.Context, id string, req dto.EmployeeRequest) (*dto.EmployeeView, error) {
	if err := s.validate(req, s.clock()); err != nil {
		return nil, err
	}
	emp, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := keepsHistory(emp, req); err != nil {
		return nil, err
	}
	applyRequest(emp, req)
	if err := s.repo.Update(ctx, emp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update employee")
	}
	s.invalidate(ctx)
	view := toView(s.engine.Evaluate([]models.Employee{*emp}, s.clock())[0])
	return &view, nil
}

// Delete removes an employee.
func (s *EmployeeService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete employee")
	}
	s.invalidate(ctx)
	s.logger.Info("employee deleted", zap.String("employee_id", id))
	return nil
}

// Retrain sets the primary briefing date to today in the engine timezone.
func (s *EmployeeService) Retrain(ctx context.Context, id string) (*dto.EmployeeView, error) {
	now := s.clock()
	today := models.NewDate(now.In(s.engine.Location()))
	if err := s.repo.UpdateTrainingDate(ctx, id, today); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record retrain")
	}
	s.invalidate(ctx)

	emp, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	view := toView(s.engine.Evaluate([]models.Employee{*emp}, now)[0])
	return &view, nil
}

// UploadPhoto stores an image and links it to the employee, replacing any previous photo.
func (s *EmployeeService) UploadPhoto(ctx context.Context, id, filename, contentType string, body io.Reader) (*dto.EmployeeView, error) {
	if s.photos == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "photo storage is not configured")
	}
	if !s.allowedMIME(contentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported image type")
	}
	emp, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	name := path.Join(id, uuid.NewString()+photoExtension(filename, contentType))
	rel, err := s.photos.SaveStream(name, body, s.photoCfg.MaxBytes)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("photo exceeds %d bytes", s.photoCfg.MaxBytes))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store photo")
	}

	url := strings.TrimRight(s.photoCfg.URLPrefix, "/") + "/" + rel
	if err := s.repo.UpdatePhoto(ctx, id, url); err != nil {
		_ = s.photos.Delete(rel)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link photo")
	}
	if previous := strings.TrimPrefix(emp.PhotoURL, strings.TrimRight(s.photoCfg.URLPrefix, "/")+"/"); previous != "" && previous != emp.PhotoURL {
		if err := s.photos.Delete(previous); err != nil {
			s.logger.Warn("failed to remove previous photo", zap.String("employee_id", id), zap.Error(err))
		}
	}
	emp.PhotoURL = url
	view := toView(s.engine.Evaluate([]models.Employee{*emp}, s.clock())[0])
	return &view, nil
}

// TrainingStatuses evaluates every additional training of one employee.
func (s *EmployeeService) TrainingStatuses(ctx context.Context, id string) ([]dto.TrainingStatusView, error) {
	emp, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	out := make([]dto.TrainingStatusView, 0, len(emp.AdditionalTrainings))
	for i, rec := range emp.AdditionalTrainings {
		view := dto.TrainingStatusView{Index: i, Type: rec.Type}
		if st, err := s.engine.TrainingStatus(rec, now); err != nil {
			view.Error = err.Error()
		} else {
			view.Status = &st
		}
		out = append(out, view)
	}
	return out, nil
}

// ExportTrainings renders the per-worker trainings CSV.
func (s *EmployeeService) ExportTrainings(ctx context.Context, id string) (*models.ExportFile, error) {
	emp, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(emp.AdditionalTrainings) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "employee has no additional trainings")
	}
	data, err := report.ToTrainingsCSV(emp.AdditionalTrainings)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render trainings")
	}
	return &models.ExportFile{Filename: report.TrainingsFilename(emp.Name), ContentType: "text/csv; charset=utf-8", Data: data}, nil
}

// Organizations lists distinct organization names.
func (s *EmployeeService) Organizations(ctx context.Context) ([]string, error) {
	orgs, err := s.repo.DistinctOrganizations(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list organizations")
	}
	if orgs == nil {
		orgs = []string{}
	}
	return orgs, nil
}

// TrainingTypes returns the configured additional training labels.
func (s *EmployeeService) TrainingTypes() []string {
	types := append([]string(nil), s.trainingTypes...)
	for _, t := range types {
		if t == models.OtherTrainingType {
			return types
		}
	}
	return append(types, models.OtherTrainingType)
}

func (s *EmployeeService) find(ctx context.Context, id string) (*models.Employee, error) {
	emp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	return emp, nil
}

func (s *EmployeeService) validate(req dto.EmployeeRequest, now time.Time) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid employee payload")
	}
	if strings.TrimSpace(req.Name) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "name must not be blank")
	}
	if req.TrainingDate == nil || req.TrainingDate.IsZero() {
		return appErrors.Clone(appErrors.ErrInvalidDate, "trainingDate is required")
	}
	today := models.NewDate(now.In(s.engine.Location()))
	if req.TrainingDate.After(today.Time) {
		return appErrors.Clone(appErrors.ErrInvalidDate, "trainingDate must not be in the future")
	}
	return nil
}

// keepsHistory rejects requests that rewrite a recorded training date.
// Trainings may be added, and a training type may be dropped as a whole, but a stored
// dateReceived cannot vanish while its type is still listed.
func keepsHistory(stored *models.Employee, req dto.EmployeeRequest) error {
	if stored.HasTrainingDate() && !req.TrainingDate.Equal(stored.TrainingDate.Time) {
		return appErrors.Clone(appErrors.ErrConflict, "trainingDate is recorded history; use POST /employees/{id}/retrain to reset it")
	}

	requested := map[string]map[string]bool{}
	for _, rec := range req.AdditionalTrainings {
		if requested[rec.Type] == nil {
			requested[rec.Type] = map[string]bool{}
		}
		if rec.DateReceived != nil {
			requested[rec.Type][rec.DateReceived.String()] = true
		}
	}
	for _, rec := range stored.AdditionalTrainings {
		if rec.DateReceived == nil || rec.DateReceived.IsZero() {
			continue
		}
		dates, listed := requested[rec.Type]
		if listed && !dates[rec.DateReceived.String()] {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("dateReceived of training %q is recorded history and cannot be changed", rec.Type))
		}
	}
	return nil
}

func (s *EmployeeService) invalidate(ctx context.Context) {
	if err := s.cache.InvalidateRoster(ctx); err != nil {
		s.logger.Warn("failed to invalidate roster cache", zap.Error(err))
	}
}

func (s *EmployeeService) allowedMIME(contentType string) bool {
	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if !strings.HasPrefix(mime, "image/") {
		return false
	}
	if len(s.photoCfg.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.photoCfg.AllowedMIMEs {
		if strings.EqualFold(allowed, mime) {
			return true
		}
	}
	return false
}

func applyRequest(emp *models.Employee, req dto.EmployeeRequest) *models.Employee {
	emp.Name = strings.TrimSpace(req.Name)
	emp.Profession = strings.TrimSpace(req.Profession)
	emp.Organization = strings.TrimSpace(req.Organization)
	emp.Responsible = strings.TrimSpace(req.Responsible)
	emp.BirthDate = req.BirthDate
	emp.TrainingDate = req.TrainingDate
	emp.AdditionalTrainings = models.TrainingRecords(req.AdditionalTrainings)
	emp.Comment = req.Comment
	return emp
}

func toView(ev compliance.Evaluation) dto.EmployeeView {
	view := dto.EmployeeView{Employee: ev.Employee, Status: ev.Status, HasExpiredAdditional: ev.HasExpiredAdditional}
	if ev.Err != nil {
		view.StatusError = ev.Err.Error()
	}
	if view.AdditionalTrainings == nil {
		view.AdditionalTrainings = models.TrainingRecords{}
	}
	return view
}

func validStatusFilter(status string) bool {
	switch compliance.StatusClass(status) {
	case compliance.StatusValid, compliance.StatusWarning, compliance.StatusExpired:
		return true
	}
	return status == statusInvalid
}

func statusOf(ev compliance.Evaluation) string {
	if ev.Status == nil {
		return statusInvalid
	}
	return string(ev.Status.Status)
}

// sortEvaluations orders in place. Records without a status sort after the rest for "days".
func sortEvaluations(evals []compliance.Evaluation, key, order string) {
	desc := strings.EqualFold(order, "desc")
	var less func(a, b compliance.Evaluation) bool
	switch key {
	case "organization":
		less = func(a, b compliance.Evaluation) bool { return a.Employee.Organization < b.Employee.Organization }
	case "days":
		less = func(a, b compliance.Evaluation) bool { return a.Status.DaysSinceTraining < b.Status.DaysSinceTraining }
	case "trainingDate":
		less = func(a, b compliance.Evaluation) bool {
			return a.Employee.TrainingDate.Before(b.Employee.TrainingDate.Time)
		}
	case "createdAt":
		less = func(a, b compliance.Evaluation) bool { return a.Employee.CreatedAt.Before(b.Employee.CreatedAt) }
	default:
		less = func(a, b compliance.Evaluation) bool { return a.Employee.Name < b.Employee.Name }
	}

	sort.SliceStable(evals, func(i, j int) bool {
		a, b := evals[i], evals[j]
		if key == "days" || key == "trainingDate" {
			if (a.Status == nil) != (b.Status == nil) {
				return a.Status != nil
			}
			if a.Status == nil {
				return false
			}
		}
		if desc {
			return less(b, a)
		}
		return less(a, b)
	})
}

func photoExtension(filename, contentType string) string {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" && len(ext) <= 5 {
		return ext
	}
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ".jpg"
}
