package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/putevi/briefing-api/internal/compliance"
	"github.com/putevi/briefing-api/internal/models"
	"github.com/putevi/briefing-api/internal/report"
	appErrors "github.com/putevi/briefing-api/pkg/errors"
	"github.com/putevi/briefing-api/pkg/export"
	"github.com/putevi/briefing-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders roster exports and manages stored downloads.
type ExportService struct {
	repo    rosterReader
	engine  *compliance.Engine
	storage fileStorage
	signer  *storage.SignedURLSigner
	pdf     pdfRenderer
	xlsx    datasetRenderer
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ExportConfig
	clock   func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(repo rosterReader, engine *compliance.Engine, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, metrics *MetricsService, logger *zap.Logger, pdf pdfRenderer, xlsx datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if pdf == nil {
		pdf = export.NewPDFExporter("", "")
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter("Инструктажи")
	}
	return &ExportService{
		repo:    repo,
		engine:  engine,
		storage: store,
		signer:  signer,
		pdf:     pdf,
		xlsx:    xlsx,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		clock:   time.Now,
	}
}

// WithClock overrides the time source.
func (s *ExportService) WithClock(clock func() time.Time) *ExportService {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// Render builds the roster export in the requested format.
func (s *ExportService) Render(ctx context.Context, req models.ExportRequest) (*models.ExportFile, error) {
	if req.Format == "" {
		req.Format = models.ExportFormatCSV
	}
	if !req.Format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", req.Format))
	}

	now := s.clock()
	evals, err := evaluateRoster(ctx, s.repo, s.engine, s.metrics, models.EmployeeFilter{Organization: req.Organization}, now)
	if err != nil {
		return nil, err
	}

	file := &models.ExportFile{Filename: exportFilename(now.In(s.engine.Location()), req.Format)}
	switch req.Format {
	case models.ExportFormatCSV:
		file.ContentType = "text/csv; charset=utf-8"
		file.Data, err = report.ToCSV(evals)
	case models.ExportFormatPDF:
		file.ContentType = "application/pdf"
		file.Data, err = s.pdf.Render(report.RosterDataset(evals), exportTitle(req.Organization, now.In(s.engine.Location())))
	case models.ExportFormatXLSX:
		file.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		file.Data, err = s.xlsx.Render(report.RosterDataset(evals))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.metrics.RecordExport(req.Format)
	return file, nil
}

// CreateLink renders an export, stores it and returns a signed download URL.
func (s *ExportService) CreateLink(ctx context.Context, req models.ExportRequest) (*models.ExportLink, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "export storage is not configured")
	}
	file, err := s.Render(ctx, req)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	relPath, err := s.storage.Save(path.Join(id, file.Filename), file.Data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		_ = s.storage.Delete(relPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("export stored", zap.String("export_id", id), zap.String("filename", file.Filename))
	return &models.ExportLink{
		URL:       fmt.Sprintf("%s/export/%s", prefix, token),
		Filename:  file.Filename,
		ExpiresAt: expiresAt,
	}, nil
}

// Resolve validates a download token and opens the stored file.
// The caller closes the returned handle.
func (s *ExportService) Resolve(token string) (*os.File, string, error) {
	if s.storage == nil || s.signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrServiceUnavailable, "export storage is not configured")
	}
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrLinkExpired, "download link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "download link not found")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	return file, path.Base(relPath), nil
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if s.storage == nil {
		return nil, nil
	}
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// RunCleanup prunes stored exports every interval until ctx is done.
func (s *ExportService) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Cleanup(0)
			if err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				s.logger.Info("export cleanup", zap.Int("removed", len(removed)))
			}
		}
	}
}

func exportFilename(now time.Time, format models.ExportFormat) string {
	return fmt.Sprintf("report_%s.%s", now.Format(models.DateLayout), format)
}

func exportTitle(organization string, now time.Time) string {
	title := "Инструктажи по охране труда"
	if organization = strings.TrimSpace(organization); organization != "" {
		title += ": " + organization
	}
	return fmt.Sprintf("%s (%s)", title, now.Format(report.ShortDateLayout))
}
