package service

import (
	"context"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/putevi/briefing-api/internal/dto"
	"github.com/putevi/briefing-api/internal/models"
	appErrors "github.com/putevi/briefing-api/pkg/errors"
)

type organizationDocsStore interface {
	ListDocs(ctx context.Context) ([]models.OrganizationDocs, error)
	UpsertDocs(ctx context.Context, docs *models.OrganizationDocs) error
}

// OrganizationService manages per-organization document checklists.
type OrganizationService struct {
	roster      rosterReader
	docs        organizationDocsStore
	validator   *validator.Validate
	defaultKeys []string
	logger      *zap.Logger
}

// NewOrganizationService constructs the service. Empty defaultKeys use models.DefaultOrganizationDocs.
func NewOrganizationService(roster rosterReader, docs organizationDocsStore, validate *validator.Validate, defaultKeys []string, logger *zap.Logger) *OrganizationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(defaultKeys) == 0 {
		defaultKeys = models.DefaultOrganizationDocs
	}
	return &OrganizationService{roster: roster, docs: docs, validator: validate, defaultKeys: defaultKeys, logger: logger}
}

// Checklists returns one checklist per organization present in the roster, sorted by name.
func (s *OrganizationService) Checklists(ctx context.Context) ([]models.OrganizationChecklist, error) {
	employees, err := s.roster.List(ctx, models.EmployeeFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	stored, err := s.storedDocs(ctx)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, emp := range employees {
		if org := strings.TrimSpace(emp.Organization); org != "" {
			counts[org]++
		}
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.OrganizationChecklist, 0, len(names))
	for _, name := range names {
		out = append(out, s.checklist(name, counts[name], stored[name]))
	}
	return out, nil
}

// Toggle sets one document flag for organization and persists the full checklist.
func (s *OrganizationService) Toggle(ctx context.Context, organization string, req dto.DocToggleRequest) (*models.OrganizationChecklist, error) {
	organization = strings.TrimSpace(organization)
	if organization == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "organization is required")
	}
	req.Key = strings.TrimSpace(req.Key)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document toggle")
	}

	stored, err := s.storedDocs(ctx)
	if err != nil {
		return nil, err
	}
	list := s.checklist(organization, 0, stored[organization])
	list.Docs[req.Key] = req.Done

	record := &models.OrganizationDocs{Organization: organization, Docs: list.Docs}
	if err := s.docs.UpsertDocs(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save checklist")
	}
	s.logger.Info("organization checklist updated", zap.String("organization", organization), zap.String("key", req.Key), zap.Bool("done", req.Done))

	employees, err := s.roster.List(ctx, models.EmployeeFilter{Organization: organization})
	if err != nil {
		s.logger.Warn("count organization employees", zap.Error(err))
	}
	updated := s.checklist(organization, len(employees), record.Docs)
	return &updated, nil
}

func (s *OrganizationService) storedDocs(ctx context.Context) (map[string]models.DocChecklist, error) {
	rows, err := s.docs.ListDocs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load checklists")
	}
	out := make(map[string]models.DocChecklist, len(rows))
	for _, row := range rows {
		out[row.Organization] = row.Docs
	}
	return out, nil
}

// checklist overlays stored flags on the default keys; stored extra keys are kept.
func (s *OrganizationService) checklist(name string, employees int, stored models.DocChecklist) models.OrganizationChecklist {
	docs := make(models.DocChecklist, len(s.defaultKeys)+len(stored))
	for _, key := range s.defaultKeys {
		docs[key] = false
	}
	for key, done := range stored {
		docs[key] = done
	}
	completed := 0
	for _, done := range docs {
		if done {
			completed++
		}
	}
	return models.OrganizationChecklist{
		Organization: name,
		Employees:    employees,
		Docs:         docs,
		Completed:    completed,
		TotalDocs:    len(docs),
	}
}
