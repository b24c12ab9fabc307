package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/putevi/briefing-api/internal/models"
)

// OrganizationRepository persists per-organization document checklists.
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository constructs an OrganizationRepository.
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// ListDocs returns every stored checklist.
func (r *OrganizationRepository) ListDocs(ctx context.Context) ([]models.OrganizationDocs, error) {
	const query = `SELECT organization, docs, updated_at FROM organization_docs ORDER BY organization`
	var rows []models.OrganizationDocs
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list organization docs: %w", err)
	}
	return rows, nil
}

// UpsertDocs replaces the checklist of one organization.
func (r *OrganizationRepository) UpsertDocs(ctx context.Context, docs *models.OrganizationDocs) error {
	docs.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO organization_docs (organization, docs, updated_at) VALUES (:organization, :docs, :updated_at)
        ON CONFLICT (organization) DO UPDATE SET docs = EXCLUDED.docs, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, docs); err != nil {
		return fmt.Errorf("upsert organization docs: %w", err)
	}
	return nil
}
