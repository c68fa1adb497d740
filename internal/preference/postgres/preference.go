package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	affiliationDatamodel "github.com/frahmantamala/santega-authz/internal/core/datamodel/affiliation"
	"github.com/frahmantamala/santega-authz/internal/preference"
	"github.com/jmoiron/sqlx"
)

const (
	selectPreference = `SELECT professional_id, affiliation_id, updated_at
FROM active_establishment_preferences
WHERE professional_id = $1`

	upsertPreference = `INSERT INTO active_establishment_preferences (professional_id, affiliation_id, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (professional_id)
DO UPDATE SET affiliation_id = EXCLUDED.affiliation_id, updated_at = EXCLUDED.updated_at`
)

type PreferenceRepository struct {
	db *sqlx.DB
}

func NewPreferenceRepository(db *sqlx.DB) preference.Store {
	return &PreferenceRepository{db: db}
}

func (r *PreferenceRepository) Get(ctx context.Context, professionalID string) (string, bool, error) {
	var row affiliationDatamodel.ActiveEstablishmentPreference
	if err := r.db.GetContext(ctx, &row, selectPreference, professionalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get preference: %w", err)
	}
	return row.AffiliationID, true, nil
}

func (r *PreferenceRepository) Set(ctx context.Context, professionalID, affiliationID string) error {
	if _, err := r.db.ExecContext(ctx, upsertPreference, professionalID, affiliationID); err != nil {
		return fmt.Errorf("set preference: %w", err)
	}
	return nil
}
