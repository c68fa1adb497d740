package postgres

import (
	"context"
	"errors"

	affiliationDatamodel "github.com/frahmantamala/santega-authz/internal/core/datamodel/affiliation"
	"github.com/frahmantamala/santega-authz/internal/directory"
	"gorm.io/gorm"
)

type DirectoryRepository struct {
	db *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) directory.RepositoryAPI {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) GetAffiliations(ctx context.Context, professionalID string) ([]*affiliationDatamodel.ProfessionalAffiliation, error) {
	db := r.db.WithContext(ctx)

	var professional affiliationDatamodel.Professional
	err := db.Where("id = ?", professionalID).First(&professional).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, directory.ErrNotFound
		}
		return nil, err
	}

	var rows []*affiliationDatamodel.ProfessionalAffiliation
	err = db.
		Preload("Establishment").
		Preload("Permissions").
		Where("professional_id = ?", professionalID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
