package affiliation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/frahmantamala/santega-authz/internal"
	"github.com/frahmantamala/santega-authz/internal/authz"
	affiliationDatamodel "github.com/frahmantamala/santega-authz/internal/core/datamodel/affiliation"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrInvalidRecord is returned for directory rows that fail boundary parsing.
var ErrInvalidRecord = internal.ErrInvalidRecord

// record is the shape a directory row must satisfy before it is parsed into
// closed types.
type record struct {
	ID                string `validate:"required"`
	ProfessionalID    string `validate:"required"`
	EstablishmentID   string `validate:"required"`
	EstablishmentName string `validate:"required"`
	EstablishmentType string `validate:"required,oneof=hospital clinic pharmacy laboratory ministry other"`
	Role              string `validate:"required"`
	Status            string `validate:"required,oneof=active suspended pending"`
}

// FromDataModel validates a directory row and converts it to the domain type.
// Rows with unknown roles, statuses or permissions are rejected with an error
// wrapping internal.ErrInvalidRecord.
func FromDataModel(row *affiliationDatamodel.ProfessionalAffiliation) (Affiliation, error) {
	if row == nil {
		return Affiliation{}, fmt.Errorf("%w: nil row", ErrInvalidRecord)
	}

	estName := row.Establishment.Name
	estType := strings.ToLower(strings.TrimSpace(row.Establishment.Type))
	if estType == "" {
		estType = string(EstablishmentOther)
	}

	rec := record{
		ID:                strings.TrimSpace(row.ID),
		ProfessionalID:    strings.TrimSpace(row.ProfessionalID),
		EstablishmentID:   strings.TrimSpace(row.EstablishmentID),
		EstablishmentName: strings.TrimSpace(estName),
		EstablishmentType: estType,
		Role:              row.Role,
		Status:            strings.ToLower(strings.TrimSpace(row.Status)),
	}
	if err := validate.Struct(rec); err != nil {
		return Affiliation{}, invalidRecord(row.ID, formatValidationErrors(err))
	}

	role, err := authz.ParseRole(rec.Role)
	if err != nil {
		return Affiliation{}, invalidRecord(row.ID, err.Error())
	}

	perms, err := authz.ParseSet(row.Names())
	if err != nil {
		return Affiliation{}, invalidRecord(row.ID, err.Error())
	}

	return Affiliation{
		ID:                rec.ID,
		ProfessionalID:    rec.ProfessionalID,
		EstablishmentID:   rec.EstablishmentID,
		EstablishmentName: rec.EstablishmentName,
		EstablishmentType: EstablishmentType(rec.EstablishmentType),
		Role:              role,
		Department:        strings.TrimSpace(row.Department),
		JobTitle:          strings.TrimSpace(row.JobTitle),
		IsAdmin:           row.IsAdmin,
		IsDepartmentHead:  row.IsDepartmentHead,
		Permissions:       perms,
		Status:            Status(rec.Status),
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}, nil
}

// ToDataModel is the inverse of FromDataModel, used by the seeder and tests.
func ToDataModel(a Affiliation) *affiliationDatamodel.ProfessionalAffiliation {
	row := &affiliationDatamodel.ProfessionalAffiliation{
		ID:               a.ID,
		ProfessionalID:   a.ProfessionalID,
		EstablishmentID:  a.EstablishmentID,
		Role:             string(a.Role),
		Department:       a.Department,
		JobTitle:         a.JobTitle,
		IsAdmin:          a.IsAdmin,
		IsDepartmentHead: a.IsDepartmentHead,
		Status:           string(a.Status),
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
		Establishment: affiliationDatamodel.Establishment{
			ID:   a.EstablishmentID,
			Name: a.EstablishmentName,
			Type: string(a.EstablishmentType),
		},
	}
	for _, name := range a.Permissions.Strings() {
		row.Permissions = append(row.Permissions, affiliationDatamodel.AffiliationPermission{
			AffiliationID: a.ID,
			Permission:    name,
		})
	}
	return row
}

func invalidRecord(id, detail string) error {
	return ErrInvalidRecord.WithDetails(internal.ValidationErrors{
		Errors: []internal.ValidationError{{
			Field:   "affiliation:" + id,
			Message: detail,
			Code:    string(internal.ErrCodeInvalidRecord),
		}},
	})
}

func formatValidationErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			msgs = append(msgs, e.Field()+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", e.Field(), e.Param(), e.Value()))
		default:
			msgs = append(msgs, e.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
