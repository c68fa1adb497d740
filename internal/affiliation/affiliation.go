package affiliation

import (
	"time"

	"github.com/frahmantamala/santega-authz/internal/authz"
)

type EstablishmentType string

const (
	EstablishmentHospital   EstablishmentType = "hospital"
	EstablishmentClinic     EstablishmentType = "clinic"
	EstablishmentPharmacy   EstablishmentType = "pharmacy"
	EstablishmentLaboratory EstablishmentType = "laboratory"
	EstablishmentMinistry   EstablishmentType = "ministry"
	EstablishmentOther      EstablishmentType = "other"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusPending   Status = "pending"
)

// ProfessionalIdentity is the signed-in principal. It does not change for
// the lifetime of a session.
type ProfessionalIdentity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Affiliation links one professional to one establishment.
type Affiliation struct {
	ID                string            `json:"id"`
	ProfessionalID    string            `json:"professional_id"`
	EstablishmentID   string            `json:"establishment_id"`
	EstablishmentName string            `json:"establishment_name"`
	EstablishmentType EstablishmentType `json:"establishment_type"`
	Role              authz.Role        `json:"role"`
	Department        string            `json:"department,omitempty"`
	JobTitle          string            `json:"job_title,omitempty"`
	IsAdmin           bool              `json:"is_admin"`
	IsDepartmentHead  bool              `json:"is_department_head"`
	Permissions       authz.Set         `json:"permissions"`
	Status            Status            `json:"status"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// IsActive reports whether the affiliation may become the working context.
func (a Affiliation) IsActive() bool {
	return a.Status == StatusActive
}

// EffectivePermissions is the explicit grant plus what the role implies.
func (a Affiliation) EffectivePermissions() authz.Set {
	return authz.Effective(a.Role, a.Permissions)
}

// Active filters the affiliations eligible to become the working context,
// preserving order.
func Active(list []Affiliation) []Affiliation {
	out := make([]Affiliation, 0, len(list))
	for _, a := range list {
		if a.IsActive() {
			out = append(out, a)
		}
	}
	return out
}

// Find returns the affiliation with the given id.
func Find(list []Affiliation, id string) (Affiliation, bool) {
	for _, a := range list {
		if a.ID == id {
			return a, true
		}
	}
	return Affiliation{}, false
}
