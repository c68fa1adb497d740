package authz

import (
	"fmt"
	"strings"

	"github.com/frahmantamala/santega-authz/internal"
)

// Role is the function a professional holds inside one establishment.
type Role string

const (
	RoleDirector      Role = "director"
	RoleAdmin         Role = "admin"
	RoleDoctor        Role = "doctor"
	RoleNurse         Role = "nurse"
	RoleMidwife       Role = "midwife"
	RolePharmacist    Role = "pharmacist"
	RoleLabTechnician Role = "lab_technician"
	RoleRadiologist   Role = "radiologist"
	RoleReceptionist  Role = "receptionist"
	RoleAccountant    Role = "accountant"
)

var ErrUnknownRole = internal.NewValidationError("unknown role", internal.ErrCodeInvalidRole)

var roles = map[Role]struct{}{
	RoleDirector:      {},
	RoleAdmin:         {},
	RoleDoctor:        {},
	RoleNurse:         {},
	RoleMidwife:       {},
	RolePharmacist:    {},
	RoleLabTechnician: {},
	RoleRadiologist:   {},
	RoleReceptionist:  {},
	RoleAccountant:    {},
}

// ParseRole normalizes s ("Lab Technician", "lab-technician") and rejects
// anything outside the closed set.
func ParseRole(s string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	r := Role(normalized)
	if _, ok := roles[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := roles[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// Priority orders roles for the suggested default establishment: lower wins.
func (r Role) Priority() int {
	switch r {
	case RoleDirector:
		return 0
	case RoleAdmin:
		return 1
	default:
		return 2
	}
}

// Roles lists the closed role set in priority then name order.
func Roles() []Role {
	return []Role{
		RoleDirector,
		RoleAdmin,
		RoleAccountant,
		RoleDoctor,
		RoleLabTechnician,
		RoleMidwife,
		RoleNurse,
		RolePharmacist,
		RoleRadiologist,
		RoleReceptionist,
	}
}
