package authz

import (
	"fmt"
	"strings"

	"github.com/frahmantamala/santega-authz/internal"
)

// Permission is one entry of the fixed permission vocabulary.
type Permission string

const (
	PermViewDMP             Permission = "view_dmp"
	PermEditDMP             Permission = "edit_dmp"
	PermCreateConsultation  Permission = "create_consultation"
	PermViewConsultations   Permission = "view_consultations"
	PermCreatePrescription  Permission = "create_prescription"
	PermViewPrescriptions   Permission = "view_prescriptions"
	PermDispenseMedication  Permission = "dispense_medication"
	PermViewInventory       Permission = "view_inventory"
	PermManageInventory     Permission = "manage_inventory"
	PermOrderLabTests       Permission = "order_lab_tests"
	PermViewLabResults      Permission = "view_lab_results"
	PermEnterLabResults     Permission = "enter_lab_results"
	PermOrderImaging        Permission = "order_imaging"
	PermViewImaging         Permission = "view_imaging"
	PermReportImaging       Permission = "report_imaging"
	PermViewAppointments    Permission = "view_appointments"
	PermManageAppointments  Permission = "manage_appointments"
	PermManageAdmissions    Permission = "manage_admissions"
	PermManageBeds          Permission = "manage_beds"
	PermManageEmergencies   Permission = "manage_emergencies"
	PermViewBilling         Permission = "view_billing"
	PermManageBilling       Permission = "manage_billing"
	PermViewStaff           Permission = "view_staff"
	PermManageStaff         Permission = "manage_staff"
	PermViewStatistics      Permission = "view_statistics"
	PermManageEstablishment Permission = "manage_establishment"
	PermManageSettings      Permission = "manage_settings"
	PermViewAuditLog        Permission = "view_audit_log"
)

// wildcardLiteral is how directory rows spell the all-permissions grant. It
// never becomes a Permission value; ParseSet turns it into Set.all.
const wildcardLiteral = "all"

var ErrUnknownPermission = internal.NewValidationError("unknown permission", internal.ErrCodeInvalidPerm)

var vocabulary = map[Permission]struct{}{
	PermViewDMP:             {},
	PermEditDMP:             {},
	PermCreateConsultation:  {},
	PermViewConsultations:   {},
	PermCreatePrescription:  {},
	PermViewPrescriptions:   {},
	PermDispenseMedication:  {},
	PermViewInventory:       {},
	PermManageInventory:     {},
	PermOrderLabTests:       {},
	PermViewLabResults:      {},
	PermEnterLabResults:     {},
	PermOrderImaging:        {},
	PermViewImaging:         {},
	PermReportImaging:       {},
	PermViewAppointments:    {},
	PermManageAppointments:  {},
	PermManageAdmissions:    {},
	PermManageBeds:          {},
	PermManageEmergencies:   {},
	PermViewBilling:         {},
	PermManageBilling:       {},
	PermViewStaff:           {},
	PermManageStaff:         {},
	PermViewStatistics:      {},
	PermManageEstablishment: {},
	PermManageSettings:      {},
	PermViewAuditLog:        {},
}

func ParsePermission(s string) (Permission, error) {
	p := Permission(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := vocabulary[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPermission, s)
	}
	return p, nil
}

func (p Permission) Valid() bool {
	_, ok := vocabulary[p]
	return ok
}

func (p Permission) String() string {
	return string(p)
}

// Vocabulary returns every known permission.
func Vocabulary() []Permission {
	out := make([]Permission, 0, len(vocabulary))
	for p := range vocabulary {
		out = append(out, p)
	}
	return sortPermissions(out)
}
