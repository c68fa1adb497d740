package authz

var roleDefaults = map[Role]Set{
	RoleDirector: Wildcard(),
	RoleAdmin: NewSet(
		PermViewStaff,
		PermManageStaff,
		PermViewAppointments,
		PermManageAppointments,
		PermManageAdmissions,
		PermManageBeds,
		PermViewBilling,
		PermViewInventory,
		PermViewStatistics,
		PermManageSettings,
		PermViewAuditLog,
	),
	RoleDoctor: NewSet(
		PermViewDMP,
		PermEditDMP,
		PermCreateConsultation,
		PermViewConsultations,
		PermCreatePrescription,
		PermViewPrescriptions,
		PermOrderLabTests,
		PermViewLabResults,
		PermOrderImaging,
		PermViewImaging,
		PermViewAppointments,
		PermManageEmergencies,
	),
	RoleNurse: NewSet(
		PermViewConsultations,
		PermViewPrescriptions,
		PermViewLabResults,
		PermViewAppointments,
		PermManageBeds,
	),
	RoleMidwife: NewSet(
		PermViewDMP,
		PermCreateConsultation,
		PermViewConsultations,
		PermViewLabResults,
		PermViewAppointments,
	),
	RolePharmacist: NewSet(
		PermViewPrescriptions,
		PermDispenseMedication,
		PermViewInventory,
		PermManageInventory,
	),
	RoleLabTechnician: NewSet(
		PermViewLabResults,
		PermEnterLabResults,
	),
	RoleRadiologist: NewSet(
		PermViewImaging,
		PermReportImaging,
	),
	RoleReceptionist: NewSet(
		PermViewAppointments,
		PermManageAppointments,
		PermManageAdmissions,
	),
	RoleAccountant: NewSet(
		PermViewBilling,
		PermManageBilling,
		PermViewStatistics,
	),
}

// DefaultPermissions is the grant implied by a role alone. Unknown roles get
// nothing.
func DefaultPermissions(r Role) Set {
	return roleDefaults[r]
}

// Effective is the permission set for an affiliation: its explicit grants plus
// the role defaults.
func Effective(r Role, explicit Set) Set {
	return explicit.Union(DefaultPermissions(r))
}
