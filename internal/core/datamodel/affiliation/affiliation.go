package affiliation

import "time"

type Professional struct {
	ID          string    `gorm:"primaryKey;column:id" json:"id"`
	Email       string    `gorm:"column:email;uniqueIndex;not null" json:"email"`
	DisplayName string    `gorm:"column:display_name" json:"display_name"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Professional) TableName() string {
	return "professionals"
}

type Establishment struct {
	ID        string    `gorm:"primaryKey;column:id" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Type      string    `gorm:"column:type;not null" json:"type"`
	City      string    `gorm:"column:city" json:"city,omitempty"`
	Province  string    `gorm:"column:province" json:"province,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Establishment) TableName() string {
	return "establishments"
}

// ProfessionalAffiliation is one (professional, establishment) row. Role and
// status stay strings here; the domain layer parses them.
type ProfessionalAffiliation struct {
	ID               string                  `gorm:"primaryKey;column:id" json:"id"`
	ProfessionalID   string                  `gorm:"column:professional_id;index;not null" json:"professional_id"`
	EstablishmentID  string                  `gorm:"column:establishment_id;index;not null" json:"establishment_id"`
	Role             string                  `gorm:"column:role;not null" json:"role"`
	Department       string                  `gorm:"column:department" json:"department,omitempty"`
	JobTitle         string                  `gorm:"column:job_title" json:"job_title,omitempty"`
	IsAdmin          bool                    `gorm:"column:is_admin;default:false" json:"is_admin"`
	IsDepartmentHead bool                    `gorm:"column:is_department_head;default:false" json:"is_department_head"`
	Status           string                  `gorm:"column:status;not null;default:pending" json:"status"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time               `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	Establishment    Establishment           `gorm:"foreignKey:EstablishmentID" json:"establishment"`
	Permissions      []AffiliationPermission `gorm:"foreignKey:AffiliationID" json:"-"`
	// PermissionNames is filled by backends that return permissions inline.
	PermissionNames []string `gorm:"-" json:"permissions,omitempty"`
}

func (ProfessionalAffiliation) TableName() string {
	return "professional_affiliations"
}

// Names returns the permission strings from whichever shape the backend used.
func (a *ProfessionalAffiliation) Names() []string {
	if len(a.PermissionNames) > 0 {
		return a.PermissionNames
	}
	names := make([]string, 0, len(a.Permissions))
	for _, p := range a.Permissions {
		names = append(names, p.Permission)
	}
	return names
}

type AffiliationPermission struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AffiliationID string    `gorm:"column:affiliation_id;index;not null" json:"affiliation_id"`
	Permission    string    `gorm:"column:permission;not null" json:"permission"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (AffiliationPermission) TableName() string {
	return "affiliation_permissions"
}

type ActiveEstablishmentPreference struct {
	ProfessionalID string    `gorm:"primaryKey;column:professional_id" db:"professional_id"`
	AffiliationID  string    `gorm:"column:affiliation_id;not null" db:"affiliation_id"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime" db:"updated_at"`
}

func (ActiveEstablishmentPreference) TableName() string {
	return "active_establishment_preferences"
}
