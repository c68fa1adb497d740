package cmd

import (
	"fmt"
	"log"

	"github.com/frahmantamala/santega-authz/internal/affiliation"
	"github.com/frahmantamala/santega-authz/internal/authz"
	affiliationDatamodel "github.com/frahmantamala/santega-authz/internal/core/datamodel/affiliation"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the directory with sample professionals and establishments",
	Long:  `Seed the directory tables with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := initGorm(sqlDB)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if clearData {
				if err := clearDirectory(tx); err != nil {
					return err
				}
				fmt.Println("Cleared directory tables")
			}
			return seedDirectory(tx)
		})
		if err != nil {
			log.Fatalf("failed to seed directory: %v", err)
		}

		fmt.Println("Directory seeded successfully")
	},
}

var seedEstablishments = []affiliationDatamodel.Establishment{
	{ID: "chu-libreville", Name: "CHU de Libreville", Type: string(affiliation.EstablishmentHospital), City: "Libreville", Province: "Estuaire"},
	{ID: "hia-omar-bongo", Name: "Hôpital d'Instruction des Armées Omar Bongo Ondimba", Type: string(affiliation.EstablishmentHospital), City: "Libreville", Province: "Estuaire"},
	{ID: "clinique-el-rapha", Name: "Clinique El Rapha", Type: string(affiliation.EstablishmentClinic), City: "Libreville", Province: "Estuaire"},
	{ID: "chr-franceville", Name: "CHR de Franceville", Type: string(affiliation.EstablishmentHospital), City: "Franceville", Province: "Haut-Ogooué"},
	{ID: "pharmacie-glass", Name: "Pharmacie de Glass", Type: string(affiliation.EstablishmentPharmacy), City: "Libreville", Province: "Estuaire"},
	{ID: "labo-lbv", Name: "Laboratoire National de Santé Publique", Type: string(affiliation.EstablishmentLaboratory), City: "Libreville", Province: "Estuaire"},
}

var seedProfessionals = []affiliationDatamodel.Professional{
	{ID: "pro-ondo", Email: "m.ondo@sante.ga", DisplayName: "Dr Marie Ondo"},
	{ID: "pro-nzue", Email: "j.nzue@sante.ga", DisplayName: "Jean Nzué"},
	{ID: "pro-mba", Email: "a.mba@sante.ga", DisplayName: "Dr Aurélie Mba"},
	{ID: "pro-obiang", Email: "p.obiang@sante.ga", DisplayName: "Paul Obiang"},
	{ID: "pro-new", Email: "nouveau@sante.ga", DisplayName: "Nouveau Praticien"},
}

// Marie Ondo has several active affiliations and must pick one; Jean Nzué
// has exactly one; Aurélie Mba has one active and one suspended; Paul Obiang
// is pending only; the last professional has none.
var seedAffiliations = []affiliation.Affiliation{
	{
		ID: "aff-ondo-chu", ProfessionalID: "pro-ondo", EstablishmentID: "chu-libreville",
		Role: authz.RoleDoctor, Department: "Cardiologie", JobTitle: "Cardiologue",
		IsDepartmentHead: true, Status: affiliation.StatusActive,
		Permissions: authz.NewSet(authz.PermViewStaff, authz.PermViewStatistics),
	},
	{
		ID: "aff-ondo-rapha", ProfessionalID: "pro-ondo", EstablishmentID: "clinique-el-rapha",
		Role: authz.RoleDoctor, JobTitle: "Consultante", Status: affiliation.StatusActive,
	},
	{
		ID: "aff-ondo-hia", ProfessionalID: "pro-ondo", EstablishmentID: "hia-omar-bongo",
		Role: authz.RoleDirector, JobTitle: "Directrice médicale", IsAdmin: true, Status: affiliation.StatusActive,
	},
	{
		ID: "aff-nzue-chu", ProfessionalID: "pro-nzue", EstablishmentID: "chu-libreville",
		Role: authz.RoleNurse, Department: "Urgences", Status: affiliation.StatusActive,
		Permissions: authz.NewSet(authz.PermManageEmergencies),
	},
	{
		ID: "aff-mba-glass", ProfessionalID: "pro-mba", EstablishmentID: "pharmacie-glass",
		Role: authz.RolePharmacist, Status: affiliation.StatusActive,
	},
	{
		ID: "aff-mba-franceville", ProfessionalID: "pro-mba", EstablishmentID: "chr-franceville",
		Role: authz.RolePharmacist, Status: affiliation.StatusSuspended,
	},
	{
		ID: "aff-obiang-labo", ProfessionalID: "pro-obiang", EstablishmentID: "labo-lbv",
		Role: authz.RoleLabTechnician, Status: affiliation.StatusPending,
	},
}

func clearDirectory(tx *gorm.DB) error {
	for _, table := range []string{
		"active_establishment_preferences",
		"affiliation_permissions",
		"professional_affiliations",
		"establishments",
		"professionals",
	} {
		if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

func seedDirectory(tx *gorm.DB) error {
	upsert := clause.OnConflict{UpdateAll: true}

	if err := tx.Clauses(upsert).Create(&seedEstablishments).Error; err != nil {
		return fmt.Errorf("seed establishments: %w", err)
	}
	fmt.Printf("Seeded %d establishments\n", len(seedEstablishments))

	if err := tx.Clauses(upsert).Create(&seedProfessionals).Error; err != nil {
		return fmt.Errorf("seed professionals: %w", err)
	}
	fmt.Printf("Seeded %d professionals\n", len(seedProfessionals))

	for _, a := range seedAffiliations {
		row := affiliation.ToDataModel(a)
		perms := row.Permissions
		row.Permissions = nil

		if err := tx.Omit("Establishment").Clauses(upsert).Create(row).Error; err != nil {
			return fmt.Errorf("seed affiliation %s: %w", a.ID, err)
		}
		if err := tx.Where("affiliation_id = ?", a.ID).Delete(&affiliationDatamodel.AffiliationPermission{}).Error; err != nil {
			return fmt.Errorf("reset permissions for %s: %w", a.ID, err)
		}
		if len(perms) > 0 {
			if err := tx.Create(&perms).Error; err != nil {
				return fmt.Errorf("seed permissions for %s: %w", a.ID, err)
			}
		}
		fmt.Printf("Seeded affiliation %s (%s at %s, %s)\n", a.ID, a.Role, a.EstablishmentID, a.Status)
	}
	return nil
}
