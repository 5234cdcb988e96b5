package models

import "gorm.io/gorm"

// Migrate creates or updates every table owned by the service.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Department{},
		&User{},
		&Campaign{},
		&CampaignSend{},
		&ClickEvent{},
	)
}

// Initialize default departments in your database migration
func CreateDefaultDepartments(db *gorm.DB) error {
	defaultDepartments := []Department{
		{Name: "TI", Description: "Departamento de Tecnologia da Informação"},
		{Name: "RH", Description: "Departamento de Recursos Humanos"},
		{Name: "Financeiro", Description: "Departamento Financeiro"},
	}
	for _, dept := range defaultDepartments {
		if err := db.FirstOrCreate(&dept, "name = ?", dept.Name).Error; err != nil {
			return err
		}
	}
	return nil
}
