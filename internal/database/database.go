package database

import (
	"fmt"

	"github.com/dailyflo/backend/internal/config"
	"github.com/dailyflo/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.List{},
		&models.Task{},
		&models.RecurringTask{},
		&models.Activity{},
	); err != nil {
		return err
	}

	// Partial unique index: list names collide only among live lists of the
	// same owner, so a soft-deleted list frees its name for reuse.
	nameIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS idx_lists_owner_name_live
ON lists (owner_id, name)
WHERE soft_deleted = false;`

	if err := db.Exec(nameIndex).Error; err != nil {
		return err
	}

	defaultIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS idx_lists_owner_single_default
ON lists (owner_id)
WHERE is_default = true AND soft_deleted = false;`

	return db.Exec(defaultIndex).Error
}
