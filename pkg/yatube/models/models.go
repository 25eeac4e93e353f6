package models

import (
	"strconv"

	"gorm.io/gorm"
)

// AllModels returns all models for migration
// Note: users and groups must be migrated before the tables referencing them
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Group{},
		&Post{},
		&Comment{},
		&Follow{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

// ParseID parses a primary key taken from a URL path. Anything that is not a positive
// integer cannot address a row, so it is reported as gorm.ErrRecordNotFound.
func ParseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return uint(id), nil
}
