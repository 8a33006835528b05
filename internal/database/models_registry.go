package database

import "github.com/Jayriel04/MCCAsset2.0/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Asset{},
		&models.BorrowRequest{},
	}
}
