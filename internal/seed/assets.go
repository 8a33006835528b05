// Package seed provides helpers to load demo and fixture assets into the
// database. They are intended for development and testing only.
package seed

import (
	"fmt"

	"github.com/Jayriel04/MCCAsset2.0/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BuiltInAssets is the sample inventory of a fresh development database.
// Nothing starts out borrowed: that status only follows an approval.
var BuiltInAssets = []models.Asset{
	{SerialNumber: "ASSET-2024-001", Name: "Dell Optiplex 3070 Desktop", DepartmentName: "School of Technology", Status: models.AssetStatusActive},
	{SerialNumber: "ASSET-2024-002", Name: "Epson Projector EB-980W", DepartmentName: "Computer Lab room 25", Status: models.AssetStatusMaintenance},
	{SerialNumber: "ASSET-2024-003", Name: "HP Laptop ProBook 450 G8", DepartmentName: "School of Education", Status: models.AssetStatusActive},
	{SerialNumber: "ASSET-2024-004", Name: "Canon Camera EOS 80D", DepartmentName: "School of Business", Status: models.AssetStatusActive},
	{SerialNumber: "ASSET-2024-005", Name: "Yamaha Audio System", DepartmentName: "Speech Lab", Status: models.AssetStatusInactive},
	{SerialNumber: "ASSET-2024-006", Name: "Smart TV Samsung 55\"", DepartmentName: "Computer Lab room 22", Status: models.AssetStatusActive},
	{SerialNumber: "ASSET-2024-007", Name: "Printer HP LaserJet Pro", DepartmentName: "School of Technology", Status: models.AssetStatusActive},
	{SerialNumber: "ASSET-2024-008", Name: "Whiteboard Interactive 75\"", DepartmentName: "School of Education", Status: models.AssetStatusActive},
}

// Assets inserts assets, skipping serial numbers that already exist, and
// returns how many rows were added.
func Assets(db *gorm.DB, assets []models.Asset) (int64, error) {
	if len(assets) == 0 {
		return 0, nil
	}
	rows := make([]models.Asset, len(assets))
	copy(rows, assets)

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "serial_number"}},
		DoNothing: true,
	}).CreateInBatches(&rows, 100)
	if res.Error != nil {
		return 0, fmt.Errorf("seed assets: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// BuiltIns seeds BuiltInAssets.
func BuiltIns(db *gorm.DB) (int64, error) {
	return Assets(db, BuiltInAssets)
}
