package models

import "time"

// AssetStatus is the availability state of a physical asset.
type AssetStatus string

const (
	// AssetStatusActive marks an asset that is available for borrowing.
	AssetStatusActive AssetStatus = "active"
	// AssetStatusBorrowed marks an asset held by an approved borrow request.
	AssetStatusBorrowed AssetStatus = "borrowed"
	// AssetStatusMaintenance marks an asset under repair.
	AssetStatusMaintenance AssetStatus = "maintenance"
	// AssetStatusInactive marks a retired asset.
	AssetStatusInactive AssetStatus = "inactive"
)

// Valid reports whether s is a known asset status.
func (s AssetStatus) Valid() bool {
	switch s {
	case AssetStatusActive, AssetStatusBorrowed, AssetStatusMaintenance, AssetStatusInactive:
		return true
	}
	return false
}

// Asset is a physical item tracked by serial number.
type Asset struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	SerialNumber   string      `gorm:"size:100;not null;uniqueIndex" json:"serial_number"`
	Name           string      `gorm:"size:255;not null" json:"name"`
	DepartmentName string      `gorm:"size:255" json:"department_name"`
	Status         AssetStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// AssetStats counts assets per availability state.
type AssetStats struct {
	Total       int64 `json:"total"`
	Active      int64 `json:"active"`
	Borrowed    int64 `json:"borrowed"`
	Maintenance int64 `json:"maintenance"`
	Inactive    int64 `json:"inactive"`
}
