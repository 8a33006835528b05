package validation

import (
	"strings"

	"github.com/Jayriel04/MCCAsset2.0/internal/models"
)

// AssetFields is the raw input of an asset registration.
type AssetFields struct {
	SerialNumber   string
	Name           string
	DepartmentName string
	Status         string
}

// ValidateAsset checks and sanitizes an asset registration. The status
// defaults to active and may not be borrowed; only lending sets that.
func ValidateAsset(in AssetFields) (models.Asset, error) {
	var p Problems
	serial := strings.TrimSpace(in.SerialNumber)
	if p.required("serial_number", serial) {
		p.maxLen("serial_number", serial, 100)
		if Sanitize(serial) != serial {
			p.add("serial_number", "must not contain markup or special HTML characters")
		}
	}
	name := p.text("name", in.Name, maxShortText, true)
	department := p.text("department_name", in.DepartmentName, maxShortText, false)

	status := models.AssetStatusActive
	if raw := strings.TrimSpace(in.Status); raw != "" {
		status = models.AssetStatus(strings.ToLower(raw))
	}
	if err := ValidateManualAssetStatus(status); err != nil {
		p.add("status", err.Error())
	}

	if len(p.fields) > 0 {
		return models.Asset{}, models.NewValidationError("Invalid asset.", p.fields...)
	}
	return models.Asset{
		SerialNumber:   serial,
		Name:           name,
		DepartmentName: department,
		Status:         status,
	}, nil
}

// ValidateManualAssetStatus rejects unknown statuses and borrowed, which is
// only ever set by an approval.
func ValidateManualAssetStatus(s models.AssetStatus) error {
	if !s.Valid() {
		return models.NewValidationError("status must be one of active, maintenance, inactive")
	}
	if s == models.AssetStatusBorrowed {
		return models.NewValidationError("status borrowed is set by approving a borrow request")
	}
	return nil
}
