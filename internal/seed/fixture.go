package seed

import (
	"fmt"
	"os"

	"github.com/Jayriel04/MCCAsset2.0/internal/models"
	"github.com/Jayriel04/MCCAsset2.0/internal/validation"

	"gopkg.in/yaml.v3"
)

// Fixture is the YAML layout accepted by cmd/seed --fixture:
//
//	assets:
//	  - serial_number: LAB-001
//	    name: Oscilloscope
//	    department_name: Physics Lab
//	    status: active
type Fixture struct {
	Assets []FixtureAsset `yaml:"assets"`
}

// FixtureAsset is one asset entry of a Fixture.
type FixtureAsset struct {
	SerialNumber   string `yaml:"serial_number"`
	Name           string `yaml:"name"`
	DepartmentName string `yaml:"department_name"`
	Status         string `yaml:"status"`
}

// ParseFixture decodes and validates fixture YAML.
func ParseFixture(data []byte) ([]models.Asset, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	seen := make(map[string]bool, len(fx.Assets))
	out := make([]models.Asset, 0, len(fx.Assets))
	for i, a := range fx.Assets {
		asset, err := validation.ValidateAsset(validation.AssetFields{
			SerialNumber:   a.SerialNumber,
			Name:           a.Name,
			DepartmentName: a.DepartmentName,
			Status:         a.Status,
		})
		if err != nil {
			return nil, fmt.Errorf("fixture asset %d: %w", i+1, err)
		}
		if seen[asset.SerialNumber] {
			return nil, fmt.Errorf("fixture asset %d: duplicate serial number %q", i+1, asset.SerialNumber)
		}
		seen[asset.SerialNumber] = true
		out = append(out, asset)
	}
	return out, nil
}

// LoadFixture reads and parses the fixture file at path.
func LoadFixture(path string) ([]models.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}
