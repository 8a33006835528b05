package seed

import (
	"fmt"
	"strings"

	"github.com/Jayriel04/MCCAsset2.0/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

var (
	assetKinds = []string{
		"Laptop", "Desktop", "Projector", "Camera", "Printer", "Tablet",
		"Microphone", "Speaker", "Monitor", "Router", "Document Camera",
	}

	departments = []string{
		"School of Technology", "School of Education", "School of Business",
		"Speech Lab", "Computer Lab room 22", "Computer Lab room 25", "Library",
	}

	// Mostly active so generated inventories are useful for borrowing.
	fakeStatuses = []string{"active", "active", "active", "active", "maintenance", "inactive"}
)

// Factory builds demo assets from a seeded faker, so a given seed always
// yields the same inventory.
type Factory struct {
	faker *gofakeit.Faker
}

// NewFactory creates a Factory. A zero seed picks a random one.
func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// BuildAssets returns n unsaved assets with serials FAKE-<tag>-0001 onwards.
// tag keeps separate runs from colliding.
func (f *Factory) BuildAssets(n int) []models.Asset {
	tag := strings.ToUpper(f.faker.LetterN(4))
	out := make([]models.Asset, 0, n)
	for i := 0; i < n; i++ {
		kind := f.faker.RandomString(assetKinds)
		out = append(out, models.Asset{
			SerialNumber:   fmt.Sprintf("FAKE-%s-%04d", tag, i+1),
			Name:           fmt.Sprintf("%s %s %s", f.faker.Company(), kind, strings.ToUpper(f.faker.LetterN(2))+f.faker.DigitN(3)),
			DepartmentName: f.faker.RandomString(departments),
			Status:         models.AssetStatus(f.faker.RandomString(fakeStatuses)),
		})
	}
	return out
}
