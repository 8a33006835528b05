// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"strings"

	"github.com/Jayriel04/MCCAsset2.0/internal/cache"
	"github.com/Jayriel04/MCCAsset2.0/internal/models"
	"github.com/Jayriel04/MCCAsset2.0/internal/observability"

	"gorm.io/gorm"
)

// AssetFilter narrows asset listings.
type AssetFilter struct {
	Status models.AssetStatus
	// Search matches serial number, name or department, case-insensitively.
	Search string
	Limit  int
	Offset int
}

// AssetRepository defines the interface for asset data operations
type AssetRepository interface {
	Create(ctx context.Context, asset *models.Asset) error
	GetBySerial(ctx context.Context, serial string) (*models.Asset, error)
	List(ctx context.Context, filter AssetFilter) ([]models.Asset, error)
	Stats(ctx context.Context) (*models.AssetStats, error)
}

// assetRepository implements AssetRepository
type assetRepository struct {
	db    *gorm.DB
	cache *cache.Store
	log   *observability.RepoLogger
}

// NewAssetRepository creates a new asset repository. store may be nil to
// read straight from the database.
func NewAssetRepository(db *gorm.DB, store *cache.Store) AssetRepository {
	return &assetRepository{db: db, cache: store, log: observability.NewRepoLogger("assets")}
}

func (r *assetRepository) Create(ctx context.Context, asset *models.Asset) error {
	if err := r.db.WithContext(ctx).Create(asset).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	r.cache.Invalidate(ctx, cache.AssetKey(asset.SerialNumber), cache.AssetStatsKey())
	r.log.LogCreate(ctx, map[string]interface{}{"serial_number": asset.SerialNumber, "status": asset.Status})
	return nil
}

func (r *assetRepository) GetBySerial(ctx context.Context, serial string) (*models.Asset, error) {
	var asset models.Asset
	err := r.cache.Aside(ctx, cache.AssetKey(serial), &asset, cache.AssetTTL, func() error {
		return r.db.WithContext(ctx).Where("serial_number = ?", strings.TrimSpace(serial)).First(&asset).Error
	})
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepository) List(ctx context.Context, filter AssetFilter) ([]models.Asset, error) {
	q := r.db.WithContext(ctx).Model(&models.Asset{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(serial_number) LIKE ? OR LOWER(name) LIKE ? OR LOWER(department_name) LIKE ?", like, like, like)
	}

	var assets []models.Asset
	err := paginate(q, filter.Limit, filter.Offset).Order("serial_number ASC").Find(&assets).Error
	return assets, err
}

func (r *assetRepository) Stats(ctx context.Context) (*models.AssetStats, error) {
	var stats models.AssetStats
	err := r.cache.Aside(ctx, cache.AssetStatsKey(), &stats, cache.StatsTTL, func() error {
		counts, err := countByStatus(r.db.WithContext(ctx), &models.Asset{})
		if err != nil {
			return err
		}
		stats = models.AssetStats{
			Active:      counts[string(models.AssetStatusActive)],
			Borrowed:    counts[string(models.AssetStatusBorrowed)],
			Maintenance: counts[string(models.AssetStatusMaintenance)],
			Inactive:    counts[string(models.AssetStatusInactive)],
		}
		for _, n := range counts {
			stats.Total += n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

type statusCount struct {
	Status string
	Count  int64
}

func countByStatus(db *gorm.DB, model interface{}) (map[string]int64, error) {
	var rows []statusCount
	if err := db.Model(model).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func paginate(q *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}
