package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Jayriel04/MCCAsset2.0/internal/models"
	"github.com/Jayriel04/MCCAsset2.0/internal/observability"
	"github.com/Jayriel04/MCCAsset2.0/internal/repository"
	"github.com/Jayriel04/MCCAsset2.0/internal/validation"

	"gorm.io/gorm"
)

// AssetService manages the asset registry. Status changes go through the
// lending transaction so they serialize with approvals and returns.
type AssetService struct {
	assets  repository.AssetRepository
	lending repository.LendingRepository
	events  EventPublisher
}

// CreateAssetInput registers a new asset.
type CreateAssetInput struct {
	SerialNumber   string
	Name           string
	DepartmentName string
	Status         string
}

// ListAssetsInput filters the registry listing.
type ListAssetsInput struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// NewAssetService creates an asset service. events may be nil.
func NewAssetService(assets repository.AssetRepository, lending repository.LendingRepository, events EventPublisher) *AssetService {
	return &AssetService{assets: assets, lending: lending, events: events}
}

// Create registers an asset. Serial numbers are unique.
func (s *AssetService) Create(ctx context.Context, in CreateAssetInput) (*models.Asset, error) {
	asset, err := validation.ValidateAsset(validation.AssetFields{
		SerialNumber:   in.SerialNumber,
		Name:           in.Name,
		DepartmentName: in.DepartmentName,
		Status:         in.Status,
	})
	if err != nil {
		return nil, err
	}
	if err := s.assets.Create(ctx, &asset); err != nil {
		if isDuplicateKey(err) {
			return nil, models.NewConflictError(fmt.Sprintf("Asset with serial number '%s' already exists.", asset.SerialNumber))
		}
		return nil, classify(err)
	}
	return &asset, nil
}

// GetBySerial looks an asset up by its serial number.
func (s *AssetService) GetBySerial(ctx context.Context, serial string) (*models.Asset, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, models.NewValidationError("Serial number is required.", "serial_number")
	}
	asset, err := s.assets.GetBySerial(ctx, serial)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Asset with serial number '%s' not found.", serial)
	}
	if err != nil {
		return nil, classify(err)
	}
	return asset, nil
}

func (s *AssetService) List(ctx context.Context, in ListAssetsInput) ([]models.Asset, error) {
	filter := repository.AssetFilter{
		Search: in.Search,
		Limit:  clampLimit(in.Limit),
		Offset: max(in.Offset, 0),
	}
	if in.Status != "" {
		status := models.AssetStatus(strings.ToLower(in.Status))
		if !status.Valid() {
			return nil, models.NewValidationError("status must be one of active, borrowed, maintenance, inactive")
		}
		filter.Status = status
	}
	assets, err := s.assets.List(ctx, filter)
	if err != nil {
		return nil, classify(err)
	}
	return assets, nil
}

func (s *AssetService) Stats(ctx context.Context) (*models.AssetStats, error) {
	stats, err := s.assets.Stats(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return stats, nil
}

// UpdateStatus sets a manual status (active, maintenance, inactive). An asset
// that is out on an approved request stays borrowed until it is returned.
func (s *AssetService) UpdateStatus(ctx context.Context, serial, status string) (asset *models.Asset, err error) {
	span, ctx := observability.NewSpan(ctx, "asset.update_status")
	defer func() {
		observability.RecordTransition("asset_status", err, outcome)
		span.Finish(err)
	}()

	serial = strings.TrimSpace(serial)
	to := models.AssetStatus(strings.ToLower(strings.TrimSpace(status)))
	if err := validation.ValidateManualAssetStatus(to); err != nil {
		return nil, err
	}

	changed := false
	err = s.lending.Transaction(ctx, func(tx repository.LendingTx) error {
		var err error
		asset, err = tx.LockAssetBySerial(serial)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("Asset with serial number '%s' not found.", serial)
		}
		if err != nil {
			return err
		}
		if asset.Status == to {
			return nil
		}
		if asset.Status == models.AssetStatusBorrowed {
			lent, err := tx.HasRequestInStatus(asset.ID, models.BorrowStatusApproved)
			if err != nil {
				return err
			}
			if lent {
				return models.NewConflictError("Asset is on an approved borrow request; mark it returned first.")
			}
		}
		changed = true
		return tx.SetAssetStatus(asset, to)
	})
	if err != nil {
		return nil, classify(err)
	}

	if changed && s.events != nil {
		event := models.LendingEvent{
			Type:          models.EventAssetStatus,
			SerialNumber:  asset.SerialNumber,
			AssetStatus:   asset.Status,
			Department:    asset.DepartmentName,
			CorrelationID: observability.ExtractCorrelationID(ctx),
			OccurredAt:    time.Now().UTC(),
		}
		if err := s.events.Publish(ctx, event); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to publish asset event",
				"serial_number", asset.SerialNumber, "error", err.Error())
		}
	}
	return asset, nil
}
