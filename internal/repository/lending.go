package repository

import (
	"context"
	"errors"

	"github.com/Jayriel04/MCCAsset2.0/internal/cache"
	"github.com/Jayriel04/MCCAsset2.0/internal/models"
	"github.com/Jayriel04/MCCAsset2.0/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStaleState is returned by compare-and-set writes whose precondition no
// longer holds: the row moved to another status since it was read.
var ErrStaleState = errors.New("record state changed concurrently")

// BorrowFilter narrows borrow request listings.
type BorrowFilter struct {
	Status     models.BorrowStatus
	AssetID    uint
	BorrowerID string
	Limit      int
	Offset     int
}

// BorrowDetails are the editable fields of a borrow request.
type BorrowDetails struct {
	BorrowerName       string
	BorrowerDepartment string
	BorrowerContact    string
	BorrowerEmail      string
	Purpose            string
	Notes              string
	RequestedDate      models.Date
	ExpectedReturnDate models.Date
}

// Transition describes a borrow request status change and its side fields.
type Transition struct {
	From             models.BorrowStatus
	To               models.BorrowStatus
	RejectionReason  string
	ActualReturnDate *models.Date
}

// LendingTx is the unit of work a lifecycle operation runs in. Lock* methods
// take row locks that are held until the surrounding transaction ends.
type LendingTx interface {
	LockAssetBySerial(serial string) (*models.Asset, error)
	LockAsset(id uint) (*models.Asset, error)
	LockBorrowRequest(id uint) (*models.BorrowRequest, error)
	HasOpenRequest(assetID uint) (bool, error)
	HasRequestInStatus(assetID uint, status models.BorrowStatus) (bool, error)
	InsertBorrowRequest(req *models.BorrowRequest) error
	TransitionBorrowRequest(id uint, t Transition) error
	UpdateBorrowDetails(id uint, status models.BorrowStatus, d BorrowDetails) error
	DeleteBorrowRequest(id uint, status models.BorrowStatus) error
	SetAssetStatus(asset *models.Asset, to models.AssetStatus) error
}

// LendingRepository defines borrow request reads and transactional lifecycle writes.
type LendingRepository interface {
	Transaction(ctx context.Context, fn func(tx LendingTx) error) error
	GetByID(ctx context.Context, id uint) (*models.BorrowRequest, error)
	List(ctx context.Context, filter BorrowFilter) ([]models.BorrowRequest, error)
	Stats(ctx context.Context) (*models.BorrowStats, error)
}

type lendingRepository struct {
	db    *gorm.DB
	cache *cache.Store
	log   *observability.RepoLogger
}

// NewLendingRepository creates a new lending repository. store may be nil.
func NewLendingRepository(db *gorm.DB, store *cache.Store) LendingRepository {
	return &lendingRepository{db: db, cache: store, log: observability.NewRepoLogger("borrow_requests")}
}

// Transaction runs fn in one database transaction. Cached read models touched
// by fn are invalidated only after a successful commit.
func (r *lendingRepository) Transaction(ctx context.Context, fn func(tx LendingTx) error) error {
	ltx := &lendingTx{ctx: ctx, log: r.log}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ltx.db = tx
		return fn(ltx)
	})
	if err != nil {
		return err
	}

	keys := []string{cache.BorrowStatsKey()}
	if len(ltx.touchedSerials) > 0 {
		keys = append(keys, cache.AssetStatsKey())
		for _, serial := range ltx.touchedSerials {
			keys = append(keys, cache.AssetKey(serial))
		}
	}
	r.cache.Invalidate(ctx, keys...)
	return nil
}

func (r *lendingRepository) GetByID(ctx context.Context, id uint) (*models.BorrowRequest, error) {
	var req models.BorrowRequest
	if err := r.db.WithContext(ctx).Preload("Asset").First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *lendingRepository) List(ctx context.Context, filter BorrowFilter) ([]models.BorrowRequest, error) {
	q := r.db.WithContext(ctx).Model(&models.BorrowRequest{}).Preload("Asset")
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.AssetID != 0 {
		q = q.Where("asset_id = ?", filter.AssetID)
	}
	if filter.BorrowerID != "" {
		q = q.Where("borrower_id = ?", filter.BorrowerID)
	}

	var out []models.BorrowRequest
	err := paginate(q, filter.Limit, filter.Offset).Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

func (r *lendingRepository) Stats(ctx context.Context) (*models.BorrowStats, error) {
	var stats models.BorrowStats
	err := r.cache.Aside(ctx, cache.BorrowStatsKey(), &stats, cache.StatsTTL, func() error {
		counts, err := countByStatus(r.db.WithContext(ctx), &models.BorrowRequest{})
		if err != nil {
			return err
		}
		stats = models.BorrowStats{
			Pending:  counts[string(models.BorrowStatusPending)],
			Approved: counts[string(models.BorrowStatusApproved)],
			Rejected: counts[string(models.BorrowStatusRejected)],
			Returned: counts[string(models.BorrowStatusReturned)],
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

type lendingTx struct {
	ctx            context.Context
	db             *gorm.DB
	log            *observability.RepoLogger
	touchedSerials []string
}

func (t *lendingTx) locked() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *lendingTx) LockAssetBySerial(serial string) (*models.Asset, error) {
	var asset models.Asset
	if err := t.locked().Where("serial_number = ?", serial).First(&asset).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (t *lendingTx) LockAsset(id uint) (*models.Asset, error) {
	var asset models.Asset
	if err := t.locked().First(&asset, id).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (t *lendingTx) LockBorrowRequest(id uint) (*models.BorrowRequest, error) {
	var req models.BorrowRequest
	if err := t.locked().First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (t *lendingTx) HasOpenRequest(assetID uint) (bool, error) {
	var n int64
	err := t.db.Model(&models.BorrowRequest{}).
		Where("asset_id = ? AND status IN ?", assetID, []models.BorrowStatus{models.BorrowStatusPending, models.BorrowStatusApproved}).
		Count(&n).Error
	return n > 0, err
}

func (t *lendingTx) HasRequestInStatus(assetID uint, status models.BorrowStatus) (bool, error) {
	var n int64
	err := t.db.Model(&models.BorrowRequest{}).
		Where("asset_id = ? AND status = ?", assetID, status).
		Count(&n).Error
	return n > 0, err
}

func (t *lendingTx) InsertBorrowRequest(req *models.BorrowRequest) error {
	if err := t.db.Create(req).Error; err != nil {
		t.log.LogError(t.ctx, err, "create")
		return err
	}
	t.log.LogCreate(t.ctx, map[string]interface{}{"id": req.ID, "asset_id": req.AssetID, "borrower_id": req.BorrowerID})
	return nil
}

func (t *lendingTx) TransitionBorrowRequest(id uint, tr Transition) error {
	updates := map[string]interface{}{"status": tr.To}
	if tr.To == models.BorrowStatusRejected {
		updates["rejection_reason"] = tr.RejectionReason
	}
	if tr.ActualReturnDate != nil {
		updates["actual_return_date"] = *tr.ActualReturnDate
	}
	if err := t.casUpdate(id, tr.From, updates); err != nil {
		return err
	}
	t.log.LogUpdate(t.ctx, map[string]interface{}{"id": id, "from": tr.From, "to": tr.To})
	return nil
}

func (t *lendingTx) UpdateBorrowDetails(id uint, status models.BorrowStatus, d BorrowDetails) error {
	return t.casUpdate(id, status, map[string]interface{}{
		"borrower_name":        d.BorrowerName,
		"borrower_department":  d.BorrowerDepartment,
		"borrower_contact":     d.BorrowerContact,
		"borrower_email":       d.BorrowerEmail,
		"purpose":              d.Purpose,
		"notes":                d.Notes,
		"requested_date":       d.RequestedDate,
		"expected_return_date": d.ExpectedReturnDate,
	})
}

func (t *lendingTx) casUpdate(id uint, from models.BorrowStatus, updates map[string]interface{}) error {
	res := t.db.Model(&models.BorrowRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

func (t *lendingTx) DeleteBorrowRequest(id uint, status models.BorrowStatus) error {
	res := t.db.Where("id = ? AND status = ?", id, status).Delete(&models.BorrowRequest{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	t.log.LogDelete(t.ctx, map[string]interface{}{"id": id})
	return nil
}

// SetAssetStatus moves asset to status to, provided it still holds the status
// it was read with. asset is updated in place on success.
func (t *lendingTx) SetAssetStatus(asset *models.Asset, to models.AssetStatus) error {
	res := t.db.Model(&models.Asset{}).
		Where("id = ? AND status = ?", asset.ID, asset.Status).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	t.touchedSerials = append(t.touchedSerials, asset.SerialNumber)
	asset.Status = to
	return nil
}
