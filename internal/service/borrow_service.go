package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/Jayriel04/MCCAsset2.0/internal/featureflags"
	"github.com/Jayriel04/MCCAsset2.0/internal/models"
	"github.com/Jayriel04/MCCAsset2.0/internal/observability"
	"github.com/Jayriel04/MCCAsset2.0/internal/repository"
	"github.com/Jayriel04/MCCAsset2.0/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// EventPublisher delivers lifecycle events after their transaction commits.
type EventPublisher interface {
	Publish(ctx context.Context, event models.LendingEvent) error
}

// BorrowService is the lifecycle engine for borrow requests. Every mutation
// runs in one storage transaction that locks the request and its asset, so
// request status and asset availability always change together.
type BorrowService struct {
	lending repository.LendingRepository
	events  EventPublisher
	flags   *featureflags.Manager
	now     func() time.Time
	randN   func(n int) int
}

// CreateBorrowInput is a borrow application as submitted.
type CreateBorrowInput struct {
	AssetSerial        string
	BorrowerID         string
	BorrowerName       string
	BorrowerDepartment string
	BorrowerContact    string
	BorrowerEmail      string
	Purpose            string
	Notes              string
	RequestedDate      string
	ExpectedReturnDate string
}

// CreateBorrowResult identifies a newly created request.
type CreateBorrowResult struct {
	ID         uint
	BorrowerID string
}

// EditBorrowInput replaces the borrower details of an open request. A blank
// RequestedDate keeps the stored one.
type EditBorrowInput struct {
	BorrowerName       string
	BorrowerDepartment string
	BorrowerContact    string
	BorrowerEmail      string
	Purpose            string
	Notes              string
	RequestedDate      string
	ExpectedReturnDate string
}

// ListBorrowInput filters a listing; Status may be empty.
type ListBorrowInput struct {
	Status     string
	BorrowerID string
	Limit      int
	Offset     int
}

// NewBorrowService wires the lifecycle engine. events and flags may be nil.
func NewBorrowService(lending repository.LendingRepository, events EventPublisher, flags *featureflags.Manager) *BorrowService {
	return &BorrowService{
		lending: lending,
		events:  events,
		flags:   flags,
		now:     time.Now,
		randN:   rand.IntN,
	}
}

// WithClock replaces the time source used for defaults and borrower IDs.
func (s *BorrowService) WithClock(now func() time.Time) *BorrowService {
	s.now = now
	return s
}

func (s *BorrowService) today() models.Date {
	return models.NewDate(s.now())
}

// GenerateBorrowerID returns an identifier of the form BORR-YYYYMMDDHHMMSS-NNN.
func (s *BorrowService) GenerateBorrowerID() string {
	return fmt.Sprintf("BORR-%s-%03d", s.now().Format("20060102150405"), 100+s.randN(900))
}

// Create validates a borrow application and stores it as pending. The asset
// must exist, be active and have no other open request; its status is not
// changed until the request is approved.
func (s *BorrowService) Create(ctx context.Context, in CreateBorrowInput) (result *CreateBorrowResult, err error) {
	span, ctx := observability.NewSpan(ctx, "borrow.create")
	defer func() { s.finish(span, "create", err) }()

	app, err := validation.ValidateBorrowApplication(validation.BorrowFields{
		AssetSerial:        in.AssetSerial,
		BorrowerID:         in.BorrowerID,
		BorrowerName:       in.BorrowerName,
		BorrowerDepartment: in.BorrowerDepartment,
		BorrowerContact:    in.BorrowerContact,
		BorrowerEmail:      in.BorrowerEmail,
		Purpose:            in.Purpose,
		Notes:              in.Notes,
		RequestedDate:      in.RequestedDate,
		ExpectedReturnDate: in.ExpectedReturnDate,
	}, s.today())
	if err != nil {
		return nil, err
	}

	borrowerID := app.BorrowerID
	if borrowerID == "" {
		borrowerID = s.GenerateBorrowerID()
	}

	req := &models.BorrowRequest{
		BorrowerID:         borrowerID,
		BorrowerName:       app.BorrowerName,
		BorrowerDepartment: app.BorrowerDepartment,
		BorrowerContact:    app.BorrowerContact,
		BorrowerEmail:      app.BorrowerEmail,
		Purpose:            app.Purpose,
		Notes:              app.Notes,
		RequestedDate:      app.RequestedDate,
		ExpectedReturnDate: app.ExpectedReturnDate,
		Status:             models.BorrowStatusPending,
	}

	var asset *models.Asset
	err = s.lending.Transaction(ctx, func(tx repository.LendingTx) error {
		var err error
		asset, err = tx.LockAssetBySerial(app.AssetSerial)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("Asset with serial number '%s' not found.", app.AssetSerial)
		}
		if err != nil {
			return err
		}
		if asset.Status != models.AssetStatusActive {
			return assetUnavailable(asset.Status)
		}

		open, err := tx.HasOpenRequest(asset.ID)
		if err != nil {
			return err
		}
		if open {
			return models.NewConflictError("Asset already has an open borrow request.")
		}

		req.AssetID = asset.ID
		return tx.InsertBorrowRequest(req)
	})
	if isDuplicateKey(err) {
		return nil, models.NewConflictError("Asset already has an open borrow request.")
	}
	if err != nil {
		return nil, classify(err)
	}

	span.AddAttributes(attribute.Int64("borrow.id", int64(req.ID)))
	req.Asset = asset
	s.publish(ctx, models.EventBorrowCreated, req)
	return &CreateBorrowResult{ID: req.ID, BorrowerID: req.BorrowerID}, nil
}

// Approve moves a pending request to approved and its asset from active to
// borrowed in the same transaction.
func (s *BorrowService) Approve(ctx context.Context, id uint) (*models.BorrowRequest, error) {
	return s.mutate(ctx, "approve", id, func(tx repository.LendingTx, req *models.BorrowRequest, asset *models.Asset) (string, error) {
		if req.Status != models.BorrowStatusPending {
			return "", transitionConflict(req.Status, "approved")
		}
		if asset.Status != models.AssetStatusActive {
			return "", assetUnavailable(asset.Status)
		}
		if err := tx.TransitionBorrowRequest(req.ID, repository.Transition{
			From: models.BorrowStatusPending,
			To:   models.BorrowStatusApproved,
		}); err != nil {
			return "", err
		}
		if err := tx.SetAssetStatus(asset, models.AssetStatusBorrowed); err != nil {
			return "", err
		}
		req.Status = models.BorrowStatusApproved
		return models.EventBorrowApproved, nil
	})
}

// Reject moves a pending request to rejected, recording reason. The asset is
// not touched. The request state is checked before the reason, so a closed
// request reports a conflict whatever reason is given.
func (s *BorrowService) Reject(ctx context.Context, id uint, reason string) (*models.BorrowRequest, error) {
	return s.mutate(ctx, "reject", id, func(tx repository.LendingTx, req *models.BorrowRequest, _ *models.Asset) (string, error) {
		if req.Status != models.BorrowStatusPending {
			return "", transitionConflict(req.Status, "rejected")
		}
		clean, err := validation.ValidateRejectionReason(reason)
		if err != nil {
			return "", err
		}
		if err := tx.TransitionBorrowRequest(req.ID, repository.Transition{
			From:            models.BorrowStatusPending,
			To:              models.BorrowStatusRejected,
			RejectionReason: clean,
		}); err != nil {
			return "", err
		}
		req.Status = models.BorrowStatusRejected
		req.RejectionReason = clean
		return models.EventBorrowRejected, nil
	})
}

// MarkReturned closes an approved request and makes its asset active again.
// A blank actualReturnDate means today.
func (s *BorrowService) MarkReturned(ctx context.Context, id uint, actualReturnDate string) (*models.BorrowRequest, error) {
	return s.mutate(ctx, "return", id, func(tx repository.LendingTx, req *models.BorrowRequest, asset *models.Asset) (string, error) {
		if req.Status != models.BorrowStatusApproved {
			return "", transitionConflict(req.Status, "returned")
		}
		returned, err := validation.ValidateReturnDate(actualReturnDate, req.RequestedDate, s.today())
		if err != nil {
			return "", err
		}
		if err := tx.TransitionBorrowRequest(req.ID, repository.Transition{
			From:             models.BorrowStatusApproved,
			To:               models.BorrowStatusReturned,
			ActualReturnDate: &returned,
		}); err != nil {
			return "", err
		}
		if asset.Status == models.AssetStatusBorrowed {
			if err := tx.SetAssetStatus(asset, models.AssetStatusActive); err != nil {
				return "", err
			}
		} else {
			observability.GlobalLogger.WarnContext(ctx, "returned asset was not marked borrowed",
				slog.String("serial_number", asset.SerialNumber),
				slog.String("asset_status", string(asset.Status)))
		}
		req.Status = models.BorrowStatusReturned
		req.ActualReturnDate = &returned
		return models.EventBorrowReturned, nil
	})
}

// Edit replaces the borrower details of a pending or approved request after
// validating them with the same rules as Create. Status and asset are kept.
func (s *BorrowService) Edit(ctx context.Context, id uint, in EditBorrowInput) (*models.BorrowRequest, error) {
	return s.mutate(ctx, "edit", id, func(tx repository.LendingTx, req *models.BorrowRequest, asset *models.Asset) (string, error) {
		if !req.Status.Open() {
			return "", models.NewConflictError(fmt.Sprintf("Borrow request is %s and can no longer be edited.", req.Status))
		}
		requested := in.RequestedDate
		if requested == "" {
			requested = req.RequestedDate.String()
		}
		app, err := validation.ValidateBorrowApplication(validation.BorrowFields{
			AssetSerial:        asset.SerialNumber,
			BorrowerName:       in.BorrowerName,
			BorrowerDepartment: in.BorrowerDepartment,
			BorrowerContact:    in.BorrowerContact,
			BorrowerEmail:      in.BorrowerEmail,
			Purpose:            in.Purpose,
			Notes:              in.Notes,
			RequestedDate:      requested,
			ExpectedReturnDate: in.ExpectedReturnDate,
		}, s.today())
		if err != nil {
			return "", err
		}

		details := repository.BorrowDetails{
			BorrowerName:       app.BorrowerName,
			BorrowerDepartment: app.BorrowerDepartment,
			BorrowerContact:    app.BorrowerContact,
			BorrowerEmail:      app.BorrowerEmail,
			Purpose:            app.Purpose,
			Notes:              app.Notes,
			RequestedDate:      app.RequestedDate,
			ExpectedReturnDate: app.ExpectedReturnDate,
		}
		if err := tx.UpdateBorrowDetails(req.ID, req.Status, details); err != nil {
			return "", err
		}
		req.BorrowerName = details.BorrowerName
		req.BorrowerDepartment = details.BorrowerDepartment
		req.BorrowerContact = details.BorrowerContact
		req.BorrowerEmail = details.BorrowerEmail
		req.Purpose = details.Purpose
		req.Notes = details.Notes
		req.RequestedDate = details.RequestedDate
		req.ExpectedReturnDate = details.ExpectedReturnDate
		return models.EventBorrowUpdated, nil
	})
}

// Delete removes a rejected request. Requests in any other state are kept.
func (s *BorrowService) Delete(ctx context.Context, id uint) error {
	_, err := s.mutate(ctx, "delete", id, func(tx repository.LendingTx, req *models.BorrowRequest, _ *models.Asset) (string, error) {
		if req.Status != models.BorrowStatusRejected {
			return "", models.NewConflictError(fmt.Sprintf("Borrow request is %s; only rejected requests can be deleted.", req.Status))
		}
		if err := tx.DeleteBorrowRequest(req.ID, models.BorrowStatusRejected); err != nil {
			return "", err
		}
		return models.EventBorrowDeleted, nil
	})
	return err
}

// Get returns one request with its asset.
func (s *BorrowService) Get(ctx context.Context, id uint) (*models.BorrowRequest, error) {
	req, err := s.lending.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, borrowNotFound(id)
	}
	if err != nil {
		return nil, classify(err)
	}
	return req, nil
}

// List returns requests newest first.
func (s *BorrowService) List(ctx context.Context, in ListBorrowInput) ([]models.BorrowRequest, error) {
	filter := repository.BorrowFilter{
		BorrowerID: in.BorrowerID,
		Limit:      clampLimit(in.Limit),
		Offset:     max(in.Offset, 0),
	}
	if in.Status != "" {
		status := models.BorrowStatus(in.Status)
		if !status.Valid() {
			return nil, models.NewValidationError("status must be one of pending, approved, rejected, returned")
		}
		filter.Status = status
	}
	out, err := s.lending.List(ctx, filter)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// Stats counts requests per status.
func (s *BorrowService) Stats(ctx context.Context) (*models.BorrowStats, error) {
	stats, err := s.lending.Stats(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return stats, nil
}

type applyFunc func(tx repository.LendingTx, req *models.BorrowRequest, asset *models.Asset) (eventType string, err error)

// mutate locks request id and its asset, runs apply, commits, then publishes
// the event apply named.
func (s *BorrowService) mutate(ctx context.Context, op string, id uint, apply applyFunc) (req *models.BorrowRequest, err error) {
	span, ctx := observability.NewSpan(ctx, "borrow."+op)
	span.AddAttributes(attribute.Int64("borrow.id", int64(id)))
	defer func() { s.finish(span, op, err) }()

	var (
		asset     *models.Asset
		eventType string
	)
	err = s.lending.Transaction(ctx, func(tx repository.LendingTx) error {
		var err error
		req, err = tx.LockBorrowRequest(id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return borrowNotFound(id)
		}
		if err != nil {
			return err
		}
		asset, err = tx.LockAsset(req.AssetID)
		if err != nil {
			return err
		}
		eventType, err = apply(tx, req, asset)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}

	req.Asset = asset
	req.UpdatedAt = s.now()
	s.publish(ctx, eventType, req)
	return req, nil
}

func (s *BorrowService) finish(span *observability.Span, op string, err error) {
	observability.RecordTransition(op, err, outcome)
	span.Finish(err)
}

func (s *BorrowService) publish(ctx context.Context, eventType string, req *models.BorrowRequest) {
	if s.events == nil || !s.flags.EnabledOr(featureflags.LifecycleEvents, req.BorrowerDepartment, true) {
		return
	}
	event := models.LendingEvent{
		Type:          eventType,
		RequestID:     req.ID,
		BorrowerID:    req.BorrowerID,
		Status:        req.Status,
		Department:    req.BorrowerDepartment,
		CorrelationID: observability.ExtractCorrelationID(ctx),
		OccurredAt:    s.now().UTC(),
	}
	if req.Asset != nil {
		event.SerialNumber = req.Asset.SerialNumber
		event.AssetStatus = req.Asset.Status
	}
	if err := s.events.Publish(ctx, event); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "failed to publish lending event",
			slog.String("type", eventType),
			slog.Uint64("request_id", uint64(req.ID)),
			slog.String("error", err.Error()))
	}
}

func borrowNotFound(id uint) *models.AppError {
	return notFound("Borrow request with ID %d not found.", id)
}

func transitionConflict(from models.BorrowStatus, to string) *models.AppError {
	return models.NewConflictError(fmt.Sprintf("Borrow request is %s and cannot be %s.", from, to))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}
