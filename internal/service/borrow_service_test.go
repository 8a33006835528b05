package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Jayriel04/MCCAsset2.0/internal/featureflags"
	"github.com/Jayriel04/MCCAsset2.0/internal/models"
	"github.com/Jayriel04/MCCAsset2.0/internal/repository"
	"github.com/Jayriel04/MCCAsset2.0/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC)

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.LendingEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e models.LendingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// lendingRepoStub is a stub for repository.LendingRepository.
type lendingRepoStub struct {
	transactionFn func(context.Context, func(repository.LendingTx) error) error
	getByIDFn     func(context.Context, uint) (*models.BorrowRequest, error)
	listFn        func(context.Context, repository.BorrowFilter) ([]models.BorrowRequest, error)
	statsFn       func(context.Context) (*models.BorrowStats, error)
}

func (s *lendingRepoStub) Transaction(ctx context.Context, fn func(repository.LendingTx) error) error {
	return s.transactionFn(ctx, fn)
}
func (s *lendingRepoStub) GetByID(ctx context.Context, id uint) (*models.BorrowRequest, error) {
	return s.getByIDFn(ctx, id)
}
func (s *lendingRepoStub) List(ctx context.Context, f repository.BorrowFilter) ([]models.BorrowRequest, error) {
	return s.listFn(ctx, f)
}
func (s *lendingRepoStub) Stats(ctx context.Context) (*models.BorrowStats, error) {
	return s.statsFn(ctx)
}

func noopLendingRepo() *lendingRepoStub {
	return &lendingRepoStub{
		transactionFn: func(_ context.Context, _ func(repository.LendingTx) error) error { return nil },
		getByIDFn:     func(_ context.Context, _ uint) (*models.BorrowRequest, error) { return &models.BorrowRequest{}, nil },
		listFn:        func(_ context.Context, _ repository.BorrowFilter) ([]models.BorrowRequest, error) { return nil, nil },
		statsFn:       func(_ context.Context) (*models.BorrowStats, error) { return &models.BorrowStats{}, nil },
	}
}

type lendingFixture struct {
	db     *gorm.DB
	svc    *BorrowService
	events *recordingPublisher
}

func newLendingFixture(t *testing.T) *lendingFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	events := &recordingPublisher{}
	svc := NewBorrowService(repository.NewLendingRepository(db, nil), events, nil).
		WithClock(func() time.Time { return fixedNow })
	return &lendingFixture{db: db, svc: svc, events: events}
}

func (f *lendingFixture) assetStatus(t *testing.T, id uint) models.AssetStatus {
	t.Helper()
	var asset models.Asset
	require.NoError(t, f.db.First(&asset, id).Error)
	return asset.Status
}

func (f *lendingFixture) requestStatus(t *testing.T, id uint) models.BorrowStatus {
	t.Helper()
	var req models.BorrowRequest
	require.NoError(t, f.db.First(&req, id).Error)
	return req.Status
}

func validInput(serial string) CreateBorrowInput {
	return CreateBorrowInput{
		AssetSerial:        serial,
		BorrowerName:       "Jane Doe",
		BorrowerDepartment: "IT",
		BorrowerContact:    "09123456789",
		BorrowerEmail:      "jane@example.com",
		Purpose:            "Presentation",
		RequestedDate:      "2024-03-01",
		ExpectedReturnDate: "2024-03-05",
	}
}

func TestBorrowService_CreateStoresPendingRequest(t *testing.T) {
	f := newLendingFixture(t)
	asset := testutil.CreateAsset(t, f.db, "AST-1", models.AssetStatusActive)

	res, err := f.svc.Create(context.Background(), validInput("AST-1"))
	require.NoError(t, err)
	assert.Equal(t, uint(1), res.ID)
	assert.Regexp(t, `^BORR-20240301093015-\d{3}$`, res.BorrowerID)

	assert.Equal(t, models.BorrowStatusPending, f.requestStatus(t, res.ID))
	assert.Equal(t, models.AssetStatusActive, f.assetStatus(t, asset.ID), "creating a request must not reserve the asset")
	assert.Equal(t, []string{models.EventBorrowCreated}, f.events.types())
}

func TestBorrowService_CreateKeepsSuppliedBorrowerID(t *testing.T) {
	f := newLendingFixture(t)
	testutil.CreateAsset(t, f.db, "AST-1", models.AssetStatusActive)

	in := validInput("AST-1")
	in.BorrowerID = "STAFF-42"
	res, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "STAFF-42", res.BorrowerID)
}

func TestBorrowService_CreateDefaultsRequestedDateToToday(t *testing.T) {
	f := newLendingFixture(t)
	testutil.CreateAsset(t, f.db, "AST-1", models.AssetStatusActive)

	in := validInput("AST-1")
	in.RequestedDate = ""
	res, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)

	got, err := f.svc.Get(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", got.RequestedDate.String())
	require.NotNil(t, got.Asset)
	assert.Equal(t, "AST-1", got.Asset.SerialNumber)
}

func TestBorrowService_CreateUnknownAsset(t *testing.T) {
	f := newLendingFixture(t)

	_, err := f.svc.Create(context.Background(), validInput("AST-999"))
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	assert.Contains(t, err.Error(), "AST-999")
	assert.Empty(t, f.events.types())
}

func TestBorrowService_CreateRejectsUnavailableAsset(t *testing.T) {
	for _, status := range []models.AssetStatus{models.AssetStatusBorrowed, models.AssetStatusMaintenance, models.AssetStatusInactive} {
		t.Run(string(status), func(t *testing.T) {
			f := newLendingFixture(t)
			testutil.CreateAsset(t, f.db, "AST-1", status)

			_, err := f.svc.Create(context.Background(), validInput("AST-1"))
			require.Error(t, err)
			assert.True(t, models.HasCode(err, models.CodeConflict))
			assert.ErrorIs(t, err, ErrAssetUnavailable)

			var n int64
			require.NoError(t, f.db.Model(&models.BorrowRequest{}).Count(&n).Error)
			assert.Zero(t, n)
		})
	}
}

func TestBorrowService_CreateRejectsSecondOpenRequest(t *testing.T) {
	f := newLendingFixture(t)
	asset := testutil.CreateAsset(t, f.db, "AST-1", models.AssetStatusActive)
	testutil.CreateBorrowRequest(t, f.db, asset, models.BorrowStatusPending)

	_, err := f.svc.Create(context.Background(), validInput("AST-1"))
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeConflict))
	assert.NotErrorIs(t, err, ErrAssetUnavailable)
}

func TestBorrowService_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateBorrowInput)
	}{
		{"missing name", func(in *CreateBorrowInput) { in.BorrowerName = " " }},
		{"bad email", func(in *CreateBorrowInput) { in.BorrowerEmail = "not-an-email" }},
		{"short contact", func(in *CreateBorrowInput) { in.BorrowerContact = "12345" }},
		{"return before request", func(in *CreateBorrowInput) { in.ExpectedReturnDate = "2024-02-28" }},
		{"return same day", func(in *CreateBorrowInput) { in.ExpectedReturnDate = "2024-03-01" }},
		{"bad date", func(in *CreateBorrowInput) { in.RequestedDate = "03/01/2024" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewBorrowService(noopLendingRepo(), nil, nil).WithClock(func() time.Time { return fixedNow })
			in := validInput("AST-1")
			tt.mutate(&in)
			_, err := svc.Create(context.Background(), in)
			require.Error(t, err)
			assert.True(t, models.HasCode(err, models.CodeValidation))
		})
	}
}

func TestBorrowService_ApproveThenReturnRestoresAsset(t *testing.T) {
	f := newLendingFixture(t)
	asset := testutil.CreateAsset(t, f.db, "AST-1", models.AssetStatusActive)
	req := testutil.CreateBorrowRequest(t, f.db, asset, models.BorrowStatusPending)
	ctx := context.Background()

	approved, err := f.svc.Approve(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowStatusApproved, approved.Status)
	assert.Equal(t, models.AssetStatusBorrowed, f.assetStatus(t, asset.ID))

	returned, err := f.svc.MarkReturned(ctx, req.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.BorrowStatusReturned, returned.Status)
	require.NotNil(t, returned.ActualReturnDate)
	assert.Equal(t, "2024-03-01", returned.ActualReturnDate.String())
	assert.Equal(t, models.AssetStatusActive, f.assetStatus(t, asset.ID))

	assert.Equal(t, []string{models.EventBorrowApproved, models.EventBorrowReturned}, f.events.types())
}

func TestBorrowService_ApproveRequiresActiveAsset(t *testing.T) {
	f := newLendingFixture(t)
	asset := testutil.CreateAsset(t, f.db, "AST-1", models.AssetStatusActive)
	req := testutil.CreateBorrowRequest(t, f.db, asset, models.BorrowStatusPending)
	require.NoError(t, f.db.Model(asset).Update("status", models.AssetStatusMaintenance).Error)

	_, err := f.svc.Approve(context.Background(), req.ID)
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeConflict))
	assert.Equal(t, models.BorrowStatusPending, f.requestStatus(t, req.ID))
}

func TestBorrowService_TransitionsFromWrongStateConflict(t *testing.T) {
	tests := []struct {
		name   string
		status models.BorrowStatus
		op     func(*BorrowService, uint) error
	}{
		{"approve approved", models.BorrowStatusApproved, func(s *BorrowService, id uint) error {
			_, err := s.Approve(context.Background(), id)
			return err
		}},
		{"approve returned", models.BorrowStatusReturned, func(s *BorrowService, id uint) error {
			_, err := s.Approve(context.Background(), id)
			return err
		}},
		{"reject approved", models.BorrowStatusApproved, func(s *BorrowService, id uint) error {
			_, err := s.Reject(context.Background(), id, "no longer needed")
			return err
		}},
		{"reject returned without reason", models.BorrowStatusReturned, func(s *BorrowService, id uint) error {
			_, err := s.Reject(context.Background(), id, "")
			return err
		}},
		{"reject rejected without reason", models.BorrowStatusRejected, func(s *BorrowService, id uint) error {
			_, err := s.Reject(context.Background(), id, "")
			return err
		}},
		{"return pending", models.BorrowStatusPending, func(s *BorrowService, id uint) error {
			_, err := s.MarkReturned(context.Background(), id, "")
			return err
		}},
		{"return rejected", models.BorrowStatusRejected, func(s *BorrowService, id uint) error {
			_, err := s.MarkReturned(context.Background(), id, "")
			return err
		}},
		{"edit returned", models.BorrowStatusReturned, func(s *BorrowService, id uint) error {
			_, err := s.Edit(context.Background(), id, EditBorrowInput{})
			return err
		}},
		{"delete pending", models.BorrowStatusPending, func(s *BorrowService, id uint) error {
			return s.Delete(context.Background(), id)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLendingFixture(t)
			assetStatus := models.AssetStatusActive
			if tt.status == models.BorrowStatusApproved {
				assetStatus = models.AssetStatusBorrowed
			}
			asset := testutil.CreateAsset(t, f.db, "AST-1", assetStatus)
			req := testutil.CreateBorrowRequest(t, f.db, asset, tt.status)

			err := tt.op(f.svc, req.ID)
			require.Error(t, err)
			assert.True(t, models.HasCode(err, models.CodeConflict), "got %v", err)
			assert.Equal(t, tt.status, f.requestStatus(t, req.ID))
			assert.Equal(t, assetStatus, f.assetStatus(t, asset.ID))
			assert.Empty(t, f.events.types())
		})
	}
}

func TestBorrowService_UnknownRequestIsNotFound(t *testing.T) {
	f := newLendingFixture(t)

	_, err := f.svc.Approve(context.Background(), 42)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	assert.EqualError(t, err, "Borrow request with ID 42 not found.")

	_, err = f.svc.Get(context.Background(), 42)
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	_, err = f.svc.Reject(context.Background(), 42, "")
	assert.True(t, models.HasCode(err, models.CodeNotFound), "got %v", err)
}

func TestBorrowService_RejectRequiresReason(t *testing.T) {
	f := newLendingFixture(t)
	asset := testutil.CreateAsset(t, f.db, "AST-1", models.AssetStatusActive)
	req := testutil.CreateBorrowRequest(t, f.db, asset, models.BorrowStatusPending)

	for _, reason := range []string{"   ", "<script>x</script>"} {
		_, err := f.svc.Reject(context.Background(), req.ID, reason)
		require.Error(t, err)
		assert.True(t, models.HasCode(err, models.CodeValidation), "reason %q", reason)
		assert.Equal(t, models.BorrowStatusPending, f.requestStatus(t, req.ID))
	}

	rejected, err := f.svc.Reject(context.Background(), req.ID, "Asset reserved for exams")
	require.NoError(t, err)
	assert.Equal(t, models.BorrowStatusRejected, rejected.Status)
	assert.Equal(t, "Asset reserved for exams", rejected.RejectionReason)
	assert.Equal(t, models.AssetStatusActive, f.assetStatus(t, asset.ID))
}

func TestBorrowService_ReturnDateBeforeRequestIsInvalid(t *testing.T) {
	f := newLendingFixture(t)
	asset := testutil.CreateAsset(t, f.db, "AST-1", models.AssetStatusBorrowed)
	req := testutil.CreateBorrowRequest(t, f.db, asset, models.BorrowStatusApproved)

	_, err := f.svc.MarkReturned(context.Background(), req.ID, "2023-12-31")
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeValidation))
	assert.Equal(t, models.BorrowStatusApproved, f.requestStatus(t, req.ID))
	assert.Equal(t, models.AssetStatusBorrowed, f.assetStatus(t, asset.ID))
}

func TestBorrowService_EditUpdatesDetails(t *testing.T) {
	f := newLendingFixture(t)
	asset := testutil.CreateAsset(t, f.db, "AST-1", models.AssetStatusActive)
	req := testutil.CreateBorrowRequest(t, f.db, asset, models.BorrowStatusPending)

	edited, err := f.svc.Edit(context.Background(), req.ID, EditBorrowInput{
		BorrowerName:       "John Roe",
		BorrowerDepartment: "Finance",
		BorrowerContact:    "+63 912 345 6789",
		BorrowerEmail:      "john@example.com",
		Purpose:            "Audit",
		ExpectedReturnDate: "2024-01-10",
	})
	require.NoError(t, err)
	assert.Equal(t, "John Roe", edited.BorrowerName)
	assert.Equal(t, "2024-01-01", edited.RequestedDate.String())
	assert.Equal(t, models.BorrowStatusPending, edited.Status)

	stored, err := f.svc.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, "Finance", stored.BorrowerDepartment)
	assert.Equal(t, "2024-01-10", stored.ExpectedReturnDate.String())
	assert.Equal(t, "BORR-TEST", stored.BorrowerID)
}

func TestBorrowService_DeleteRejected(t *testing.T) {
	f := newLendingFixture(t)
	asset := testutil.CreateAsset(t, f.db, "AST-1", models.AssetStatusActive)
	req := testutil.CreateBorrowRequest(t, f.db, asset, models.BorrowStatusRejected)

	require.NoError(t, f.svc.Delete(context.Background(), req.ID))
	_, err := f.svc.Get(context.Background(), req.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestBorrowService_ConcurrentApprovalsSingleWinner(t *testing.T) {
	f := newLendingFixture(t)
	asset := testutil.CreateAsset(t, f.db, "AST-1", models.AssetStatusActive)
	req := testutil.CreateBorrowRequest(t, f.db, asset, models.BorrowStatusPending)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Approve(context.Background(), req.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case models.HasCode(err, models.CodeConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, conflicts)
	assert.Equal(t, models.AssetStatusBorrowed, f.assetStatus(t, asset.ID))
}

func TestBorrowService_ConcurrentCreatesSingleOpenRequest(t *testing.T) {
	f := newLendingFixture(t)
	testutil.CreateAsset(t, f.db, "AST-1", models.AssetStatusActive)

	const workers = 5
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), validInput("AST-1"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, models.HasCode(err, models.CodeConflict), "got %v", err)
	}
	assert.Equal(t, 1, ok)
}

func TestBorrowService_StorageFailuresAreClassified(t *testing.T) {
	repo := noopLendingRepo()
	repo.transactionFn = func(_ context.Context, _ func(repository.LendingTx) error) error {
		return errors.New("connection refused")
	}
	repo.statsFn = func(_ context.Context) (*models.BorrowStats, error) {
		return nil, errors.New("connection refused")
	}
	svc := NewBorrowService(repo, nil, nil)

	_, err := svc.Approve(context.Background(), 1)
	assert.True(t, models.HasCode(err, models.CodeStorage))
	assert.ErrorContains(t, err, "Storage unavailable")

	_, err = svc.Stats(context.Background())
	assert.True(t, models.HasCode(err, models.CodeStorage))
}

func TestBorrowService_StaleStateIsConflict(t *testing.T) {
	repo := noopLendingRepo()
	repo.transactionFn = func(_ context.Context, _ func(repository.LendingTx) error) error {
		return repository.ErrStaleState
	}
	svc := NewBorrowService(repo, nil, nil)

	_, err := svc.Reject(context.Background(), 1, "duplicate")
	assert.True(t, models.HasCode(err, models.CodeConflict))
}

func TestBorrowService_ListValidatesStatusAndClampsLimit(t *testing.T) {
	repo := noopLendingRepo()
	var got repository.BorrowFilter
	repo.listFn = func(_ context.Context, f repository.BorrowFilter) ([]models.BorrowRequest, error) {
		got = f
		return nil, nil
	}
	svc := NewBorrowService(repo, nil, nil)

	_, err := svc.List(context.Background(), ListBorrowInput{Status: "lost"})
	assert.True(t, models.HasCode(err, models.CodeValidation))

	_, err = svc.List(context.Background(), ListBorrowInput{Status: "approved", Limit: 1000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, models.BorrowStatusApproved, got.Status)
	assert.Equal(t, maxListLimit, got.Limit)
	assert.Zero(t, got.Offset)

	_, err = svc.List(context.Background(), ListBorrowInput{})
	require.NoError(t, err)
	assert.Equal(t, defaultListLimit, got.Limit)
}

func TestBorrowService_LifecycleEventsFlag(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	asset := testutil.CreateAsset(t, db, "AST-1", models.AssetStatusActive)
	req := testutil.CreateBorrowRequest(t, db, asset, models.BorrowStatusPending)
	events := &recordingPublisher{err: errors.New("redis down")}
	svc := NewBorrowService(repository.NewLendingRepository(db, nil), events, featureflags.NewManager("lifecycle_events=off"))

	_, err := svc.Approve(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Empty(t, events.types())
}

func TestBorrowService_PublishFailureDoesNotFailOperation(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	asset := testutil.CreateAsset(t, db, "AST-1", models.AssetStatusActive)
	req := testutil.CreateBorrowRequest(t, db, asset, models.BorrowStatusPending)
	events := &recordingPublisher{err: errors.New("redis down")}
	svc := NewBorrowService(repository.NewLendingRepository(db, nil), events, nil)

	approved, err := svc.Approve(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowStatusApproved, approved.Status)
	require.Len(t, events.types(), 1)
	assert.Equal(t, "AST-1", events.events[0].SerialNumber)
	assert.Equal(t, models.AssetStatusBorrowed, events.events[0].AssetStatus)
}

func TestGenerateBorrowerID(t *testing.T) {
	svc := NewBorrowService(noopLendingRepo(), nil, nil).WithClock(func() time.Time { return fixedNow })
	svc.randN = func(int) int { return 0 }
	assert.Equal(t, "BORR-20240301093015-100", svc.GenerateBorrowerID())
	svc.randN = func(n int) int { return n - 1 }
	assert.Equal(t, "BORR-20240301093015-999", svc.GenerateBorrowerID())
}
