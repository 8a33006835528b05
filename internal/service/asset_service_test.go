package service

import (
	"context"
	"testing"

	"github.com/Jayriel04/MCCAsset2.0/internal/cache"
	"github.com/Jayriel04/MCCAsset2.0/internal/models"
	"github.com/Jayriel04/MCCAsset2.0/internal/repository"
	"github.com/Jayriel04/MCCAsset2.0/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAssetService(t *testing.T) (*AssetService, *recordingPublisher, *BorrowService) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	_, rdb := testutil.NewMiniRedis(t)
	store := cache.NewStore(rdb)
	lending := repository.NewLendingRepository(db, store)
	events := &recordingPublisher{}
	assets := NewAssetService(repository.NewAssetRepository(db, store), lending, events)
	return assets, events, NewBorrowService(lending, nil, nil)
}

func TestAssetService_CreateAndGet(t *testing.T) {
	svc, _, _ := newAssetService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateAssetInput{SerialNumber: " AST-1 ", Name: "Projector", DepartmentName: "IT"})
	require.NoError(t, err)
	assert.Equal(t, "AST-1", created.SerialNumber)
	assert.Equal(t, models.AssetStatusActive, created.Status)

	got, err := svc.GetBySerial(ctx, "AST-1")
	require.NoError(t, err)
	assert.Equal(t, "Projector", got.Name)

	_, err = svc.Create(ctx, CreateAssetInput{SerialNumber: "AST-1", Name: "Other"})
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeConflict))

	_, err = svc.GetBySerial(ctx, "AST-999")
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestAssetService_CreateRejectsBorrowedStatus(t *testing.T) {
	svc, _, _ := newAssetService(t)

	_, err := svc.Create(context.Background(), CreateAssetInput{SerialNumber: "AST-1", Name: "Laptop", Status: "borrowed"})
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeValidation))
}

func TestAssetService_UpdateStatus(t *testing.T) {
	svc, events, _ := newAssetService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateAssetInput{SerialNumber: "AST-1", Name: "Laptop"})
	require.NoError(t, err)

	// Prime the cache so the update has to invalidate it.
	_, err = svc.GetBySerial(ctx, "AST-1")
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, "AST-1", "Maintenance")
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusMaintenance, updated.Status)

	got, err := svc.GetBySerial(ctx, "AST-1")
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusMaintenance, got.Status)

	_, err = svc.UpdateStatus(ctx, "AST-1", "maintenance")
	require.NoError(t, err)
	assert.Equal(t, []string{models.EventAssetStatus}, events.types(), "a no-op change publishes nothing")

	_, err = svc.UpdateStatus(ctx, "AST-1", "borrowed")
	assert.True(t, models.HasCode(err, models.CodeValidation))

	_, err = svc.UpdateStatus(ctx, "AST-404", "inactive")
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestAssetService_UpdateStatusKeepsLentAssetBorrowed(t *testing.T) {
	svc, _, borrow := newAssetService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateAssetInput{SerialNumber: "AST-1", Name: "Laptop"})
	require.NoError(t, err)

	res, err := borrow.Create(ctx, validInput("AST-1"))
	require.NoError(t, err)
	_, err = borrow.Approve(ctx, res.ID)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, "AST-1", "active")
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeConflict))

	got, err := svc.GetBySerial(ctx, "AST-1")
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusBorrowed, got.Status)
}

func TestAssetService_StatsFollowLifecycle(t *testing.T) {
	svc, _, borrow := newAssetService(t)
	ctx := context.Background()
	for _, serial := range []string{"AST-1", "AST-2", "AST-3"} {
		_, err := svc.Create(ctx, CreateAssetInput{SerialNumber: serial, Name: "Camera"})
		require.NoError(t, err)
	}

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(3), stats.Active)

	res, err := borrow.Create(ctx, validInput("AST-2"))
	require.NoError(t, err)
	_, err = borrow.Approve(ctx, res.ID)
	require.NoError(t, err)

	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Active)
	assert.Equal(t, int64(1), stats.Borrowed)

	list, err := svc.List(ctx, ListAssetsInput{Status: "borrowed"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "AST-2", list[0].SerialNumber)

	_, err = svc.List(ctx, ListAssetsInput{Status: "stolen"})
	assert.True(t, models.HasCode(err, models.CodeValidation))
}
