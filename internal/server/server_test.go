package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Jayriel04/MCCAsset2.0/internal/config"
	"github.com/Jayriel04/MCCAsset2.0/internal/models"
	"github.com/Jayriel04/MCCAsset2.0/internal/repository"
	"github.com/Jayriel04/MCCAsset2.0/internal/service"
	"github.com/Jayriel04/MCCAsset2.0/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            "test",
		DBDriver:       config.DriverSQLite,
		DBQueryTimeout: 5 * time.Second,
	}
}

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	s, err := NewServerWithDeps(testConfig(), db, nil)
	require.NoError(t, err)
	return s.NewApp(), db
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp.StatusCode, out
}

func borrowForm(serial string) map[string]any {
	return map[string]any{
		"asset_id":             serial,
		"borrower_name":        "Jane Doe",
		"borrower_department":  "IT",
		"borrower_contact":     "09123456789",
		"borrower_email":       "jane@example.com",
		"purpose":              "Seminar",
		"requested_date":       "2025-01-02",
		"expected_return_date": "2025-01-09",
	}
}

func assetStatus(t *testing.T, db *gorm.DB, serial string) models.AssetStatus {
	t.Helper()
	var asset models.Asset
	require.NoError(t, db.Where("serial_number = ?", serial).First(&asset).Error)
	return asset.Status
}

func TestBorrowLifecycleEndToEnd(t *testing.T) {
	app, db := newTestApp(t)
	testutil.CreateAsset(t, db, "AST-1", models.AssetStatusActive)

	status, body := doJSON(t, app, http.MethodPost, "/api/borrow", borrowForm("AST-1"))
	require.Equal(t, http.StatusCreated, status, body)
	assert.EqualValues(t, 1, body["id"])
	assert.NotEmpty(t, body["borrower_id"])
	assert.NotEmpty(t, body["message"])
	assert.Equal(t, models.AssetStatusActive, assetStatus(t, db, "AST-1"))

	status, body = doJSON(t, app, http.MethodPost, "/api/borrow/1/approve", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "approved", body["status"])
	assert.Equal(t, models.AssetStatusBorrowed, assetStatus(t, db, "AST-1"))

	status, body = doJSON(t, app, http.MethodPost, "/api/borrow/1/return", map[string]any{"actual_return_date": "2025-01-10"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "returned", body["status"])
	assert.Equal(t, "2025-01-10", body["actual_return_date"])
	assert.Equal(t, models.AssetStatusActive, assetStatus(t, db, "AST-1"))

	status, body = doJSON(t, app, http.MethodGet, "/api/borrow/1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "AST-1", body["serial_number"])
	assert.Equal(t, "Asset AST-1", body["asset_name"])
	assert.Equal(t, "2025-01-02", body["requested_date"])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`, body["created_at"])
	assert.Nil(t, body["rejection_reason"])
}

func TestCreateBorrowUnknownAsset(t *testing.T) {
	app, db := newTestApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/api/borrow", borrowForm("AST-999"))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, models.CodeNotFound, body["code"])

	var n int64
	require.NoError(t, db.Model(&models.BorrowRequest{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCreateBorrowUnavailableAssetIsBadRequest(t *testing.T) {
	app, db := newTestApp(t)
	testutil.CreateAsset(t, db, "AST-2", models.AssetStatusMaintenance)

	status, body := doJSON(t, app, http.MethodPost, "/api/borrow", borrowForm("AST-2"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeConflict, body["code"])
	assert.Contains(t, body["error"], "maintenance")
}

func TestCreateBorrowRejectsBadBodies(t *testing.T) {
	app, db := newTestApp(t)
	testutil.CreateAsset(t, db, "AST-1", models.AssetStatusActive)

	withExtra := borrowForm("AST-1")
	withExtra["is_admin"] = true
	status, _ := doJSON(t, app, http.MethodPost, "/api/borrow", withExtra)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/borrow", "{not json")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/borrow", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	sameDay := borrowForm("AST-1")
	sameDay["expected_return_date"] = "2025-01-02"
	status, body := doJSON(t, app, http.MethodPost, "/api/borrow", sameDay)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, body["code"])
	assert.NotEmpty(t, body["details"])
}

func TestTransitionConflictsAndValidation(t *testing.T) {
	app, db := newTestApp(t)
	asset := testutil.CreateAsset(t, db, "AST-1", models.AssetStatusActive)
	testutil.CreateBorrowRequest(t, db, asset, models.BorrowStatusPending)

	status, _ := doJSON(t, app, http.MethodPost, "/api/borrow/1/reject", map[string]any{"reason": ""})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/borrow/1/approve", nil)
	require.Equal(t, http.StatusOK, status)

	status, body := doJSON(t, app, http.MethodPost, "/api/borrow/1/approve", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, models.CodeConflict, body["code"])

	status, _ = doJSON(t, app, http.MethodDelete, "/api/borrow/1", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, body = doJSON(t, app, http.MethodPost, "/api/borrow/1/reject", map[string]any{"reason": ""})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, models.CodeConflict, body["code"])

	status, _ = doJSON(t, app, http.MethodPost, "/api/borrow/abc/approve", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/borrow/77/approve", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListAndStats(t *testing.T) {
	app, db := newTestApp(t)
	first := testutil.CreateAsset(t, db, "AST-1", models.AssetStatusActive)
	second := testutil.CreateAsset(t, db, "AST-2", models.AssetStatusActive)
	testutil.CreateBorrowRequest(t, db, first, models.BorrowStatusRejected)
	testutil.CreateBorrowRequest(t, db, second, models.BorrowStatusPending)

	status, body := doJSON(t, app, http.MethodGet, "/borrow", nil)
	require.Equal(t, http.StatusOK, status)
	records, ok := body["records"].([]any)
	require.True(t, ok)
	assert.Len(t, records, 2)

	status, body = doJSON(t, app, http.MethodGet, "/api/borrow?status=pending", nil)
	require.Equal(t, http.StatusOK, status)
	records = body["records"].([]any)
	require.Len(t, records, 1)
	assert.Equal(t, "AST-2", records[0].(map[string]any)["serial_number"])

	status, _ = doJSON(t, app, http.MethodGet, "/api/borrow?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = doJSON(t, app, http.MethodGet, "/api/borrow/stats", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["total"])
	assert.EqualValues(t, 1, body["pending"])
	assert.EqualValues(t, 1, body["rejected"])

	status, _ = doJSON(t, app, http.MethodDelete, "/api/borrow/1", nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestEditBorrowRequest(t *testing.T) {
	app, db := newTestApp(t)
	asset := testutil.CreateAsset(t, db, "AST-1", models.AssetStatusActive)
	testutil.CreateBorrowRequest(t, db, asset, models.BorrowStatusPending)

	edit := map[string]any{
		"borrower_name":        "<b>John</b> Roe",
		"borrower_department":  "Finance",
		"borrower_contact":     "09123456789",
		"borrower_email":       "john@example.com",
		"purpose":              "Audit",
		"expected_return_date": "2024-01-08",
	}
	status, body := doJSON(t, app, http.MethodPut, "/api/borrow/1", edit)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "John Roe", body["borrower_name"])
	assert.Equal(t, "2024-01-08", body["expected_return_date"])
	assert.Equal(t, "pending", body["status"])
}

func TestAssetEndpoints(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/api/assets", map[string]any{
		"serial_number": "AST-10", "name": "Projector", "department_name": "IT",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "active", body["status"])

	status, _ = doJSON(t, app, http.MethodPost, "/api/assets", map[string]any{
		"serial_number": "AST-10", "name": "Projector",
	})
	assert.Equal(t, http.StatusConflict, status)

	status, body = doJSON(t, app, http.MethodPatch, "/api/assets/AST-10/status", map[string]any{"status": "maintenance"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "maintenance", body["status"])

	status, _ = doJSON(t, app, http.MethodPatch, "/api/assets/AST-10/status", map[string]any{"status": "borrowed"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = doJSON(t, app, http.MethodGet, "/api/assets/stats", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["maintenance"])

	status, _ = doJSON(t, app, http.MethodGet, "/api/assets/AST-404", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthEndpoints(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doJSON(t, app, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "unavailable", body["checks"].(map[string]any)["redis"])

	status, _ = doJSON(t, app, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestEventStreamRequiresUpgrade(t *testing.T) {
	app, _ := newTestApp(t)

	status, _ := doJSON(t, app, http.MethodGet, "/api/ws/events", nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)
}

// MockLendingRepository is a mock of the LendingRepository interface
type MockLendingRepository struct {
	mock.Mock
}

func (m *MockLendingRepository) Transaction(ctx context.Context, fn func(repository.LendingTx) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

func (m *MockLendingRepository) GetByID(ctx context.Context, id uint) (*models.BorrowRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BorrowRequest), args.Error(1)
}

func (m *MockLendingRepository) List(ctx context.Context, filter repository.BorrowFilter) ([]models.BorrowRequest, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BorrowRequest), args.Error(1)
}

func (m *MockLendingRepository) Stats(ctx context.Context) (*models.BorrowStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BorrowStats), args.Error(1)
}

func TestStorageFailureIsServiceUnavailable(t *testing.T) {
	app := fiber.New()
	mockRepo := new(MockLendingRepository)
	s := &Server{borrowService: service.NewBorrowService(mockRepo, nil, nil)}
	app.Get("/borrow/:id", s.GetBorrowRequest)
	app.Post("/borrow/:id/approve", s.ApproveBorrowRequest)

	mockRepo.On("GetByID", mock.Anything, uint(3)).Return(nil, context.DeadlineExceeded)
	mockRepo.On("Transaction", mock.Anything, mock.Anything).Return(io.ErrUnexpectedEOF)

	status, body := doJSON(t, app, http.MethodGet, "/borrow/3", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "Storage unavailable", body["error"])
	assert.NotContains(t, body["error"], "deadline")

	status, body = doJSON(t, app, http.MethodPost, "/borrow/3/approve", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, models.CodeStorage, body["code"])
	mockRepo.AssertExpectations(t)
}
