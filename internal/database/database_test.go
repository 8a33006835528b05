package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/Jayriel04/MCCAsset2.0/internal/config"
	"github.com/Jayriel04/MCCAsset2.0/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestLoadMigrations_Ordered(t *testing.T) {
	all := GetMigrations()
	require.Len(t, all, 3)
	for i, m := range all {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpScript)
		assert.NotEmpty(t, m.DownScript)
	}
	assert.Equal(t, "000002_create_borrow_requests", all[1].String())
	assert.Nil(t, GetMigrationByVersion(99))
}

func TestPending_SkipsApplied(t *testing.T) {
	pending := Pending([]int{1})
	require.Len(t, pending, 2)
	assert.Equal(t, 2, pending[0].Version)
}

func TestValidateAppliedVersions_Unknown(t *testing.T) {
	err := validateAppliedVersions([]int{1, 42}, GetMigrations())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000042")
	assert.NoError(t, validateAppliedVersions([]int{1, 2}, GetMigrations()))
}

func TestRunMigrations_AppliesPendingInOrder(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS migration_logs")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "version" FROM "migration_logs"`)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1).AddRow(2))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE UNIQUE INDEX IF NOT EXISTS idx_borrow_requests_open_asset")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "migration_logs"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, RunMigrations(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackMigration_NotApplied(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "version" FROM "migration_logs"`)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))

	err := RollbackMigration(context.Background(), db, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has not been applied")
}

func TestConnect_SQLite(t *testing.T) {
	cfg := &config.Config{
		Env:          "test",
		DBDriver:     config.DriverSQLite,
		DBSQLitePath: "file::memory:",
	}
	db, err := Connect(cfg)
	require.NoError(t, err)

	require.NoError(t, Ping(context.Background(), db))
	assert.True(t, db.Migrator().HasTable(&models.Asset{}))
	assert.True(t, db.Migrator().HasTable(&models.BorrowRequest{}))
}

func TestPing_NilDB(t *testing.T) {
	assert.Error(t, Ping(context.Background(), nil))
}

func TestMigrationStatus_ReportsPending(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS migration_logs")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "version" FROM "migration_logs"`)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))

	applied, pending, err := MigrationStatus(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)
	require.Len(t, pending, 2)
	assert.Equal(t, "000003_one_open_request_per_asset", pending[1].String())
}

func TestConnectWithOptions_SkipsSchema(t *testing.T) {
	cfg := &config.Config{
		Env:          "test",
		DBDriver:     config.DriverSQLite,
		DBSQLitePath: "file::memory:",
	}
	db, err := ConnectWithOptions(cfg, ConnectOptions{})
	require.NoError(t, err)
	assert.False(t, db.Migrator().HasTable(&models.Asset{}))
}
