// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/Jayriel04/MCCAsset2.0/internal/config"
	"github.com/Jayriel04/MCCAsset2.0/internal/database"
	"github.com/Jayriel04/MCCAsset2.0/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens a private in-memory SQLite database with the full schema.
// The pool is pinned to one connection so every query sees the same database.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.ApplySchema(context.Background(), db, config.DriverSQLite))
	return db
}

// CreateAsset inserts an asset with the given serial and status.
func CreateAsset(t testing.TB, db *gorm.DB, serial string, status models.AssetStatus) *models.Asset {
	t.Helper()
	asset := &models.Asset{
		SerialNumber:   serial,
		Name:           "Asset " + serial,
		DepartmentName: "IT",
		Status:         status,
	}
	require.NoError(t, db.Create(asset).Error)
	return asset
}

// CreateBorrowRequest inserts a request for asset in the given status.
func CreateBorrowRequest(t testing.TB, db *gorm.DB, asset *models.Asset, status models.BorrowStatus) *models.BorrowRequest {
	t.Helper()
	requested, _ := models.ParseDate("2024-01-01")
	expected, _ := models.ParseDate("2024-01-05")
	req := &models.BorrowRequest{
		AssetID:            asset.ID,
		BorrowerID:         "BORR-TEST",
		BorrowerName:       "Jane Doe",
		BorrowerDepartment: "IT",
		BorrowerContact:    "09123456789",
		BorrowerEmail:      "jane@example.com",
		Purpose:            "Testing",
		RequestedDate:      requested,
		ExpectedReturnDate: expected,
		Status:             status,
	}
	require.NoError(t, db.Create(req).Error)
	return req
}

// NewMiniRedis starts an in-process Redis and a client connected to it.
func NewMiniRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}
