// Package service implements the asset registry and the borrow request lifecycle.
package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Jayriel04/MCCAsset2.0/internal/models"
	"github.com/Jayriel04/MCCAsset2.0/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrAssetUnavailable is wrapped by the Conflict returned when a borrow
// application targets an asset that is not active.
var ErrAssetUnavailable = errors.New("asset unavailable")

const pgUniqueViolation = "23505"

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func notFound(format string, args ...interface{}) *models.AppError {
	return &models.AppError{Code: models.CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func assetUnavailable(status models.AssetStatus) *models.AppError {
	return &models.AppError{
		Code:    models.CodeConflict,
		Message: fmt.Sprintf("Asset is not available for borrowing (status: %s).", status),
		Err:     ErrAssetUnavailable,
	}
}

// classify converts repository and driver errors into AppErrors. Errors that
// are already AppErrors pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrStaleState):
		return models.NewConflictError("The record was changed by another request. Reload and try again.")
	case isDuplicateKey(err):
		return models.NewConflictError("The change conflicts with an existing record.")
	default:
		return models.NewStorageError(err)
	}
}

// outcome labels an error for the lifecycle metrics.
func outcome(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return strings.ToLower(appErr.Code)
	}
	return "error"
}
