package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Jayriel04/MCCAsset2.0/internal/middleware"
	"github.com/Jayriel04/MCCAsset2.0/internal/models"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
)

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary

	// strictJSON rejects bodies carrying fields the target struct does not declare.
	strictJSON = jsoniter.Config{
		EscapeHTML:             true,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
		DisallowUnknownFields:  true,
	}.Froze()
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

const (
	defaultPageSize    = 50
	maxPaginationLimit = 200

	timestampLayout = "2006-01-02 15:04:05"
)

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return Pagination{Limit: limit, Offset: offset}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid borrow request ID"))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// decodeBody strictly decodes the JSON body into dst. On failure it writes a
// 400 response and returns errResponseWritten.
func decodeBody(c *fiber.Ctx, dst any, required bool) error {
	body := c.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		if !required {
			return nil
		}
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Request body is required"))
		return errResponseWritten
	}
	if err := strictJSON.Unmarshal(body, dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body", err.Error()))
		return errResponseWritten
	}
	return nil
}

// statusFor maps an AppError code to its HTTP status.
func statusFor(err error) int {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeConflict:
		return fiber.StatusConflict
	case models.CodeStorage:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError renders err with its mapped status. Errors that are not
// AppErrors are reported as internal; storage and internal causes are logged
// and never sent to the client.
func respondError(c *fiber.Ctx, err error) error {
	return respondErrorWithStatus(c, statusFor(err), err)
}

func respondErrorWithStatus(c *fiber.Ctx, status int, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		err = models.NewInternalError(err)
	}
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err.Error())
	}
	return models.RespondWithError(c, status, err)
}

// requestTimeout bounds the storage work of a request.
func requestTimeout(d time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if d <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), d)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// borrowRecord is the wire shape of a borrow request.
type borrowRecord struct {
	ID                 uint    `json:"id"`
	AssetID            uint    `json:"asset_id"`
	SerialNumber       string  `json:"serial_number"`
	AssetName          string  `json:"asset_name"`
	BorrowerID         string  `json:"borrower_id"`
	BorrowerName       string  `json:"borrower_name"`
	BorrowerEmail      string  `json:"borrower_email"`
	BorrowerDepartment string  `json:"borrower_department"`
	BorrowerContact    string  `json:"borrower_contact"`
	RequestedDate      string  `json:"requested_date"`
	ExpectedReturnDate string  `json:"expected_return_date"`
	ActualReturnDate   *string `json:"actual_return_date"`
	Purpose            string  `json:"purpose"`
	Notes              string  `json:"notes"`
	Status             string  `json:"status"`
	RejectionReason    *string `json:"rejection_reason"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

func toBorrowRecord(r *models.BorrowRequest) borrowRecord {
	out := borrowRecord{
		ID:                 r.ID,
		AssetID:            r.AssetID,
		BorrowerID:         r.BorrowerID,
		BorrowerName:       r.BorrowerName,
		BorrowerEmail:      r.BorrowerEmail,
		BorrowerDepartment: r.BorrowerDepartment,
		BorrowerContact:    r.BorrowerContact,
		RequestedDate:      r.RequestedDate.String(),
		ExpectedReturnDate: r.ExpectedReturnDate.String(),
		Purpose:            r.Purpose,
		Notes:              r.Notes,
		Status:             string(r.Status),
		CreatedAt:          formatTimestamp(r.CreatedAt),
		UpdatedAt:          formatTimestamp(r.UpdatedAt),
	}
	if r.Asset != nil {
		out.SerialNumber = r.Asset.SerialNumber
		out.AssetName = r.Asset.Name
	}
	if r.ActualReturnDate != nil && !r.ActualReturnDate.IsZero() {
		d := r.ActualReturnDate.String()
		out.ActualReturnDate = &d
	}
	if r.RejectionReason != "" {
		reason := r.RejectionReason
		out.RejectionReason = &reason
	}
	return out
}

func toBorrowRecords(rs []models.BorrowRequest) []borrowRecord {
	out := make([]borrowRecord, 0, len(rs))
	for i := range rs {
		out = append(out, toBorrowRecord(&rs[i]))
	}
	return out
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timestampLayout)
}
