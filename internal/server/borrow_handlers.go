package server

import (
	"errors"

	"github.com/Jayriel04/MCCAsset2.0/internal/service"

	"github.com/gofiber/fiber/v2"
)

// createBorrowBody is the borrow application form. asset_id carries the
// asset's serial number.
type createBorrowBody struct {
	AssetID            string `json:"asset_id"`
	BorrowerID         string `json:"borrower_id"`
	BorrowerName       string `json:"borrower_name"`
	BorrowerDepartment string `json:"borrower_department"`
	BorrowerContact    string `json:"borrower_contact"`
	BorrowerEmail      string `json:"borrower_email"`
	Purpose            string `json:"purpose"`
	Notes              string `json:"notes"`
	RequestedDate      string `json:"requested_date"`
	ExpectedReturnDate string `json:"expected_return_date"`
}

type editBorrowBody struct {
	BorrowerName       string `json:"borrower_name"`
	BorrowerDepartment string `json:"borrower_department"`
	BorrowerContact    string `json:"borrower_contact"`
	BorrowerEmail      string `json:"borrower_email"`
	Purpose            string `json:"purpose"`
	Notes              string `json:"notes"`
	RequestedDate      string `json:"requested_date"`
	ExpectedReturnDate string `json:"expected_return_date"`
}

type rejectBody struct {
	Reason string `json:"reason"`
}

type returnBody struct {
	ActualReturnDate string `json:"actual_return_date"`
}

// CreateBorrowRequest handles POST /api/borrow
// @Summary Submit a borrow application
// @Tags borrow
// @Accept json
// @Produce json
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /borrow [post]
func (s *Server) CreateBorrowRequest(c *fiber.Ctx) error {
	var body createBorrowBody
	if err := decodeBody(c, &body, true); err != nil {
		return nil
	}

	res, err := s.borrowService.Create(c.UserContext(), service.CreateBorrowInput{
		AssetSerial:        body.AssetID,
		BorrowerID:         body.BorrowerID,
		BorrowerName:       body.BorrowerName,
		BorrowerDepartment: body.BorrowerDepartment,
		BorrowerContact:    body.BorrowerContact,
		BorrowerEmail:      body.BorrowerEmail,
		Purpose:            body.Purpose,
		Notes:              body.Notes,
		RequestedDate:      body.RequestedDate,
		ExpectedReturnDate: body.ExpectedReturnDate,
	})
	if err != nil {
		// Existing clients treat an unavailable asset as a bad application.
		if errors.Is(err, service.ErrAssetUnavailable) {
			return respondErrorWithStatus(c, fiber.StatusBadRequest, err)
		}
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":          res.ID,
		"borrower_id": res.BorrowerID,
		"message":     "Borrow application submitted successfully.",
	})
}

// ListBorrowRequests handles GET /api/borrow
// @Summary List borrow requests, newest first
// @Tags borrow
// @Produce json
// @Param status query string false "pending, approved, rejected or returned"
// @Param borrower_id query string false "borrower identifier"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} map[string]interface{}
// @Router /borrow [get]
func (s *Server) ListBorrowRequests(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	records, err := s.borrowService.List(c.UserContext(), service.ListBorrowInput{
		Status:     c.Query("status"),
		BorrowerID: c.Query("borrower_id"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"records": toBorrowRecords(records)})
}

// GetBorrowStats handles GET /api/borrow/stats
// @Summary Count borrow requests per status
// @Tags borrow
// @Produce json
// @Success 200 {object} models.BorrowStats
// @Router /borrow/stats [get]
func (s *Server) GetBorrowStats(c *fiber.Ctx) error {
	stats, err := s.borrowService.Stats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// GetBorrowRequest handles GET /api/borrow/:id
// @Summary Get one borrow request
// @Tags borrow
// @Produce json
// @Param id path int true "request ID"
// @Success 200 {object} borrowRecord
// @Failure 404 {object} models.ErrorResponse
// @Router /borrow/{id} [get]
func (s *Server) GetBorrowRequest(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	req, err := s.borrowService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toBorrowRecord(req))
}

// UpdateBorrowRequest handles PUT /api/borrow/:id
// @Summary Edit the borrower details of a pending or approved request
// @Tags borrow
// @Accept json
// @Produce json
// @Param id path int true "request ID"
// @Success 200 {object} borrowRecord
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /borrow/{id} [put]
func (s *Server) UpdateBorrowRequest(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var body editBorrowBody
	if err := decodeBody(c, &body, true); err != nil {
		return nil
	}

	req, err := s.borrowService.Edit(c.UserContext(), id, service.EditBorrowInput(body))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toBorrowRecord(req))
}

// ApproveBorrowRequest handles POST /api/borrow/:id/approve
// @Summary Approve a pending request and mark its asset borrowed
// @Tags borrow
// @Produce json
// @Param id path int true "request ID"
// @Success 200 {object} borrowRecord
// @Failure 409 {object} models.ErrorResponse
// @Router /borrow/{id}/approve [post]
func (s *Server) ApproveBorrowRequest(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	req, err := s.borrowService.Approve(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toBorrowRecord(req))
}

// RejectBorrowRequest handles POST /api/borrow/:id/reject
// @Summary Reject a pending request with a reason
// @Tags borrow
// @Accept json
// @Produce json
// @Param id path int true "request ID"
// @Success 200 {object} borrowRecord
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /borrow/{id}/reject [post]
func (s *Server) RejectBorrowRequest(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var body rejectBody
	if err := decodeBody(c, &body, true); err != nil {
		return nil
	}
	req, err := s.borrowService.Reject(c.UserContext(), id, body.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toBorrowRecord(req))
}

// ReturnBorrowRequest handles POST /api/borrow/:id/return
// @Summary Record the return of an approved request
// @Tags borrow
// @Accept json
// @Produce json
// @Param id path int true "request ID"
// @Success 200 {object} borrowRecord
// @Failure 409 {object} models.ErrorResponse
// @Router /borrow/{id}/return [post]
func (s *Server) ReturnBorrowRequest(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var body returnBody
	if err := decodeBody(c, &body, false); err != nil {
		return nil
	}
	req, err := s.borrowService.MarkReturned(c.UserContext(), id, body.ActualReturnDate)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toBorrowRecord(req))
}

// DeleteBorrowRequest handles DELETE /api/borrow/:id
// @Summary Delete a rejected request
// @Tags borrow
// @Param id path int true "request ID"
// @Success 204
// @Failure 409 {object} models.ErrorResponse
// @Router /borrow/{id} [delete]
func (s *Server) DeleteBorrowRequest(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.borrowService.Delete(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

