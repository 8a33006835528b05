package server

import (
	"github.com/Jayriel04/MCCAsset2.0/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createAssetBody struct {
	SerialNumber   string `json:"serial_number"`
	Name           string `json:"name"`
	DepartmentName string `json:"department_name"`
	Status         string `json:"status"`
}

type assetStatusBody struct {
	Status string `json:"status"`
}

// CreateAsset handles POST /api/assets
// @Summary Register an asset
// @Tags assets
// @Accept json
// @Produce json
// @Success 201 {object} models.Asset
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /assets [post]
func (s *Server) CreateAsset(c *fiber.Ctx) error {
	var body createAssetBody
	if err := decodeBody(c, &body, true); err != nil {
		return nil
	}
	asset, err := s.assetService.Create(c.UserContext(), service.CreateAssetInput(body))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(asset)
}

// ListAssets handles GET /api/assets
// @Summary List assets by serial number
// @Tags assets
// @Produce json
// @Param status query string false "asset status"
// @Param q query string false "search serial, name or department"
// @Success 200 {object} map[string]interface{}
// @Router /assets [get]
func (s *Server) ListAssets(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	assets, err := s.assetService.List(c.UserContext(), service.ListAssetsInput{
		Status: c.Query("status"),
		Search: c.Query("q"),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"records": assets})
}

// GetAssetStats handles GET /api/assets/stats
// @Summary Count assets per status
// @Tags assets
// @Produce json
// @Success 200 {object} models.AssetStats
// @Router /assets/stats [get]
func (s *Server) GetAssetStats(c *fiber.Ctx) error {
	stats, err := s.assetService.Stats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// GetAsset handles GET /api/assets/:serial
// @Summary Get an asset by serial number
// @Tags assets
// @Produce json
// @Param serial path string true "serial number"
// @Success 200 {object} models.Asset
// @Failure 404 {object} models.ErrorResponse
// @Router /assets/{serial} [get]
func (s *Server) GetAsset(c *fiber.Ctx) error {
	asset, err := s.assetService.GetBySerial(c.UserContext(), c.Params("serial"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(asset)
}

// UpdateAssetStatus handles PATCH /api/assets/:serial/status
// @Summary Set an asset's manual status
// @Tags assets
// @Accept json
// @Produce json
// @Param serial path string true "serial number"
// @Success 200 {object} models.Asset
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /assets/{serial}/status [patch]
func (s *Server) UpdateAssetStatus(c *fiber.Ctx) error {
	var body assetStatusBody
	if err := decodeBody(c, &body, true); err != nil {
		return nil
	}
	asset, err := s.assetService.UpdateStatus(c.UserContext(), c.Params("serial"), body.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(asset)
}
