package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/closetline/marketplace/internal/models"
	"github.com/closetline/marketplace/internal/shipping"
	"github.com/closetline/marketplace/internal/status"
)

type OrderHandler struct {
	DB        *gorm.DB
	Shipping  *shipping.Service
	JWTSecret []byte
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var order models.Order
	if err := h.DB.Preload("Items").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, Response{Status: "error", Message: "order not found"})
		}
		return errorResponse(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) CreateShipment(c echo.Context) error {
	if _, err := GetID(c, h.JWTSecret); err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var req struct {
		PickupAddress string `json:"pickup_address"`
		Carrier       string `json:"carrier"`
	}
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}
	if req.Carrier == "" {
		return c.JSON(http.StatusBadRequest, Response{Status: "error", Message: "carrier is required"})
	}

	shipmentRec, err := h.Shipping.CreateShipment(c.Request().Context(), uint(id), req.PickupAddress, req.Carrier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, Response{Status: "error", Message: "order not found"})
		}
		return errorResponse(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusCreated, shipmentRec)
}

// AdvanceStatus applies one lifecycle transition to an order. The rules
// table decides legality; rejected transitions leave everything untouched.
func (h *OrderHandler) AdvanceStatus(c echo.Context) error {
	if _, err := GetID(c, h.JWTSecret); err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var req struct {
		Status         string `json:"status"`
		TrackingNumber string `json:"tracking_number"`
		TrackingURL    string `json:"tracking_url"`
	}
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	newStatus := status.Status(req.Status)
	if !status.IsValid(newStatus) {
		return c.JSON(http.StatusBadRequest, Response{Status: "error", Message: "unknown status: " + req.Status})
	}

	shipmentRec, err := h.Shipping.AdvanceStatus(c.Request().Context(), uint(id), newStatus, shipping.AdvanceOptions{
		TrackingNumber: req.TrackingNumber,
		TrackingURL:    req.TrackingURL,
	})

	var invalid *status.InvalidTransitionError
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, shipmentRec)
	case errors.As(err, &invalid):
		return c.JSON(http.StatusConflict, Response{Status: "error", Message: invalid.Error()})
	case errors.Is(err, shipping.ErrNoShipment):
		return c.JSON(http.StatusNotFound, Response{Status: "error", Message: err.Error()})
	case errors.Is(err, shipping.ErrStaleStatus):
		return c.JSON(http.StatusConflict, Response{Status: "error", Message: err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.JSON(http.StatusNotFound, Response{Status: "error", Message: "order not found"})
	default:
		return errorResponse(c, http.StatusInternalServerError, err)
	}
}

func (h *OrderHandler) GenerateLabel(c echo.Context) error {
	if _, err := GetID(c, h.JWTSecret); err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	labelURL, err := h.Shipping.GenerateShippingLabel(c.Request().Context(), uint(id))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"label_url": labelURL})
	case errors.Is(err, shipping.ErrNoShipment):
		return c.JSON(http.StatusNotFound, Response{Status: "error", Message: err.Error()})
	case errors.Is(err, shipping.ErrUnknownCarrier):
		return c.JSON(http.StatusUnprocessableEntity, Response{Status: "error", Message: err.Error()})
	default:
		return errorResponse(c, http.StatusInternalServerError, err)
	}
}
