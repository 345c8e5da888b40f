package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/closetline/marketplace/internal/logging"
	"github.com/closetline/marketplace/internal/models"
	"github.com/closetline/marketplace/internal/util"
)

type ProductHandler struct {
	DB *gorm.DB
}

// GetProduct returns one listing and records the view for the seller-score
// window. A failed view insert never fails the read.
func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var product models.Product
	if err := h.DB.Where("id = ? AND deleted = ?", id, false).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, Response{Status: "error", Message: "product not found"})
		}
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	view := models.ProductView{ProductID: product.ID, CreatedAt: time.Now().UTC()}
	if err := h.DB.Create(&view).Error; err != nil {
		logging.FromContext(c.Request().Context()).Warn("record product view failed", "product_id", product.ID, "error", err)
	}

	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)

	offset, limit := util.Calculate(page, size)

	q := h.DB.Model(&models.Product{}).Where("status = ? AND deleted = ?", models.ProductActive, false)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	var items []models.Product
	if err := q.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}
