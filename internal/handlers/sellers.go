package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/closetline/marketplace/internal/ranking"
)

type SellerHandler struct {
	Ranking *ranking.Engine
}

type recommendedSeller struct {
	SellerID       uint   `json:"seller_id"`
	Username       string `json:"username"`
	TotalSales     string `json:"total_sales"`
	TotalShopValue string `json:"total_shop_value"`
	ProductViews   int64  `json:"product_views"`
	ActiveListings int64  `json:"active_listings"`
	SellerScore    string `json:"seller_score"`
}

// RecommendedSellers serves the ranked seller listing. Scores are computed
// in full precision and rounded to two decimals only here.
func (h *SellerHandler) RecommendedSellers(c echo.Context) error {
	windowDays := parseIntDefault(c.QueryParam("window_days"), ranking.DefaultWindowDays)
	limit := parseIntDefault(c.QueryParam("limit"), ranking.DefaultTopN)

	rows, err := h.Ranking.ScoreSellers(c.Request().Context(), windowDays, limit)
	if err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	out := make([]recommendedSeller, len(rows))
	for i, row := range rows {
		out[i] = recommendedSeller{
			SellerID:       row.SellerID,
			Username:       row.Username,
			TotalSales:     row.TotalSales.StringFixed(2),
			TotalShopValue: row.TotalShopValue.StringFixed(2),
			ProductViews:   row.ProductViews,
			ActiveListings: row.ActiveListings,
			SellerScore:    row.Score.StringFixed(2),
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"sellers": out})
}
