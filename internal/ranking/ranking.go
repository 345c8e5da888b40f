package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/closetline/marketplace/internal/models"
	"github.com/closetline/marketplace/internal/status"
)

const (
	DefaultWindowDays = 30
	DefaultTopN       = 20
)

// Composite weights: trailing sales dominate, current inventory value next,
// raw view traffic last.
var (
	weightSales     = decimal.NewFromFloat(0.50)
	weightShopValue = decimal.NewFromFloat(0.30)
	weightViews     = decimal.NewFromFloat(0.20)
)

// SellerScore is one row of the recommended-sellers listing. It has no
// identity of its own: it is recomputed on every query and discarded after
// the response.
type SellerScore struct {
	SellerID       uint            `json:"seller_id"`
	Username       string          `json:"username"`
	TotalSales     decimal.Decimal `json:"total_sales"`
	TotalShopValue decimal.Decimal `json:"total_shop_value"`
	ProductViews   int64           `json:"product_views"`
	ActiveListings int64           `json:"active_listings"`
	Score          decimal.Decimal `json:"seller_score"`
}

// Engine computes seller rankings straight off the store. It is read-only
// and side-effect free.
type Engine struct {
	DB *gorm.DB
}

// ScoreSellers aggregates per-seller metrics over the trailing window and
// returns at most topN rows ordered by descending composite score.
//
// Sellers with no active, non-deleted listings are excluded outright: a
// seller with nothing to sell cannot be recommended, whatever their history.
// Monetary sums stay in fixed-point decimal throughout; rounding is left to
// the presentation layer.
func (e *Engine) ScoreSellers(ctx context.Context, windowDays, topN int) ([]SellerScore, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	since := time.Now().UTC().AddDate(0, 0, -windowDays)

	rows := map[uint]*SellerScore{}

	// Current inventory: active listing count and shop value. Only sellers
	// present here can appear in the output.
	var listings []models.Product
	if err := e.DB.WithContext(ctx).
		Where("status = ? AND deleted = ?", models.ProductActive, false).
		Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("load active listings: %w", err)
	}
	for i := range listings {
		p := &listings[i]
		row, ok := rows[p.SellerID]
		if !ok {
			row = &SellerScore{
				SellerID:       p.SellerID,
				TotalSales:     decimal.Zero,
				TotalShopValue: decimal.Zero,
			}
			rows[p.SellerID] = row
		}
		row.ActiveListings++
		row.TotalShopValue = row.TotalShopValue.Add(p.Price)
	}
	if len(rows) == 0 {
		return []SellerScore{}, nil
	}

	// Delivered sales inside the window, attributed to the product's seller.
	// Summation happens here rather than in SQL so the figures stay exact
	// decimals on every supported driver.
	type saleRow struct {
		SellerID  uint
		UnitPrice decimal.Decimal
	}
	var sales []saleRow
	if err := e.DB.WithContext(ctx).Table("order_items").
		Select("products.seller_id AS seller_id, order_items.unit_price AS unit_price").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Joins("JOIN products ON products.id = order_items.product_id").
		Where("orders.status = ? AND orders.created_at >= ?", status.Delivered, since).
		Scan(&sales).Error; err != nil {
		return nil, fmt.Errorf("load delivered sales: %w", err)
	}
	for _, sale := range sales {
		if row, ok := rows[sale.SellerID]; ok {
			row.TotalSales = row.TotalSales.Add(sale.UnitPrice)
		}
	}

	// View traffic inside the window across each seller's products.
	type viewRow struct {
		SellerID uint
		Views    int64
	}
	var views []viewRow
	if err := e.DB.WithContext(ctx).Table("product_views").
		Select("products.seller_id AS seller_id, COUNT(product_views.id) AS views").
		Joins("JOIN products ON products.id = product_views.product_id").
		Where("product_views.created_at >= ?", since).
		Group("products.seller_id").
		Scan(&views).Error; err != nil {
		return nil, fmt.Errorf("load product views: %w", err)
	}
	for _, v := range views {
		if row, ok := rows[v.SellerID]; ok {
			row.ProductViews = v.Views
		}
	}

	sellerIDs := make([]uint, 0, len(rows))
	for id := range rows {
		sellerIDs = append(sellerIDs, id)
	}
	var sellers []models.User
	if err := e.DB.WithContext(ctx).Where("id IN ?", sellerIDs).Find(&sellers).Error; err != nil {
		return nil, fmt.Errorf("load sellers: %w", err)
	}
	for _, u := range sellers {
		if row, ok := rows[u.ID]; ok {
			row.Username = u.Username
		}
	}

	scored := make([]SellerScore, 0, len(rows))
	for _, row := range rows {
		row.Score = row.TotalSales.Mul(weightSales).
			Add(row.TotalShopValue.Mul(weightShopValue)).
			Add(decimal.NewFromInt(row.ProductViews).Mul(weightViews))
		scored = append(scored, *row)
	}

	// Descending by score; equal scores fall back to seller ID so the
	// listing is stable between requests.
	sort.Slice(scored, func(i, j int) bool {
		if !scored[i].Score.Equal(scored[j].Score) {
			return scored[i].Score.GreaterThan(scored[j].Score)
		}
		return scored[i].SellerID < scored[j].SellerID
	})

	if len(scored) > topN {
		scored = scored[:topN]
	}
	return scored, nil
}
