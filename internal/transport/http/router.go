package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/closetline/marketplace/internal/handlers"
)

type Deps struct {
	DB             *gorm.DB
	OrderHandler   *handlers.OrderHandler
	SellerHandler  *handlers.SellerHandler
	ProductHandler *handlers.ProductHandler
	SearchHandler  *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.GET("/sellers/recommended", d.SellerHandler.RecommendedSellers)

	products := v1.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)

	if d.SearchHandler != nil {
		v1.GET("/search", d.SearchHandler.Search)
	}

	orders := v1.Group("/orders")
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.POST("/:id/shipment", d.OrderHandler.CreateShipment)
	orders.POST("/:id/shipment/label", d.OrderHandler.GenerateLabel)
	orders.POST("/:id/status", d.OrderHandler.AdvanceStatus)
}
