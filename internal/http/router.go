// README: HTTP router registration for the local agent API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"delivery/internal/http/handlers"
	"delivery/internal/http/middleware"
	"delivery/internal/modules/cart"
	"delivery/internal/modules/location"
	"delivery/internal/modules/order"
)

// Deps holds what the routes need. Nil members leave their routes out, so a
// customer-only agent does not expose driver or merchant endpoints.
type Deps struct {
	Cart      *cart.Service
	Addresses handlers.AddressBook
	Quoter    handlers.Quoter
	Submitter handlers.OrderSubmitter
	Payments  handlers.PaymentCatalog

	Watchers []*order.Watcher

	Availability *location.Availability
	Reporter     *location.Reporter
	DriverSource *order.DriverSource

	MerchantOrders handlers.OrderLister

	Token string
	Log   *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logging(log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(d.Token))

	if d.Cart != nil {
		ch := handlers.NewCartHandler(d.Cart)
		api.GET("/cart", ch.Get)
		api.DELETE("/cart", ch.Clear)
		api.POST("/cart/items", ch.Add)
		api.DELETE("/cart/items/:id", ch.Remove)
		api.POST("/cart/replace", ch.ConfirmReplace)
		api.DELETE("/cart/replace", ch.CancelReplace)

		if d.Quoter != nil && d.Submitter != nil && d.Addresses != nil {
			co := handlers.NewCheckoutHandler(d.Cart, d.Addresses, d.Quoter, d.Submitter, d.Payments)
			api.POST("/checkout/quote", co.Quote)
			api.POST("/checkout", co.Submit)
			if d.Payments != nil {
				api.GET("/checkout/payment-methods", co.PaymentMethods)
			}
		}
	}

	if len(d.Watchers) > 0 {
		wh := handlers.NewWatcherHandler(d.Watchers...)
		api.GET("/watchers/:role", wh.Get)
		api.GET("/watchers/:role/events", wh.Events)
		api.POST("/watchers/:role/accept", wh.Accept)
		api.POST("/watchers/:role/reject", wh.Reject)
	}

	if d.Availability != nil && d.Reporter != nil && d.DriverSource != nil {
		dh := handlers.NewDriverHandler(d.Availability, d.Reporter, d.DriverSource)
		api.GET("/driver/availability", dh.GetAvailability)
		api.POST("/driver/availability", dh.SetAvailability)
		api.PUT("/driver/position", dh.PutPosition)
		api.GET("/driver/orders", dh.Orders)
	}

	if d.MerchantOrders != nil {
		mh := handlers.NewMerchantHandler(d.MerchantOrders)
		api.GET("/merchant/dashboard", mh.Dashboard)
	}
	return r
}
