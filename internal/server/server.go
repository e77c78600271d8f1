package server

import (
	"context"
	"mpesa-checkout-service/internal/config"
	"mpesa-checkout-service/internal/handler"
	authmw "mpesa-checkout-service/internal/middleware"
	"mpesa-checkout-service/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

type Services struct {
	Checkout service.CheckoutService
	Orders   service.OrderService
	Status   service.StatusService
	Callback service.CallbackService
}

type Server struct {
	echo         *echo.Echo
	cfg          *config.Config
	orderHandler *handler.OrderHandler
	mpesaHandler *handler.MpesaHandler
}

func NewServer(cfg *config.Config, services Services) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler

	e.Use(middleware.RequestLoggerWithConfig(requestLoggerConfig()))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:         e,
		cfg:          cfg,
		orderHandler: handler.NewOrderHandler(services.Checkout, services.Orders, services.Status),
		mpesaHandler: handler.NewMpesaHandler(services.Callback),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	orders := api.Group("/orders")
	orders.POST("", s.orderHandler.CreateOrder)

	// -------- staff --------
	orders.GET("/admin/all", s.orderHandler.ListOrders,
		authmw.JWTAuth(s.cfg.Auth.JWTSecret),
		authmw.RequireRole("admin", "manager"),
	)

	orders.GET("/customer/:email", s.orderHandler.ListCustomerOrders)
	orders.GET("/status/:checkoutRequestID", s.orderHandler.GetStatus,
		middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStore(rate.Limit(s.cfg.HTTP.StatusRateLimit)),
		}),
	)

	// -------- mpesa callbacks --------
	orders.POST("/mpesa/callback", s.mpesaHandler.Callback)

	orders.GET("/:orderNumber", s.orderHandler.GetOrder)
	orders.GET("/:orderNumber/receipt", s.orderHandler.GetReceipt)
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
