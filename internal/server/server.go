package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"zelyx-order-tracker/internal/config"
	"zelyx-order-tracker/internal/handler"
	authmw "zelyx-order-tracker/internal/middleware"
	"zelyx-order-tracker/internal/service"
)

type Server struct {
	echo           *echo.Echo
	trackerHandler *handler.TrackerHandler
	adminHandler   *handler.AdminHandler
	adminToken     string
}

func NewServer(trackerService service.TrackerService, httpCfg config.HTTPServer, receiptCfg config.Receipt) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:           e,
		trackerHandler: handler.NewTrackerHandler(trackerService, receiptCfg.MaxSizeBytes),
		adminHandler:   handler.NewAdminHandler(trackerService),
		adminToken:     httpCfg.AdminToken,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- storefront tracking sessions --------
	orders := api.Group("/orders/:orderNumber/sessions")
	orders.POST("", s.trackerHandler.OpenSession)
	orders.GET("/:view", s.trackerHandler.GetSession)
	orders.POST("/:view/refresh", s.trackerHandler.Refresh)
	orders.POST("/:view/receipt", s.trackerHandler.UploadReceipt)
	orders.DELETE("/:view", s.trackerHandler.CloseSession)

	// -------- admin payment review --------
	admin := api.Group("/admin", authmw.AdminAuthMiddleware(s.adminToken))
	admin.PUT("/orders/:orderID/confirm-payment", s.adminHandler.ConfirmPayment)
	admin.PUT("/orders/:orderID/decline-payment", s.adminHandler.DeclinePayment)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
