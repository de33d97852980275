package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"zelyx-order-tracker/internal/dto"
	"zelyx-order-tracker/internal/service"
)

type AdminHandler struct {
	trackerService service.TrackerService
}

func NewAdminHandler(trackerService service.TrackerService) *AdminHandler {
	return &AdminHandler{
		trackerService: trackerService,
	}
}

func (h *AdminHandler) ConfirmPayment(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.trackerService.ConfirmPayment(ctx, c.Param("orderID")); err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "confirmed"})
}

func (h *AdminHandler) DeclinePayment(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.DeclinePaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Reason == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reason is required")
	}

	if err := h.trackerService.DeclinePayment(ctx, c.Param("orderID"), req.Reason); err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "declined"})
}
