package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"zelyx-order-tracker/internal/client"
	"zelyx-order-tracker/internal/model"
	"zelyx-order-tracker/internal/receipt"
	"zelyx-order-tracker/internal/service"
)

// where the storefront sends customers whose order does not exist
const ordersListingPath = "/orders"

type TrackerHandler struct {
	trackerService service.TrackerService
	maxReceiptSize int64
}

func NewTrackerHandler(trackerService service.TrackerService, maxReceiptSize int64) *TrackerHandler {
	return &TrackerHandler{
		trackerService: trackerService,
		maxReceiptSize: maxReceiptSize,
	}
}

func viewParam(c echo.Context, name string) model.View {
	if name == "" {
		return model.View(c.QueryParam("view"))
	}
	return model.View(c.Param(name))
}

func (h *TrackerHandler) OpenSession(c echo.Context) error {
	ctx := c.Request().Context()
	orderNumber := c.Param("orderNumber")

	view := viewParam(c, "")
	if view == "" {
		view = model.ViewOrderStatus
	}

	resp, err := h.trackerService.OpenSession(ctx, orderNumber, view)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, resp)
}

func (h *TrackerHandler) GetSession(c echo.Context) error {
	ctx := c.Request().Context()

	out, err := h.trackerService.GetSessionView(ctx, c.Param("orderNumber"), viewParam(c, "view"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *TrackerHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	out, err := h.trackerService.Refresh(ctx, c.Param("orderNumber"), viewParam(c, "view"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *TrackerHandler) UploadReceipt(c echo.Context) error {
	ctx := c.Request().Context()

	file, err := h.readReceipt(c)
	if err != nil {
		return err
	}

	out, err := h.trackerService.SubmitReceipt(ctx, c.Param("orderNumber"), viewParam(c, "view"), file)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *TrackerHandler) CloseSession(c echo.Context) error {
	if err := h.trackerService.CloseSession(c.Param("orderNumber"), viewParam(c, "view")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// readReceipt returns a nil file when the form has none, the service decides
// what that means.
func (h *TrackerHandler) readReceipt(c echo.Context) (*model.ReceiptFile, error) {
	header, err := c.FormFile("receipt")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}

	if h.maxReceiptSize > 0 && header.Size > h.maxReceiptSize {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("receipt exceeds %d bytes", h.maxReceiptSize))
	}

	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open receipt: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read receipt: %w", err)
	}

	return &model.ReceiptFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func toHTTPError(err error) error {
	var apiErr *client.APIError

	switch {
	case errors.Is(err, client.ErrOrderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, map[string]string{
			"message":     "order not found",
			"redirect_to": ordersListingPath,
		})
	case errors.Is(err, service.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidView),
		errors.Is(err, receipt.ErrNoFileSelected):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrActionNotAllowed),
		errors.Is(err, receipt.ErrUploadInProgress),
		errors.Is(err, receipt.ErrAppealLimitReached):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrTooManySessions):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &apiErr):
		return echo.NewHTTPError(http.StatusBadGateway, apiErr.Error())
	}

	return echo.NewHTTPError(http.StatusBadGateway, err.Error()).SetInternal(err)
}
