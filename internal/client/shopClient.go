package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"zelyx-order-tracker/internal/config"
	"zelyx-order-tracker/internal/dto"
	"zelyx-order-tracker/internal/model"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrEmptyOrder    = errors.New("shop api returned no order")
)

// APIError is a non-2xx or success=false answer from the shop backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("shop api error %d", e.StatusCode)
	}
	return fmt.Sprintf("shop api error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrOrderNotFound && e.StatusCode == http.StatusNotFound
}

type ShopClient interface {
	GetOrder(ctx context.Context, orderNumber string) (*model.Order, error)
	GetOrderTimeout(ctx context.Context, orderNumber string) (*dto.OrderTimeout, error)
	UploadReceipt(ctx context.Context, orderNumber string, file *model.ReceiptFile) error
	AppealReceipt(ctx context.Context, orderNumber string, file *model.ReceiptFile) error

	// admin side, the tracker only sees their effect on the next poll
	ConfirmPayment(ctx context.Context, orderID string) error
	DeclinePayment(ctx context.Context, orderID string, reason string) error
}

type shopClientImpl struct {
	http *resty.Client
}

func NewShopClient(shopCfg *config.Shop) ShopClient {
	httpClient := resty.New().
		SetBaseURL(shopCfg.BaseApiURL).
		SetTimeout(shopCfg.Timeout).
		SetHeader("Accept", "application/json")

	if shopCfg.APIToken != "" {
		httpClient.SetAuthToken(shopCfg.APIToken)
	}

	return &shopClientImpl{
		http: httpClient,
	}
}

func (c *shopClientImpl) GetOrder(ctx context.Context, orderNumber string) (*model.Order, error) {
	var order model.Order
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("orderNumber", orderNumber)

	if err := c.execute(req, http.MethodGet, "/orders/{orderNumber}", &order); err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderNumber, err)
	}
	// success without data would otherwise read as a confirmed non-bank order
	if order.OrderNumber == "" {
		return nil, fmt.Errorf("get order %s: %w", orderNumber, ErrEmptyOrder)
	}

	return &order, nil
}

func (c *shopClientImpl) GetOrderTimeout(ctx context.Context, orderNumber string) (*dto.OrderTimeout, error) {
	var timeout dto.OrderTimeout
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("orderNumber", orderNumber)

	if err := c.execute(req, http.MethodGet, "/orders/{orderNumber}/timeout", &timeout); err != nil {
		return nil, fmt.Errorf("get order timeout %s: %w", orderNumber, err)
	}

	return &timeout, nil
}

func (c *shopClientImpl) UploadReceipt(ctx context.Context, orderNumber string, file *model.ReceiptFile) error {
	if err := c.postReceipt(ctx, "/payments/upload-receipt/{orderNumber}", orderNumber, file); err != nil {
		return fmt.Errorf("upload receipt %s: %w", orderNumber, err)
	}
	return nil
}

func (c *shopClientImpl) AppealReceipt(ctx context.Context, orderNumber string, file *model.ReceiptFile) error {
	if err := c.postReceipt(ctx, "/payments/appeal-receipt/{orderNumber}", orderNumber, file); err != nil {
		return fmt.Errorf("appeal receipt %s: %w", orderNumber, err)
	}
	return nil
}

func (c *shopClientImpl) ConfirmPayment(ctx context.Context, orderID string) error {
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("orderID", orderID)

	if err := c.execute(req, http.MethodPut, "/orders/{orderID}/confirm-payment", nil); err != nil {
		return fmt.Errorf("confirm payment %s: %w", orderID, err)
	}
	return nil
}

func (c *shopClientImpl) DeclinePayment(ctx context.Context, orderID string, reason string) error {
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("orderID", orderID).
		SetBody(&dto.DeclinePaymentRequest{Reason: reason})

	if err := c.execute(req, http.MethodPut, "/orders/{orderID}/decline-payment", nil); err != nil {
		return fmt.Errorf("decline payment %s: %w", orderID, err)
	}
	return nil
}

func (c *shopClientImpl) postReceipt(ctx context.Context, path, orderNumber string, file *model.ReceiptFile) error {
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("orderNumber", orderNumber).
		SetMultipartField("receipt", file.Name, file.MimeType(), bytes.NewReader(file.Data))

	return c.execute(req, http.MethodPost, path, nil)
}

// execute unwraps the {success, data, message} envelope into out.
func (c *shopClientImpl) execute(req *resty.Request, method, path string, out interface{}) error {
	var envelope dto.Envelope
	resp, err := req.
		SetResult(&envelope).
		SetError(&envelope).
		Execute(method, path)
	if err != nil {
		return fmt.Errorf("shop api request: %w", err)
	}

	if resp.IsError() || !envelope.Success {
		message := envelope.Message
		if message == "" && resp.IsError() {
			message = http.StatusText(resp.StatusCode())
		}
		return &APIError{
			StatusCode: resp.StatusCode(),
			Message:    message,
		}
	}

	if out == nil || len(envelope.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode shop api data: %w", err)
	}
	return nil
}
