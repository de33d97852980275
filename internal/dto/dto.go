package dto

import (
	"encoding/json"
	"time"

	"zelyx-order-tracker/internal/model"
)

// Envelope is the wrapper every shop backend response uses.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

type OrderTimeout struct {
	TimeRemainingMs int64 `json:"timeRemainingMs"`
	Expired         bool  `json:"expired"`
}

func (t OrderTimeout) Remaining() time.Duration {
	if t.Expired || t.TimeRemainingMs < 0 {
		return 0
	}
	return time.Duration(t.TimeRemainingMs) * time.Millisecond
}

type DeclinePaymentRequest struct {
	Reason string `json:"reason"`
}

type OpenSessionResponse struct {
	SessionID   string      `json:"session_id"`
	OrderNumber string      `json:"order_number"`
	View        model.View  `json:"view"`
	Stage       model.Stage `json:"stage"`
}

type Countdown struct {
	Known       bool    `json:"known"`
	RemainingMs int64   `json:"remaining_ms"`
	Expired     bool    `json:"expired"`
	Progress    float64 `json:"progress"`
}

type Toast struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionView struct {
	SessionID       string         `json:"session_id"`
	OrderNumber     string         `json:"order_number"`
	View            model.View     `json:"view"`
	OpenedAt        time.Time      `json:"opened_at"`
	Stage           model.Stage    `json:"stage"`
	Actions         []model.Action `json:"actions"`
	Order           *model.Order   `json:"order"`
	Countdown       Countdown      `json:"countdown"`
	Polling         bool           `json:"polling"`
	ReceiptUploaded bool           `json:"receipt_uploaded"`
	UploadState     string         `json:"upload_state"`
	NavigateTo      model.View     `json:"navigate_to,omitempty"`
	LastError       string         `json:"last_error,omitempty"`
	Toasts          []Toast        `json:"toasts"`
}
