package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodBankDeposit PaymentMethod = "bank_deposit"
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodOther       PaymentMethod = "other"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusDeclined  PaymentStatus = "declined"
	PaymentStatusFailed    PaymentStatus = "failed"
)

const (
	DeliveryTypeAuto   = "auto"
	DeliveryTypeManual = "manual"
)

// Order is the client-side snapshot of one order as reported by the shop backend.
// It is never created or destroyed here, only fetched and replaced as a whole.
type Order struct {
	ID                  string               `json:"_id,omitempty"`
	OrderNumber         string               `json:"orderNumber"`
	Status              OrderStatus          `json:"status"`
	PaymentMethod       PaymentMethod        `json:"paymentMethod"`
	PaymentStatus       PaymentStatus        `json:"paymentStatus"`
	PaymentConfirmed    bool                 `json:"paymentConfirmed"`
	Total               decimal.Decimal      `json:"total"`
	Currency            string               `json:"currency"`
	Items               []OrderItem          `json:"items"`
	Receipt             string               `json:"receipt,omitempty"`
	ReceiptVerification *ReceiptVerification `json:"receiptVerification,omitempty"`
	CreatedAt           time.Time            `json:"createdAt,omitempty"`
}

type OrderItem struct {
	Title          string          `json:"title"`
	Quantity       int32           `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	DeliveryType   string          `json:"deliveryType,omitempty"` // auto, manual
	DeliveryStatus string          `json:"deliveryStatus"`
	Credentials    string          `json:"credentials,omitempty"`
	ManualDelivery *ManualDelivery `json:"manualDelivery,omitempty"`
}

type ManualDelivery struct {
	DeliveredBy string    `json:"deliveredBy"`
	DeliveredAt time.Time `json:"deliveredAt"`
	Note        string    `json:"note,omitempty"`
}

type ReceiptVerification struct {
	Status        string     `json:"status"`
	DeclineReason string     `json:"declineReason,omitempty"`
	AdminName     string     `json:"adminName,omitempty"`
	VerifiedAt    *time.Time `json:"verifiedAt,omitempty"`
}

func (o *Order) IsBankDeposit() bool {
	return o.PaymentMethod == PaymentMethodBankDeposit
}

// IsConfirmed treats every non bank deposit order as confirmed: card and other
// methods are settled by the gateway before the order reaches the tracker.
func (o *Order) IsConfirmed() bool {
	return o.PaymentConfirmed || !o.IsBankDeposit()
}

func (o *Order) IsDeclined() bool {
	return o.PaymentStatus == PaymentStatusDeclined
}

func (o *Order) HasReceipt() bool {
	return o.Receipt != ""
}

// Validate reports the first broken snapshot invariant. The backend stays
// authoritative, so callers log the result instead of rejecting the order.
func (o *Order) Validate() error {
	if o.OrderNumber == "" {
		return fmt.Errorf("order number is empty")
	}

	if o.PaymentConfirmed &&
		o.PaymentStatus != PaymentStatusConfirmed &&
		o.PaymentStatus != PaymentStatusPaid {
		return fmt.Errorf("order %s: paymentConfirmed set but paymentStatus is %q", o.OrderNumber, o.PaymentStatus)
	}

	if o.Status == OrderStatusDelivered {
		for i, item := range o.Items {
			if item.DeliveryType == DeliveryTypeManual {
				continue
			}
			if item.Credentials == "" && item.ManualDelivery == nil {
				return fmt.Errorf("order %s: delivered but item %d (%s) has no credentials", o.OrderNumber, i, item.Title)
			}
		}
	}

	return nil
}
