package model

type Stage string

const (
	StageAwaitingPayment Stage = "AWAITING_PAYMENT"
	StageDeclined        Stage = "DECLINED"
	StageConfirmed       Stage = "CONFIRMED"
	StageProcessing      Stage = "PROCESSING"
	StageDelivered       Stage = "DELIVERED"
	StageExpired         Stage = "EXPIRED"
	StageCancelled       Stage = "CANCELLED"
)

type Action string

const (
	ActionUploadReceipt       Action = "uploadReceipt"
	ActionUploadAppealReceipt Action = "uploadAppealReceipt"
	ActionRefreshStatus       Action = "refreshStatus"
	ActionViewOrderStatus     Action = "viewOrderStatus"
	ActionViewCredentials     Action = "viewCredentials"
)

// View identifies which storefront page a tracking session backs.
type View string

const (
	ViewOrderStatus  View = "order-status"
	ViewBankTransfer View = "bank-transfer"
)

func (v View) Valid() bool {
	return v == ViewOrderStatus || v == ViewBankTransfer
}

// DeriveStage maps the raw snapshot fields onto a lifecycle stage.
//
// delivered and cancelled win over the payment fields; otherwise an
// unconfirmed order is awaiting payment (or declined), and a confirmed one is
// processing or confirmed depending on status.
func DeriveStage(o *Order) Stage {
	switch o.Status {
	case OrderStatusDelivered:
		return StageDelivered
	case OrderStatusCancelled:
		return StageCancelled
	}

	if !o.IsConfirmed() {
		if o.IsDeclined() {
			return StageDeclined
		}
		return StageAwaitingPayment
	}

	if o.Status == OrderStatusProcessing {
		return StageProcessing
	}
	return StageConfirmed
}

var allowedActions = map[Stage][]Action{
	StageAwaitingPayment: {ActionUploadReceipt, ActionRefreshStatus},
	StageDeclined:        {ActionUploadAppealReceipt, ActionRefreshStatus},
	StageConfirmed:       {ActionRefreshStatus, ActionViewOrderStatus},
	StageProcessing:      {ActionRefreshStatus, ActionViewOrderStatus},
	StageDelivered:       {ActionViewCredentials},
	StageExpired:         {ActionRefreshStatus, ActionViewOrderStatus},
	StageCancelled:       {ActionViewOrderStatus},
}

// AllowedActions returns a fresh copy so callers may modify it.
func AllowedActions(stage Stage) []Action {
	actions := allowedActions[stage]
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

func (s Stage) Allows(action Action) bool {
	for _, a := range allowedActions[s] {
		if a == action {
			return true
		}
	}
	return false
}

// IsTerminal stages end scheduled polling. EXPIRED still allows a manual refresh
// since the server may yet cancel or confirm the order.
func (s Stage) IsTerminal() bool {
	switch s {
	case StageDelivered, StageExpired, StageCancelled:
		return true
	}
	return false
}

// PaymentSettled reports whether the payment part of the lifecycle is over,
// i.e. the bank transfer page has nothing more to show.
func (s Stage) PaymentSettled() bool {
	switch s {
	case StageConfirmed, StageProcessing, StageDelivered:
		return true
	}
	return false
}
