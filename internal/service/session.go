package service

import (
	"context"
	"sync"
	"time"

	"zelyx-order-tracker/internal/countdown"
	"zelyx-order-tracker/internal/dto"
	"zelyx-order-tracker/internal/lifecycle"
	"zelyx-order-tracker/internal/model"
	"zelyx-order-tracker/internal/notify"
	"zelyx-order-tracker/internal/polling"
	"zelyx-order-tracker/internal/receipt"
)

// session is one open storefront view of one order. It owns every timer
// running for that view.
type session struct {
	id          string
	orderNumber string
	view        model.View
	openedAt    time.Time

	machine   *lifecycle.Machine
	countdown *countdown.Countdown
	poller    *polling.Controller
	receipt   *receipt.Flow
	toasts    *notify.Feed

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	lastSeen   time.Time
	navigateTo model.View
	closed     bool
}

func sessionKey(orderNumber string, view model.View) string {
	return string(view) + ":" + orderNumber
}

func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.poller.Stop()
	s.countdown.Stop()
	s.cancel()
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.lastSeen) {
		s.lastSeen = now
	}
}

func (s *session) lastSeenAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *session) setNavigate(view model.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigateTo = view
}

func (s *session) openResponse() *dto.OpenSessionResponse {
	return &dto.OpenSessionResponse{
		SessionID:   s.id,
		OrderNumber: s.orderNumber,
		View:        s.view,
		Stage:       s.machine.Stage(),
	}
}

// snapshot renders the view state and drains pending toasts.
func (s *session) snapshot() *dto.SessionView {
	state := s.countdown.State()

	s.mu.Lock()
	navigateTo := s.navigateTo
	s.mu.Unlock()

	out := &dto.SessionView{
		SessionID:   s.id,
		OrderNumber: s.orderNumber,
		View:        s.view,
		OpenedAt:    s.openedAt,
		Stage:       s.machine.Stage(),
		Actions:     s.machine.Actions(),
		Order:       s.machine.Order(),
		Countdown: dto.Countdown{
			Known:       state.Known,
			RemainingMs: state.Remaining.Milliseconds(),
			Expired:     state.Expired,
			Progress:    state.Progress,
		},
		Polling:         s.poller.Running(),
		ReceiptUploaded: s.machine.ReceiptUploaded(),
		UploadState:     string(s.receipt.State()),
		NavigateTo:      navigateTo,
	}

	if err := s.machine.LastError(); err != nil {
		out.LastError = err.Error()
	}

	for _, t := range s.toasts.Drain() {
		out.Toasts = append(out.Toasts, dto.Toast{
			ID:        t.ID,
			Level:     string(t.Level),
			Message:   t.Message,
			CreatedAt: t.CreatedAt,
		})
	}
	if out.Toasts == nil {
		out.Toasts = []dto.Toast{}
	}

	return out
}

// pollingDone reports whether the view has nothing left to wait for.
func pollingDone(view model.View, stage model.Stage) bool {
	if stage.IsTerminal() {
		return true
	}
	return view == model.ViewBankTransfer && stage.PaymentSettled()
}

func needsCountdown(order *model.Order, stage model.Stage) bool {
	if !order.IsBankDeposit() {
		return false
	}
	return stage == model.StageAwaitingPayment || stage == model.StageDeclined
}
