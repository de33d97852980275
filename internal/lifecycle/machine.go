// Package lifecycle holds the payment confirmation state of one tracked order.
//
// The stage only changes when a fresh snapshot arrives from the backend (or,
// for EXPIRED, when the countdown runs out). Fetch failures are recorded but
// never move the stage.
package lifecycle

import (
	"sync"
	"time"

	"zelyx-order-tracker/internal/model"
)

type Machine struct {
	mu      sync.RWMutex
	order   *model.Order
	stage   model.Stage
	lastErr error

	// display hint, never written into order
	receiptUploaded   bool
	receiptUploadedAt time.Time
	appeals           int
}

func NewMachine() *Machine {
	return &Machine{}
}

// Apply replaces the snapshot and returns the stage before and after.
func (m *Machine) Apply(order *model.Order) (prev, next model.Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev = m.stage
	next = model.DeriveStage(order)

	// the server keeps reporting an unpaid order after the local deadline
	if prev == model.StageExpired && next == model.StageAwaitingPayment {
		next = model.StageExpired
	}

	m.order = order
	m.stage = next
	m.lastErr = nil
	m.reconcileHint(prev, next)

	return prev, next
}

// reconcileHint drops the optimistic upload flag once the snapshot can speak
// for itself, or when an admin decision arrived after the upload.
func (m *Machine) reconcileHint(prev, next model.Stage) {
	if !m.receiptUploaded {
		return
	}

	if next != model.StageAwaitingPayment && next != model.StageDeclined {
		m.receiptUploaded = false
		return
	}

	if next == model.StageDeclined && prev != model.StageDeclined {
		m.receiptUploaded = false
		return
	}

	if v := m.order.ReceiptVerification; v != nil && v.VerifiedAt != nil && v.VerifiedAt.After(m.receiptUploadedAt) {
		m.receiptUploaded = false
	}
}

// Fail records a transient fetch error. The stage is kept.
func (m *Machine) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = err
}

// MarkExpired moves an unpaid order without a pending receipt to EXPIRED.
func (m *Machine) MarkExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stage != model.StageAwaitingPayment || m.receiptPending() {
		return false
	}
	m.stage = model.StageExpired
	return true
}

func (m *Machine) MarkReceiptUploaded(at time.Time, appeal bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.receiptUploaded = true
	m.receiptUploadedAt = at
	if appeal {
		m.appeals++
	}
}

func (m *Machine) Stage() model.Stage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stage
}

func (m *Machine) Order() *model.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.order
}

func (m *Machine) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Machine) Actions() []model.Action {
	return model.AllowedActions(m.Stage())
}

func (m *Machine) Appeals() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.appeals
}

// ReceiptUploaded tells the view to hide the upload form.
func (m *Machine) ReceiptUploaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.receiptPending()
}

func (m *Machine) receiptPending() bool {
	if m.receiptUploaded {
		return true
	}
	return m.stage == model.StageAwaitingPayment && m.order != nil && m.order.HasReceipt()
}
