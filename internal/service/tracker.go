package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"zelyx-order-tracker/internal/client"
	"zelyx-order-tracker/internal/config"
	"zelyx-order-tracker/internal/countdown"
	"zelyx-order-tracker/internal/dto"
	"zelyx-order-tracker/internal/lifecycle"
	"zelyx-order-tracker/internal/model"
	"zelyx-order-tracker/internal/notify"
	"zelyx-order-tracker/internal/polling"
	"zelyx-order-tracker/internal/receipt"
	"zelyx-order-tracker/internal/repository"
	"zelyx-order-tracker/internal/scheduler"
)

var (
	ErrSessionNotFound  = errors.New("tracking session not found")
	ErrActionNotAllowed = errors.New("action not allowed in current stage")
	ErrTooManySessions  = errors.New("too many tracking sessions")
	ErrInvalidView      = errors.New("invalid view")
)

type TrackerService interface {
	OpenSession(ctx context.Context, orderNumber string, view model.View) (*dto.OpenSessionResponse, error)
	GetSessionView(ctx context.Context, orderNumber string, view model.View) (*dto.SessionView, error)
	Refresh(ctx context.Context, orderNumber string, view model.View) (*dto.SessionView, error)
	SubmitReceipt(ctx context.Context, orderNumber string, view model.View, file *model.ReceiptFile) (*dto.SessionView, error)
	CloseSession(orderNumber string, view model.View) error

	ConfirmPayment(ctx context.Context, orderID string) error
	DeclinePayment(ctx context.Context, orderID string, reason string) error

	Shutdown()
}

type trackerServiceImpl struct {
	shopClient   client.ShopClient
	deadlineRepo repository.DeadlineRepository
	sched        scheduler.Scheduler
	trackerCfg   config.Tracker
	receiptCfg   config.Receipt
	fetchTimeout time.Duration
	logger       *slog.Logger

	mu         sync.Mutex
	sessions   map[string]*session
	stopSweeps scheduler.CancelFunc
}

func NewTrackerService(
	shopClient client.ShopClient,
	deadlineRepo repository.DeadlineRepository,
	sched scheduler.Scheduler,
	trackerCfg config.Tracker,
	receiptCfg config.Receipt,
	fetchTimeout time.Duration,
	logger *slog.Logger,
) TrackerService {
	return &trackerServiceImpl{
		shopClient:   shopClient,
		deadlineRepo: deadlineRepo,
		sched:        sched,
		trackerCfg:   trackerCfg,
		receiptCfg:   receiptCfg,
		fetchTimeout: fetchTimeout,
		logger:       logger,
		sessions:     make(map[string]*session),
	}
}

func (s *trackerServiceImpl) OpenSession(ctx context.Context, orderNumber string, view model.View) (*dto.OpenSessionResponse, error) {
	if !view.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidView, view)
	}

	key := sessionKey(orderNumber, view)

	s.mu.Lock()
	if existing, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		existing.touch(s.sched.Now())
		return existing.openResponse(), nil
	}
	if s.trackerCfg.MaxSessions > 0 && len(s.sessions) >= s.trackerCfg.MaxSessions {
		s.mu.Unlock()
		return nil, ErrTooManySessions
	}
	s.mu.Unlock()

	order, err := s.shopClient.GetOrder(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, client.ErrOrderNotFound) {
			s.logger.Warn("order not found", slog.String("order_number", orderNumber))
		}
		return nil, fmt.Errorf("load order: %w", err)
	}

	sess := s.newSession(orderNumber, view)
	s.validate(sess, order)
	_, stage := sess.machine.Apply(order)

	if needsCountdown(order, stage) {
		s.refreshDeadline(ctx, sess, true)
		sess.countdown.Run()
	}

	if pollingDone(view, stage) {
		s.onPollingDone(sess)
	} else {
		sess.poller.Start(sess.ctx)
	}

	s.mu.Lock()
	if existing, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		sess.close()
		existing.touch(s.sched.Now())
		return existing.openResponse(), nil
	}
	// other orders may have been opened while this one was loading
	if s.trackerCfg.MaxSessions > 0 && len(s.sessions) >= s.trackerCfg.MaxSessions {
		s.mu.Unlock()
		sess.close()
		return nil, ErrTooManySessions
	}
	s.sessions[key] = sess
	s.startSweepsLocked()
	s.mu.Unlock()

	s.logger.Info("tracking session opened",
		slog.String("session_id", sess.id),
		slog.String("order_number", orderNumber),
		slog.String("view", string(view)),
		slog.String("stage", string(stage)),
	)

	return sess.openResponse(), nil
}

func (s *trackerServiceImpl) GetSessionView(ctx context.Context, orderNumber string, view model.View) (*dto.SessionView, error) {
	sess, err := s.get(orderNumber, view)
	if err != nil {
		return nil, err
	}
	return sess.snapshot(), nil
}

func (s *trackerServiceImpl) Refresh(ctx context.Context, orderNumber string, view model.View) (*dto.SessionView, error) {
	sess, err := s.get(orderNumber, view)
	if err != nil {
		return nil, err
	}

	if !sess.machine.Stage().Allows(model.ActionRefreshStatus) {
		return nil, ErrActionNotAllowed
	}

	err = sess.poller.Refresh(ctx)
	if err != nil && !errors.Is(err, polling.ErrFetchInFlight) {
		return nil, fmt.Errorf("refresh order status: %w", err)
	}

	// a manual refresh after polling ended can still reveal the final stage
	if !sess.poller.Running() && pollingDone(sess.view, sess.machine.Stage()) {
		s.onPollingDone(sess)
	}

	return sess.snapshot(), nil
}

func (s *trackerServiceImpl) SubmitReceipt(ctx context.Context, orderNumber string, view model.View, file *model.ReceiptFile) (*dto.SessionView, error) {
	sess, err := s.get(orderNumber, view)
	if err != nil {
		return nil, err
	}

	stage := sess.machine.Stage()
	appeal := stage == model.StageDeclined
	action := model.ActionUploadReceipt
	if appeal {
		action = model.ActionUploadAppealReceipt
	}
	if !stage.Allows(action) {
		return nil, ErrActionNotAllowed
	}

	if err := sess.receipt.SelectFile(file); err != nil {
		if errors.Is(err, receipt.ErrNoFileSelected) {
			sess.toasts.Warn("Please select a receipt file first")
		}
		return nil, err
	}

	if err := sess.receipt.Submit(ctx, orderNumber, appeal); err != nil {
		switch {
		case errors.Is(err, receipt.ErrUploadInProgress):
		case errors.Is(err, receipt.ErrAppealLimitReached):
			sess.toasts.Warn("You have reached the maximum number of appeals for this order")
		default:
			sess.toasts.Error("Failed to upload receipt, please try again")
		}
		return nil, err
	}

	return sess.snapshot(), nil
}

func (s *trackerServiceImpl) CloseSession(orderNumber string, view model.View) error {
	key := sessionKey(orderNumber, view)

	s.mu.Lock()
	sess, ok := s.sessions[key]
	delete(s.sessions, key)
	stopSweeps := s.releaseSweepsLocked()
	s.mu.Unlock()

	if stopSweeps != nil {
		stopSweeps()
	}
	if !ok {
		return ErrSessionNotFound
	}

	sess.close()
	s.logger.Info("tracking session closed", slog.String("session_id", sess.id), slog.String("order_number", orderNumber))
	return nil
}

func (s *trackerServiceImpl) ConfirmPayment(ctx context.Context, orderID string) error {
	if err := s.shopClient.ConfirmPayment(ctx, orderID); err != nil {
		return err
	}
	s.logger.Info("payment confirmed by admin", slog.String("order_id", orderID))
	return nil
}

func (s *trackerServiceImpl) DeclinePayment(ctx context.Context, orderID string, reason string) error {
	if err := s.shopClient.DeclinePayment(ctx, orderID, reason); err != nil {
		return err
	}
	s.logger.Info("payment declined by admin", slog.String("order_id", orderID), slog.String("reason", reason))
	return nil
}

func (s *trackerServiceImpl) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	stopSweeps := s.releaseSweepsLocked()
	s.mu.Unlock()

	if stopSweeps != nil {
		stopSweeps()
	}

	for _, sess := range sessions {
		sess.close()
	}
	s.logger.Info("tracker stopped", slog.Int("sessions", len(sessions)))
}

func (s *trackerServiceImpl) get(orderNumber string, view model.View) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionKey(orderNumber, view)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch(s.sched.Now())
	return sess, nil
}

// startSweepsLocked schedules idle eviction while at least one session is open.
func (s *trackerServiceImpl) startSweepsLocked() {
	idle := s.trackerCfg.SessionIdleTimeout
	if idle <= 0 || s.stopSweeps != nil {
		return
	}

	interval := idle / 2
	if interval <= 0 {
		interval = idle
	}
	s.stopSweeps = s.sched.Schedule(interval, s.evictIdle)
}

// releaseSweepsLocked hands back the sweep cancel once no session is left.
func (s *trackerServiceImpl) releaseSweepsLocked() scheduler.CancelFunc {
	if len(s.sessions) > 0 || s.stopSweeps == nil {
		return nil
	}
	stop := s.stopSweeps
	s.stopSweeps = nil
	return stop
}

// evictIdle closes sessions no client has looked at for the idle timeout,
// e.g. a browser that navigated away without closing its session.
func (s *trackerServiceImpl) evictIdle() {
	now := s.sched.Now()

	var idle []*session
	s.mu.Lock()
	for key, sess := range s.sessions {
		if now.Sub(sess.lastSeenAt()) >= s.trackerCfg.SessionIdleTimeout {
			delete(s.sessions, key)
			idle = append(idle, sess)
		}
	}
	stopSweeps := s.releaseSweepsLocked()
	s.mu.Unlock()

	if stopSweeps != nil {
		stopSweeps()
	}
	for _, sess := range idle {
		sess.close()
		s.logger.Info("idle tracking session evicted",
			slog.String("session_id", sess.id),
			slog.String("order_number", sess.orderNumber),
			slog.String("view", string(sess.view)),
		)
	}
}

func (s *trackerServiceImpl) newSession(orderNumber string, view model.View) *session {
	logger := s.logger.With(slog.String("order_number", orderNumber), slog.String("view", string(view)))
	ctx, cancel := context.WithCancel(context.Background())
	now := s.sched.Now()

	sess := &session{
		id:          uuid.NewString(),
		orderNumber: orderNumber,
		view:        view,
		openedAt:    now,
		lastSeen:    now,
		machine:     lifecycle.NewMachine(),
		toasts:      notify.NewFeed(logger, s.sched.Now),
		ctx:         ctx,
		cancel:      cancel,
	}

	sess.countdown = countdown.New(orderNumber, s.deadlineRepo, s.sched, countdown.Options{
		PaymentWindow: s.trackerCfg.PaymentWindow,
		TickInterval:  s.trackerCfg.TickInterval,
		OnExpire:      func() { s.onExpire(sess) },
		Logger:        logger,
	})

	sess.receipt = receipt.NewFlow(s.shopClient, receipt.Options{
		MaxAppeals: s.receiptCfg.MaxAppeals,
		OnComplete: func(appeal bool) {
			sess.machine.MarkReceiptUploaded(s.sched.Now(), appeal)
			if appeal {
				sess.toasts.Success("Appeal submitted, we will review your receipt again")
			} else {
				sess.toasts.Success("Receipt uploaded, waiting for verification")
			}
		},
	})

	sess.poller = polling.NewController(s.sched, s.trackerCfg.PollInterval(view),
		func(ctx context.Context) (bool, error) { return s.poll(ctx, sess) },
		polling.Options{
			FetchTimeout: s.fetchTimeout,
			OnDone:       func() { s.onPollingDone(sess) },
			Logger:       logger,
		},
	)

	return sess
}

func (s *trackerServiceImpl) poll(ctx context.Context, sess *session) (bool, error) {
	order, err := s.shopClient.GetOrder(ctx, sess.orderNumber)
	if err != nil {
		if sess.isClosed() {
			return false, err
		}
		sess.machine.Fail(err)
		sess.toasts.Error("Failed to refresh order status")
		return false, err
	}

	s.validate(sess, order)
	prev, next := sess.machine.Apply(order)
	if prev != next {
		s.announce(sess, prev, next, order)
	}

	switch {
	case needsCountdown(order, next):
		if sess.view == model.ViewBankTransfer && !sess.countdown.Expired() {
			s.refreshDeadline(ctx, sess, false)
		}
	case next != model.StageExpired:
		// paid, cancelled or delivered: the payment window no longer applies
		if err := sess.countdown.Discard(ctx); err != nil {
			s.logger.Warn("failed to clear payment deadline",
				slog.String("order_number", sess.orderNumber),
				slog.Any("error", err),
			)
		}
	}
	if sess.countdown.Expired() {
		sess.machine.MarkExpired()
	}

	return pollingDone(sess.view, sess.machine.Stage()), nil
}

// refreshDeadline asks the backend for the remaining payment time. With
// fallback set, a failed fetch falls back to the persisted deadline.
func (s *trackerServiceImpl) refreshDeadline(ctx context.Context, sess *session, fallback bool) {
	logger := s.logger.With(slog.String("order_number", sess.orderNumber))

	timeout, err := s.shopClient.GetOrderTimeout(ctx, sess.orderNumber)
	if err == nil {
		if err := sess.countdown.Start(ctx, timeout.Remaining()); err != nil {
			logger.Warn("countdown started without persistence", slog.Any("error", err))
		}
		return
	}

	logger.Warn("failed to fetch payment deadline", slog.Any("error", err))
	if !fallback {
		return
	}

	restored, rerr := sess.countdown.Restore(ctx)
	if rerr != nil {
		logger.Warn("failed to restore payment deadline", slog.Any("error", rerr))
	}
	if !restored {
		sess.toasts.Error("Could not load the payment deadline")
	}
}

func (s *trackerServiceImpl) onExpire(sess *session) {
	if !sess.machine.MarkExpired() {
		return
	}
	sess.toasts.Warn("The payment window for this order has expired")
	sess.countdown.Stop()
	if pollingDone(sess.view, sess.machine.Stage()) {
		sess.poller.Stop()
	}
}

func (s *trackerServiceImpl) onPollingDone(sess *session) {
	stage := sess.machine.Stage()

	if stage != model.StageAwaitingPayment && stage != model.StageDeclined {
		sess.countdown.Stop()
	}
	if sess.view == model.ViewBankTransfer && stage.PaymentSettled() {
		sess.setNavigate(model.ViewOrderStatus)
	}

	s.logger.Info("polling finished",
		slog.String("order_number", sess.orderNumber),
		slog.String("view", string(sess.view)),
		slog.String("stage", string(stage)),
	)
}

func (s *trackerServiceImpl) announce(sess *session, prev, next model.Stage, order *model.Order) {
	s.logger.Info("order stage changed",
		slog.String("order_number", sess.orderNumber),
		slog.String("from", string(prev)),
		slog.String("to", string(next)),
	)

	switch next {
	case model.StageDeclined:
		msg := "Your payment receipt was declined"
		if v := order.ReceiptVerification; v != nil && v.DeclineReason != "" {
			msg += ": " + v.DeclineReason
		}
		sess.toasts.Error(msg)
	case model.StageConfirmed:
		sess.toasts.Success("Payment confirmed")
	case model.StageProcessing:
		sess.toasts.Info("Your order is being processed")
	case model.StageDelivered:
		sess.toasts.Success("Your order has been delivered")
	case model.StageCancelled:
		sess.toasts.Warn("This order was cancelled")
	}
}

func (s *trackerServiceImpl) validate(sess *session, order *model.Order) {
	if err := order.Validate(); err != nil {
		s.logger.Warn("order snapshot breaks invariant",
			slog.String("order_number", sess.orderNumber),
			slog.Any("error", err),
		)
	}
}
