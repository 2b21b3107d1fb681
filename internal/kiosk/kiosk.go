package kiosk

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"cash-kiosk/internal/channel"
	"cash-kiosk/internal/idle"
	"cash-kiosk/internal/printer"
	"cash-kiosk/internal/session"
	"cash-kiosk/models"
	"cash-kiosk/monitoring"

	"github.com/google/uuid"
)

var (
	ErrStopped       = errors.New("kiosk: coordinator is not running")
	ErrUnknownScreen = errors.New("kiosk: unknown screen")
	ErrNoSession     = errors.New("kiosk: no active payment session")
	ErrNotAvailable  = errors.New("kiosk: action not available right now")
)

type Screen string

const (
	ScreenWelcome Screen = "welcome"
	ScreenMenu    Screen = "menu"
	ScreenReview  Screen = "review"
	ScreenPayment Screen = "payment"
	ScreenPairing Screen = "pairing"
)

func ParseScreen(s string) (Screen, bool) {
	switch sc := Screen(strings.ToLower(strings.TrimSpace(s))); sc {
	case ScreenWelcome, ScreenMenu, ScreenReview, ScreenPayment, ScreenPairing:
		return sc, true
	}
	return "", false
}

const (
	noticeEmptyCart = "no order to pay for"
	noticeLoadError = "could not load the order"
)

// Channel is the controller transport a payment session talks through.
type Channel interface {
	Connect(ctx context.Context, h channel.Handlers) error
	Send(m channel.Message)
	Close()
}

// OrderState is the persisted part of the kiosk the coordinator reads and
// resets.
type OrderState interface {
	Cart(ctx context.Context) (models.Cart, error)
	OrderType(ctx context.Context) (models.OrderType, error)
	ClearOrder(ctx context.Context) error
	SetBranchID(ctx context.Context, id string) error
}

type Finalizer interface {
	Run(ctx context.Context, checkout models.Checkout) models.CreatedOrder
}

type Config struct {
	Timings      session.Timings
	IdleSoft     time.Duration
	IdleHard     time.Duration
	Tick         time.Duration
	PrintTimeout time.Duration
	Shop         printer.Shop
}

func DefaultConfig() Config {
	return Config{
		Timings:      session.DefaultTimings(),
		IdleSoft:     idle.DefaultSoft,
		IdleHard:     idle.DefaultHard,
		Tick:         100 * time.Millisecond,
		PrintTimeout: 30 * time.Second,
	}
}

// Kiosk owns the focused screen, the payment session and the idle monitors.
// All of that state is touched only by the goroutine running Run; everything
// else talks to it through posted closures.
type Kiosk struct {
	state      OrderState
	newChannel func() Channel
	finalizer  Finalizer
	sink       printer.Sink
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time

	events chan func()
	done   chan struct{}
	ctx    context.Context

	// spawn runs blocking work off the loop; post hands a result back to it.
	spawn func(func())
	post  func(func())
	later []func()

	screen       Screen
	idle         map[Screen]*idle.Monitor
	idlePrompt   bool
	loadingID    string
	notice       string
	session      *session.Machine
	sessionStart time.Time
	sessionDone  bool
}

func New(state OrderState, newChannel func() Channel, finalizer Finalizer, sink printer.Sink, cfg Config, logger *slog.Logger) *Kiosk {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 100 * time.Millisecond
	}
	if cfg.PrintTimeout <= 0 {
		cfg.PrintTimeout = 30 * time.Second
	}

	k := &Kiosk{
		state:      state,
		newChannel: newChannel,
		finalizer:  finalizer,
		sink:       sink,
		cfg:        cfg,
		logger:     logger.With("component", "kiosk"),
		now:        time.Now,
		events:     make(chan func(), 64),
		done:       make(chan struct{}),
		ctx:        context.Background(),
		screen:     ScreenWelcome,
	}
	k.spawn = func(fn func()) { go fn() }
	k.post = func(fn func()) {
		select {
		case k.events <- fn:
		case <-k.done:
		}
	}

	k.idle = make(map[Screen]*idle.Monitor)
	for _, sc := range []Screen{ScreenMenu, ScreenReview} {
		k.idle[sc] = idle.New(string(sc), cfg.IdleSoft, cfg.IdleHard,
			func() { k.idlePrompt = true },
			func() { k.abandon("idle") })
	}
	return k
}

// Run drives the coordinator until ctx is done. Only one Run may be active.
func (k *Kiosk) Run(ctx context.Context) error {
	k.ctx = ctx
	defer close(k.done)

	ticker := time.NewTicker(k.cfg.Tick)
	defer ticker.Stop()
	last := k.now()

	k.logger.Info("kiosk coordinator started", "screen", k.screen)
	for {
		select {
		case <-ctx.Done():
			k.blur()
			k.settle()
			k.logger.Info("kiosk coordinator stopped")
			return nil

		case fn := <-k.events:
			fn()

		case <-ticker.C:
			now := k.now()
			k.advance(now.Sub(last))
			last = now
		}
		k.settle()
	}
}

// settle runs deferred navigation and records a session that just ended.
func (k *Kiosk) settle() {
	for {
		k.observeSession()
		if len(k.later) == 0 {
			return
		}
		next := k.later[0]
		k.later = k.later[1:]
		next()
	}
}

func (k *Kiosk) observeSession() {
	if k.session == nil || k.sessionDone || k.session.Alive() {
		return
	}
	k.sessionDone = true
	outcome := strings.ToLower(string(k.session.State()))
	monitoring.TrackSessionEnded(outcome, k.now().Sub(k.sessionStart))
	k.logger.Info("payment session ended",
		"session_id", k.session.ID(),
		"outcome", outcome,
		"reason", k.session.Reason())
}

func (k *Kiosk) advance(d time.Duration) {
	if k.session != nil {
		k.session.Advance(d)
	}
	if m := k.idle[k.screen]; m != nil {
		m.Advance(d)
	}
}

// do runs fn on the loop and waits for its result.
func (k *Kiosk) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case k.events <- func() { reply <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-k.done:
		return ErrStopped
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-k.done:
		return ErrStopped
	}
}

func (k *Kiosk) navigate(screen Screen) {
	k.later = append(k.later, func() { k.focus(screen) })
}

func (k *Kiosk) focus(screen Screen) {
	if screen == k.screen {
		return
	}
	k.blur()

	k.logger.Debug("screen focused", "screen", screen)
	k.screen = screen
	if m := k.idle[screen]; m != nil {
		m.Start()
	}
	if screen == ScreenPayment {
		k.loadPayment()
	}
}

// blur releases everything the focused screen holds.
func (k *Kiosk) blur() {
	if m := k.idle[k.screen]; m != nil {
		m.Stop()
	}
	k.idlePrompt = false
	k.notice = ""
	k.loadingID = ""

	if k.session != nil {
		k.session.Teardown()
		k.observeSession()
		k.session = nil
	}
}

func (k *Kiosk) loadPayment() {
	id := uuid.NewString()
	k.loadingID = id

	k.spawn(func() {
		cart, cartErr := k.state.Cart(k.ctx)
		orderType, typeErr := k.state.OrderType(k.ctx)
		k.post(func() {
			if k.loadingID != id || k.screen != ScreenPayment {
				return
			}
			k.loadingID = ""

			if err := errors.Join(cartErr, typeErr); err != nil {
				k.logger.Error("failed to load order for payment", "error", err)
				k.notice = noticeLoadError
				return
			}
			if cart.IsEmpty() {
				k.notice = noticeEmptyCart
				return
			}
			k.startSession(id, cart, orderType)
		})
	})
}

func (k *Kiosk) startSession(id string, cart models.Cart, orderType models.OrderType) {
	fx := &effects{k: k, id: id, ch: k.newChannel()}
	k.session = session.New(id, fx, k.cfg.Timings, k.logger)
	k.sessionStart = k.now()
	k.sessionDone = false
	monitoring.TrackSessionStarted()

	if err := k.session.Begin(cart, orderType); err != nil {
		k.logger.Error("failed to start payment session", "error", err)
		k.notice = noticeEmptyCart
	}
}

// abandon is the shared "give up on this order" path.
func (k *Kiosk) abandon(reason string) {
	k.logger.Info("abandoning order", "reason", reason, "screen", k.screen)
	k.spawn(func() {
		if err := k.state.ClearOrder(k.ctx); err != nil {
			k.logger.Error("failed to clear order", "error", err)
		}
	})
	k.navigate(ScreenWelcome)
}

func (k *Kiosk) current(id string) bool {
	return k.session != nil && k.session.ID() == id
}
