package session

import (
	"time"
)

type State string

const (
	StateIdle            State = "IDLE"
	StateConnecting      State = "CONNECTING"
	StateAwaitingPayment State = "AWAITING_PAYMENT"
	StateComplete        State = "COMPLETE"
	StateFinalizing      State = "FINALIZING"
	StatePrintPending    State = "PRINT_PENDING"
	StatePrinted         State = "PRINTED"
	StateReturning       State = "RETURNING"
	StateOrderAgain      State = "ORDER_AGAIN"
	StateTerminal        State = "TERMINAL"
	StateCancelled       State = "CANCELLED"
	StateTimedOut        State = "TIMED_OUT"
)

// PreComplete reports whether the controller may still be holding an
// activation for this session.
func (s State) PreComplete() bool {
	return s == StateIdle || s == StateConnecting || s == StateAwaitingPayment
}

func (s State) Final() bool {
	return s == StateTerminal || s == StateCancelled || s == StateTimedOut
}

// Route is where the owning screen should navigate to.
type Route string

const (
	RouteWelcome Route = "welcome"
	RouteReview  Route = "review"
	RoutePairing Route = "pairing"
)

type Prompt string

const (
	PromptNone   Prompt = ""
	PromptCancel Prompt = "cancel"
	PromptReturn Prompt = "return"
)

// Timings are the fixed delays of a payment session.
type Timings struct {
	ActivateDelay     time.Duration
	PaymentDeadline   time.Duration
	PrintInstruction  time.Duration
	ReturnSettle      time.Duration
	ReturnCountdown   time.Duration
	RefreshDelay      time.Duration
	OrderAgainTimeout time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		ActivateDelay:     800 * time.Millisecond,
		PaymentDeadline:   120 * time.Second,
		PrintInstruction:  5 * time.Second,
		ReturnSettle:      1200 * time.Millisecond,
		ReturnCountdown:   15 * time.Second,
		RefreshDelay:      3 * time.Second,
	}
}

// countdown is a deadline advanced by elapsed time instead of a timer.
type countdown struct {
	remaining time.Duration
	armed     bool
}

func (c *countdown) arm(d time.Duration) {
	c.remaining = d
	c.armed = true
}

func (c *countdown) stop() {
	c.armed = false
	c.remaining = 0
}

// advance moves the countdown by d and reports whether it reached zero on
// this call. A fired countdown disarms itself.
func (c *countdown) advance(d time.Duration) bool {
	if !c.armed {
		return false
	}
	c.remaining -= d
	if c.remaining > 0 {
		return false
	}
	c.stop()
	return true
}

// seconds rounds the remaining time up to whole seconds for display.
func (c *countdown) seconds() int {
	if !c.armed || c.remaining <= 0 {
		return 0
	}
	return int((c.remaining + time.Second - 1) / time.Second)
}
