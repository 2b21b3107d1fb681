package session

import (
	"errors"
	"log/slog"
	"time"

	"cash-kiosk/internal/channel"
	"cash-kiosk/internal/status"
	"cash-kiosk/models"
	"cash-kiosk/utils"

	"github.com/shopspring/decimal"
)

// Effects is how a session acts on the world. Calls are made from the
// goroutine driving the machine; slow work must be handed off and its
// result reported back through the matching Machine method.
type Effects interface {
	Connect()
	Send(m channel.Message)
	CloseChannel()
	Finalize(checkout models.Checkout)
	Print(job PrintJob)
	ResetOrder()
	Navigate(route Route)
}

type PrintJob struct {
	Order   models.CreatedOrder
	Cart    models.Cart
	Trigger string
}

const (
	TriggerManual = "manual"
	TriggerAuto   = "auto"
)

// Machine is one payment session. It is not safe for concurrent use: the
// owner serialises every call, including Advance.
type Machine struct {
	id      string
	fx      Effects
	timings Timings
	logger  *slog.Logger

	state     State
	alive     bool
	reason    string
	cart      models.Cart
	orderType models.OrderType
	due       decimal.Decimal
	received  decimal.Decimal
	prompt    Prompt

	createdOrder *models.CreatedOrder
	printing     bool
	printError   string

	activate   countdown
	deadline   countdown
	printIn    countdown
	refresh    countdown
	settle     countdown
	returnIn   countdown
	orderAgain countdown

	finalized utils.OneShot
	printed   utils.OneShot
	exited    utils.OneShot
	activated utils.OneShot
	refreshed utils.OneShot
	doneOrder utils.OneShot
}

func New(id string, fx Effects, timings Timings, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		id:      id,
		fx:      fx,
		timings: timings,
		logger:  logger.With("session_id", id),
		state:   StateIdle,
		alive:   true,
	}
}

func (m *Machine) ID() string        { return m.id }
func (m *Machine) State() State      { return m.state }
func (m *Machine) Alive() bool       { return m.alive }
func (m *Machine) Reason() string    { return m.reason }
func (m *Machine) Prompt() Prompt    { return m.prompt }
func (m *Machine) Cart() models.Cart { return m.cart }

func (m *Machine) Received() decimal.Decimal { return m.received }

func (m *Machine) Remaining() decimal.Decimal {
	return models.NonNegative(m.due.Sub(m.received))
}

// Begin starts a session for a loaded, non-empty cart.
func (m *Machine) Begin(cart models.Cart, orderType models.OrderType) error {
	if !m.alive || m.state != StateIdle {
		return errors.New("session: already started")
	}
	if cart.IsEmpty() {
		return status.ErrEmptyCart
	}

	m.cart = cart
	m.orderType = models.ParseOrderType(string(orderType))
	m.due = models.Round2(cart.Total())
	m.state = StateConnecting

	m.logger.Info("payment session started", "amount_due", m.due.StringFixed(2), "order_type", m.orderType)
	m.fx.Connect()
	return nil
}

// ConnectResult reports the outcome of Effects.Connect. A missing branch
// identity ends the session and routes to pairing; any other failure is
// treated as a silent channel and left to the payment deadline.
func (m *Machine) ConnectResult(err error) {
	if !m.alive || m.state != StateConnecting {
		return
	}

	if status.IsConfiguration(err) {
		m.logger.Error("cannot reach controller without a branch identity", "error", err)
		m.exited.TryFire()
		m.finish(StateCancelled, "unpaired")
		m.fx.CloseChannel()
		m.fx.Navigate(RoutePairing)
		return
	}
	if err != nil {
		m.logger.Warn("controller channel unavailable, waiting for deadline",
			"error", &status.ChannelError{Op: "session.Connect", Err: err})
	}

	m.enterAwaiting()
}

func (m *Machine) enterAwaiting() {
	m.state = StateAwaitingPayment
	m.received = decimal.Zero
	m.activate.arm(m.timings.ActivateDelay)
	m.deadline.arm(m.timings.PaymentDeadline)
}

// Handle applies one inbound controller message.
func (m *Machine) Handle(msg channel.Message) {
	if !m.alive {
		return
	}

	switch msg := msg.(type) {
	case channel.PaymentUpdate:
		if m.state != StateConnecting && m.state != StateAwaitingPayment {
			return
		}
		if msg.Absolute {
			m.received = models.NonNegative(msg.Amount)
		} else {
			m.received = models.NonNegative(m.received.Add(msg.Amount))
		}
		m.logger.Debug("payment update", "received", m.received.String(), "remaining", m.Remaining().String())

	case channel.PaymentStatus:
		if !msg.Complete {
			return
		}
		if m.state == StateConnecting || m.state == StateAwaitingPayment {
			m.complete()
		}

	case channel.Controller:
		m.logger.Debug("controller status", "status", msg.Status)

	default:
		m.logger.Debug("ignoring controller message", "kind", msg.Kind())
	}
}

func (m *Machine) complete() {
	m.state = StateComplete
	m.prompt = PromptNone
	m.activate.stop()
	m.deadline.stop()

	m.logger.Info("payment complete", "received", m.received.StringFixed(2), "amount_due", m.due.StringFixed(2))

	if !m.finalized.TryFire() {
		return
	}
	m.state = StateFinalizing
	m.fx.Finalize(models.Checkout{
		SessionID: m.id,
		Cart:      m.cart,
		OrderType: m.orderType,
		Cash:      m.received,
	})
}

// OrderCreated hands over the result of finalization, remote or local.
func (m *Machine) OrderCreated(order models.CreatedOrder) {
	if !m.alive || m.state != StateFinalizing {
		return
	}

	m.createdOrder = &order
	m.state = StatePrintPending
	m.printIn.arm(m.timings.PrintInstruction)
	m.refresh.arm(m.timings.RefreshDelay)
}

// PrintRequested is the manual print button. It reports whether this call
// started printing.
func (m *Machine) PrintRequested() bool {
	if !m.alive || m.state != StatePrintPending {
		return false
	}
	return m.firePrint(TriggerManual)
}

func (m *Machine) firePrint(trigger string) bool {
	if m.createdOrder == nil || !m.printed.TryFire() {
		return false
	}
	m.printIn.stop()
	m.printing = true
	m.printError = ""
	m.fx.Print(PrintJob{Order: *m.createdOrder, Cart: m.cart, Trigger: trigger})
	return true
}

// PrintResolved reports the print outcome. Failures are shown inline and do
// not hold up the return flow.
func (m *Machine) PrintResolved(err error) {
	if !m.alive || !m.printing || m.state != StatePrintPending {
		return
	}

	m.printing = false
	if err != nil {
		m.printError = err.Error()
		m.logger.Warn("receipt print failed", "error", err)
	}
	m.state = StatePrinted
	m.settle.arm(m.timings.ReturnSettle)
}

// RequestCancel opens the cancel confirmation.
func (m *Machine) RequestCancel() bool {
	return m.openPrompt(PromptCancel)
}

// RequestReturn opens the "back to review" confirmation.
func (m *Machine) RequestReturn() bool {
	return m.openPrompt(PromptReturn)
}

func (m *Machine) openPrompt(p Prompt) bool {
	if !m.alive || !m.state.PreComplete() || m.state == StateIdle {
		return false
	}
	m.prompt = p
	return true
}

func (m *Machine) DismissPrompt() {
	m.prompt = PromptNone
}

// ConfirmPrompt carries out whatever the open prompt asked for.
func (m *Machine) ConfirmPrompt() bool {
	if !m.alive || !m.state.PreComplete() {
		return false
	}

	p := m.prompt
	m.prompt = PromptNone
	switch p {
	case PromptCancel:
		if !m.exited.TryFire() {
			return false
		}
		m.finish(StateCancelled, "cancelled")
		m.fx.Send(channel.Deactivate{})
		m.fx.CloseChannel()
		m.fx.ResetOrder()
		m.fx.Navigate(RouteWelcome)
		return true

	case PromptReturn:
		if !m.exited.TryFire() {
			return false
		}
		m.finish(StateCancelled, "returned")
		m.fx.Send(channel.Deactivate{})
		m.fx.CloseChannel()
		m.fx.Navigate(RouteReview)
		return true
	}
	return false
}

// ChannelClosed reports loss of the controller channel. Before completion
// it ends the session the same way the deadline does.
func (m *Machine) ChannelClosed(err error) {
	if !m.alive {
		return
	}
	if !m.state.PreComplete() {
		m.logger.Warn("controller channel lost after payment", "error", err)
		return
	}
	if !m.exited.TryFire() {
		return
	}

	m.logger.Warn("controller channel lost during payment", "error", err)
	m.finish(StateCancelled, "channel_lost")
	m.fx.CloseChannel()
	m.fx.Navigate(RouteReview)
}

// OrderAgain answers the post-payment prompt.
func (m *Machine) OrderAgain(again bool) bool {
	if !m.alive || m.state != StateOrderAgain {
		return false
	}

	if !again && m.orderType == models.OrderTypeDineIn && m.createdOrder != nil {
		if table, ok := m.createdOrder.Draft.TableNo(); ok && m.doneOrder.TryFire() {
			m.fx.Send(channel.DoneOrder{Table: table})
		}
	}

	reason := "order_again"
	if !again {
		reason = "done"
	}
	m.finish(StateTerminal, reason)
	m.fx.Send(channel.Deactivate{})
	m.fx.CloseChannel()
	m.fx.ResetOrder()
	m.fx.Navigate(RouteWelcome)
	return true
}

// abandonPrompt ends a session whose order-again prompt went unanswered. The
// table is left open because nobody said the order was done.
func (m *Machine) abandonPrompt() {
	m.logger.Info("order again prompt unanswered")
	m.finish(StateTerminal, "unanswered")
	m.fx.Send(channel.Deactivate{})
	m.fx.CloseChannel()
	m.fx.ResetOrder()
	m.fx.Navigate(RouteWelcome)
}

// Advance moves every running deadline forward by d.
func (m *Machine) Advance(d time.Duration) {
	if !m.alive || d <= 0 {
		return
	}

	// Every running countdown is charged before any transition arms a new
	// one, so a freshly armed countdown starts from its full duration.
	var (
		activate   = m.activate.advance(d)
		deadline   = m.deadline.advance(d)
		printIn    = m.printIn.advance(d)
		refresh    = m.refresh.advance(d)
		settle     = m.settle.advance(d)
		returned   = m.returnIn.advance(d)
		unanswered = m.orderAgain.advance(d)
	)

	if activate && m.state == StateAwaitingPayment && m.activated.TryFire() {
		amount := models.ActivationAmount(m.due)
		m.logger.Info("activating bill acceptor", "amount", amount)
		m.fx.Send(channel.Activate{Amount: amount})
	}

	if deadline && m.state.PreComplete() {
		m.timeout()
		return
	}

	if printIn && m.state == StatePrintPending {
		m.firePrint(TriggerAuto)
	}

	if refresh && m.refreshed.TryFire() {
		m.fx.Send(channel.Refresh{})
	}

	if settle && m.state == StatePrinted {
		m.state = StateReturning
		m.returnIn.arm(m.timings.ReturnCountdown)
	}

	if returned && m.state == StateReturning {
		m.state = StateOrderAgain
		if m.timings.OrderAgainTimeout > 0 {
			m.orderAgain.arm(m.timings.OrderAgainTimeout)
		}
	}

	if unanswered && m.state == StateOrderAgain {
		m.abandonPrompt()
	}
}

func (m *Machine) timeout() {
	if !m.exited.TryFire() {
		return
	}

	m.logger.Info("payment deadline reached",
		"error", &status.TimeoutError{Op: "session", Err: status.ErrPaymentDeadline},
		"received", m.received.StringFixed(2))
	m.finish(StateTimedOut, "deadline")
	m.fx.Send(channel.Deactivate{})
	m.fx.CloseChannel()
	m.fx.Navigate(RouteReview)
}

// Teardown ends the session because its screen lost focus. Any later event,
// tick or async result is ignored.
func (m *Machine) Teardown() {
	if !m.alive {
		return
	}

	pre := m.state.PreComplete() && m.state != StateIdle
	if m.state.PreComplete() {
		m.finish(StateCancelled, "left_screen")
	} else {
		m.finish(m.state, "left_screen")
	}

	if pre && m.exited.TryFire() {
		m.fx.Send(channel.Deactivate{})
	}
	m.fx.CloseChannel()
}

// finish marks the session dead before any effect runs, so re-entrant
// callbacks see a closed session.
func (m *Machine) finish(state State, reason string) {
	m.state = state
	m.reason = reason
	m.alive = false
	m.prompt = PromptNone
	for _, c := range []*countdown{&m.activate, &m.deadline, &m.printIn, &m.refresh, &m.settle, &m.returnIn, &m.orderAgain} {
		c.stop()
	}
}

type Snapshot struct {
	ID                      string               `json:"id"`
	State                   State                `json:"state"`
	Alive                   bool                 `json:"alive"`
	Reason                  string               `json:"reason,omitempty"`
	OrderType               models.OrderType     `json:"order_type"`
	AmountDue               string               `json:"amount_due"`
	AmountReceived          string               `json:"amount_received"`
	Remaining               string               `json:"remaining"`
	DeadlineSeconds         int                  `json:"deadline_seconds"`
	Prompt                  Prompt               `json:"prompt,omitempty"`
	PrintInstructionSeconds int                  `json:"print_instruction_seconds,omitempty"`
	Printing                bool                 `json:"printing"`
	PrintError              string               `json:"print_error,omitempty"`
	ReturnSeconds           int                  `json:"return_seconds,omitempty"`
	Order                   *models.CreatedOrder `json:"order,omitempty"`
}

func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		ID:                      m.id,
		State:                   m.state,
		Alive:                   m.alive,
		Reason:                  m.reason,
		OrderType:               m.orderType,
		AmountDue:               m.due.StringFixed(2),
		AmountReceived:          m.received.StringFixed(2),
		Remaining:               m.Remaining().StringFixed(2),
		DeadlineSeconds:         m.deadline.seconds(),
		Prompt:                  m.prompt,
		PrintInstructionSeconds: m.printIn.seconds(),
		Printing:                m.printing,
		PrintError:              m.printError,
		ReturnSeconds:           m.returnIn.seconds(),
		Order:                   m.createdOrder,
	}
}
