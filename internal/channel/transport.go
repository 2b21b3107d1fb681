package channel

import (
	"context"
	"log/slog"
	"sync"

	"cash-kiosk/internal/status"
	"cash-kiosk/monitoring"
)

// Conn is one established link to the controller. Reads and writes each
// happen from a single goroutine; Close may be called concurrently.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, branchID string) (Conn, error)
}

// BranchSource reads the persisted branch identity.
type BranchSource interface {
	BranchID(ctx context.Context) (string, error)
}

// Handlers receive connection events. OnClose only reports the loss of a
// connection that was open; a dial that never succeeds is logged and leaves
// the caller without signal.
type Handlers struct {
	OnOpen    func()
	OnMessage func(Message)
	OnRaw     func(raw []byte)
	OnClose   func(err error)
}

type connState int

const (
	stateIdle connState = iota
	stateDialing
	stateOpen
	stateClosed
)

// Transport owns at most one connection to the controller. Frames sent
// before the connection is open are queued and flushed in order right after
// the handshake. It never reconnects on its own.
type Transport struct {
	dialer   Dialer
	branches BranchSource
	logger   *slog.Logger

	mu       sync.Mutex
	gen      uint64
	state    connState
	link     *link
	pending  [][]byte
	wake     chan struct{}
	cancel   context.CancelFunc
	handlers Handlers
}

// link is one dialed connection. writeMu makes the writer goroutine and the
// final flush on Close take turns.
type link struct {
	conn    Conn
	writeMu sync.Mutex
}

func NewTransport(dialer Dialer, branches BranchSource, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		dialer:   dialer,
		branches: branches,
		logger:   logger.With("component", "channel"),
	}
}

// Connect resolves the branch identity and starts dialing in the background.
// A missing branch is a ConfigurationError. Any previous connection held by
// this transport is closed first.
func (t *Transport) Connect(ctx context.Context, h Handlers) error {
	branchID, err := t.branches.BranchID(ctx)
	if err != nil {
		return &status.ChannelError{Op: "channel.Connect", Err: err}
	}
	if branchID == "" {
		return &status.ConfigurationError{Op: "channel.Connect", Err: status.ErrNoBranch}
	}

	hs, err := Encode(Controller{Status: "connected", BranchID: branchID})
	if err != nil {
		return &status.ChannelError{Op: "channel.Connect", Err: err}
	}

	t.mu.Lock()
	if t.state == stateDialing || t.state == stateOpen {
		t.pending = nil
	}
	t.gen++
	t.shutdownLocked(nil)
	gen := t.gen
	connCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.state = stateDialing
	t.handlers = h
	t.wake = make(chan struct{}, 1)
	wake := t.wake
	t.mu.Unlock()

	go t.run(connCtx, gen, branchID, hs, wake)
	return nil
}

// Send queues m for delivery. Variants that only exist on the inbound side
// are logged and dropped.
func (t *Transport) Send(m Message) {
	data, err := Encode(m)
	if err != nil {
		t.logger.Warn("dropping outbound message", "error", err)
		monitoring.TrackFrame("dropped", kindOf(m))
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == stateClosed {
		t.logger.Debug("transport closed, dropping outbound message", "kind", m.Kind())
		monitoring.TrackFrame("dropped", string(m.Kind()))
		return
	}

	t.pending = append(t.pending, data)
	monitoring.TrackFrame("outbound", string(m.Kind()))
	if t.state == stateOpen {
		signal(t.wake)
	}
}

// Close tears the connection down. Frames already queued on an open
// connection are written first; on a connection still dialing they are
// dropped. Close is safe to call repeatedly and on a transport that never
// connected. OnClose is not invoked for a local close.
func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == stateClosed {
		return
	}

	var drain [][]byte
	if t.state == stateOpen {
		drain = t.pending
	}
	t.gen++
	t.shutdownLocked(drain)
	t.state = stateClosed
	t.pending = nil
}

// Open reports whether the handshake has been queued on a live connection.
func (t *Transport) Open() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == stateOpen
}

// shutdownLocked stops the current connection, writing drain to it first.
func (t *Transport) shutdownLocked(drain [][]byte) {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}

	l := t.link
	t.link = nil
	if l == nil {
		return
	}

	if len(drain) == 0 {
		if err := l.conn.Close(); err != nil {
			t.logger.Debug("close connection", "error", err)
		}
		return
	}

	go func() {
		l.writeMu.Lock()
		defer l.writeMu.Unlock()

		for _, data := range drain {
			if err := l.conn.WriteMessage(data); err != nil {
				t.logger.Warn("flush on close", "error", err)
				break
			}
		}
		if err := l.conn.Close(); err != nil {
			t.logger.Debug("close connection", "error", err)
		}
	}()
}

func (t *Transport) run(ctx context.Context, gen uint64, branchID string, handshake []byte, wake chan struct{}) {
	conn, err := t.dialer.Dial(ctx, branchID)
	if err != nil {
		t.dialFailed(gen, &status.ChannelError{Op: "channel.Dial", Err: err})
		return
	}

	l := &link{conn: conn}

	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.link = l
	t.state = stateOpen
	t.pending = append([][]byte{handshake}, t.pending...)
	h := t.handlers
	signal(wake)
	t.mu.Unlock()

	t.logger.Info("controller channel open", "branch_id", branchID)
	if h.OnOpen != nil {
		h.OnOpen()
	}

	go t.writeLoop(ctx, gen, l, wake)
	t.readLoop(gen, conn, h)
}

func (t *Transport) writeLoop(ctx context.Context, gen uint64, l *link, wake chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
		}

		if err := t.flush(gen, l); err != nil {
			t.fail(gen, &status.ChannelError{Op: "channel.Write", Err: err})
			return
		}
	}
}

func (t *Transport) flush(gen uint64, l *link) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	for _, data := range t.takePending(gen) {
		if err := l.conn.WriteMessage(data); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) takePending(gen uint64) [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen {
		return nil
	}
	batch := t.pending
	t.pending = nil
	return batch
}

func (t *Transport) readLoop(gen uint64, conn Conn, h Handlers) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			t.fail(gen, &status.ChannelError{Op: "channel.Read", Err: err})
			return
		}

		for _, m := range Decode(data) {
			if !t.current(gen) {
				return
			}
			monitoring.TrackFrame("inbound", string(m.Kind()))

			switch m := m.(type) {
			case Sentinel:
				t.logger.Debug("controller acknowledged", "token", m.Token)
			case Unrecognized:
				if h.OnRaw != nil {
					h.OnRaw(m.Raw)
				} else {
					t.logger.Debug("ignoring unrecognized frame", "raw", string(m.Raw))
				}
			default:
				if h.OnMessage != nil {
					h.OnMessage(m)
				}
			}
		}
	}
}

func (t *Transport) current(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gen == t.gen && t.state == stateOpen
}

// fail ends connection gen after a remote or I/O error and reports it once.
func (t *Transport) fail(gen uint64, err error) {
	t.mu.Lock()
	if gen != t.gen || t.state == stateClosed {
		t.mu.Unlock()
		return
	}
	t.gen++
	t.shutdownLocked(nil)
	t.state = stateClosed
	t.pending = nil
	onClose := t.handlers.OnClose
	t.mu.Unlock()

	t.logger.Warn("controller channel lost", "error", err)
	if onClose != nil {
		onClose(err)
	}
}

// dialFailed gives up on connection gen before it ever opened. Queued frames
// are dropped and later sends are discarded.
func (t *Transport) dialFailed(gen uint64, err error) {
	t.mu.Lock()
	if gen != t.gen || t.state == stateClosed {
		t.mu.Unlock()
		return
	}
	t.gen++
	t.shutdownLocked(nil)
	t.state = stateClosed
	t.pending = nil
	t.mu.Unlock()

	t.logger.Warn("controller unreachable, continuing without signal", "error", err)
	monitoring.TrackFrame("dropped", "dial_failed")
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func kindOf(m Message) string {
	if m == nil {
		return "nil"
	}
	return string(m.Kind())
}
