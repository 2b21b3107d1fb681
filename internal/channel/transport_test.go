package channel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cash-kiosk/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticBranch string

func (s staticBranch) BranchID(context.Context) (string, error) { return string(s), nil }

type fakeConn struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data, ok := <-c.in:
		if !ok {
			return nil, errors.New("peer went away")
		}
		return data, nil
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, string(data))
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

func (c *fakeConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	gate   chan struct{}
	err    error
	dialed chan struct{}
	mu     sync.Mutex
	conns  []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, branchID string) (Conn, error) {
	if d.dialed != nil {
		defer func() {
			select {
			case d.dialed <- struct{}{}:
			default:
			}
		}()
	}
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

const handshake = `{"type":"controller","status":"connected","branchId":"branch-9"}`

func TestTransport_ConnectWithoutBranch(t *testing.T) {
	tr := NewTransport(&fakeDialer{}, staticBranch(""), nil)

	err := tr.Connect(context.Background(), Handlers{})

	require.Error(t, err)
	assert.True(t, status.IsConfiguration(err))
	assert.ErrorIs(t, err, status.ErrNoBranch)
}

func TestTransport_QueuesUntilOpenThenFlushesInOrder(t *testing.T) {
	dialer := &fakeDialer{gate: make(chan struct{})}
	tr := NewTransport(dialer, staticBranch("branch-9"), nil)
	defer tr.Close()

	tr.Send(Activate{Amount: 125})
	require.NoError(t, tr.Connect(context.Background(), Handlers{}))
	tr.Send(Deactivate{})
	tr.Send(Sentinel{Token: "ACTIVATED"})
	assert.False(t, tr.Open())

	close(dialer.gate)

	want := []string{handshake, `{"type":"activate","totalAmount":125}`, `{"type":"deactivate"}`}
	require.Eventually(t, func() bool {
		c := dialer.conn(0)
		return c != nil && len(c.Written()) == len(want)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, dialer.conn(0).Written())

	tr.Send(DoneOrder{Table: 2})
	require.Eventually(t, func() bool {
		return len(dialer.conn(0).Written()) == 4
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, `{"type":"done_order","table":2}`, dialer.conn(0).Written()[3])
}

func TestTransport_DispatchesInboundFrames(t *testing.T) {
	dialer := &fakeDialer{}
	tr := NewTransport(dialer, staticBranch("branch-9"), nil)
	defer tr.Close()

	var mu sync.Mutex
	var got []Message
	var raw []string
	opened := make(chan struct{})

	require.NoError(t, tr.Connect(context.Background(), Handlers{
		OnOpen: func() { close(opened) },
		OnMessage: func(m Message) {
			mu.Lock()
			got = append(got, m)
			mu.Unlock()
		},
		OnRaw: func(b []byte) {
			mu.Lock()
			raw = append(raw, string(b))
			mu.Unlock()
		},
	}))
	<-opened

	c := dialer.conn(0)
	c.in <- []byte("ACTIVATED")
	c.in <- []byte(`{"type":"payment","total":125,"status":"complete"}`)
	c.in <- []byte("garbage")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2 && len(raw) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, KindPaymentUpdate, got[0].Kind())
	assert.Equal(t, KindPaymentStatus, got[1].Kind())
	assert.Equal(t, []string{"garbage"}, raw)
}

func TestTransport_CloseIsIdempotentAndSilent(t *testing.T) {
	never := NewTransport(&fakeDialer{}, staticBranch("branch-9"), nil)
	never.Close()
	never.Close()

	dialer := &fakeDialer{}
	tr := NewTransport(dialer, staticBranch("branch-9"), nil)

	var closes atomic.Int32
	opened := make(chan struct{})
	require.NoError(t, tr.Connect(context.Background(), Handlers{
		OnOpen:  func() { close(opened) },
		OnClose: func(error) { closes.Add(1) },
	}))
	<-opened

	tr.Close()
	tr.Close()
	tr.Send(Deactivate{})

	require.Eventually(t, dialer.conn(0).IsClosed, time.Second, 5*time.Millisecond)
	assert.False(t, tr.Open())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), closes.Load())
	for _, frame := range dialer.conn(0).Written() {
		assert.NotEqual(t, `{"type":"deactivate"}`, frame)
	}
}

func TestTransport_ReportsRemoteLossOnce(t *testing.T) {
	dialer := &fakeDialer{}
	tr := NewTransport(dialer, staticBranch("branch-9"), nil)
	defer tr.Close()

	errs := make(chan error, 4)
	opened := make(chan struct{})
	require.NoError(t, tr.Connect(context.Background(), Handlers{
		OnOpen:  func() { close(opened) },
		OnClose: func(err error) { errs <- err },
	}))
	<-opened

	close(dialer.conn(0).in)

	select {
	case err := <-errs:
		var ce *status.ChannelError
		assert.ErrorAs(t, err, &ce)
	case <-time.After(time.Second):
		t.Fatal("expected OnClose")
	}

	tr.Close()
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, errs, 0)
}

func TestTransport_DialFailureLeavesNoSignal(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("connection refused"), dialed: make(chan struct{}, 1)}
	tr := NewTransport(dialer, staticBranch("branch-9"), nil)
	defer tr.Close()

	var closes atomic.Int32
	require.NoError(t, tr.Connect(context.Background(), Handlers{
		OnClose: func(error) { closes.Add(1) },
	}))

	select {
	case <-dialer.dialed:
	case <-time.After(time.Second):
		t.Fatal("expected a dial attempt")
	}

	require.Eventually(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.state == stateClosed
	}, time.Second, 5*time.Millisecond)

	tr.Send(Activate{Amount: 125})
	assert.False(t, tr.Open())
	assert.Equal(t, int32(0), closes.Load())

	tr.mu.Lock()
	assert.Empty(t, tr.pending)
	tr.mu.Unlock()
}

func TestTransport_ReconnectClosesPrevious(t *testing.T) {
	dialer := &fakeDialer{}
	tr := NewTransport(dialer, staticBranch("branch-9"), nil)
	defer tr.Close()

	opened := make(chan struct{}, 2)
	h := Handlers{OnOpen: func() { opened <- struct{}{} }}

	require.NoError(t, tr.Connect(context.Background(), h))
	<-opened
	require.NoError(t, tr.Connect(context.Background(), h))
	<-opened

	assert.True(t, dialer.conn(0).IsClosed())
	assert.False(t, dialer.conn(1).IsClosed())
	assert.True(t, tr.Open())
}

func TestTransport_CloseFlushesQueuedFramesOnOpenConnection(t *testing.T) {
	dialer := &fakeDialer{}
	tr := NewTransport(dialer, staticBranch("branch-9"), nil)

	opened := make(chan struct{})
	require.NoError(t, tr.Connect(context.Background(), Handlers{OnOpen: func() { close(opened) }}))
	<-opened

	tr.Send(Deactivate{})
	tr.Close()

	c := dialer.conn(0)
	require.Eventually(t, c.IsClosed, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{handshake, `{"type":"deactivate"}`}, c.Written())
}

func TestTransport_CloseRightAfterOpenWritesHandshakeFirst(t *testing.T) {
	dialer := &fakeDialer{}
	tr := NewTransport(dialer, staticBranch("branch-9"), nil)

	// OnOpen runs before the writer starts, so the handshake is still queued.
	done := make(chan struct{})
	require.NoError(t, tr.Connect(context.Background(), Handlers{OnOpen: func() {
		tr.Send(Deactivate{})
		tr.Close()
		close(done)
	}}))
	<-done

	c := dialer.conn(0)
	require.Eventually(t, c.IsClosed, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{handshake, `{"type":"deactivate"}`}, c.Written())
}

func TestTransport_CloseWhileDialingDropsQueue(t *testing.T) {
	dialer := &fakeDialer{gate: make(chan struct{})}
	tr := NewTransport(dialer, staticBranch("branch-9"), nil)

	require.NoError(t, tr.Connect(context.Background(), Handlers{}))
	tr.Send(Activate{Amount: 10})
	tr.Close()
	close(dialer.gate)

	time.Sleep(20 * time.Millisecond)
	if c := dialer.conn(0); c != nil {
		assert.True(t, c.IsClosed())
		assert.Empty(t, c.Written())
	}
}
