package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pubnub "github.com/pubnub/go/v7"
)

var errSubscriptionClosed = errors.New("pubnub: subscription closed")

// PubNubDialer reaches the controller through a PubNub channel pair:
// kiosk.<branch>.in carries controller frames, kiosk.<branch>.out carries
// ours.
type PubNubDialer struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

func InboundChannel(branchID string) string  { return fmt.Sprintf("kiosk.%s.in", branchID) }
func OutboundChannel(branchID string) string { return fmt.Sprintf("kiosk.%s.out", branchID) }

func (d *PubNubDialer) Dial(ctx context.Context, branchID string) (Conn, error) {
	cfg := pubnub.NewConfigWithUserId(pubnub.UserId(d.UserID))
	cfg.PublishKey = d.PublishKey
	cfg.SubscribeKey = d.SubscribeKey
	cfg.SecretKey = d.SecretKey

	c := &pubnubConn{
		pn:        pubnub.NewPubNub(cfg),
		lis:       pubnub.NewListener(),
		inbound:   InboundChannel(branchID),
		outbound:  OutboundChannel(branchID),
		frames:    make(chan []byte, 64),
		errs:      make(chan error, 1),
		connected: make(chan struct{}),
		done:      make(chan struct{}),
	}
	c.pn.AddListener(c.lis)

	go c.processSubscription()

	c.pn.Subscribe().Channels([]string{c.inbound}).Execute()

	select {
	case <-c.connected:
		return c, nil
	case err := <-c.errs:
		c.Close()
		return nil, err
	case <-ctx.Done():
		c.Close()
		return nil, ctx.Err()
	}
}

type pubnubConn struct {
	pn       *pubnub.PubNub
	lis      *pubnub.Listener
	inbound  string
	outbound string

	frames    chan []byte
	errs      chan error
	connected chan struct{}
	done      chan struct{}

	connectOnce sync.Once
	closeOnce   sync.Once
}

func (c *pubnubConn) processSubscription() {
	for {
		select {
		case st := <-c.lis.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory, pubnub.PNReconnectedCategory:
				c.connectOnce.Do(func() { close(c.connected) })

			case pubnub.PNDisconnectedCategory, pubnub.PNAccessDeniedCategory,
				pubnub.PNReconnectionAttemptsExhausted, pubnub.PNBadRequestCategory:
				c.report(fmt.Errorf("pubnub: status category %v", st.Category))

			default:
				slog.Debug("pubnub status", "category", fmt.Sprintf("%v", st.Category))
			}

		case msg := <-c.lis.Message:
			if msg.Channel != c.inbound {
				continue
			}
			data, err := messageBytes(msg.Message)
			if err != nil {
				slog.Warn("pubnub: unreadable message", "error", err)
				continue
			}
			select {
			case c.frames <- data:
			case <-c.done:
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *pubnubConn) report(err error) {
	select {
	case c.errs <- err:
	default:
	}
}

func (c *pubnubConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.frames:
		return data, nil
	case err := <-c.errs:
		return nil, err
	case <-c.done:
		return nil, errSubscriptionClosed
	}
}

func (c *pubnubConn) WriteMessage(data []byte) error {
	_, st, err := c.pn.Publish().
		Channel(c.outbound).
		Message(json.RawMessage(data)).
		Execute()
	if err != nil {
		return fmt.Errorf("pubnub publish (status %d): %w", st.StatusCode, err)
	}
	return nil
}

func (c *pubnubConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.pn.Unsubscribe().Channels([]string{c.inbound}).Execute()
		c.pn.RemoveListener(c.lis)
		c.pn.Destroy()
	})
	return nil
}

// messageBytes turns a PubNub payload back into the frame that was
// published: strings are frames as is, anything else is re-encoded.
func messageBytes(m interface{}) ([]byte, error) {
	switch v := m.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}
