// Package simulator emulates the pieces of a branch a kiosk talks to: the
// bill acceptor controller on /ws, the order service and the robot position
// service.
package simulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"cash-kiosk/internal/channel"
	"cash-kiosk/models"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/shopspring/decimal"
)

var ErrNotConnected = errors.New("simulator: no kiosk connected")

// Options tweak the simulated branch.
type Options struct {
	// Position is what the position service reports, e.g. "table 3".
	Position string
	// AutoPay inserts the exact armed amount as soon as the acceptor is
	// activated.
	AutoPay bool
	// FailOrders makes the order service answer 500.
	FailOrders bool
}

type Simulator struct {
	logger   *slog.Logger
	echo     *echo.Echo
	upgrader websocket.Upgrader

	mu       sync.Mutex
	opts     Options
	conn     *websocket.Conn
	writeMu  sync.Mutex
	branchID string
	armed    int64
	received decimal.Decimal
	frames   []channel.Message
	orders   []models.OrderDraft
	orderSeq int
}

func New(opts Options, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Simulator{
		logger: logger.With("component", "simulator"),
		opts:   opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	e := echo.New()
	e.Use(middleware.Recover())

	// Controller
	e.GET("/ws", s.handleWS)

	// Branch services
	e.POST("/api/orders", s.handleCreateOrder)
	e.GET("/api/robot-positions/current", s.handlePosition)

	// Simulation controls
	e.POST("/sim/bills", s.handleInsert)
	e.PUT("/sim/position", s.handleSetPosition)
	e.GET("/sim/state", s.handleState)

	s.echo = e
	return s
}

func (s *Simulator) Handler() http.Handler { return s.echo }

// Insert feeds a bill into the acceptor. Once the armed amount is covered the
// controller reports completion.
func (s *Simulator) Insert(amount decimal.Decimal) error {
	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.received = s.received.Add(amount)
	covered := s.armed > 0 && s.received.GreaterThanOrEqual(decimal.NewFromInt(s.armed))
	if covered {
		s.armed = 0
	}
	s.mu.Unlock()

	if err := s.send(channel.PaymentUpdate{Amount: amount}); err != nil {
		return err
	}
	if covered {
		return s.send(channel.PaymentStatus{Complete: true})
	}
	return nil
}

func (s *Simulator) SetPosition(pos string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Position = pos
}

func (s *Simulator) SetFailOrders(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.FailOrders = fail
}

// Armed is the amount the kiosk last activated the acceptor with, zero when
// it is not accepting bills.
func (s *Simulator) Armed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

func (s *Simulator) BranchID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.branchID
}

func (s *Simulator) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Frames returns every message received from kiosks so far.
func (s *Simulator) Frames() []channel.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]channel.Message(nil), s.frames...)
}

func (s *Simulator) Orders() []models.OrderDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OrderDraft(nil), s.orders...)
}

func (s *Simulator) send(m channel.Message) error {
	data, err := channel.Encode(m)
	if err != nil {
		return err
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Simulator) sendRaw(text string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (s *Simulator) handleWS(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = conn
	s.branchID = c.Request().Header.Get("X-Branch-Id")
	s.armed = 0
	s.received = decimal.Zero
	s.mu.Unlock()

	s.logger.Info("kiosk connected", "branch_id", s.branchID)
	defer s.disconnect(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Info("kiosk disconnected", "error", err)
			return nil
		}
		for _, m := range channel.Decode(data) {
			s.receive(m)
		}
	}
}

func (s *Simulator) disconnect(conn *websocket.Conn) {
	conn.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		s.conn = nil
		s.armed = 0
	}
}

func (s *Simulator) receive(m channel.Message) {
	s.mu.Lock()
	s.frames = append(s.frames, m)
	autoPay := s.opts.AutoPay
	s.mu.Unlock()

	switch m := m.(type) {
	case channel.Controller:
		s.mu.Lock()
		if m.BranchID != "" {
			s.branchID = m.BranchID
		}
		s.mu.Unlock()

	case channel.Activate:
		s.mu.Lock()
		s.armed = m.Amount
		s.received = decimal.Zero
		s.mu.Unlock()
		s.logger.Info("acceptor armed", "amount", m.Amount)

		if err := s.sendRaw("ACTIVATED"); err != nil {
			s.logger.Warn("ack activate", "error", err)
		}
		if autoPay {
			go func() {
				if err := s.Insert(decimal.NewFromInt(m.Amount)); err != nil {
					s.logger.Warn("auto pay", "error", err)
				}
			}()
		}

	case channel.Deactivate:
		s.mu.Lock()
		s.armed = 0
		s.mu.Unlock()
		if err := s.sendRaw("DEACTIVATED"); err != nil {
			s.logger.Debug("ack deactivate", "error", err)
		}

	default:
		s.logger.Info("frame received", "kind", m.Kind())
	}
}

func (s *Simulator) handleCreateOrder(c echo.Context) error {
	var draft models.OrderDraft
	if err := json.NewDecoder(c.Request().Body).Decode(&draft); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": err.Error()})
	}

	s.mu.Lock()
	if s.opts.FailOrders {
		s.mu.Unlock()
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "order service unavailable"})
	}
	s.orderSeq++
	seq := s.orderSeq
	s.orders = append(s.orders, draft)
	s.mu.Unlock()

	return c.JSON(http.StatusCreated, map[string]any{
		"id":      seq,
		"orderNo": fmt.Sprintf("A-%04d", seq),
		"status":  models.OrderStatusOngoing,
	})
}

func (s *Simulator) handlePosition(c echo.Context) error {
	s.mu.Lock()
	pos := s.opts.Position
	s.mu.Unlock()
	return c.String(http.StatusOK, pos)
}

func (s *Simulator) handleInsert(c echo.Context) error {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": err.Error()})
	}
	if !req.Amount.IsPositive() {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "amount must be positive"})
	}
	if err := s.Insert(req.Amount); err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"message": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Simulator) handleSetPosition(c echo.Context) error {
	var req struct {
		Position string `json:"position"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": err.Error()})
	}
	s.SetPosition(strings.TrimSpace(req.Position))
	return c.NoContent(http.StatusNoContent)
}

func (s *Simulator) handleState(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]any{
		"connected": s.conn != nil,
		"branch_id": s.branchID,
		"armed":     s.armed,
		"received":  s.received.StringFixed(2),
		"orders":    len(s.orders),
		"position":  s.opts.Position,
	})
}
