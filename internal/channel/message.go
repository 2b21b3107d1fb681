package channel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"cash-kiosk/internal/status"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindController    Kind = "controller"
	KindPaymentUpdate Kind = "payment_update"
	KindPaymentStatus Kind = "payment_status"
	KindActivate      Kind = "activate"
	KindDeactivate    Kind = "deactivate"
	KindDoneOrder     Kind = "done_order"
	KindRefresh       Kind = "refresh"
	KindSentinel      Kind = "sentinel"
	KindUnrecognized  Kind = "unrecognized"
)

// Message is one frame exchanged with the bill acceptor controller.
type Message interface {
	Kind() Kind
}

type Controller struct {
	Status   string
	BranchID string
}

// PaymentUpdate carries either the acceptor's running total (Absolute) or an
// increment to add to the tracked amount.
type PaymentUpdate struct {
	Amount   decimal.Decimal
	Absolute bool
}

type PaymentStatus struct {
	Complete bool
	Status   string
}

type Activate struct {
	Amount int64
}

type Deactivate struct{}

type DoneOrder struct {
	Table int
}

// Refresh asks paired displays to reload the order page.
type Refresh struct{}

// Sentinel is one of the bare ACTIVATED / DEACTIVATED acknowledgements.
type Sentinel struct {
	Token string
}

type Unrecognized struct {
	Raw []byte
}

func (Controller) Kind() Kind    { return KindController }
func (PaymentUpdate) Kind() Kind { return KindPaymentUpdate }
func (PaymentStatus) Kind() Kind { return KindPaymentStatus }
func (Activate) Kind() Kind      { return KindActivate }
func (Deactivate) Kind() Kind    { return KindDeactivate }
func (DoneOrder) Kind() Kind     { return KindDoneOrder }
func (Refresh) Kind() Kind       { return KindRefresh }
func (Sentinel) Kind() Kind      { return KindSentinel }
func (Unrecognized) Kind() Kind  { return KindUnrecognized }

const (
	refreshToken     = "REFRESH_ORDER_PAGE"
	sentinelActive   = "ACTIVATED"
	sentinelInactive = "DEACTIVATED"
	statusComplete   = "complete"
)

type envelope struct {
	Type        string           `json:"type"`
	Status      string           `json:"status,omitempty"`
	BranchID    string           `json:"branchId,omitempty"`
	Total       *decimal.Decimal `json:"total,omitempty"`
	Received    *decimal.Decimal `json:"received,omitempty"`
	TotalAmount *json.Number     `json:"totalAmount,omitempty"`
	Table       *int             `json:"table,omitempty"`
}

type activateFrame struct {
	Type        string `json:"type"`
	TotalAmount int64  `json:"totalAmount"`
}

type doneOrderFrame struct {
	Type  string `json:"type"`
	Table int    `json:"table"`
}

type paymentFrame struct {
	Type     string       `json:"type"`
	Total    *json.Number `json:"total,omitempty"`
	Received *json.Number `json:"received,omitempty"`
	Status   string       `json:"status,omitempty"`
}

// Encode renders m as a JSON frame. Raw variants cannot be sent.
func Encode(m Message) ([]byte, error) {
	switch m := m.(type) {
	case Controller:
		return json.Marshal(envelope{Type: "controller", Status: m.Status, BranchID: m.BranchID})
	case Activate:
		return json.Marshal(activateFrame{Type: "activate", TotalAmount: m.Amount})
	case Deactivate:
		return json.Marshal(envelope{Type: "deactivate"})
	case DoneOrder:
		return json.Marshal(doneOrderFrame{Type: "done_order", Table: m.Table})
	case Refresh:
		return json.Marshal(refreshToken)
	case PaymentUpdate:
		amount := json.Number(m.Amount.String())
		frame := paymentFrame{Type: "payment"}
		if m.Absolute {
			frame.Total = &amount
		} else {
			frame.Received = &amount
		}
		return json.Marshal(frame)
	case PaymentStatus:
		st := m.Status
		if m.Complete {
			st = statusComplete
		}
		return json.Marshal(paymentFrame{Type: "payment", Status: st})
	case nil:
		return nil, fmt.Errorf("encode nil message: %w", status.ErrNotSendable)
	default:
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), status.ErrNotSendable)
	}
}

// Decode parses one inbound frame. It never fails: frames it cannot make
// sense of come back as Unrecognized. A payment frame carrying both an
// amount and a status yields the update followed by the status.
func Decode(raw []byte) []Message {
	text := bytes.TrimSpace(raw)

	if token, ok := bareToken(text); ok {
		switch strings.ToUpper(token) {
		case sentinelActive, sentinelInactive:
			return []Message{Sentinel{Token: strings.ToUpper(token)}}
		case refreshToken:
			return []Message{Refresh{}}
		}
		return []Message{Unrecognized{Raw: raw}}
	}

	var env envelope
	if err := json.Unmarshal(text, &env); err != nil {
		return []Message{Unrecognized{Raw: raw}}
	}

	switch env.Type {
	case "controller":
		return []Message{Controller{Status: env.Status, BranchID: env.BranchID}}

	case "payment":
		var out []Message
		switch {
		case env.Total != nil:
			out = append(out, PaymentUpdate{Amount: *env.Total, Absolute: true})
		case env.Received != nil:
			out = append(out, PaymentUpdate{Amount: *env.Received})
		}
		if env.Status != "" {
			out = append(out, PaymentStatus{Complete: env.Status == statusComplete, Status: env.Status})
		}
		if len(out) == 0 {
			return []Message{Unrecognized{Raw: raw}}
		}
		return out

	case "activate":
		var amount int64
		if env.TotalAmount != nil {
			d, err := decimal.NewFromString(env.TotalAmount.String())
			if err != nil {
				return []Message{Unrecognized{Raw: raw}}
			}
			amount = d.Round(0).IntPart()
		}
		return []Message{Activate{Amount: amount}}

	case "deactivate":
		return []Message{Deactivate{}}

	case "done_order":
		if env.Table == nil {
			return []Message{Unrecognized{Raw: raw}}
		}
		return []Message{DoneOrder{Table: *env.Table}}
	}

	return []Message{Unrecognized{Raw: raw}}
}

// bareToken returns the text of a frame that is a bare word or a JSON string.
func bareToken(text []byte) (string, bool) {
	if len(text) == 0 {
		return "", false
	}
	if text[0] == '"' {
		var s string
		if err := json.Unmarshal(text, &s); err != nil {
			return "", false
		}
		return strings.TrimSpace(s), true
	}
	if text[0] == '{' || text[0] == '[' {
		return "", false
	}
	return string(text), true
}
