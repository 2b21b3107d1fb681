package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type OrderType string

const (
	OrderTypeDineIn  OrderType = "DINE_IN"
	OrderTypeTakeOut OrderType = "TAKE_OUT"
)

// ParseOrderType treats anything other than DINE_IN as a take-out order.
func ParseOrderType(s string) OrderType {
	if strings.EqualFold(strings.TrimSpace(s), string(OrderTypeDineIn)) {
		return OrderTypeDineIn
	}
	return OrderTypeTakeOut
}

const OrderStatusOngoing = "ONGOING"

// OrderLine is one physical unit of a cart line.
type OrderLine struct {
	ItemID    string
	Quantity  int
	Variation string
}

type OrderDraft struct {
	Lines       []OrderLine
	TotalPrice  decimal.Decimal
	Cash        decimal.Decimal
	Change      decimal.Decimal
	Status      string
	OrderType   OrderType
	TableNumber string
	LocalRef    string
}

// NewOrderDraft flattens the cart into one row per unit and computes change.
// Amounts are rounded to centavos and change is never negative.
func NewOrderDraft(cart Cart, orderType OrderType, cash decimal.Decimal, table string) OrderDraft {
	var lines []OrderLine
	for _, line := range cart {
		for i := 0; i < line.Quantity; i++ {
			lines = append(lines, OrderLine{
				ItemID:    line.Item.ID,
				Quantity:  1,
				Variation: line.Variation,
			})
		}
	}

	total := Round2(cart.Total())
	cash = Round2(NonNegative(cash))

	return OrderDraft{
		Lines:       lines,
		TotalPrice:  total,
		Cash:        cash,
		Change:      Round2(NonNegative(cash.Sub(total))),
		Status:      OrderStatusOngoing,
		OrderType:   ParseOrderType(string(orderType)),
		TableNumber: table,
	}
}

// TableNo returns the positive table number of the draft, if any.
func (d OrderDraft) TableNo() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(d.TableNumber))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// orderPayload is the order service wire format: parallel arrays, one entry
// per unit.
type orderPayload struct {
	ItemIDs      []string    `json:"itemIds"`
	Quantity     []int       `json:"quantity"`
	Variation    []string    `json:"variation"`
	TotalPrice   json.Number `json:"totalPrice"`
	Cash         json.Number `json:"cash"`
	ChangeAmount json.Number `json:"changeAmount"`
	OrderStatus  string      `json:"orderStatus"`
	OrderType    OrderType   `json:"orderType"`
	TableNumber  string      `json:"tableNumber"`
	LocalRef     string      `json:"localRef,omitempty"`
}

func (d OrderDraft) MarshalJSON() ([]byte, error) {
	p := orderPayload{
		ItemIDs:      make([]string, 0, len(d.Lines)),
		Quantity:     make([]int, 0, len(d.Lines)),
		Variation:    make([]string, 0, len(d.Lines)),
		TotalPrice:   json.Number(Round2(d.TotalPrice).StringFixed(2)),
		Cash:         json.Number(Round2(d.Cash).StringFixed(2)),
		ChangeAmount: json.Number(Round2(d.Change).StringFixed(2)),
		OrderStatus:  d.Status,
		OrderType:    d.OrderType,
		TableNumber:  d.TableNumber,
		LocalRef:     d.LocalRef,
	}
	for _, line := range d.Lines {
		p.ItemIDs = append(p.ItemIDs, line.ItemID)
		p.Quantity = append(p.Quantity, line.Quantity)
		p.Variation = append(p.Variation, line.Variation)
	}
	return json.Marshal(p)
}

func (d *OrderDraft) UnmarshalJSON(data []byte) error {
	var p orderPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if len(p.Quantity) != len(p.ItemIDs) || len(p.Variation) != len(p.ItemIDs) {
		return fmt.Errorf("order draft: mismatched line arrays (%d ids, %d quantities, %d variations)",
			len(p.ItemIDs), len(p.Quantity), len(p.Variation))
	}

	amounts := make([]decimal.Decimal, 3)
	for i, n := range []json.Number{p.TotalPrice, p.Cash, p.ChangeAmount} {
		if n == "" {
			continue
		}
		v, err := decimal.NewFromString(n.String())
		if err != nil {
			return fmt.Errorf("order draft: amount %q: %w", n, err)
		}
		amounts[i] = v
	}

	lines := make([]OrderLine, len(p.ItemIDs))
	for i := range p.ItemIDs {
		lines[i] = OrderLine{ItemID: p.ItemIDs[i], Quantity: p.Quantity[i], Variation: p.Variation[i]}
	}

	*d = OrderDraft{
		Lines:       lines,
		TotalPrice:  amounts[0],
		Cash:        amounts[1],
		Change:      amounts[2],
		Status:      p.OrderStatus,
		OrderType:   p.OrderType,
		TableNumber: p.TableNumber,
		LocalRef:    p.LocalRef,
	}
	return nil
}

// CreatedOrder is the order the kiosk continues with after finalization.
// Local is set when the order service could not be reached and the draft
// was adopted as is.
type CreatedOrder struct {
	ID      string     `json:"id,omitempty"`
	OrderNo string     `json:"order_no,omitempty"`
	Draft   OrderDraft `json:"draft"`
	Local   bool       `json:"local"`
}
