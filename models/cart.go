package models

import (
	"github.com/shopspring/decimal"
)

type MenuItem struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Variations []string          `json:"variations,omitempty"`
	Prices     []decimal.Decimal `json:"prices"`
}

// PriceFor returns the price listed at the index of variation. Items without
// variations use their first price; anything unresolvable is zero.
func (m MenuItem) PriceFor(variation string) decimal.Decimal {
	idx := 0
	if len(m.Variations) > 0 {
		idx = -1
		for i, v := range m.Variations {
			if v == variation {
				idx = i
				break
			}
		}
	}
	if idx < 0 || idx >= len(m.Prices) {
		return decimal.Zero
	}
	return m.Prices[idx]
}

type CartLine struct {
	Item      MenuItem `json:"item"`
	Variation string   `json:"variation"`
	Quantity  int      `json:"quantity"` // >= 1, owned by the cart screen
}

func (l CartLine) UnitPrice() decimal.Decimal {
	return l.Item.PriceFor(l.Variation)
}

func (l CartLine) Subtotal() decimal.Decimal {
	if l.Quantity <= 0 {
		return decimal.Zero
	}
	return l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is persisted as a whole JSON document.
type Cart []CartLine

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Units is the number of physical items in the cart.
func (c Cart) Units() int {
	n := 0
	for _, line := range c {
		if line.Quantity > 0 {
			n += line.Quantity
		}
	}
	return n
}

func (c Cart) IsEmpty() bool {
	return c.Units() == 0
}

// Checkout is what the payment screen hands to finalization once the
// controller reports completion.
type Checkout struct {
	SessionID string          `json:"session_id"`
	Cart      Cart            `json:"cart"`
	OrderType OrderType       `json:"order_type"`
	Cash      decimal.Decimal `json:"cash"`
}
