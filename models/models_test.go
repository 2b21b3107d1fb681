package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCart() Cart {
	latte := MenuItem{
		ID:         "latte",
		Name:       "Latte",
		Variations: []string{"Hot", "Iced"},
		Prices:     []decimal.Decimal{decimal.RequireFromString("45"), decimal.RequireFromString("55.50")},
	}
	cookie := MenuItem{
		ID:     "cookie",
		Name:   "Cookie",
		Prices: []decimal.Decimal{decimal.RequireFromString("12.25")},
	}
	return Cart{
		{Item: latte, Variation: "Iced", Quantity: 2},
		{Item: cookie, Quantity: 1},
	}
}

func TestMenuItem_PriceFor(t *testing.T) {
	cart := sampleCart()

	assert.True(t, cart[0].Item.PriceFor("Hot").Equal(decimal.NewFromInt(45)))
	assert.True(t, cart[0].Item.PriceFor("Iced").Equal(decimal.RequireFromString("55.5")))
	assert.True(t, cart[0].Item.PriceFor("Large").IsZero())
	assert.True(t, cart[1].Item.PriceFor("").Equal(decimal.RequireFromString("12.25")))
}

func TestCart_Total(t *testing.T) {
	cart := sampleCart()

	assert.Equal(t, "123.25", cart.Total().StringFixed(2))
	assert.Equal(t, 3, cart.Units())
	assert.False(t, cart.IsEmpty())
	assert.True(t, Cart{}.IsEmpty())
}

func TestNewOrderDraft_FlattensUnits(t *testing.T) {
	draft := NewOrderDraft(sampleCart(), OrderTypeDineIn, decimal.NewFromInt(150), "4")

	require.Len(t, draft.Lines, 3)
	for _, line := range draft.Lines {
		assert.Equal(t, 1, line.Quantity)
	}
	assert.Equal(t, "latte", draft.Lines[0].ItemID)
	assert.Equal(t, "Iced", draft.Lines[1].Variation)
	assert.Equal(t, "cookie", draft.Lines[2].ItemID)
	assert.Equal(t, "26.75", draft.Change.StringFixed(2))
	assert.Equal(t, OrderStatusOngoing, draft.Status)

	table, ok := draft.TableNo()
	assert.True(t, ok)
	assert.Equal(t, 4, table)
}

func TestNewOrderDraft_ChangeNeverNegative(t *testing.T) {
	draft := NewOrderDraft(sampleCart(), "whatever", decimal.NewFromInt(100), "")

	assert.True(t, draft.Change.IsZero())
	assert.Equal(t, OrderTypeTakeOut, draft.OrderType)

	_, ok := draft.TableNo()
	assert.False(t, ok)
}

func TestOrderDraft_WireFormat(t *testing.T) {
	draft := NewOrderDraft(sampleCart(), OrderTypeTakeOut, decimal.RequireFromString("123.254"), "")
	draft.LocalRef = "AB12"

	data, err := json.Marshal(draft)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, []any{"latte", "latte", "cookie"}, wire["itemIds"])
	assert.Equal(t, []any{1.0, 1.0, 1.0}, wire["quantity"])
	assert.Equal(t, 123.25, wire["totalPrice"])
	assert.Equal(t, 123.25, wire["cash"])
	assert.Equal(t, 0.0, wire["changeAmount"])
	assert.Equal(t, "ONGOING", wire["orderStatus"])
	assert.Equal(t, "TAKE_OUT", wire["orderType"])
	assert.Equal(t, "", wire["tableNumber"])

	var back OrderDraft
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Len(t, back.Lines, 3)
	assert.True(t, back.TotalPrice.Equal(draft.TotalPrice))
	assert.Equal(t, "AB12", back.LocalRef)
}

func TestOrderDraft_RejectsMismatchedArrays(t *testing.T) {
	var d OrderDraft
	err := json.Unmarshal([]byte(`{"itemIds":["a","b"],"quantity":[1],"variation":["",""]}`), &d)
	assert.Error(t, err)
}

func TestMoneyHelpers(t *testing.T) {
	assert.Equal(t, "₱125.00", FormatPeso(decimal.NewFromInt(125)))
	assert.Equal(t, int64(124), ActivationAmount(decimal.RequireFromString("123.5")))
	assert.Equal(t, int64(123), ActivationAmount(decimal.RequireFromString("123.49")))
	assert.True(t, NonNegative(decimal.NewFromInt(-3)).IsZero())
}

func TestParseOrderType(t *testing.T) {
	assert.Equal(t, OrderTypeDineIn, ParseOrderType("dine_in"))
	assert.Equal(t, OrderTypeTakeOut, ParseOrderType("TAKE_OUT"))
	assert.Equal(t, OrderTypeTakeOut, ParseOrderType(""))
}
