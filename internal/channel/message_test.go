package channel

import (
	"testing"

	"cash-kiosk/internal/status"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_OutboundFrames(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"handshake", Controller{Status: "connected", BranchID: "b-1"}, `{"type":"controller","status":"connected","branchId":"b-1"}`},
		{"activate", Activate{Amount: 125}, `{"type":"activate","totalAmount":125}`},
		{"activate zero", Activate{}, `{"type":"activate","totalAmount":0}`},
		{"deactivate", Deactivate{}, `{"type":"deactivate"}`},
		{"done order", DoneOrder{Table: 7}, `{"type":"done_order","table":7}`},
		{"refresh", Refresh{}, `"REFRESH_ORDER_PAGE"`},
		{"absolute payment", PaymentUpdate{Amount: decimal.NewFromInt(100), Absolute: true}, `{"type":"payment","total":100}`},
		{"increment payment", PaymentUpdate{Amount: decimal.NewFromInt(20)}, `{"type":"payment","received":20}`},
		{"complete", PaymentStatus{Complete: true}, `{"type":"payment","status":"complete"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestEncode_RejectsRawVariants(t *testing.T) {
	for _, m := range []Message{Sentinel{Token: "ACTIVATED"}, Unrecognized{Raw: []byte("hello")}, nil} {
		_, err := Encode(m)
		assert.ErrorIs(t, err, status.ErrNotSendable)
	}
}

func TestDecode_PaymentFrames(t *testing.T) {
	msgs := Decode([]byte(`{"type":"payment","total":125}`))
	require.Len(t, msgs, 1)
	update := msgs[0].(PaymentUpdate)
	assert.True(t, update.Absolute)
	assert.True(t, update.Amount.Equal(decimal.NewFromInt(125)))

	msgs = Decode([]byte(`{"type":"payment","received":20.5}`))
	require.Len(t, msgs, 1)
	update = msgs[0].(PaymentUpdate)
	assert.False(t, update.Absolute)
	assert.Equal(t, "20.5", update.Amount.String())

	msgs = Decode([]byte(`{"type":"payment","total":50,"received":10,"status":"complete"}`))
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].(PaymentUpdate).Absolute)
	assert.Equal(t, PaymentStatus{Complete: true, Status: "complete"}, msgs[1])

	msgs = Decode([]byte(`{"type":"payment","status":"pending"}`))
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].(PaymentStatus).Complete)
}

func TestDecode_Sentinels(t *testing.T) {
	for _, raw := range []string{"ACTIVATED", "deactivated", `"Activated"`, "  DEACTIVATED\n"} {
		msgs := Decode([]byte(raw))
		require.Len(t, msgs, 1, raw)
		assert.Equal(t, KindSentinel, msgs[0].Kind(), raw)
	}
}

func TestDecode_OtherVariants(t *testing.T) {
	assert.Equal(t, []Message{Controller{Status: "connected", BranchID: "x"}},
		Decode([]byte(`{"type":"controller","status":"connected","branchId":"x"}`)))
	assert.Equal(t, []Message{Activate{Amount: 126}}, Decode([]byte(`{"type":"activate","totalAmount":125.5}`)))
	assert.Equal(t, []Message{Deactivate{}}, Decode([]byte(`{"type":"deactivate"}`)))
	assert.Equal(t, []Message{DoneOrder{Table: 3}}, Decode([]byte(`{"type":"done_order","table":3}`)))
	assert.Equal(t, []Message{Refresh{}}, Decode([]byte(`"REFRESH_ORDER_PAGE"`)))
}

func TestDecode_Unrecognized(t *testing.T) {
	for _, raw := range []string{"", "hello", `{"type":"mystery"}`, `{"type":"payment"}`, `{not json`, `[1,2]`, `{"type":"done_order"}`, "42"} {
		msgs := Decode([]byte(raw))
		require.Len(t, msgs, 1, raw)
		assert.Equal(t, KindUnrecognized, msgs[0].Kind(), raw)
		assert.Equal(t, raw, string(msgs[0].(Unrecognized).Raw))
	}
}
