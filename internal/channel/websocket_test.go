package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://192.168.1.20:8080", "ws://192.168.1.20:8080/ws"},
		{"https://controller.local/", "wss://controller.local/ws"},
		{"ws://controller.local/ws", "ws://controller.local/ws"},
	}
	for _, tt := range tests {
		got, err := ControllerURL(tt.base)
		require.NoError(t, err, tt.base)
		assert.Equal(t, tt.want, got)
	}

	_, err := ControllerURL("ftp://controller.local")
	assert.Error(t, err)
}

func TestWebSocketDialer_RoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	branch := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		branch <- r.Header.Get("X-Branch-Id")
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url, err := ControllerURL(srv.URL)
	require.NoError(t, err)

	conn, err := (&WebSocketDialer{URL: url, HandshakeTimeout: time.Second}).Dial(context.Background(), "branch-1")
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "branch-1", <-branch)

	require.NoError(t, conn.WriteMessage([]byte(`{"type":"deactivate"}`)))
	data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"deactivate"}`, string(data))

	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
}
