package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy_Unwrap(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"configuration", &ConfigurationError{Op: "channel.Connect", Err: ErrNoBranch}, "channel.Connect: configuration: branch: no branch identity paired"},
		{"channel", &ChannelError{Op: "dial", Err: cause}, "dial: channel: boom"},
		{"remote", &RemoteServiceError{Op: "orders.Create", StatusCode: 502, Err: cause}, "orders.Create: remote service (status 502): boom"},
		{"remote without status", &RemoteServiceError{Op: "orders.Create", Err: cause}, "orders.Create: remote service: boom"},
		{"print", &PrintError{Op: "print.lp", Err: ErrNoPrinter}, "print.lp: print: no printer reachable"},
		{"timeout", &TimeoutError{Op: "session", Err: ErrPaymentDeadline}, "session: timeout: payment: deadline elapsed before completion"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.EqualError(t, tt.err, tt.want)
			assert.NotNil(t, errors.Unwrap(tt.err))
		})
	}
}

func TestIsConfiguration(t *testing.T) {
	wrapped := fmt.Errorf("connect: %w", &ConfigurationError{Op: "x", Err: ErrNoBranch})

	assert.True(t, IsConfiguration(wrapped))
	assert.True(t, errors.Is(wrapped, ErrNoBranch))
	assert.False(t, IsConfiguration(&ChannelError{Op: "x", Err: errors.New("y")}))
}
