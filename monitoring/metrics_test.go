package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackOrderSubmission(t *testing.T) {
	before := testutil.ToFloat64(orderSubmissions.WithLabelValues("fallback"))

	TrackOrderSubmission("fallback")

	assert.Equal(t, before+1, testutil.ToFloat64(orderSubmissions.WithLabelValues("fallback")))
}

func TestTrackSessionLifecycle(t *testing.T) {
	TrackSessionStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(activeSession))

	before := testutil.ToFloat64(paymentSessions.WithLabelValues("TIMED_OUT"))
	TrackSessionEnded("TIMED_OUT", 120*time.Second)

	assert.Equal(t, 0.0, testutil.ToFloat64(activeSession))
	assert.Equal(t, before+1, testutil.ToFloat64(paymentSessions.WithLabelValues("TIMED_OUT")))
}

func TestMonitor_CollectsGoroutines(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	NewMonitor(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(goroutineCount) > 0
	}, time.Second, 10*time.Millisecond)
}
