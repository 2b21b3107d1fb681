package monitoring

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_payment_sessions_total",
			Help: "Payment sessions by final state",
		},
		[]string{"outcome"},
	)

	activeSession = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiosk_active_payment_session",
			Help: "1 while a payment session holds the controller channel",
		},
	)

	paymentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiosk_payment_duration_seconds",
			Help:    "Time from activation to the end of a payment session",
			Buckets: prometheus.ExponentialBuckets(5, 2, 8),
		},
		[]string{"outcome"},
	)

	channelFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_channel_frames_total",
			Help: "Controller channel frames by direction and message kind",
		},
		[]string{"direction", "kind"},
	)

	orderSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_order_submissions_total",
			Help: "Order service submissions; fallback means the local draft was adopted",
		},
		[]string{"result"},
	)

	receiptPrints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_receipt_prints_total",
			Help: "Receipt print attempts by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	idleTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_idle_timeouts_total",
			Help: "Idle monitor escalations by screen and stage",
		},
		[]string{"screen", "stage"},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiosk_active_goroutines",
			Help: "Current number of goroutines",
		},
	)
)

type Monitor struct {
	interval time.Duration
}

// NewMonitor starts periodic runtime collection until ctx is done.
func NewMonitor(ctx context.Context, interval time.Duration) *Monitor {
	monitor := &Monitor{interval: interval}

	go monitor.collectMetrics(ctx)

	return monitor
}

func (m *Monitor) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			goroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

func TrackSessionStarted() {
	activeSession.Set(1)
}

// TrackSessionEnded records the final state of a payment session.
func TrackSessionEnded(outcome string, duration time.Duration) {
	activeSession.Set(0)
	paymentSessions.WithLabelValues(outcome).Inc()
	paymentDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func TrackFrame(direction, kind string) {
	channelFrames.WithLabelValues(direction, kind).Inc()
}

func TrackOrderSubmission(result string) {
	orderSubmissions.WithLabelValues(result).Inc()
}

func TrackPrint(trigger, result string) {
	receiptPrints.WithLabelValues(trigger, result).Inc()
}

func TrackIdle(screen, stage string) {
	idleTimeouts.WithLabelValues(screen, stage).Inc()
}
