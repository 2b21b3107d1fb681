package idle

import (
	"log/slog"
	"time"

	"cash-kiosk/monitoring"
	"cash-kiosk/utils"
)

type Stage string

const (
	StageInactive  Stage = "inactive"
	StageWatching  Stage = "watching"
	StagePrompting Stage = "prompting"
	StageExpired   Stage = "expired"
)

const (
	DefaultSoft = 5 * time.Minute
	DefaultHard = 15 * time.Second
)

// Monitor is a two-stage inactivity timer for one screen. After soft of no
// activity it asks whether anyone is there; if that goes unanswered for hard
// it expires. Like the payment session it is driven by Advance and must only
// be used from one goroutine.
type Monitor struct {
	name     string
	soft     time.Duration
	hard     time.Duration
	onPrompt func()
	onExpire func()
	logger   *slog.Logger

	stage   Stage
	elapsed time.Duration
	expired *utils.OneShot
}

func New(name string, soft, hard time.Duration, onPrompt, onExpire func()) *Monitor {
	if soft <= 0 {
		soft = DefaultSoft
	}
	if hard <= 0 {
		hard = DefaultHard
	}
	return &Monitor{
		name:     name,
		soft:     soft,
		hard:     hard,
		onPrompt: onPrompt,
		onExpire: onExpire,
		logger:   slog.Default().With("idle_monitor", name),
		stage:    StageInactive,
		expired:  &utils.OneShot{},
	}
}

func (m *Monitor) Name() string { return m.name }

func (m *Monitor) Stage() Stage { return m.stage }

// Start arms the soft timer from zero. Restarting also re-arms expiry.
func (m *Monitor) Start() {
	m.stage = StageWatching
	m.elapsed = 0
	m.expired = &utils.OneShot{}
}

// Stop cancels both timers; nothing fires until the next Start.
func (m *Monitor) Stop() {
	m.stage = StageInactive
	m.elapsed = 0
}

// Activity resets both timers. It is ignored while the monitor is stopped.
func (m *Monitor) Activity() {
	if m.stage != StageWatching && m.stage != StagePrompting {
		return
	}
	m.stage = StageWatching
	m.elapsed = 0
}

// Confirm answers the "are you still there?" prompt. Present counts as
// activity, anything else expires right away.
func (m *Monitor) Confirm(present bool) {
	if m.stage != StagePrompting {
		return
	}
	if present {
		monitoring.TrackIdle(m.name, "confirmed")
		m.Activity()
		return
	}
	m.expire()
}

// Advance moves the active stage forward by d.
func (m *Monitor) Advance(d time.Duration) {
	if d <= 0 {
		return
	}

	switch m.stage {
	case StageWatching:
		m.elapsed += d
		if m.elapsed < m.soft {
			return
		}
		m.stage = StagePrompting
		m.elapsed = 0
		m.logger.Info("no activity, prompting")
		monitoring.TrackIdle(m.name, "prompt")
		if m.onPrompt != nil {
			m.onPrompt()
		}

	case StagePrompting:
		m.elapsed += d
		if m.elapsed >= m.hard {
			m.expire()
		}
	}
}

// Remaining is what is left of the current stage, zero when stopped.
func (m *Monitor) Remaining() time.Duration {
	switch m.stage {
	case StageWatching:
		return m.soft - m.elapsed
	case StagePrompting:
		return m.hard - m.elapsed
	}
	return 0
}

func (m *Monitor) expire() {
	if !m.expired.TryFire() {
		return
	}
	m.stage = StageExpired
	m.elapsed = 0
	m.logger.Info("idle session expired, abandoning order")
	monitoring.TrackIdle(m.name, "expired")
	if m.onExpire != nil {
		m.onExpire()
	}
}
