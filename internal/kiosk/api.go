package kiosk

import (
	"context"
	"strings"
	"time"

	"cash-kiosk/internal/idle"
	"cash-kiosk/internal/session"
)

type Snapshot struct {
	Screen      Screen            `json:"screen"`
	Loading     bool              `json:"loading"`
	Notice      string            `json:"notice,omitempty"`
	IdlePrompt  bool              `json:"idle_prompt"`
	IdleSeconds int               `json:"idle_seconds,omitempty"`
	Session     *session.Snapshot `json:"session,omitempty"`
}

// Focus tells the kiosk which screen the customer is looking at.
func (k *Kiosk) Focus(ctx context.Context, screen Screen) error {
	sc, ok := ParseScreen(string(screen))
	if !ok {
		return ErrUnknownScreen
	}
	return k.do(ctx, func() error {
		k.focus(sc)
		return nil
	})
}

// Activity is any tracked customer interaction on the focused screen.
func (k *Kiosk) Activity(ctx context.Context) error {
	return k.do(ctx, k.activity)
}

// ConfirmIdle answers "are you still there?".
func (k *Kiosk) ConfirmIdle(ctx context.Context, present bool) error {
	return k.do(ctx, func() error { return k.confirmIdle(present) })
}

func (k *Kiosk) RequestCancel(ctx context.Context) error {
	return k.do(ctx, func() error { return k.sessionAction((*session.Machine).RequestCancel) })
}

func (k *Kiosk) RequestReturn(ctx context.Context) error {
	return k.do(ctx, func() error { return k.sessionAction((*session.Machine).RequestReturn) })
}

// ConfirmPrompt confirms or dismisses the open cancel/return prompt.
func (k *Kiosk) ConfirmPrompt(ctx context.Context, confirmed bool) error {
	return k.do(ctx, func() error { return k.confirmPrompt(confirmed) })
}

func (k *Kiosk) PrintReceipt(ctx context.Context) error {
	return k.do(ctx, func() error { return k.sessionAction((*session.Machine).PrintRequested) })
}

func (k *Kiosk) OrderAgain(ctx context.Context, again bool) error {
	return k.do(ctx, func() error {
		return k.sessionAction(func(m *session.Machine) bool { return m.OrderAgain(again) })
	})
}

// Pair stores the branch identity and leaves the pairing screen.
func (k *Kiosk) Pair(ctx context.Context, branchID string) error {
	branchID = strings.TrimSpace(branchID)
	if branchID == "" {
		return ErrNotAvailable
	}
	if err := k.state.SetBranchID(ctx, branchID); err != nil {
		return err
	}
	k.logger.Info("kiosk paired", "branch_id", branchID)

	return k.do(ctx, func() error {
		if k.screen == ScreenPairing {
			k.focus(ScreenWelcome)
		}
		return nil
	})
}

func (k *Kiosk) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := k.do(ctx, func() error {
		snap = k.snapshot()
		return nil
	})
	return snap, err
}

func (k *Kiosk) activity() error {
	if m := k.idle[k.screen]; m != nil {
		m.Activity()
		k.idlePrompt = false
	}
	return nil
}

func (k *Kiosk) confirmIdle(present bool) error {
	m := k.idle[k.screen]
	if m == nil || m.Stage() != idle.StagePrompting {
		return ErrNotAvailable
	}
	k.idlePrompt = false
	m.Confirm(present)
	return nil
}

func (k *Kiosk) confirmPrompt(confirmed bool) error {
	return k.sessionAction(func(m *session.Machine) bool {
		if m.Prompt() == session.PromptNone {
			return false
		}
		if !confirmed {
			m.DismissPrompt()
			return true
		}
		return m.ConfirmPrompt()
	})
}

func (k *Kiosk) sessionAction(fn func(*session.Machine) bool) error {
	if k.session == nil || !k.session.Alive() {
		return ErrNoSession
	}
	if !fn(k.session) {
		return ErrNotAvailable
	}
	return nil
}

func (k *Kiosk) snapshot() Snapshot {
	snap := Snapshot{
		Screen:     k.screen,
		Loading:    k.loadingID != "",
		Notice:     k.notice,
		IdlePrompt: k.idlePrompt,
	}
	if m := k.idle[k.screen]; m != nil && m.Stage() == idle.StagePrompting {
		snap.IdleSeconds = int((m.Remaining() + time.Second - 1) / time.Second)
	}
	if k.session != nil {
		s := k.session.Snapshot()
		snap.Session = &s
	}
	return snap
}
