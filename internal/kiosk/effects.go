package kiosk

import (
	"context"
	"errors"

	"cash-kiosk/internal/channel"
	"cash-kiosk/internal/printer"
	"cash-kiosk/internal/session"
	"cash-kiosk/internal/status"
	"cash-kiosk/models"
	"cash-kiosk/monitoring"
)

// effects carries out one session's side effects. Results of background
// work are posted back to the loop and dropped if the session is gone.
type effects struct {
	k  *Kiosk
	id string
	ch Channel
}

func (e *effects) Connect() {
	k, id := e.k, e.id
	h := channel.Handlers{
		OnOpen: func() {
			k.logger.Debug("controller channel open", "session_id", id)
		},
		OnMessage: func(m channel.Message) {
			k.post(func() {
				if k.current(id) {
					k.session.Handle(m)
				}
			})
		},
		OnRaw: func(raw []byte) {
			k.logger.Debug("unrecognized controller frame", "session_id", id, "frame", string(raw))
		},
		OnClose: func(err error) {
			k.post(func() {
				if k.current(id) {
					k.session.ChannelClosed(err)
				}
			})
		},
	}

	k.spawn(func() {
		err := e.ch.Connect(k.ctx, h)
		k.post(func() {
			if k.current(id) {
				k.session.ConnectResult(err)
			}
		})
	})
}

func (e *effects) Send(m channel.Message) { e.ch.Send(m) }

func (e *effects) CloseChannel() { e.ch.Close() }

func (e *effects) Finalize(checkout models.Checkout) {
	k, id := e.k, e.id
	k.spawn(func() {
		order := k.finalizer.Run(k.ctx, checkout)
		k.post(func() {
			if k.current(id) {
				k.session.OrderCreated(order)
			}
		})
	})
}

func (e *effects) Print(job session.PrintJob) {
	k, id := e.k, e.id
	receipt := printer.NewReceipt(k.cfg.Shop, job.Order, job.Cart, k.now())

	k.spawn(func() {
		ctx, cancel := context.WithTimeout(k.ctx, k.cfg.PrintTimeout)
		defer cancel()

		err := k.sink.Print(ctx, receipt)
		switch {
		case err == nil:
			monitoring.TrackPrint(job.Trigger, "printed")
		case errors.Is(err, status.ErrPrintUnsupported):
			monitoring.TrackPrint(job.Trigger, "unsupported")
		default:
			monitoring.TrackPrint(job.Trigger, "failed")
		}

		k.post(func() {
			if k.current(id) {
				k.session.PrintResolved(err)
			}
		})
	})
}

func (e *effects) ResetOrder() {
	k := e.k
	k.spawn(func() {
		if err := k.state.ClearOrder(k.ctx); err != nil {
			k.logger.Error("failed to clear order", "error", err, "session_id", e.id)
		}
	})
}

// Navigate is deferred until the current event is done so the session never
// sees its own teardown mid-call.
func (e *effects) Navigate(route session.Route) {
	e.k.navigate(Screen(route))
}
