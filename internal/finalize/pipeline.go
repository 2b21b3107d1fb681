package finalize

import (
	"context"
	"log/slog"
	"time"

	"cash-kiosk/models"
	"cash-kiosk/monitoring"
	"cash-kiosk/utils"
)

type PositionLookup interface {
	CurrentTable(ctx context.Context) (string, error)
}

type OrderSubmitter interface {
	CreateOrder(ctx context.Context, draft models.OrderDraft) (models.CreatedOrder, error)
}

type DraftStore interface {
	SaveDraft(ctx context.Context, draft models.OrderDraft) error
}

type Journal interface {
	Record(ctx context.Context, sessionID string, order models.CreatedOrder, submitErr error) error
}

// Pipeline turns a completed payment into an order. Every step tolerates the
// failure of the next one, so Run always yields an order.
type Pipeline struct {
	positions    PositionLookup
	orders       OrderSubmitter
	drafts       DraftStore
	journal      Journal
	tableTimeout time.Duration
	logger       *slog.Logger
}

type Option func(*Pipeline)

func WithJournal(j Journal) Option {
	return func(p *Pipeline) { p.journal = j }
}

func WithTableTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.tableTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func NewPipeline(positions PositionLookup, orders OrderSubmitter, drafts DraftStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		positions:    positions,
		orders:       orders,
		drafts:       drafts,
		tableTimeout: 2 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Run(ctx context.Context, checkout models.Checkout) models.CreatedOrder {
	logger := p.logger.With("session_id", checkout.SessionID)

	table := p.lookupTable(ctx, logger)

	draft := models.NewOrderDraft(checkout.Cart, checkout.OrderType, checkout.Cash, table)
	if ref, err := utils.GenerateCode(8); err == nil {
		draft.LocalRef = ref
	}

	if err := p.drafts.SaveDraft(ctx, draft); err != nil {
		logger.Error("failed to persist draft order", "error", err, "local_ref", draft.LocalRef)
	}

	order, submitErr := p.orders.CreateOrder(ctx, draft)
	if submitErr != nil {
		logger.Error("order submission failed, keeping local draft",
			"error", submitErr,
			"local_ref", draft.LocalRef,
			"total", draft.TotalPrice.StringFixed(2))
		monitoring.TrackOrderSubmission("fallback")
		order = models.CreatedOrder{Draft: draft, Local: true}
	} else {
		monitoring.TrackOrderSubmission("created")
		order.Draft = draft
		logger.Info("order created", "order_id", order.ID, "order_no", order.OrderNo)
	}

	if p.journal != nil {
		if err := p.journal.Record(ctx, checkout.SessionID, order, submitErr); err != nil {
			logger.Warn("failed to journal order", "error", err)
		}
	}

	return order
}

func (p *Pipeline) lookupTable(ctx context.Context, logger *slog.Logger) string {
	if p.positions == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, p.tableTimeout)
	defer cancel()

	table, err := p.positions.CurrentTable(ctx)
	if err != nil {
		logger.Warn("table lookup failed", "error", err)
		return ""
	}
	return table
}
