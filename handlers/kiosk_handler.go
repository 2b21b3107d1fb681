package handlers

import (
	"context"
	"errors"
	"net/http"

	"cash-kiosk/internal/kiosk"
	"cash-kiosk/models"
	"cash-kiosk/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type KioskAPI interface {
	Focus(ctx context.Context, screen kiosk.Screen) error
	Activity(ctx context.Context) error
	ConfirmIdle(ctx context.Context, present bool) error
	RequestCancel(ctx context.Context) error
	RequestReturn(ctx context.Context) error
	ConfirmPrompt(ctx context.Context, confirmed bool) error
	PrintReceipt(ctx context.Context) error
	OrderAgain(ctx context.Context, again bool) error
	Pair(ctx context.Context, branchID string) error
	Snapshot(ctx context.Context) (kiosk.Snapshot, error)
}

type JournalReader interface {
	List(ctx context.Context, failedOnly bool, limit int) ([]services.JournalEntry, error)
}

// CartWriter persists what the menu and review screens built.
type CartWriter interface {
	SaveCart(ctx context.Context, cart models.Cart) error
	SetOrderType(ctx context.Context, t models.OrderType) error
}

type KioskHandler struct {
	kiosk   KioskAPI
	journal JournalReader
	carts   CartWriter
}

func NewKioskHandler(k KioskAPI, journal JournalReader, carts CartWriter) *KioskHandler {
	return &KioskHandler{kiosk: k, journal: journal, carts: carts}
}

// Focus - The presentation layer moved to another screen
func (h *KioskHandler) Focus(e *core.RequestEvent) error {
	screen, ok := kiosk.ParseScreen(e.Request.PathValue("screen"))
	if !ok {
		return apis.NewNotFoundError("Unknown screen", nil)
	}
	return h.reply(e, h.kiosk.Focus(e.Request.Context(), screen))
}

// Activity - Customer touched something on the focused screen
func (h *KioskHandler) Activity(e *core.RequestEvent) error {
	return h.reply(e, h.kiosk.Activity(e.Request.Context()))
}

// ConfirmIdle - Answer to "are you still there?"
func (h *KioskHandler) ConfirmIdle(e *core.RequestEvent) error {
	var req struct {
		Present bool `json:"present"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	return h.reply(e, h.kiosk.ConfirmIdle(e.Request.Context(), req.Present))
}

func (h *KioskHandler) CancelPayment(e *core.RequestEvent) error {
	return h.reply(e, h.kiosk.RequestCancel(e.Request.Context()))
}

func (h *KioskHandler) ReturnToReview(e *core.RequestEvent) error {
	return h.reply(e, h.kiosk.RequestReturn(e.Request.Context()))
}

// ConfirmPrompt - Confirm or dismiss the open cancel/return prompt
func (h *KioskHandler) ConfirmPrompt(e *core.RequestEvent) error {
	var req struct {
		Confirmed bool `json:"confirmed"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	return h.reply(e, h.kiosk.ConfirmPrompt(e.Request.Context(), req.Confirmed))
}

func (h *KioskHandler) PrintReceipt(e *core.RequestEvent) error {
	return h.reply(e, h.kiosk.PrintReceipt(e.Request.Context()))
}

func (h *KioskHandler) OrderAgain(e *core.RequestEvent) error {
	var req struct {
		Again bool `json:"again"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	return h.reply(e, h.kiosk.OrderAgain(e.Request.Context(), req.Again))
}

// Pair - Store the branch identity scanned on the pairing screen
func (h *KioskHandler) Pair(e *core.RequestEvent) error {
	var req struct {
		BranchID string `json:"branchId"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.BranchID == "" {
		return apis.NewBadRequestError("branchId is required", nil)
	}
	return h.reply(e, h.kiosk.Pair(e.Request.Context(), req.BranchID))
}

// SaveCart - Replace the persisted cart and order type
func (h *KioskHandler) SaveCart(e *core.RequestEvent) error {
	var req struct {
		Cart      models.Cart `json:"cart"`
		OrderType string      `json:"orderType"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	for _, line := range req.Cart {
		if line.Quantity < 1 {
			return apis.NewBadRequestError("Quantity must be at least 1", nil)
		}
	}

	ctx := e.Request.Context()
	if err := h.carts.SaveCart(ctx, req.Cart); err != nil {
		return apis.NewInternalServerError("Failed to save cart", err)
	}
	if err := h.carts.SetOrderType(ctx, models.ParseOrderType(req.OrderType)); err != nil {
		return apis.NewInternalServerError("Failed to save order type", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"units": req.Cart.Units(),
		"total": models.FormatPeso(req.Cart.Total()),
	})
}

func (h *KioskHandler) Snapshot(e *core.RequestEvent) error {
	snap, err := h.kiosk.Snapshot(e.Request.Context())
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, snap)
}

// Journal - Finalized orders, newest first; ?failed=1 lists local-only drafts
func (h *KioskHandler) Journal(e *core.RequestEvent) error {
	failed := e.Request.URL.Query().Get("failed")
	entries, err := h.journal.List(e.Request.Context(), failed == "1" || failed == "true", 100)
	if err != nil {
		return apis.NewInternalServerError("Failed to read order journal", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"items": entries})
}

func (h *KioskHandler) reply(e *core.RequestEvent, err error) error {
	if err != nil {
		return toAPIError(err)
	}
	snap, err := h.kiosk.Snapshot(e.Request.Context())
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, snap)
}

func toAPIError(err error) error {
	switch {
	case errors.Is(err, kiosk.ErrUnknownScreen):
		return apis.NewNotFoundError("Unknown screen", nil)
	case errors.Is(err, kiosk.ErrNoSession):
		return apis.NewApiError(http.StatusConflict, "No active payment session", nil)
	case errors.Is(err, kiosk.ErrNotAvailable):
		return apis.NewApiError(http.StatusConflict, "Action not available right now", nil)
	case errors.Is(err, kiosk.ErrStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apis.NewApiError(http.StatusServiceUnavailable, "Kiosk is not running", nil)
	default:
		return apis.NewInternalServerError("Kiosk request failed", err)
	}
}
