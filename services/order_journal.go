package services

import (
	"context"
	"fmt"
	"time"

	"cash-kiosk/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

const JournalCollection = "order_journal"

type JournalEntry struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	LocalRef    string    `json:"local_ref"`
	OrderID     string    `json:"order_id"`
	OrderNo     string    `json:"order_no"`
	OrderType   string    `json:"order_type"`
	TableNumber string    `json:"table_number"`
	Total       string    `json:"total"`
	Cash        string    `json:"cash"`
	Change      string    `json:"change"`
	Submitted   bool      `json:"submitted"`
	Error       string    `json:"error,omitempty"`
	Created     time.Time `json:"created"`
}

// OrderJournal keeps one record per finalized payment session in the
// PocketBase database, including orders that only exist as a local draft.
type OrderJournal struct {
	app core.App
}

func NewOrderJournal(app core.App) *OrderJournal {
	return &OrderJournal{app: app}
}

// Record writes the outcome of a finalization. A second call for the same
// session updates the existing record.
func (j *OrderJournal) Record(ctx context.Context, sessionID string, order models.CreatedOrder, submitErr error) error {
	collection, err := j.app.FindCollectionByNameOrId(JournalCollection)
	if err != nil {
		return fmt.Errorf("journal: find collection: %w", err)
	}

	var record *core.Record
	existing, err := j.app.FindAllRecords(collection, dbx.HashExp{"session_id": sessionID})
	if err != nil {
		return fmt.Errorf("journal: find session: %w", err)
	}
	if len(existing) > 0 {
		record = existing[0]
	} else {
		record = core.NewRecord(collection)
	}

	draft := order.Draft
	record.Set("session_id", sessionID)
	record.Set("local_ref", draft.LocalRef)
	record.Set("order_id", order.ID)
	record.Set("order_no", order.OrderNo)
	record.Set("order_type", string(draft.OrderType))
	record.Set("table_number", draft.TableNumber)
	record.Set("total", draft.TotalPrice.StringFixed(2))
	record.Set("cash", draft.Cash.StringFixed(2))
	record.Set("change", draft.Change.StringFixed(2))
	record.Set("submitted", !order.Local)
	record.Set("payload", draft)
	if submitErr != nil {
		record.Set("error", submitErr.Error())
	} else {
		record.Set("error", "")
	}

	if err := j.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("journal: save: %w", err)
	}
	return nil
}

// List returns the newest entries first. With failedOnly only orders that
// never reached the order service are listed.
func (j *OrderJournal) List(ctx context.Context, failedOnly bool, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	filter := "id != ''"
	params := dbx.Params{}
	if failedOnly {
		filter = "submitted = {:submitted}"
		params["submitted"] = false
	}

	records, err := j.app.FindRecordsByFilter(JournalCollection, filter, "-created", limit, 0, params)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}

	entries := make([]JournalEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, JournalEntry{
			ID:          r.Id,
			SessionID:   r.GetString("session_id"),
			LocalRef:    r.GetString("local_ref"),
			OrderID:     r.GetString("order_id"),
			OrderNo:     r.GetString("order_no"),
			OrderType:   r.GetString("order_type"),
			TableNumber: r.GetString("table_number"),
			Total:       r.GetString("total"),
			Cash:        r.GetString("cash"),
			Change:      r.GetString("change"),
			Submitted:   r.GetBool("submitted"),
			Error:       r.GetString("error"),
			Created:     r.GetDateTime("created").Time(),
		})
	}
	return entries, nil
}
