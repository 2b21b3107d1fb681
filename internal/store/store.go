package store

import (
	"context"
	"fmt"
)

// Store persists whole JSON documents by key. Get reports found=false for a
// missing key without an error.
type Store interface {
	Get(ctx context.Context, key string, v any) (bool, error)
	Put(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

const (
	keyCart       = "cart"
	keyOrderType  = "order_type"
	keySavedOrder = "saved_order"
	keyBranchID   = "branch_id"
)

func kioskKey(kioskID, name string) string {
	return fmt.Sprintf("kiosk:%s:%s", kioskID, name)
}
