package store

import (
	"context"
	"strings"

	"cash-kiosk/models"
)

// KioskState is the typed view of one kiosk's persisted keys.
type KioskState struct {
	store   Store
	kioskID string
}

func NewKioskState(s Store, kioskID string) *KioskState {
	if kioskID == "" {
		kioskID = "default"
	}
	return &KioskState{store: s, kioskID: kioskID}
}

func (k *KioskState) key(name string) string {
	return kioskKey(k.kioskID, name)
}

func (k *KioskState) Cart(ctx context.Context) (models.Cart, error) {
	var cart models.Cart
	if _, err := k.store.Get(ctx, k.key(keyCart), &cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (k *KioskState) SaveCart(ctx context.Context, cart models.Cart) error {
	return k.store.Put(ctx, k.key(keyCart), cart)
}

// OrderType defaults to take out when nothing was chosen.
func (k *KioskState) OrderType(ctx context.Context) (models.OrderType, error) {
	var s string
	if _, err := k.store.Get(ctx, k.key(keyOrderType), &s); err != nil {
		return models.OrderTypeTakeOut, err
	}
	return models.ParseOrderType(s), nil
}

func (k *KioskState) SetOrderType(ctx context.Context, t models.OrderType) error {
	return k.store.Put(ctx, k.key(keyOrderType), string(models.ParseOrderType(string(t))))
}

func (k *KioskState) SavedOrder(ctx context.Context) (*models.OrderDraft, error) {
	var draft models.OrderDraft
	found, err := k.store.Get(ctx, k.key(keySavedOrder), &draft)
	if err != nil || !found {
		return nil, err
	}
	return &draft, nil
}

func (k *KioskState) SaveDraft(ctx context.Context, draft models.OrderDraft) error {
	return k.store.Put(ctx, k.key(keySavedOrder), draft)
}

// ClearOrder drops the cart and the saved draft together.
func (k *KioskState) ClearOrder(ctx context.Context) error {
	return k.store.Delete(ctx, k.key(keyCart), k.key(keySavedOrder))
}

func (k *KioskState) BranchID(ctx context.Context) (string, error) {
	var id string
	if _, err := k.store.Get(ctx, k.key(keyBranchID), &id); err != nil {
		return "", err
	}
	return strings.TrimSpace(id), nil
}

func (k *KioskState) SetBranchID(ctx context.Context, id string) error {
	return k.store.Put(ctx, k.key(keyBranchID), strings.TrimSpace(id))
}
