package sale

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"tokensale/core/types"
)

const (
	EventTypePurchase           = "sale.purchased"
	EventTypeClaim              = "sale.claimed"
	EventTypeWithdrawInventory  = "sale.inventory_withdrawn"
	EventTypeWithdrawProceeds   = "sale.proceeds_withdrawn"
	EventTypePriceSourceUpdated = "sale.price_source_updated"
	EventTypeLockDuration       = "sale.lock_duration_updated"
	EventTypePaused             = "sale.paused"
	EventTypeUnpaused           = "sale.unpaused"
)

// AttrActor is the indexed actor attribute present on every sale event.
const AttrActor = "actor"

// NewPurchaseEvent returns the canonical payload for a completed purchase.
func NewPurchaseEvent(buyer [20]byte, payAmount, saleAmount *big.Int, releaseTime int64, lockIndex int) *types.Event {
	attrs := map[string]string{
		AttrActor:     hex.EncodeToString(buyer[:]),
		"payAmount":   amountString(payAmount),
		"saleAmount":  amountString(saleAmount),
		"releaseTime": strconv.FormatInt(releaseTime, 10),
		"lockIndex":   strconv.Itoa(lockIndex),
	}
	return &types.Event{Type: EventTypePurchase, Attributes: attrs}
}

// NewClaimEvent returns the canonical payload for one released lock record.
// Claims always emit one event per record to preserve the per-lock audit
// trail.
func NewClaimEvent(account [20]byte, saleAmount *big.Int, lockIndex int) *types.Event {
	attrs := map[string]string{
		AttrActor:    hex.EncodeToString(account[:]),
		"saleAmount": amountString(saleAmount),
		"lockIndex":  strconv.Itoa(lockIndex),
	}
	return &types.Event{Type: EventTypeClaim, Attributes: attrs}
}

// NewWithdrawInventoryEvent returns the payload for an admin withdrawal of
// unlocked sale-asset inventory.
func NewWithdrawInventoryEvent(admin [20]byte, amount *big.Int) *types.Event {
	return withdrawalEvent(EventTypeWithdrawInventory, admin, amount)
}

// NewWithdrawProceedsEvent returns the payload for an admin withdrawal of
// accumulated pay-asset proceeds.
func NewWithdrawProceedsEvent(admin [20]byte, amount *big.Int) *types.Event {
	return withdrawalEvent(EventTypeWithdrawProceeds, admin, amount)
}

// NewPriceSourceUpdatedEvent returns the payload emitted when the admin swaps
// the reserve pair used for quoting.
func NewPriceSourceUpdatedEvent(admin [20]byte, pairRef string) *types.Event {
	attrs := map[string]string{
		AttrActor: hex.EncodeToString(admin[:]),
		"pair":    pairRef,
	}
	return &types.Event{Type: EventTypePriceSourceUpdated, Attributes: attrs}
}

// NewLockDurationUpdatedEvent returns the payload emitted when the lock
// duration for future purchases changes.
func NewLockDurationUpdatedEvent(admin [20]byte, seconds int64) *types.Event {
	attrs := map[string]string{
		AttrActor:  hex.EncodeToString(admin[:]),
		"duration": strconv.FormatInt(seconds, 10),
	}
	return &types.Event{Type: EventTypeLockDuration, Attributes: attrs}
}

// NewPausedEvent returns the payload emitted when the sale is paused.
func NewPausedEvent(admin [20]byte) *types.Event {
	return &types.Event{Type: EventTypePaused, Attributes: map[string]string{
		AttrActor: hex.EncodeToString(admin[:]),
	}}
}

// NewUnpausedEvent returns the payload emitted when the sale resumes.
func NewUnpausedEvent(admin [20]byte) *types.Event {
	return &types.Event{Type: EventTypeUnpaused, Attributes: map[string]string{
		AttrActor: hex.EncodeToString(admin[:]),
	}}
}

func withdrawalEvent(eventType string, admin [20]byte, amount *big.Int) *types.Event {
	attrs := map[string]string{
		AttrActor: hex.EncodeToString(admin[:]),
		"amount":  amountString(amount),
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
