package sale

import (
	"errors"

	"tokensale/native/common"
)

var (
	// ErrInvalidAmount indicates a zero, negative or nil input amount.
	ErrInvalidAmount = errors.New("sale engine: amount must be positive")
	// ErrBadReserves indicates the reserve pair reported an empty side.
	ErrBadReserves = errors.New("sale engine: reserve pair reports empty reserves")
	// ErrAssetMismatch indicates the configured assets do not match the pair.
	ErrAssetMismatch = errors.New("sale engine: configured assets not present in reserve pair")
	// ErrSlippageExceeded indicates the quote fell below the caller minimum.
	ErrSlippageExceeded = errors.New("sale engine: quote below minimum output")
	// ErrInsufficientInventory indicates the sale would lock more sale-asset
	// than the engine holds unlocked.
	ErrInsufficientInventory = errors.New("sale engine: sale amount exceeds available inventory")
	// ErrUnauthorized indicates the caller is not the configured admin.
	ErrUnauthorized = errors.New("sale engine: caller is not the admin")
	// ErrReentrancyBlocked indicates a state-mutating entry point was
	// re-entered before the triggering operation completed.
	ErrReentrancyBlocked = errors.New("sale engine: reentrant call blocked")
	// ErrNoLocks indicates the claimant holds no lock records at all.
	ErrNoLocks = errors.New("sale engine: account has no locks")
	// ErrNothingUnlocked indicates no lock has matured yet.
	ErrNothingUnlocked = errors.New("sale engine: no matured locks to claim")
	// ErrInvalidIndex indicates a lock index outside the account's sequence.
	ErrInvalidIndex = errors.New("sale engine: lock index out of range")
	// ErrAlreadyClaimed indicates the lock's one-way claimed flag is set.
	ErrAlreadyClaimed = errors.New("sale engine: lock already claimed")
	// ErrNotYetUnlocked indicates the lock's release time is in the future.
	ErrNotYetUnlocked = errors.New("sale engine: lock not yet matured")
	// ErrNothingToClaim indicates an empty index batch.
	ErrNothingToClaim = errors.New("sale engine: no lock indices supplied")
	// ErrExceedsAvailable indicates a withdrawal above the unlocked inventory.
	ErrExceedsAvailable = errors.New("sale engine: amount exceeds available inventory")
	// ErrExceedsBalance indicates a withdrawal above the held pay-asset balance.
	ErrExceedsBalance = errors.New("sale engine: amount exceeds pay-asset balance")
	// ErrTransferFailed wraps a rejected external asset transfer.
	ErrTransferFailed = errors.New("sale engine: asset transfer failed")
	// ErrNilCollaborator indicates a missing token ledger or reserve pair.
	ErrNilCollaborator = errors.New("sale engine: collaborator not configured")
)

// ErrPaused is returned by every user-facing operation while the sale is
// paused. It aliases the shared pause guard sentinel so callers can match
// either spelling with errors.Is.
var ErrPaused = common.ErrModulePaused
