package reserve

import (
	"errors"
	"math/big"
	"strings"
	"sync"
)

// ErrNotConfigured indicates the pair has no reserves recorded yet.
var ErrNotConfigured = errors.New("reserve: pair not configured")

// Pair exposes the two reserve balances of an external liquidity source. The
// asset ordering is reported by the pair itself; consumers must orient the
// ratio by matching asset symbols rather than relying on slot position.
type Pair interface {
	Reserves() (*big.Int, *big.Int, error)
	AssetA() string
	AssetB() string
}

// ManualPair is an in-memory Pair used for tests and manual overrides during
// incident response. It is safe for concurrent use.
type ManualPair struct {
	mu       sync.RWMutex
	assetA   string
	assetB   string
	reserveA *big.Int
	reserveB *big.Int
}

// NewManualPair constructs a pair for the supplied asset symbols. Symbols are
// stored in canonical uppercase form.
func NewManualPair(assetA, assetB string) *ManualPair {
	return &ManualPair{
		assetA: normaliseSymbol(assetA),
		assetB: normaliseSymbol(assetB),
	}
}

// SetReserves records the current reserve balances. Values are copied
// defensively.
func (p *ManualPair) SetReserves(reserveA, reserveB *big.Int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reserveA = cloneOrZero(reserveA)
	p.reserveB = cloneOrZero(reserveB)
}

// Reserves returns defensive copies of both reserve balances.
func (p *ManualPair) Reserves() (*big.Int, *big.Int, error) {
	if p == nil {
		return nil, nil, ErrNotConfigured
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.reserveA == nil || p.reserveB == nil {
		return nil, nil, ErrNotConfigured
	}
	return new(big.Int).Set(p.reserveA), new(big.Int).Set(p.reserveB), nil
}

// AssetA returns the symbol held in the first reserve slot.
func (p *ManualPair) AssetA() string {
	if p == nil {
		return ""
	}
	return p.assetA
}

// AssetB returns the symbol held in the second reserve slot.
func (p *ManualPair) AssetB() string {
	if p == nil {
		return ""
	}
	return p.assetB
}

func normaliseSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
