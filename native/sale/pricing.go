package sale

import (
	"math/big"
	"strings"

	"tokensale/native/reserve"
)

// QuoteOutput computes floor(payAmount * reserveSale / reservePay) using
// arbitrary-precision arithmetic. Multiplication happens before division so
// no intermediate precision is lost; the result truncates toward zero.
func QuoteOutput(payAmount, reservePay, reserveSale *big.Int) (*big.Int, error) {
	if payAmount == nil || payAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if reservePay == nil || reservePay.Sign() <= 0 || reserveSale == nil || reserveSale.Sign() <= 0 {
		return nil, ErrBadReserves
	}
	out := new(big.Int).Mul(payAmount, reserveSale)
	return out.Quo(out, reservePay), nil
}

// orientReserves reads the pair snapshot and returns (reservePay, reserveSale)
// by matching asset symbols. The pair may report the pay asset in either slot;
// selection is by identity, never by position.
func orientReserves(pair reserve.Pair, payAsset, saleAsset string) (*big.Int, *big.Int, error) {
	if pair == nil {
		return nil, nil, ErrNilCollaborator
	}
	reserveA, reserveB, err := pair.Reserves()
	if err != nil {
		return nil, nil, err
	}
	pay := normaliseSymbol(payAsset)
	sales := normaliseSymbol(saleAsset)
	assetA := normaliseSymbol(pair.AssetA())
	assetB := normaliseSymbol(pair.AssetB())
	switch {
	case assetA == pay && assetB == sales:
		return reserveA, reserveB, nil
	case assetB == pay && assetA == sales:
		return reserveB, reserveA, nil
	default:
		return nil, nil, ErrAssetMismatch
	}
}

func normaliseSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
