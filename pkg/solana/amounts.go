package solana

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// UIToBaseUnits converts a human amount ("1.25") to integer base units,
// truncating digits beyond decimals. Zero and negative amounts are rejected.
func UIToBaseUnits(amount string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	base := d.Shift(int32(decimals)).Truncate(0)
	if !base.IsPositive() {
		return 0, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	if base.Cmp(decimal.NewFromUint64(^uint64(0))) > 0 {
		return 0, fmt.Errorf("%w: too large", ErrInvalidAmount)
	}
	return base.BigInt().Uint64(), nil
}

// SOLToLamports converts a SOL amount to lamports.
func SOLToLamports(amount string) (uint64, error) {
	return UIToBaseUnits(amount, 9)
}

// BaseUnitsToUI renders base units with the given decimals, trimming zeros.
func BaseUnitsToUI(amount uint64, decimals uint8) string {
	return decimal.NewFromUint64(amount).Shift(-int32(decimals)).String()
}

// LamportsToSOL renders lamports as SOL.
func LamportsToSOL(lamports uint64) string {
	return BaseUnitsToUI(lamports, 9)
}

// ParseBaseUnits parses an integer amount given in base units.
func ParseBaseUnits(amount string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil || !d.IsInteger() {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidAmount, amount)
	}
	return UIToBaseUnits(amount, 0)
}
