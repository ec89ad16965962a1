package calc

import (
	"fmt"
	"math/big"
	"slices"
)

// MaxUint256 is the allowance requested by approve.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ValidateAmount checks if an amount is positive and fits in a uint256
func ValidateAmount(amount *big.Int, operation string) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("invalid %s amount: must be positive", operation)
	}
	if amount.Cmp(MaxUint256) > 0 {
		return fmt.Errorf("invalid %s amount: too large", operation)
	}
	return nil
}

// ValidateLockDays checks the lock period against the offered presets
func ValidateLockDays(days uint16, presets []uint16) error {
	if days == 0 {
		return fmt.Errorf("invalid lock period: must be positive")
	}
	if len(presets) > 0 && !slices.Contains(presets, days) {
		return fmt.Errorf("invalid lock period %d days: allowed %v", days, presets)
	}
	return nil
}

// ValidateAllowance checks that the spender may pull amount
func ValidateAllowance(amount, allowance *big.Int) error {
	if NeedsApproval(amount, allowance) {
		return fmt.Errorf("allowance %s below amount %s: approve first", bigString(allowance), bigString(amount))
	}
	return nil
}

// ValidateBps checks a basis-point value is at most 100%
func ValidateBps(bps uint16) error {
	if bps > BpsDenominator {
		return fmt.Errorf("invalid basis points %d: exceeds %d", bps, BpsDenominator)
	}
	return nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
