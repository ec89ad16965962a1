package calc

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(big.NewInt(1), "stake"))
	assert.Error(t, ValidateAmount(big.NewInt(0), "stake"))
	assert.Error(t, ValidateAmount(nil, "unstake"))
	assert.Error(t, ValidateAmount(new(big.Int).Add(MaxUint256, big.NewInt(1)), "stake"))

	err := ValidateAmount(big.NewInt(-3), "donate")
	assert.EqualError(t, err, "invalid donate amount: must be positive")
}

func TestValidateLockDays(t *testing.T) {
	presets := []uint16{30, 90, 180, 365}

	assert.NoError(t, ValidateLockDays(90, presets))
	assert.Error(t, ValidateLockDays(0, presets))
	assert.Error(t, ValidateLockDays(45, presets))
	assert.NoError(t, ValidateLockDays(45, nil))
}

func TestValidateAllowance(t *testing.T) {
	assert.NoError(t, ValidateAllowance(big.NewInt(5), big.NewInt(5)))
	assert.Error(t, ValidateAllowance(big.NewInt(6), big.NewInt(5)))
}

func TestValidateBps(t *testing.T) {
	assert.NoError(t, ValidateBps(10000))
	assert.Error(t, ValidateBps(10001))
}
