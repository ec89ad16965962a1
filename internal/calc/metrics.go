package calc

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// BpsDenominator is 100% expressed in basis points.
const BpsDenominator = 10000

var (
	hundred      = decimal.NewFromInt(100)
	ratioEpsilon = decimal.New(1, -9)
)

// FeeSchedule holds the contract's unstake fee parameters in basis points.
type FeeSchedule struct {
	NormalUnstakeBps  uint16 `json:"normalUnstakeFeeBps"`
	EarlyToPoolBps    uint16 `json:"earlyPenaltyToPoolBps"`
	EarlyToBuybackBps uint16 `json:"earlyPenaltyToBuybackBps"`
}

// DefaultFeeSchedule is shown until the contract has been read.
var DefaultFeeSchedule = FeeSchedule{
	NormalUnstakeBps:  200,
	EarlyToPoolBps:    500,
	EarlyToBuybackBps: 1000,
}

// UnstakeEstimate splits an unstake amount into fee components. Display only.
type UnstakeEstimate struct {
	Amount    *big.Int `json:"amount"`
	NormalFee *big.Int `json:"normalFee"`
	ToPool    *big.Int `json:"toPool"`
	ToBuyback *big.Int `json:"toBuyback"`
	Net       *big.Int `json:"net"`
	Early     bool     `json:"early"`
}

// SharePercent calculates user/total*100, zero when total is not positive
func SharePercent(user, total decimal.Decimal) decimal.Decimal {
	if total.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return user.Div(total).Mul(hundred)
}

// RatioPercent calculates a/(a+b)*100 clamped to [0, 100]
func RatioPercent(a, b decimal.Decimal) decimal.Decimal {
	denom := a.Add(b)
	if denom.LessThan(ratioEpsilon) {
		denom = ratioEpsilon
	}
	pct := a.Div(denom).Mul(hundred)
	if pct.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// IsEarlyWithdrawal reports whether unstaking now would incur the early penalty
func IsEarlyWithdrawal(staked *big.Int, unlock, now time.Time) bool {
	if staked == nil || staked.Sign() <= 0 {
		return false
	}
	return now.Before(unlock)
}

// NeedsApproval reports whether the allowance does not cover a positive amount
func NeedsApproval(amount, allowance *big.Int) bool {
	if amount == nil || amount.Sign() <= 0 {
		return false
	}
	if allowance == nil {
		return true
	}
	return allowance.Cmp(amount) < 0
}

// BpsOf calculates floor(amount*bps/10000)
func BpsOf(amount *big.Int, bps uint16) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return out.Quo(out, big.NewInt(BpsDenominator))
}

// EstimateUnstake previews what an unstake of amount would pay out
func EstimateUnstake(amount *big.Int, fees FeeSchedule, early bool) UnstakeEstimate {
	if amount == nil || amount.Sign() < 0 {
		amount = new(big.Int)
	}
	est := UnstakeEstimate{
		Amount:    new(big.Int).Set(amount),
		NormalFee: BpsOf(amount, fees.NormalUnstakeBps),
		ToPool:    new(big.Int),
		ToBuyback: new(big.Int),
		Early:     early,
	}
	if early {
		est.ToPool = BpsOf(amount, fees.EarlyToPoolBps)
		est.ToBuyback = BpsOf(amount, fees.EarlyToBuybackBps)
	}

	net := new(big.Int).Sub(amount, est.NormalFee)
	net.Sub(net, est.ToPool)
	net.Sub(net, est.ToBuyback)
	if net.Sign() < 0 {
		net.SetInt64(0)
	}
	est.Net = net
	return est
}
