package onchain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/monistake/monistake-backend/internal/calc"
)

type TokenInfo struct {
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
}

type PoolSnapshot struct {
	TotalStaked   *big.Int         `json:"total_staked"`
	RewardsInPool *big.Int         `json:"rewards_in_pool"`
	StakerCount   *big.Int         `json:"staker_count"`
	Fees          calc.FeeSchedule `json:"fees"`
	BuybackWallet common.Address   `json:"buyback_wallet"`
}

type WalletState struct {
	Balance   *big.Int `json:"balance"`
	Allowance *big.Int `json:"allowance"`
}

// UserPosition mirrors the contract's userInfo tuple. Amount zero means there
// is no meaningful lock even when Exists is set.
type UserPosition struct {
	Amount     *big.Int `json:"amount"`
	RewardDebt *big.Int `json:"reward_debt"`
	UnlockTime uint64   `json:"unlock_time"`
	LockDays   uint16   `json:"lock_days"`
	Exists     bool     `json:"exists"`
}

// UnlockAt is the zero time when no unlock time is set
func (p *UserPosition) UnlockAt() time.Time {
	if p == nil || p.UnlockTime == 0 {
		return time.Time{}
	}
	return time.Unix(int64(p.UnlockTime), 0).UTC()
}

func (p *UserPosition) Staked() *big.Int {
	if p == nil || p.Amount == nil {
		return new(big.Int)
	}
	return p.Amount
}

// Snapshot is everything the dashboard shows, read in a single batch. Wallet,
// Position and PendingRewards are nil for pool-only snapshots.
type Snapshot struct {
	Owner          *common.Address `json:"owner,omitempty"`
	Token          TokenInfo       `json:"token"`
	Pool           PoolSnapshot    `json:"pool"`
	Wallet         *WalletState    `json:"wallet,omitempty"`
	Position       *UserPosition   `json:"position,omitempty"`
	PendingRewards *big.Int        `json:"pending_rewards,omitempty"`
	AsOf           time.Time       `json:"as_of"`
	Stale          bool            `json:"stale"`
}

func (s *Snapshot) HasWallet() bool {
	return s.Owner != nil && s.Wallet != nil
}

// PoolOnly drops wallet-scoped fields
func (s *Snapshot) PoolOnly() *Snapshot {
	return &Snapshot{
		Token: s.Token,
		Pool:  s.Pool,
		AsOf:  s.AsOf,
		Stale: s.Stale,
	}
}

func (s *Snapshot) String() string {
	owner := "pool"
	if s.Owner != nil {
		owner = s.Owner.Hex()
	}
	return fmt.Sprintf("Snapshot{owner=%s, totalStaked=%s, rewards=%s, stale=%t, asOf=%s}",
		owner, bigOrZero(s.Pool.TotalStaked), bigOrZero(s.Pool.RewardsInPool), s.Stale, s.AsOf.Format(time.RFC3339))
}

// DefaultSnapshot is served before the first successful read.
func DefaultSnapshot(owner *common.Address, decimals int, symbol string, buyback common.Address) *Snapshot {
	if decimals < 0 || decimals > 255 {
		decimals = calc.DefaultDecimals
	}
	if symbol == "" {
		symbol = "MONI"
	}
	s := &Snapshot{
		Token: TokenInfo{Decimals: uint8(decimals), Symbol: symbol},
		Pool: PoolSnapshot{
			TotalStaked:   new(big.Int),
			RewardsInPool: new(big.Int),
			StakerCount:   new(big.Int),
			Fees:          calc.DefaultFeeSchedule,
			BuybackWallet: buyback,
		},
		Stale: true,
	}
	if owner != nil {
		o := *owner
		s.Owner = &o
		s.Wallet = &WalletState{Balance: new(big.Int), Allowance: new(big.Int)}
		s.Position = &UserPosition{Amount: new(big.Int), RewardDebt: new(big.Int)}
		s.PendingRewards = new(big.Int)
	}
	return s
}

func bigOrZero(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
