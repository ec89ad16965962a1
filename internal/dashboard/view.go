// Package dashboard turns a contract snapshot into the values the staking
// dashboard renders: stat tiles, ratio meters, the lock panel and which
// actions are currently available.
package dashboard

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/monistake/monistake-backend/internal/calc"
	"github.com/monistake/monistake-backend/internal/onchain"
	"github.com/shopspring/decimal"
)

const (
	// fraction digits for token amounts in tiles and the lock panel
	amountDigits = 4
	// fraction digits for the pool meter labels and share percentage
	coarseDigits = 2

	placeholder = "—"
)

type Options struct {
	Now            time.Time
	Pending        bool
	TokenAddress   common.Address
	StakingAddress common.Address
	LockPresets    []uint16
}

type View struct {
	Connected bool          `json:"connected"`
	Owner     string        `json:"owner,omitempty"`
	Stale     bool          `json:"stale"`
	AsOf      time.Time     `json:"as_of"`
	Token     TokenView     `json:"token"`
	Contracts ContractsView `json:"contracts"`
	Fees      FeesView      `json:"fees"`
	Tiles     []Tile        `json:"tiles"`
	Meters    []Meter       `json:"meters"`
	Lock      LockView      `json:"lock"`
	Wallet    *WalletView   `json:"wallet,omitempty"`
	Actions   ActionsView   `json:"actions"`
	Raw       RawView       `json:"raw"`
}

type TokenView struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type ContractsView struct {
	Staking      string `json:"staking"`
	StakingShort string `json:"staking_short"`
	Token        string `json:"token"`
	TokenShort   string `json:"token_short"`
	Buyback      string `json:"buyback"`
	BuybackShort string `json:"buyback_short"`
}

type FeesView struct {
	NormalUnstake  string `json:"normal_unstake"`
	EarlyToPool    string `json:"early_to_pool"`
	EarlyToBuyback string `json:"early_to_buyback"`
	Summary        string `json:"summary"`
}

type Tile struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Sub   string `json:"sub"`
}

type Meter struct {
	Title      string  `json:"title"`
	Percent    float64 `json:"percent"`
	LeftLabel  string  `json:"left_label"`
	RightLabel string  `json:"right_label"`
}

type LockView struct {
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	Staked       string `json:"staked,omitempty"`
	Unlock       string `json:"unlock,omitempty"`
	LockDays     uint16 `json:"lock_days"`
	EarlyPenalty bool   `json:"early_penalty"`
	Notice       string `json:"notice,omitempty"`
}

type WalletView struct {
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
}

// ActionsView says which buttons are enabled before any amount is typed
type ActionsView struct {
	Pending     bool     `json:"pending"`
	LockPresets []uint16 `json:"lock_presets"`
	CanRefresh  bool     `json:"can_refresh"`
	CanSync     bool     `json:"can_sync"`
	CanClaim    bool     `json:"can_claim"`
	CanApprove  bool     `json:"can_approve"`
}

// RawView carries unformatted integers for clients that do their own math
type RawView struct {
	TotalStaked    string `json:"total_staked"`
	RewardsInPool  string `json:"rewards_in_pool"`
	StakerCount    string `json:"staker_count"`
	Staked         string `json:"staked,omitempty"`
	PendingRewards string `json:"pending_rewards,omitempty"`
	Balance        string `json:"balance,omitempty"`
	Allowance      string `json:"allowance,omitempty"`
	UnlockTime     uint64 `json:"unlock_time,omitempty"`
}

// ShortAddress renders 0x1234…abcd
func ShortAddress(a common.Address) string {
	h := a.Hex()
	return h[:6] + "…" + h[len(h)-4:]
}

func Build(snap *onchain.Snapshot, opts Options) View {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	decimals := int(snap.Token.Decimals)
	symbol := snap.Token.Symbol
	connected := snap.HasWallet()
	fees := snap.Pool.Fees

	totalStaked := nonNil(snap.Pool.TotalStaked)
	rewards := nonNil(snap.Pool.RewardsInPool)
	staked := new(big.Int)
	pending := new(big.Int)
	if connected {
		staked = snap.Position.Staked()
		pending = nonNil(snap.PendingRewards)
	}

	totalNum := calc.ToDecimal(totalStaked, decimals)
	poolNum := calc.ToDecimal(rewards, decimals)
	stakedNum := calc.ToDecimal(staked, decimals)
	sharePct := calc.SharePercent(stakedNum, totalNum)
	others := decimal.Max(totalNum.Sub(stakedNum), decimal.Zero)

	v := View{
		Connected: connected,
		Stale:     snap.Stale,
		AsOf:      snap.AsOf,
		Token:     TokenView{Symbol: symbol, Decimals: snap.Token.Decimals},
		Contracts: ContractsView{
			Staking:      opts.StakingAddress.Hex(),
			StakingShort: ShortAddress(opts.StakingAddress),
			Token:        opts.TokenAddress.Hex(),
			TokenShort:   ShortAddress(opts.TokenAddress),
			Buyback:      snap.Pool.BuybackWallet.Hex(),
			BuybackShort: ShortAddress(snap.Pool.BuybackWallet),
		},
		Fees: FeesView{
			NormalUnstake:  calc.FormatBps(fees.NormalUnstakeBps),
			EarlyToPool:    calc.FormatBps(fees.EarlyToPoolBps),
			EarlyToBuyback: calc.FormatBps(fees.EarlyToBuybackBps),
			Summary: fmt.Sprintf("Early unstake fee routes %s to rewards pool and %s to buyback.",
				calc.FormatBps(fees.EarlyToPoolBps), calc.FormatBps(fees.EarlyToBuybackBps)),
		},
		Tiles: []Tile{
			{Label: "Total Staked", Value: amount(totalStaked, decimals, symbol), Sub: "All stakers"},
			{Label: "Rewards Pool", Value: amount(rewards, decimals, symbol), Sub: "Available rewards"},
			{Label: "Your Pending", Value: amount(pending, decimals, symbol), Sub: pick(connected, "Claimable now", "Connect wallet")},
			{Label: "Your Share", Value: calc.FormatDecimal(sharePct, coarseDigits) + "%", Sub: pick(connected, "Of total staked", placeholder)},
			{Label: "Stakers", Value: calc.ToDisplayString(snap.Pool.StakerCount, 0, 0), Sub: "Wallets with a stake"},
		},
		Meters: []Meter{
			{
				Title:      "Pool vs Staked",
				Percent:    calc.RatioPercent(poolNum, totalNum).InexactFloat64(),
				LeftLabel:  "Pool " + calc.FormatDecimal(poolNum, coarseDigits),
				RightLabel: "Staked " + calc.FormatDecimal(totalNum, coarseDigits),
			},
			{
				Title:      "You vs Everyone",
				Percent:    calc.RatioPercent(stakedNum, others).InexactFloat64(),
				LeftLabel:  "You " + calc.FormatDecimal(stakedNum, amountDigits),
				RightLabel: "Others " + calc.FormatDecimal(others, amountDigits),
			},
		},
		Actions: ActionsView{
			Pending:     opts.Pending,
			LockPresets: opts.LockPresets,
			CanRefresh:  true,
			CanSync:     connected && !opts.Pending,
			CanClaim:    connected && !opts.Pending,
			CanApprove:  connected && !opts.Pending,
		},
		Raw: RawView{
			TotalStaked:   totalStaked.String(),
			RewardsInPool: rewards.String(),
			StakerCount:   nonNil(snap.Pool.StakerCount).String(),
		},
	}

	if !connected {
		v.Lock = LockView{Message: "Connect wallet to view your lock status."}
		return v
	}

	v.Owner = snap.Owner.Hex()
	v.Lock = buildLock(snap, fees, opts.Now)
	v.Wallet = &WalletView{
		Balance:   amount(snap.Wallet.Balance, decimals, symbol),
		Allowance: allowanceDisplay(snap.Wallet.Allowance, decimals, symbol),
	}
	v.Raw.Staked = staked.String()
	v.Raw.PendingRewards = pending.String()
	v.Raw.Balance = nonNil(snap.Wallet.Balance).String()
	v.Raw.Allowance = nonNil(snap.Wallet.Allowance).String()
	v.Raw.UnlockTime = snap.Position.UnlockTime
	return v
}

func buildLock(snap *onchain.Snapshot, fees calc.FeeSchedule, now time.Time) LockView {
	pos := snap.Position
	staked := pos.Staked()
	early := calc.IsEarlyWithdrawal(staked, pos.UnlockAt(), now)

	lock := LockView{
		Status:       pick(early, "Early penalty active", "No early penalty"),
		Staked:       amount(staked, int(snap.Token.Decimals), snap.Token.Symbol),
		Unlock:       placeholder,
		LockDays:     pos.LockDays,
		EarlyPenalty: early,
		Notice:       "Normal unstake only.",
	}
	if pos.UnlockTime != 0 {
		lock.Unlock = pos.UnlockAt().Format(time.RFC3339)
	}
	if early {
		lock.Notice = fmt.Sprintf("Early unstake adds %s to pool + %s to buyback plus %s normal fee.",
			calc.FormatBps(fees.EarlyToPoolBps), calc.FormatBps(fees.EarlyToBuybackBps), calc.FormatBps(fees.NormalUnstakeBps))
	}
	return lock
}

func amount(raw *big.Int, decimals int, symbol string) string {
	return calc.ToDisplayString(raw, decimals, amountDigits) + " " + symbol
}

func allowanceDisplay(raw *big.Int, decimals int, symbol string) string {
	if raw != nil && raw.Cmp(calc.MaxUint256) == 0 {
		return "Unlimited"
	}
	return amount(raw, decimals, symbol)
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
