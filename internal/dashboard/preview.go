package dashboard

import (
	"math/big"
	"time"

	"github.com/monistake/monistake-backend/internal/calc"
	"github.com/monistake/monistake-backend/internal/onchain"
)

// Intent is what the user has typed into an action form
type Intent struct {
	Action     onchain.Action
	AmountText string
	LockDays   uint16
}

type EstimateView struct {
	NormalFee string `json:"normal_fee"`
	ToPool    string `json:"to_pool"`
	ToBuyback string `json:"to_buyback"`
	Net       string `json:"net"`
	Early     bool   `json:"early"`
}

// Preview describes the button for an intent: its label, whether it can be
// pressed and, for unstake, the expected fee split.
type Preview struct {
	Action        onchain.Action `json:"action"`
	Label         string         `json:"label"`
	Amount        string         `json:"amount"`
	AmountRaw     string         `json:"amount_raw"`
	NeedsApproval bool           `json:"needs_approval"`
	Enabled       bool           `json:"enabled"`
	Reason        string         `json:"reason,omitempty"`
	Estimate      *EstimateView  `json:"estimate,omitempty"`
	Note          string         `json:"note,omitempty"`
}

var actionLabels = map[onchain.Action]string{
	onchain.ActionApprove:     "Approve",
	onchain.ActionStake:       "Stake",
	onchain.ActionUnstake:     "Unstake",
	onchain.ActionClaim:       "Claim",
	onchain.ActionSyncRewards: "Sync Rewards",
	onchain.ActionAddRewards:  "Donate",
}

func BuildPreview(snap *onchain.Snapshot, in Intent, opts Options) Preview {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	decimals := int(snap.Token.Decimals)
	connected := snap.HasWallet()

	amount := new(big.Int)
	if in.Action.NeedsAmount() {
		amount = calc.FromDisplayString(in.AmountText, decimals)
	}

	p := Preview{
		Action:    in.Action,
		Label:     actionLabels[in.Action],
		Amount:    calc.ToDisplayString(amount, decimals, amountDigits),
		AmountRaw: amount.String(),
	}

	switch {
	case !connected:
		p.Reason = "Connect wallet"
	case opts.Pending:
		p.Reason = "Transaction pending"
	case in.Action.NeedsAmount() && amount.Sign() <= 0:
		p.Reason = "Enter an amount"
	}

	switch in.Action {
	case onchain.ActionStake:
		if connected {
			p.NeedsApproval = calc.NeedsApproval(amount, snap.Wallet.Allowance)
		}
		if p.NeedsApproval && p.Reason == "" {
			p.Label = actionLabels[onchain.ActionApprove]
		}
		if p.Reason == "" && calc.ValidateLockDays(in.LockDays, opts.LockPresets) != nil {
			p.Reason = "Choose a lock period"
		}
	case onchain.ActionUnstake:
		early := calc.IsEarlyWithdrawal(snap.Position.Staked(), snap.Position.UnlockAt(), opts.Now)
		est := calc.EstimateUnstake(amount, snap.Pool.Fees, early)
		p.Estimate = &EstimateView{
			NormalFee: calc.ToDisplayString(est.NormalFee, decimals, amountDigits),
			ToPool:    calc.ToDisplayString(est.ToPool, decimals, amountDigits),
			ToBuyback: calc.ToDisplayString(est.ToBuyback, decimals, amountDigits),
			Net:       calc.ToDisplayString(est.Net, decimals, amountDigits),
			Early:     early,
		}
	case onchain.ActionAddRewards:
		p.Note = "Anyone can add rewards. If tokens are sent directly to the contract, press Sync Rewards."
	case onchain.ActionApprove, onchain.ActionClaim, onchain.ActionSyncRewards:
	default:
		p.Reason = "Unknown action"
	}

	p.Enabled = p.Reason == ""
	return p
}
