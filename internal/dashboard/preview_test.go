package dashboard

import (
	"testing"
	"time"

	"github.com/monistake/monistake-backend/internal/onchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPreview_Stake(t *testing.T) {
	snap := userSnapshot(now)

	tests := []struct {
		name      string
		intent    Intent
		pending   bool
		label     string
		approval  bool
		enabled   bool
		reason    string
		amountRaw string
	}{
		{
			name:      "covered by allowance",
			intent:    Intent{Action: onchain.ActionStake, AmountText: "5", LockDays: 30},
			label:     "Stake",
			enabled:   true,
			amountRaw: ether(5).String(),
		},
		{
			name:      "needs approval",
			intent:    Intent{Action: onchain.ActionStake, AmountText: "5.5", LockDays: 30},
			label:     "Approve",
			approval:  true,
			enabled:   true,
			amountRaw: "5500000000000000000",
		},
		{
			name:      "malformed amount",
			intent:    Intent{Action: onchain.ActionStake, AmountText: "1.2.3", LockDays: 30},
			label:     "Stake",
			reason:    "Enter an amount",
			amountRaw: "0",
		},
		{
			name:      "off preset lock",
			intent:    Intent{Action: onchain.ActionStake, AmountText: "1", LockDays: 7},
			label:     "Stake",
			reason:    "Choose a lock period",
			amountRaw: ether(1).String(),
		},
		{
			name:      "pending write",
			intent:    Intent{Action: onchain.ActionStake, AmountText: "1", LockDays: 30},
			pending:   true,
			label:     "Stake",
			reason:    "Transaction pending",
			amountRaw: ether(1).String(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := opts()
			o.Pending = tt.pending
			p := BuildPreview(snap, tt.intent, o)
			assert.Equal(t, tt.label, p.Label)
			assert.Equal(t, tt.approval, p.NeedsApproval)
			assert.Equal(t, tt.enabled, p.Enabled)
			assert.Equal(t, tt.reason, p.Reason)
			assert.Equal(t, tt.amountRaw, p.AmountRaw)
		})
	}
}

func TestBuildPreview_Disconnected(t *testing.T) {
	p := BuildPreview(poolSnapshot(), Intent{Action: onchain.ActionClaim}, opts())
	assert.False(t, p.Enabled)
	assert.Equal(t, "Connect wallet", p.Reason)
}

func TestBuildPreview_UnstakeEstimate(t *testing.T) {
	early := BuildPreview(userSnapshot(now.Add(time.Hour)), Intent{Action: onchain.ActionUnstake, AmountText: "100"}, opts())
	require.NotNil(t, early.Estimate)
	assert.True(t, early.Estimate.Early)
	assert.Equal(t, "2", early.Estimate.NormalFee)
	assert.Equal(t, "5", early.Estimate.ToPool)
	assert.Equal(t, "10", early.Estimate.ToBuyback)
	assert.Equal(t, "83", early.Estimate.Net)
	assert.True(t, early.Enabled)

	normal := BuildPreview(userSnapshot(now.Add(-time.Hour)), Intent{Action: onchain.ActionUnstake, AmountText: "100"}, opts())
	require.NotNil(t, normal.Estimate)
	assert.False(t, normal.Estimate.Early)
	assert.Equal(t, "0", normal.Estimate.ToPool)
	assert.Equal(t, "98", normal.Estimate.Net)
}

func TestBuildPreview_DonateNote(t *testing.T) {
	p := BuildPreview(userSnapshot(now), Intent{Action: onchain.ActionAddRewards, AmountText: "1,000"}, opts())
	assert.True(t, p.Enabled)
	assert.Equal(t, "1,000", p.Amount)
	assert.Contains(t, p.Note, "Sync Rewards")
}

func TestBuildPreview_ClaimIgnoresAmount(t *testing.T) {
	p := BuildPreview(userSnapshot(now), Intent{Action: onchain.ActionClaim, AmountText: "garbage"}, opts())
	assert.True(t, p.Enabled)
	assert.Equal(t, "0", p.AmountRaw)
}
