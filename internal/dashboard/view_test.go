package dashboard

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/monistake/monistake-backend/internal/calc"
	"github.com/monistake/monistake-backend/internal/onchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	token   = common.HexToAddress("0x1234000000000000000000000000000000abcd01")
	staking = common.HexToAddress("0x2222222222222222222222222222222222222222")
	buyback = common.HexToAddress("0x3333333333333333333333333333333333333333")
	user    = common.HexToAddress("0x4444444444444444444444444444444444444444")
	now     = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func poolSnapshot() *onchain.Snapshot {
	return &onchain.Snapshot{
		Token: onchain.TokenInfo{Decimals: 18, Symbol: "MONI"},
		Pool: onchain.PoolSnapshot{
			TotalStaked:   ether(1000),
			RewardsInPool: ether(250),
			StakerCount:   big.NewInt(1200),
			Fees:          calc.DefaultFeeSchedule,
			BuybackWallet: buyback,
		},
		AsOf: now,
	}
}

func userSnapshot(unlock time.Time) *onchain.Snapshot {
	s := poolSnapshot()
	owner := user
	s.Owner = &owner
	s.Wallet = &onchain.WalletState{Balance: ether(10), Allowance: ether(5)}
	s.Position = &onchain.UserPosition{
		Amount:     ether(250),
		RewardDebt: new(big.Int),
		UnlockTime: uint64(unlock.Unix()),
		LockDays:   90,
		Exists:     true,
	}
	s.PendingRewards = new(big.Int).Div(ether(3), big.NewInt(2))
	return s
}

func opts() Options {
	return Options{
		Now:            now,
		TokenAddress:   token,
		StakingAddress: staking,
		LockPresets:    []uint16{30, 90, 180, 365},
	}
}

func tile(t *testing.T, v View, label string) Tile {
	t.Helper()
	for _, tl := range v.Tiles {
		if tl.Label == label {
			return tl
		}
	}
	t.Fatalf("no tile %q", label)
	return Tile{}
}

func TestShortAddress(t *testing.T) {
	// keeps the EIP-55 checksum casing of Hex()
	assert.Equal(t, "0x1234…cD01", ShortAddress(token))
}

func TestBuild_Disconnected(t *testing.T) {
	v := Build(poolSnapshot(), opts())

	assert.False(t, v.Connected)
	assert.Empty(t, v.Owner)
	assert.Nil(t, v.Wallet)

	assert.Equal(t, "1,000 MONI", tile(t, v, "Total Staked").Value)
	assert.Equal(t, "250 MONI", tile(t, v, "Rewards Pool").Value)
	assert.Equal(t, "Connect wallet", tile(t, v, "Your Pending").Sub)
	share := tile(t, v, "Your Share")
	assert.Equal(t, "0%", share.Value)
	assert.Equal(t, "—", share.Sub)
	assert.Equal(t, "1,200", tile(t, v, "Stakers").Value)

	assert.Equal(t, "Connect wallet to view your lock status.", v.Lock.Message)
	assert.False(t, v.Actions.CanClaim)
	assert.False(t, v.Actions.CanSync)
	assert.True(t, v.Actions.CanRefresh)

	assert.Equal(t, "0x2222…2222", v.Contracts.StakingShort)
	assert.Equal(t, "0x3333…3333", v.Contracts.BuybackShort)
	assert.Equal(t, "5.00%", v.Fees.EarlyToPool)
	assert.Equal(t, "Early unstake fee routes 5.00% to rewards pool and 10.00% to buyback.", v.Fees.Summary)
}

func TestBuild_Meters(t *testing.T) {
	v := Build(userSnapshot(now.Add(time.Hour)), opts())
	require.Len(t, v.Meters, 2)

	pool := v.Meters[0]
	assert.Equal(t, "Pool vs Staked", pool.Title)
	assert.InDelta(t, 20.0, pool.Percent, 1e-9)
	assert.Equal(t, "Pool 250", pool.LeftLabel)
	assert.Equal(t, "Staked 1,000", pool.RightLabel)

	you := v.Meters[1]
	assert.InDelta(t, 25.0, you.Percent, 1e-9)
	assert.Equal(t, "You 250", you.LeftLabel)
	assert.Equal(t, "Others 750", you.RightLabel)
}

func TestBuild_EmptyPoolMetersStayAtZero(t *testing.T) {
	s := poolSnapshot()
	s.Pool.TotalStaked = new(big.Int)
	s.Pool.RewardsInPool = new(big.Int)

	v := Build(s, opts())
	for _, m := range v.Meters {
		assert.Equal(t, 0.0, m.Percent, m.Title)
	}
	assert.Equal(t, "0%", tile(t, v, "Your Share").Value)
}

func TestBuild_ConnectedEarly(t *testing.T) {
	unlock := now.Add(48 * time.Hour)
	v := Build(userSnapshot(unlock), opts())

	assert.True(t, v.Connected)
	assert.Equal(t, user.Hex(), v.Owner)
	assert.Equal(t, "1.5 MONI", tile(t, v, "Your Pending").Value)
	assert.Equal(t, "Claimable now", tile(t, v, "Your Pending").Sub)
	assert.Equal(t, "25%", tile(t, v, "Your Share").Value)

	assert.True(t, v.Lock.EarlyPenalty)
	assert.Equal(t, "Early penalty active", v.Lock.Status)
	assert.Equal(t, "250 MONI", v.Lock.Staked)
	assert.Equal(t, unlock.Format(time.RFC3339), v.Lock.Unlock)
	assert.Equal(t, uint16(90), v.Lock.LockDays)
	assert.Equal(t, "Early unstake adds 5.00% to pool + 10.00% to buyback plus 2.00% normal fee.", v.Lock.Notice)

	require.NotNil(t, v.Wallet)
	assert.Equal(t, "10 MONI", v.Wallet.Balance)
	assert.Equal(t, "5 MONI", v.Wallet.Allowance)
	assert.Equal(t, ether(250).String(), v.Raw.Staked)
	assert.True(t, v.Actions.CanClaim)
}

func TestBuild_ConnectedUnlocked(t *testing.T) {
	s := userSnapshot(now.Add(-time.Hour))
	s.Wallet.Allowance = new(big.Int).Set(calc.MaxUint256)

	v := Build(s, opts())
	assert.False(t, v.Lock.EarlyPenalty)
	assert.Equal(t, "No early penalty", v.Lock.Status)
	assert.Equal(t, "Normal unstake only.", v.Lock.Notice)
	assert.Equal(t, "Unlimited", v.Wallet.Allowance)
}

func TestBuild_NoLock(t *testing.T) {
	s := userSnapshot(now)
	s.Position = &onchain.UserPosition{Amount: new(big.Int), RewardDebt: new(big.Int)}

	v := Build(s, opts())
	assert.Equal(t, "—", v.Lock.Unlock)
	assert.False(t, v.Lock.EarlyPenalty)
	assert.Equal(t, "0 MONI", v.Lock.Staked)
}

func TestBuild_PendingDisablesActions(t *testing.T) {
	o := opts()
	o.Pending = true
	v := Build(userSnapshot(now), o)

	assert.True(t, v.Actions.Pending)
	assert.False(t, v.Actions.CanClaim)
	assert.False(t, v.Actions.CanSync)
	assert.False(t, v.Actions.CanApprove)
}

func TestBuild_StaleDefaults(t *testing.T) {
	owner := user
	s := onchain.DefaultSnapshot(&owner, 18, "MONI", buyback)

	v := Build(s, opts())
	assert.True(t, v.Stale)
	assert.Equal(t, "0 MONI", tile(t, v, "Total Staked").Value)
	assert.Equal(t, "2.00%", v.Fees.NormalUnstake)
}
