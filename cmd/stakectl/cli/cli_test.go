package cli

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/monistake/monistake-backend/internal/calc"
	"github.com/monistake/monistake-backend/internal/dashboard"
	"github.com/monistake/monistake-backend/internal/onchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    *big.Int
		wantErr bool
	}{
		{"whole", "12", ether(12), false},
		{"fraction", "0.5", new(big.Int).Div(ether(1), big.NewInt(2)), false},
		{"grouped", "1,000", ether(1000), false},
		{"raw", "wei:42", big.NewInt(42), false},
		{"raw zero", "wei:0", nil, true},
		{"raw garbage", "wei:abc", nil, true},
		{"zero", "0", nil, true},
		{"garbage", "abc", nil, true},
		{"empty", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAmount(tt.text, 18)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, tt.want.Cmp(got), "got %s", got)
		})
	}
}

func testSnapshot(connected bool) *onchain.Snapshot {
	snap := &onchain.Snapshot{
		Token: onchain.TokenInfo{Decimals: 18, Symbol: "MONI"},
		Pool: onchain.PoolSnapshot{
			TotalStaked:   ether(1000),
			RewardsInPool: ether(100),
			StakerCount:   big.NewInt(3),
			Fees:          calc.DefaultFeeSchedule,
			BuybackWallet: common.HexToAddress("0x3333333333333333333333333333333333333333"),
		},
		AsOf: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if connected {
		owner := common.HexToAddress("0x4444444444444444444444444444444444444444")
		snap.Owner = &owner
		snap.Wallet = &onchain.WalletState{Balance: ether(5), Allowance: calc.MaxUint256}
		snap.Position = &onchain.UserPosition{
			Amount:     ether(100),
			RewardDebt: new(big.Int),
			UnlockTime: uint64(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Unix()),
			LockDays:   90,
			Exists:     true,
		}
		snap.PendingRewards = ether(1)
	}
	return snap
}

func testOptions() dashboard.Options {
	return dashboard.Options{
		Now:            time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		TokenAddress:   common.HexToAddress("0x1111111111111111111111111111111111111111"),
		StakingAddress: common.HexToAddress("0x2222222222222222222222222222222222222222"),
		LockPresets:    []uint16{30, 90},
	}
}

func TestRenderView_Disconnected(t *testing.T) {
	var buf bytes.Buffer
	renderView(&buf, dashboard.Build(testSnapshot(false), testOptions()))

	out := buf.String()
	assert.Contains(t, out, "Total Staked")
	assert.Contains(t, out, "1,000 MONI")
	assert.Contains(t, out, "Connect wallet to view your lock status.")
	assert.NotContains(t, out, "Allowance")
	assert.NotContains(t, out, "Stale data")
}

func TestRenderView_Connected(t *testing.T) {
	snap := testSnapshot(true)
	snap.Stale = true

	var buf bytes.Buffer
	renderView(&buf, dashboard.Build(snap, testOptions()))

	out := buf.String()
	assert.Contains(t, out, "Stale data from 2026-01-01T00:00:00Z")
	assert.Contains(t, out, "Early penalty active")
	assert.Contains(t, out, "Unlimited")
	assert.Contains(t, out, "You vs Everyone")
	assert.Contains(t, out, "0x2222…2222")
}

func TestRenderRecord(t *testing.T) {
	hash := common.HexToHash("0xabc")
	rec := &onchain.WriteRecord{
		ID:     uuid.New(),
		Action: onchain.ActionClaim,
		TxHash: &hash,
		Status: onchain.StatusFailed,
		Error:  "execution reverted",
	}

	var buf bytes.Buffer
	renderRecord(&buf, rec, func(h string) string { return "https://explorer/tx/" + h })

	out := buf.String()
	assert.Contains(t, out, rec.ID.String())
	assert.Contains(t, out, "https://explorer/tx/"+hash.Hex())
	assert.Contains(t, out, "execution reverted")
}

func TestWriteCmds(t *testing.T) {
	names := map[string]bool{}
	for _, c := range WriteCmds() {
		names[c.Name()] = true
		hasAmount := c.Flags().Lookup("amount") != nil
		switch c.Name() {
		case "stake", "unstake", "donate":
			assert.True(t, hasAmount, c.Name())
		default:
			assert.False(t, hasAmount, c.Name())
		}
		if c.Name() == "stake" {
			require.NotNil(t, c.Flags().Lookup("lock-days"))
			require.NotNil(t, c.Flags().Lookup("approve"))
		}
	}
	for _, want := range []string{"approve", "stake", "unstake", "claim", "sync", "donate"} {
		assert.True(t, names[want], want)
	}
}
