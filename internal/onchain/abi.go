package onchain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Method names on the token and staking contracts
const (
	MethodDecimals  = "decimals"
	MethodSymbol    = "symbol"
	MethodBalanceOf = "balanceOf"
	MethodAllowance = "allowance"
	MethodApprove   = "approve"

	MethodTotalStaked         = "totalStaked"
	MethodRewardsInPool       = "rewardsInPool"
	MethodStakerCount         = "stakerCount"
	MethodNormalUnstakeFeeBps = "normalUnstakeFeeBps"
	MethodEarlyPenaltyPoolBps = "earlyPenaltyToPoolBps"
	MethodEarlyPenaltyBuyBps  = "earlyPenaltyToBuybackBps"
	MethodBuybackWallet       = "buybackWallet"
	MethodPendingRewards      = "pendingRewards"
	MethodUserInfo            = "userInfo"
	MethodStake               = "stake"
	MethodUnstake             = "unstake"
	MethodClaim               = "claim"
	MethodSyncRewards         = "syncRewards"
	MethodAddRewards          = "addRewards"
)

// ERC20ABI covers the token calls the dashboard makes
const ERC20ABI = `[
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// StakingABI covers the staking pool views and user entry points
const StakingABI = `[
	{"type":"function","name":"totalStaked","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"rewardsInPool","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"stakerCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"normalUnstakeFeeBps","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint16"}]},
	{"type":"function","name":"earlyPenaltyToPoolBps","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint16"}]},
	{"type":"function","name":"earlyPenaltyToBuybackBps","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint16"}]},
	{"type":"function","name":"buybackWallet","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"pendingRewards","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"userInfo","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[
		{"name":"amount","type":"uint256"},
		{"name":"rewardDebt","type":"uint256"},
		{"name":"unlockTime","type":"uint64"},
		{"name":"lockDays","type":"uint16"},
		{"name":"exists","type":"bool"}
	]},
	{"type":"function","name":"stake","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"},{"name":"lockDays","type":"uint16"}],"outputs":[]},
	{"type":"function","name":"unstake","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"claim","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"syncRewards","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"addRewards","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]}
]`

var (
	erc20ABI   = mustParseABI(ERC20ABI)
	stakingABI = mustParseABI(StakingABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("onchain: invalid ABI: " + err.Error())
	}
	return parsed
}
