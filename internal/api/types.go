package api

import (
	"github.com/monistake/monistake-backend/internal/calc"
	"github.com/monistake/monistake-backend/internal/onchain"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ChainDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	RPCURL      string `json:"rpc_url"`
	ExplorerURL string `json:"explorer_url"`
}

type ContractsDTO struct {
	Token         string `json:"token"`
	Staking       string `json:"staking"`
	BuybackWallet string `json:"buyback_wallet,omitempty"`
}

// ConfigDTO is what a browser wallet integration needs to connect and sign
type ConfigDTO struct {
	Chain                  ChainDTO     `json:"chain"`
	Contracts              ContractsDTO `json:"contracts"`
	WalletConnectProjectID string       `json:"walletconnect_project_id,omitempty"`
	LockPresets            []uint16     `json:"lock_presets"`
	TokenSymbol            string       `json:"token_symbol"`
	TokenDecimals          int          `json:"token_decimals"`
}

type PoolDTO struct {
	TotalStaked   string           `json:"total_staked"`
	RewardsInPool string           `json:"rewards_in_pool"`
	StakerCount   string           `json:"staker_count"`
	Fees          calc.FeeSchedule `json:"fees"`
	BuybackWallet string           `json:"buyback_wallet"`
}

type PositionDTO struct {
	Amount     string `json:"amount"`
	RewardDebt string `json:"reward_debt"`
	UnlockTime uint64 `json:"unlock_time"`
	LockDays   uint16 `json:"lock_days"`
	Exists     bool   `json:"exists"`
}

// SnapshotDTO carries integers as decimal strings so clients never lose precision
type SnapshotDTO struct {
	Owner          string            `json:"owner,omitempty"`
	Token          onchain.TokenInfo `json:"token"`
	Pool           PoolDTO           `json:"pool"`
	Balance        string            `json:"balance,omitempty"`
	Allowance      string            `json:"allowance,omitempty"`
	Position       *PositionDTO      `json:"position,omitempty"`
	PendingRewards string            `json:"pending_rewards,omitempty"`
	Pending        bool              `json:"write_pending"`
	Stale          bool              `json:"stale"`
	AsOf           int64             `json:"asOf"`
}

// WriteRequestDTO names an action for a wallet. Amount is display text in
// whole tokens; AmountRaw, when set, is the base-unit integer and wins.
type WriteRequestDTO struct {
	Action    string `json:"action"`
	Owner     string `json:"owner"`
	Amount    string `json:"amount,omitempty"`
	AmountRaw string `json:"amount_raw,omitempty"`
	LockDays  uint16 `json:"lock_days,omitempty"`
}

type SubmitRequestDTO struct {
	WriteRequestDTO
	// RawTx is the 0x-prefixed RLP of the wallet-signed transaction
	RawTx string `json:"raw_tx"`
}

type UnsignedCallDTO struct {
	*onchain.UnsignedCall
	Amount      string `json:"amount,omitempty"`
	ExplorerURL string `json:"explorer_url"`
}

type WriteRecordDTO struct {
	*onchain.WriteRecord
	ExplorerURL string `json:"explorer_url,omitempty"`
}

// UnitsDTO echoes a parsed amount; malformed text parses to "0"
type UnitsDTO struct {
	Amount   string `json:"amount"`
	Raw      string `json:"raw"`
	Decimals int    `json:"decimals"`
	Display  string `json:"display"`
}

type ReadinessDTO struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
