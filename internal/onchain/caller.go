package onchain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ContractCaller is the read/write capability the aggregator and dispatcher
// are built on. Client implements it against a JSON-RPC node.
type ContractCaller interface {
	// BatchRead executes all calls in one round trip. Any per-call failure
	// fails the whole batch.
	BatchRead(ctx context.Context, calls []ReadCall) ([][]byte, error)
	// SubmitWrite broadcasts a write and returns a handle to await it.
	SubmitWrite(ctx context.Context, call WriteCall) (*TxHandle, error)
}

// ReadCall is a single eth_call against the latest block
type ReadCall struct {
	To   common.Address
	Data []byte
}

// WriteCall is either pre-signed by the wallet (Signed) or signed by the
// caller's own operator key.
type WriteCall struct {
	From   common.Address
	To     common.Address
	Data   []byte
	Signed *types.Transaction
}

// TxHandle tracks a broadcast transaction
type TxHandle struct {
	Hash common.Hash
	wait func(ctx context.Context) (*types.Receipt, error)
}

func NewTxHandle(hash common.Hash, wait func(ctx context.Context) (*types.Receipt, error)) *TxHandle {
	return &TxHandle{Hash: hash, wait: wait}
}

// Wait blocks until the transaction is mined or ctx ends
func (h *TxHandle) Wait(ctx context.Context) (*types.Receipt, error) {
	if h.wait == nil {
		return nil, errors.New("transaction handle has no waiter")
	}
	return h.wait(ctx)
}

var (
	ErrNoSigner      = errors.New("no operator key configured")
	ErrChainMismatch = errors.New("rpc chain id does not match configuration")
)
