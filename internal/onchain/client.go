package onchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// Client implements ContractCaller on top of a JSON-RPC endpoint
type Client struct {
	rpc     *rpc.Client
	eth     *ethclient.Client
	chainID *big.Int
	key     *ecdsa.PrivateKey
	logger  *zap.SugaredLogger
}

type ClientOptions struct {
	ChainID int64
	// OperatorKey is a hex private key used by SubmitWrite for unsigned calls
	OperatorKey string
	// DialAttempts bounds the startup connection retries
	DialAttempts uint
	DialDelay    time.Duration
}

var _ ContractCaller = (*Client)(nil)

// Dial connects to rpcURL and checks that it serves the configured chain.
// Only the initial connection is retried.
func Dial(ctx context.Context, rpcURL string, opts ClientOptions, logger *zap.SugaredLogger) (*Client, error) {
	var key *ecdsa.PrivateKey
	if opts.OperatorKey != "" {
		k, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(opts.OperatorKey), "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid operator key: %w", err)
		}
		key = k
	}
	if opts.DialAttempts == 0 {
		opts.DialAttempts = 5
	}
	if opts.DialDelay == 0 {
		opts.DialDelay = time.Second
	}
	want := big.NewInt(opts.ChainID)

	rc, err := retry.DoWithData(
		func() (*rpc.Client, error) {
			rc, err := rpc.DialContext(ctx, rpcURL)
			if err != nil {
				return nil, err
			}
			got, err := ethclient.NewClient(rc).ChainID(ctx)
			if err != nil {
				rc.Close()
				return nil, err
			}
			if opts.ChainID > 0 && got.Cmp(want) != 0 {
				rc.Close()
				return nil, retry.Unrecoverable(fmt.Errorf("%w: want %s, got %s", ErrChainMismatch, want, got))
			}
			return rc, nil
		},
		retry.Context(ctx),
		retry.Attempts(opts.DialAttempts),
		retry.Delay(opts.DialDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if logger != nil {
				logger.Warnw("RPC dial failed, retrying", "url", rpcURL, "attempt", n+1, "error", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", rpcURL, err)
	}

	return &Client{
		rpc:     rc,
		eth:     ethclient.NewClient(rc),
		chainID: want,
		key:     key,
		logger:  logger,
	}, nil
}

// OperatorAddress reports the address SubmitWrite signs with, if any
func (c *Client) OperatorAddress() (common.Address, bool) {
	if c.key == nil {
		return common.Address{}, false
	}
	return crypto.PubkeyToAddress(c.key.PublicKey), true
}

// Ping checks the node answers
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.eth.BlockNumber(ctx); err != nil {
		return fmt.Errorf("rpc unreachable: %w", err)
	}
	return nil
}

func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) BatchRead(ctx context.Context, calls []ReadCall) ([][]byte, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	results := make([]hexutil.Bytes, len(calls))
	batch := make([]rpc.BatchElem, len(calls))
	for i, call := range calls {
		batch[i] = rpc.BatchElem{
			Method: "eth_call",
			Args: []interface{}{
				map[string]interface{}{
					"to":   call.To,
					"data": hexutil.Bytes(call.Data),
				},
				"latest",
			},
			Result: &results[i],
		}
	}

	if err := c.rpc.BatchCallContext(ctx, batch); err != nil {
		return nil, fmt.Errorf("batch eth_call failed: %w", err)
	}

	var errs []error
	for i, elem := range batch {
		if elem.Error != nil {
			errs = append(errs, fmt.Errorf("call %d to %s: %w", i, calls[i].To.Hex(), elem.Error))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	out := make([][]byte, len(results))
	for i, r := range results {
		out[i] = r
	}
	return out, nil
}

func (c *Client) SubmitWrite(ctx context.Context, call WriteCall) (*TxHandle, error) {
	if call.Signed != nil {
		if err := c.eth.SendTransaction(ctx, call.Signed); err != nil {
			return nil, fmt.Errorf("failed to broadcast transaction: %w", err)
		}
		return c.handle(call.Signed), nil
	}

	if c.key == nil {
		return nil, ErrNoSigner
	}
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	if call.From != (common.Address{}) && call.From != opts.From {
		return nil, fmt.Errorf("operator %s cannot sign for %s", opts.From.Hex(), call.From.Hex())
	}

	contract := bind.NewBoundContract(call.To, abi.ABI{}, c.eth, c.eth, c.eth)
	tx, err := contract.RawTransact(opts, call.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	if c.logger != nil {
		c.logger.Infow("Transaction sent", "hash", tx.Hash().Hex(), "to", call.To.Hex(), "from", opts.From.Hex())
	}
	return c.handle(tx), nil
}

func (c *Client) handle(tx *types.Transaction) *TxHandle {
	return NewTxHandle(tx.Hash(), func(ctx context.Context) (*types.Receipt, error) {
		return bind.WaitMined(ctx, c.eth, tx)
	})
}
