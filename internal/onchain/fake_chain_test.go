package onchain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/monistake/monistake-backend/internal/calc"
)

var (
	testToken   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testStaking = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testBuyback = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testUser    = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// fakeChain answers contract calls from in-memory state by decoding the
// method selector against the real ABIs
type fakeChain struct {
	mu sync.Mutex

	decimals    uint8
	symbol      string
	totalStaked *big.Int
	rewards     *big.Int
	stakers     *big.Int
	fees        calc.FeeSchedule
	buyback     common.Address
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]*big.Int
	pending     map[common.Address]*big.Int
	positions   map[common.Address]UserPosition

	readErr   error
	reads     int
	lastBatch int

	submitErr     error
	writes        []WriteCall
	receiptStatus uint64
	// when non-nil, receipts are withheld until it is closed
	release chan struct{}
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		decimals:      18,
		symbol:        "MONI",
		totalStaked:   ether(1000),
		rewards:       ether(250),
		stakers:       big.NewInt(42),
		fees:          calc.DefaultFeeSchedule,
		buyback:       testBuyback,
		balances:      map[common.Address]*big.Int{},
		allowances:    map[common.Address]*big.Int{},
		pending:       map[common.Address]*big.Int{},
		positions:     map[common.Address]UserPosition{},
		receiptStatus: types.ReceiptStatusSuccessful,
	}
}

func (f *fakeChain) setReadErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

func (f *fakeChain) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *fakeChain) writeLog() []WriteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]WriteCall(nil), f.writes...)
}

func (f *fakeChain) BatchRead(ctx context.Context, calls []ReadCall) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++
	f.lastBatch = len(calls)
	if f.readErr != nil {
		return nil, f.readErr
	}

	out := make([][]byte, len(calls))
	for i, call := range calls {
		contract := stakingABI
		if call.To == testToken {
			contract = erc20ABI
		}
		method, err := contract.MethodById(call.Data[:4])
		if err != nil {
			return nil, err
		}
		args, err := method.Inputs.Unpack(call.Data[4:])
		if err != nil {
			return nil, err
		}
		ret, err := f.answer(method, args)
		if err != nil {
			return nil, err
		}
		out[i] = ret
	}
	return out, nil
}

func (f *fakeChain) answer(method *abi.Method, args []interface{}) ([]byte, error) {
	lookup := func(m map[common.Address]*big.Int) *big.Int {
		if v, ok := m[args[0].(common.Address)]; ok {
			return v
		}
		return new(big.Int)
	}

	switch method.Name {
	case MethodDecimals:
		return method.Outputs.Pack(f.decimals)
	case MethodSymbol:
		return method.Outputs.Pack(f.symbol)
	case MethodBalanceOf:
		return method.Outputs.Pack(lookup(f.balances))
	case MethodAllowance:
		return method.Outputs.Pack(lookup(f.allowances))
	case MethodTotalStaked:
		return method.Outputs.Pack(f.totalStaked)
	case MethodRewardsInPool:
		return method.Outputs.Pack(f.rewards)
	case MethodStakerCount:
		return method.Outputs.Pack(f.stakers)
	case MethodNormalUnstakeFeeBps:
		return method.Outputs.Pack(f.fees.NormalUnstakeBps)
	case MethodEarlyPenaltyPoolBps:
		return method.Outputs.Pack(f.fees.EarlyToPoolBps)
	case MethodEarlyPenaltyBuyBps:
		return method.Outputs.Pack(f.fees.EarlyToBuybackBps)
	case MethodBuybackWallet:
		return method.Outputs.Pack(f.buyback)
	case MethodPendingRewards:
		return method.Outputs.Pack(lookup(f.pending))
	case MethodUserInfo:
		p, ok := f.positions[args[0].(common.Address)]
		if !ok {
			p = UserPosition{Amount: new(big.Int), RewardDebt: new(big.Int)}
		}
		return method.Outputs.Pack(p.Amount, p.RewardDebt, p.UnlockTime, p.LockDays, p.Exists)
	default:
		return nil, fmt.Errorf("fake chain: unexpected call %s", method.Name)
	}
}

func (f *fakeChain) SubmitWrite(ctx context.Context, call WriteCall) (*TxHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.writes = append(f.writes, call)
	hash := crypto.Keccak256Hash(call.Data, big.NewInt(int64(len(f.writes))).Bytes())
	release := f.release
	status := f.receiptStatus

	return NewTxHandle(hash, func(ctx context.Context) (*types.Receipt, error) {
		if release != nil {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return &types.Receipt{Status: status, TxHash: hash, BlockNumber: big.NewInt(1)}, nil
	}), nil
}
