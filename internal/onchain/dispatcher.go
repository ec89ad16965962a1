package onchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/monistake/monistake-backend/internal/calc"
	"github.com/monistake/monistake-backend/internal/config"
	"github.com/monistake/monistake-backend/internal/metrics"
	"github.com/monistake/monistake-backend/internal/store"
	"go.uber.org/zap"
)

type Action string

const (
	ActionApprove     Action = "approve"
	ActionStake       Action = "stake"
	ActionUnstake     Action = "unstake"
	ActionClaim       Action = "claim"
	ActionSyncRewards Action = "syncRewards"
	ActionAddRewards  Action = "addRewards"
)

// ParseAction accepts the action names plus the "sync" and "donate" aliases
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve":
		return ActionApprove, nil
	case "stake":
		return ActionStake, nil
	case "unstake":
		return ActionUnstake, nil
	case "claim":
		return ActionClaim, nil
	case "syncrewards", "sync":
		return ActionSyncRewards, nil
	case "addrewards", "donate":
		return ActionAddRewards, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// NeedsAmount reports whether the action carries a token amount
func (a Action) NeedsAmount() bool {
	return a == ActionStake || a == ActionUnstake || a == ActionAddRewards
}

type WriteStatus string

const (
	StatusPending   WriteStatus = "pending"
	StatusConfirmed WriteStatus = "confirmed"
	StatusFailed    WriteStatus = "failed"
)

type WriteRequest struct {
	Action   Action
	Owner    common.Address
	Amount   *big.Int
	LockDays uint16
}

// UnsignedCall is handed to a browser wallet to sign and send back
type UnsignedCall struct {
	Action  Action         `json:"action"`
	Method  string         `json:"method"`
	From    common.Address `json:"from"`
	To      common.Address `json:"to"`
	Data    hexutil.Bytes  `json:"data"`
	ChainID int64          `json:"chain_id"`
}

type WriteRecord struct {
	ID          uuid.UUID      `json:"id"`
	Action      Action         `json:"action"`
	Owner       common.Address `json:"owner"`
	TxHash      *common.Hash   `json:"tx_hash,omitempty"`
	Status      WriteStatus    `json:"status"`
	Error       string         `json:"error,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	SettledAt   *time.Time     `json:"settled_at,omitempty"`
}

// WriteDispatcher is what the HTTP layer needs from the dispatcher
type WriteDispatcher interface {
	Build(ctx context.Context, req WriteRequest) (*UnsignedCall, error)
	SubmitSigned(ctx context.Context, req WriteRequest, rawTx []byte) (*WriteRecord, error)
	Record(ctx context.Context, id uuid.UUID) (*WriteRecord, error)
	IsPending(owner common.Address) bool
}

var (
	ErrPrecondition   = errors.New("precondition failed")
	ErrWritePending   = errors.New("a write is already pending for this wallet")
	ErrRecordNotFound = errors.New("write record not found")
	ErrTxMismatch     = errors.New("signed transaction does not match request")
)

const (
	recordRetention = 24 * time.Hour
	memoryRetention = time.Hour
)

type trackedWrite struct {
	rec  WriteRecord
	done chan struct{}
}

// Dispatcher submits contract writes and tracks them until they settle. At
// most one write per owner is outstanding.
type Dispatcher struct {
	caller  ContractCaller
	reader  SnapshotReader
	cache   *store.Cache
	config  *config.Config
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics

	// settlement waits outlive the submitting request
	ctx context.Context
	wg  sync.WaitGroup

	mu       sync.Mutex
	inflight map[common.Address]*trackedWrite
	records  map[uuid.UUID]*trackedWrite
	now      func() time.Time
}

var _ WriteDispatcher = (*Dispatcher)(nil)

func NewDispatcher(
	ctx context.Context,
	caller ContractCaller,
	reader SnapshotReader,
	cache *store.Cache,
	cfg *config.Config,
	logger *zap.SugaredLogger,
	m *metrics.Metrics,
) *Dispatcher {
	return &Dispatcher{
		caller:   caller,
		reader:   reader,
		cache:    cache,
		config:   cfg,
		logger:   logger,
		metrics:  m,
		ctx:      ctx,
		inflight: make(map[common.Address]*trackedWrite),
		records:  make(map[uuid.UUID]*trackedWrite),
		now:      time.Now,
	}
}

// Build checks preconditions and returns the call for an external signer
func (d *Dispatcher) Build(ctx context.Context, req WriteRequest) (*UnsignedCall, error) {
	if d.IsPending(req.Owner) {
		return nil, ErrWritePending
	}
	if err := d.checkPreconditions(ctx, req); err != nil {
		return nil, err
	}
	to, method, data, err := d.encode(req)
	if err != nil {
		return nil, err
	}
	return &UnsignedCall{
		Action:  req.Action,
		Method:  method,
		From:    req.Owner,
		To:      to,
		Data:    data,
		ChainID: d.config.Chain.ChainID,
	}, nil
}

// SubmitSigned broadcasts a wallet-signed transaction after checking it was
// signed by the owner and encodes exactly the requested call
func (d *Dispatcher) SubmitSigned(ctx context.Context, req WriteRequest, rawTx []byte) (*WriteRecord, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return nil, fmt.Errorf("%w: undecodable transaction: %v", ErrTxMismatch, err)
	}
	signer := types.LatestSignerForChainID(big.NewInt(d.config.Chain.ChainID))
	from, err := types.Sender(signer, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTxMismatch, err)
	}
	if from != req.Owner {
		return nil, fmt.Errorf("%w: signed by %s, expected %s", ErrTxMismatch, from.Hex(), req.Owner.Hex())
	}

	if err := d.checkPreconditions(ctx, req); err != nil {
		return nil, err
	}
	to, _, data, err := d.encode(req)
	if err != nil {
		return nil, err
	}
	if tx.To() == nil || *tx.To() != to || !bytes.Equal(tx.Data(), data) {
		return nil, fmt.Errorf("%w: target or calldata differ from %s", ErrTxMismatch, req.Action)
	}

	return d.dispatch(req, func() (*TxHandle, error) {
		return d.caller.SubmitWrite(ctx, WriteCall{From: from, To: to, Data: data, Signed: tx})
	})
}

// Execute signs with the caller's operator key
func (d *Dispatcher) Execute(ctx context.Context, req WriteRequest) (*WriteRecord, error) {
	if err := d.checkPreconditions(ctx, req); err != nil {
		return nil, err
	}
	to, _, data, err := d.encode(req)
	if err != nil {
		return nil, err
	}
	return d.dispatch(req, func() (*TxHandle, error) {
		return d.caller.SubmitWrite(ctx, WriteCall{From: req.Owner, To: to, Data: data})
	})
}

func (d *Dispatcher) IsPending(owner common.Address) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, busy := d.inflight[owner]
	return busy
}

func (d *Dispatcher) Record(ctx context.Context, id uuid.UUID) (*WriteRecord, error) {
	d.mu.Lock()
	t, ok := d.records[id]
	if ok {
		rec := t.rec
		d.mu.Unlock()
		return &rec, nil
	}
	d.mu.Unlock()

	var rec WriteRecord
	if err := d.cache.GetWriteRecord(ctx, id.String(), &rec); err != nil {
		if errors.Is(err, store.ErrCacheMiss) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to load write record: %w", err)
	}
	return &rec, nil
}

// Wait blocks until the write settles and the follow-up refresh has run
func (d *Dispatcher) Wait(ctx context.Context, id uuid.UUID) (*WriteRecord, error) {
	d.mu.Lock()
	t, ok := d.records[id]
	d.mu.Unlock()
	if !ok {
		return nil, ErrRecordNotFound
	}

	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	rec := t.rec
	return &rec, nil
}

// Close waits for outstanding settlement goroutines
func (d *Dispatcher) Close() {
	d.wg.Wait()
}

func (d *Dispatcher) checkPreconditions(ctx context.Context, req WriteRequest) error {
	if req.Owner == (common.Address{}) {
		return fmt.Errorf("%w: wallet not connected", ErrPrecondition)
	}

	var err error
	switch req.Action {
	case ActionApprove, ActionClaim, ActionSyncRewards:
	case ActionUnstake, ActionAddRewards:
		err = calc.ValidateAmount(req.Amount, string(req.Action))
	case ActionStake:
		if err = calc.ValidateAmount(req.Amount, string(req.Action)); err != nil {
			break
		}
		if err = calc.ValidateLockDays(req.LockDays, d.config.Staking.LockPresets); err != nil {
			break
		}
		err = d.checkAllowance(ctx, req)
	default:
		err = fmt.Errorf("unknown action %q", req.Action)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPrecondition, err)
	}
	return nil
}

func (d *Dispatcher) checkAllowance(ctx context.Context, req WriteRequest) error {
	owner := req.Owner
	snap, err := d.reader.Snapshot(ctx, &owner)
	if snap == nil {
		return fmt.Errorf("failed to read allowance: %w", err)
	}
	if err != nil {
		d.logger.Warnw("Checking allowance against stale snapshot", "owner", owner.Hex(), "error", err)
	}
	var allowance *big.Int
	if snap.Wallet != nil {
		allowance = snap.Wallet.Allowance
	}
	return calc.ValidateAllowance(req.Amount, allowance)
}

func (d *Dispatcher) encode(req WriteRequest) (common.Address, string, []byte, error) {
	token := d.config.Contracts.Token()
	staking := d.config.Contracts.Staking()

	var (
		to     common.Address
		method string
		data   []byte
		err    error
	)
	switch req.Action {
	case ActionApprove:
		to, method = token, MethodApprove
		data, err = erc20ABI.Pack(method, staking, calc.MaxUint256)
	case ActionStake:
		to, method = staking, MethodStake
		data, err = stakingABI.Pack(method, req.Amount, req.LockDays)
	case ActionUnstake:
		to, method = staking, MethodUnstake
		data, err = stakingABI.Pack(method, req.Amount)
	case ActionClaim:
		to, method = staking, MethodClaim
		data, err = stakingABI.Pack(method)
	case ActionSyncRewards:
		to, method = staking, MethodSyncRewards
		data, err = stakingABI.Pack(method)
	case ActionAddRewards:
		to, method = staking, MethodAddRewards
		data, err = stakingABI.Pack(method, req.Amount)
	default:
		return common.Address{}, "", nil, fmt.Errorf("%w: unknown action %q", ErrPrecondition, req.Action)
	}
	if err != nil {
		return common.Address{}, "", nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}
	return to, method, data, nil
}

// dispatch claims the owner's pending slot, submits and starts settlement tracking
func (d *Dispatcher) dispatch(req WriteRequest, submit func() (*TxHandle, error)) (*WriteRecord, error) {
	t, err := d.begin(req)
	if err != nil {
		return nil, err
	}

	handle, err := submit()
	if err != nil {
		d.logger.Errorw("Failed to submit write", "action", req.Action, "owner", req.Owner.Hex(), "error", err)
		rec := d.settle(t, StatusFailed, err)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.finish(t)
		}()
		return rec, fmt.Errorf("failed to submit %s: %w", req.Action, err)
	}

	d.mu.Lock()
	hash := handle.Hash
	t.rec.TxHash = &hash
	rec := t.rec
	d.mu.Unlock()

	d.logger.Infow("Write submitted", "id", rec.ID, "action", rec.Action, "owner", rec.Owner.Hex(), "tx", hash.Hex())
	d.persist(&rec)

	d.wg.Add(1)
	go d.await(t, handle)

	return &rec, nil
}

func (d *Dispatcher) begin(req WriteRequest) (*trackedWrite, error) {
	d.mu.Lock()
	if _, busy := d.inflight[req.Owner]; busy {
		d.mu.Unlock()
		return nil, ErrWritePending
	}
	d.pruneLocked()

	t := &trackedWrite{
		rec: WriteRecord{
			ID:          uuid.New(),
			Action:      req.Action,
			Owner:       req.Owner,
			Status:      StatusPending,
			SubmittedAt: d.now().UTC(),
		},
		done: make(chan struct{}),
	}
	d.inflight[req.Owner] = t
	d.records[t.rec.ID] = t
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.RecordWrite(d.ctx, string(req.Action), string(StatusPending))
	}
	return t, nil
}

func (d *Dispatcher) await(t *trackedWrite, handle *TxHandle) {
	defer d.wg.Done()

	receipt, err := handle.Wait(d.ctx)
	switch {
	case err != nil:
		d.settle(t, StatusFailed, fmt.Errorf("failed waiting for receipt: %w", err))
	case receipt.Status != types.ReceiptStatusSuccessful:
		d.settle(t, StatusFailed, fmt.Errorf("transaction reverted in block %s", receipt.BlockNumber))
	default:
		d.settle(t, StatusConfirmed, nil)
	}
	d.finish(t)
}

// finish re-reads the owner's snapshot after settlement, then releases waiters
func (d *Dispatcher) finish(t *trackedWrite) {
	defer close(t.done)

	owner := t.rec.Owner
	if _, err := d.reader.Refresh(d.ctx, &owner); err != nil {
		d.logger.Warnw("Post-settlement refresh failed", "owner", owner.Hex(), "error", err)
	}
}

// settle records the outcome and releases the owner's pending slot
func (d *Dispatcher) settle(t *trackedWrite, status WriteStatus, cause error) *WriteRecord {
	d.mu.Lock()
	now := d.now().UTC()
	t.rec.Status = status
	t.rec.SettledAt = &now
	if cause != nil {
		t.rec.Error = cause.Error()
	}
	if d.inflight[t.rec.Owner] == t {
		delete(d.inflight, t.rec.Owner)
	}
	rec := t.rec
	d.mu.Unlock()

	if status == StatusFailed {
		d.logger.Warnw("Write failed", "id", rec.ID, "action", rec.Action, "owner", rec.Owner.Hex(), "error", rec.Error)
	} else {
		d.logger.Infow("Write confirmed", "id", rec.ID, "action", rec.Action, "owner", rec.Owner.Hex())
	}
	if d.metrics != nil {
		d.metrics.RecordWrite(d.ctx, string(rec.Action), string(status))
	}
	d.persist(&rec)
	return &rec
}

func (d *Dispatcher) persist(rec *WriteRecord) {
	ctx := context.WithoutCancel(d.ctx)
	if err := d.cache.SetWriteRecord(ctx, rec.ID.String(), rec, recordRetention); err != nil {
		d.logger.Warnw("Failed to cache write record", "id", rec.ID, "error", err)
	}
	topic := store.UserTopic(store.TopicTx, rec.Owner.Hex())
	if err := d.cache.PublishUpdate(ctx, topic, rec); err != nil {
		d.logger.Warnw("Failed to publish write record", "id", rec.ID, "error", err)
	}
}

// pruneLocked drops settled records from memory; the cache keeps them longer
func (d *Dispatcher) pruneLocked() {
	cutoff := d.now().Add(-memoryRetention)
	for id, t := range d.records {
		if t.rec.SettledAt != nil && t.rec.SettledAt.Before(cutoff) {
			delete(d.records, id)
		}
	}
}
