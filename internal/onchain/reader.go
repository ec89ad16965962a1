package onchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/monistake/monistake-backend/internal/calc"
	"github.com/monistake/monistake-backend/internal/config"
	"github.com/monistake/monistake-backend/internal/metrics"
	"github.com/monistake/monistake-backend/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SnapshotReader serves dashboard snapshots. A nil owner selects the pool-only view.
type SnapshotReader interface {
	// Snapshot returns a recent snapshot, reading the chain only when the
	// cached one is older than the freshness window.
	Snapshot(ctx context.Context, owner *common.Address) (*Snapshot, error)
	// Refresh always reads the chain. On failure the previous snapshot is
	// returned flagged Stale together with the error.
	Refresh(ctx context.Context, owner *common.Address) (*Snapshot, error)
}

const sharedReadTimeout = 20 * time.Second

type Reader struct {
	caller  ContractCaller
	cache   *store.Cache
	config  *config.Config
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
	sf      singleflight.Group
	now     func() time.Time
}

var _ SnapshotReader = (*Reader)(nil)

func NewReader(
	caller ContractCaller,
	cache *store.Cache,
	cfg *config.Config,
	logger *zap.SugaredLogger,
	m *metrics.Metrics,
) *Reader {
	return &Reader{
		caller:  caller,
		cache:   cache,
		config:  cfg,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

func scopeOf(owner *common.Address) string {
	if owner == nil {
		return ""
	}
	return strings.ToLower(owner.Hex())
}

func (r *Reader) Snapshot(ctx context.Context, owner *common.Address) (*Snapshot, error) {
	var cached Snapshot
	if err := r.cache.GetSnapshot(ctx, scopeOf(owner), &cached); err == nil {
		if r.now().Sub(cached.AsOf) < r.config.Cache.MaxAge {
			return &cached, nil
		}
	}
	return r.Refresh(ctx, owner)
}

// Refresh joins concurrent refreshes of the same scope into one batch read.
// The shared read is detached from any single caller and bounded by
// sharedReadTimeout; a caller whose ctx ends first gets the previous
// snapshot flagged Stale while the read finishes for everyone else.
func (r *Reader) Refresh(ctx context.Context, owner *common.Address) (*Snapshot, error) {
	key := "refresh:" + scopeOf(owner)
	ch := r.sf.DoChan(key, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()
		return r.refresh(shared, owner)
	})

	select {
	case res := <-ch:
		snap, _ := res.Val.(*Snapshot)
		return snap, res.Err
	case <-ctx.Done():
		prev := r.previous(context.WithoutCancel(ctx), owner)
		prev.Stale = true
		return prev, ctx.Err()
	}
}

func (r *Reader) refresh(ctx context.Context, owner *common.Address) (*Snapshot, error) {
	scope := scopeOf(owner)
	reads := r.plan(owner)

	calls := make([]ReadCall, len(reads))
	for i, rd := range reads {
		data, err := rd.contract.Pack(rd.method, rd.args...)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", rd.method, err)
		}
		calls[i] = ReadCall{To: rd.to, Data: data}
	}

	start := r.now()
	raw, err := r.caller.BatchRead(ctx, calls)
	var snap *Snapshot
	if err == nil {
		snap, err = r.decode(owner, reads, raw)
	}
	if r.metrics != nil {
		r.metrics.RecordChainRead(ctx, len(calls), err == nil, r.now().Sub(start))
	}

	if err != nil {
		r.logger.Warnw("Batch read failed; keeping previous snapshot", "owner", scope, "calls", len(calls), "error", err)
		prev := r.previous(ctx, owner)
		prev.Stale = true
		return prev, fmt.Errorf("failed to read contract state: %w", err)
	}

	snap.AsOf = r.now()
	r.save(ctx, snap)
	return snap, nil
}

// save overwrites the cached snapshots whole and notifies live subscribers
func (r *Reader) save(ctx context.Context, snap *Snapshot) {
	ttl := r.config.Cache.SnapshotTTL
	pool := snap.PoolOnly()

	if err := r.cache.SetSnapshot(ctx, "", pool, ttl); err != nil {
		r.logger.Warnw("Failed to cache pool snapshot", "error", err)
	}
	if err := r.cache.PublishUpdate(ctx, store.TopicPool, pool); err != nil {
		r.logger.Warnw("Failed to publish pool snapshot", "error", err)
	}

	if snap.Owner == nil {
		return
	}
	scope := scopeOf(snap.Owner)
	if err := r.cache.SetSnapshot(ctx, scope, snap, ttl); err != nil {
		r.logger.Warnw("Failed to cache user snapshot", "owner", scope, "error", err)
	}
	if err := r.cache.PublishUpdate(ctx, store.UserTopic(store.TopicUser, scope), snap); err != nil {
		r.logger.Warnw("Failed to publish user snapshot", "owner", scope, "error", err)
	}
}

// previous returns the last good snapshot for owner, falling back to the
// cached pool view and then to defaults
func (r *Reader) previous(ctx context.Context, owner *common.Address) *Snapshot {
	var prev Snapshot
	if err := r.cache.GetSnapshot(ctx, scopeOf(owner), &prev); err == nil {
		return &prev
	}

	def := DefaultSnapshot(owner, r.config.Staking.TokenDecimals, r.config.Staking.TokenSymbol, r.config.Contracts.Buyback())
	if owner != nil {
		var pool Snapshot
		if err := r.cache.GetSnapshot(ctx, "", &pool); err == nil {
			def.Token = pool.Token
			def.Pool = pool.Pool
			def.AsOf = pool.AsOf
		}
	}
	return def
}

type plannedRead struct {
	contract abi.ABI
	to       common.Address
	method   string
	args     []interface{}
}

func (r *Reader) plan(owner *common.Address) []plannedRead {
	token := r.config.Contracts.Token()
	staking := r.config.Contracts.Staking()

	reads := []plannedRead{
		{erc20ABI, token, MethodDecimals, nil},
		{erc20ABI, token, MethodSymbol, nil},
		{stakingABI, staking, MethodTotalStaked, nil},
		{stakingABI, staking, MethodRewardsInPool, nil},
		{stakingABI, staking, MethodStakerCount, nil},
		{stakingABI, staking, MethodNormalUnstakeFeeBps, nil},
		{stakingABI, staking, MethodEarlyPenaltyPoolBps, nil},
		{stakingABI, staking, MethodEarlyPenaltyBuyBps, nil},
		{stakingABI, staking, MethodBuybackWallet, nil},
	}
	if owner == nil {
		return reads
	}
	return append(reads,
		plannedRead{erc20ABI, token, MethodBalanceOf, []interface{}{*owner}},
		plannedRead{erc20ABI, token, MethodAllowance, []interface{}{*owner, staking}},
		plannedRead{stakingABI, staking, MethodPendingRewards, []interface{}{*owner}},
		plannedRead{stakingABI, staking, MethodUserInfo, []interface{}{*owner}},
	)
}

func (r *Reader) decode(owner *common.Address, reads []plannedRead, raw [][]byte) (*Snapshot, error) {
	if len(raw) != len(reads) {
		return nil, fmt.Errorf("batch returned %d results for %d calls", len(raw), len(reads))
	}

	values := make(map[string][]interface{}, len(reads))
	for i, rd := range reads {
		vals, err := rd.contract.Unpack(rd.method, raw[i])
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", rd.method, err)
		}
		values[rd.method] = vals
	}

	d := decoder{values: values}
	snap := &Snapshot{
		Token: TokenInfo{
			Decimals: d.u8(MethodDecimals),
			Symbol:   d.str(MethodSymbol),
		},
		Pool: PoolSnapshot{
			TotalStaked:   d.bigInt(MethodTotalStaked, 0),
			RewardsInPool: d.bigInt(MethodRewardsInPool, 0),
			StakerCount:   d.bigInt(MethodStakerCount, 0),
			Fees: calc.FeeSchedule{
				NormalUnstakeBps:  d.u16(MethodNormalUnstakeFeeBps, 0),
				EarlyToPoolBps:    d.u16(MethodEarlyPenaltyPoolBps, 0),
				EarlyToBuybackBps: d.u16(MethodEarlyPenaltyBuyBps, 0),
			},
			BuybackWallet: d.addr(MethodBuybackWallet),
		},
	}

	if owner != nil {
		o := *owner
		snap.Owner = &o
		snap.Wallet = &WalletState{
			Balance:   d.bigInt(MethodBalanceOf, 0),
			Allowance: d.bigInt(MethodAllowance, 0),
		}
		snap.PendingRewards = d.bigInt(MethodPendingRewards, 0)
		snap.Position = &UserPosition{
			Amount:     d.bigInt(MethodUserInfo, 0),
			RewardDebt: d.bigInt(MethodUserInfo, 1),
			UnlockTime: d.u64(MethodUserInfo, 2),
			LockDays:   d.u16(MethodUserInfo, 3),
			Exists:     d.flag(MethodUserInfo, 4),
		}
	}

	if d.err != nil {
		return nil, d.err
	}
	for _, bps := range []uint16{snap.Pool.Fees.NormalUnstakeBps, snap.Pool.Fees.EarlyToPoolBps, snap.Pool.Fees.EarlyToBuybackBps} {
		if err := calc.ValidateBps(bps); err != nil {
			return nil, fmt.Errorf("contract fee out of range: %w", err)
		}
	}
	return snap, nil
}

// decoder records the first type mismatch so decode can read every field linearly
type decoder struct {
	values map[string][]interface{}
	err    error
}

func (d *decoder) value(method string, idx int) interface{} {
	vals := d.values[method]
	if idx >= len(vals) {
		d.fail(fmt.Errorf("%s: missing output %d", method, idx))
		return nil
	}
	return vals[idx]
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = fmt.Errorf("failed to decode %w", err)
	}
}

func (d *decoder) bigInt(method string, idx int) *big.Int {
	v, ok := d.value(method, idx).(*big.Int)
	if !ok {
		d.fail(fmt.Errorf("%s: expected uint256", method))
		return new(big.Int)
	}
	return v
}

func (d *decoder) u8(method string) uint8 {
	v, ok := d.value(method, 0).(uint8)
	if !ok {
		d.fail(fmt.Errorf("%s: expected uint8", method))
	}
	return v
}

func (d *decoder) u16(method string, idx int) uint16 {
	v, ok := d.value(method, idx).(uint16)
	if !ok {
		d.fail(fmt.Errorf("%s: expected uint16", method))
	}
	return v
}

func (d *decoder) u64(method string, idx int) uint64 {
	v, ok := d.value(method, idx).(uint64)
	if !ok {
		d.fail(fmt.Errorf("%s: expected uint64", method))
	}
	return v
}

func (d *decoder) flag(method string, idx int) bool {
	v, ok := d.value(method, idx).(bool)
	if !ok {
		d.fail(fmt.Errorf("%s: expected bool", method))
	}
	return v
}

func (d *decoder) str(method string) string {
	v, ok := d.value(method, 0).(string)
	if !ok {
		d.fail(fmt.Errorf("%s: expected string", method))
	}
	return v
}

func (d *decoder) addr(method string) common.Address {
	v, ok := d.value(method, 0).(common.Address)
	if !ok {
		d.fail(fmt.Errorf("%s: expected address", method))
	}
	return v
}
