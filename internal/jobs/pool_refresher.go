package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/monistake/monistake-backend/internal/onchain"
	"go.uber.org/zap"
)

// PoolRefresher re-reads the pool-wide snapshot on an interval so the cache
// and live streams stay warm without any dashboard traffic.
type PoolRefresher struct {
	reader onchain.SnapshotReader
	logger *zap.SugaredLogger
	config PoolRefresherConfig

	mu        sync.Mutex
	failures  int
	lastOK    time.Time
	cancelCtx context.CancelFunc
}

type PoolRefresherConfig struct {
	Interval time.Duration // time between refreshes
	Timeout  time.Duration // per-refresh deadline, defaults to Interval
}

func NewPoolRefresher(reader onchain.SnapshotReader, logger *zap.SugaredLogger, config PoolRefresherConfig) *PoolRefresher {
	if config.Timeout <= 0 || config.Timeout > config.Interval {
		config.Timeout = config.Interval
	}
	return &PoolRefresher{
		reader: reader,
		logger: logger,
		config: config,
	}
}

// Start refreshes once immediately and then on every tick until ctx ends
func (p *PoolRefresher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancelCtx = cancel
	p.mu.Unlock()

	p.logger.Infow("Starting pool refresher", "interval", p.config.Interval)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Infow("Pool refresher stopping due to context cancellation")
			return ctx.Err()
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *PoolRefresher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelCtx != nil {
		p.cancelCtx()
	}
}

func (p *PoolRefresher) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	_, err := p.reader.Refresh(ctx, nil)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failures++
		// log the first failure and every tenth after it
		if p.failures == 1 || p.failures%10 == 0 {
			p.logger.Warnw("Pool refresh failed", "consecutive_failures", p.failures, "error", err)
		}
		return
	}
	if p.failures > 0 {
		p.logger.Infow("Pool refresh recovered", "after_failures", p.failures)
	}
	p.failures = 0
	p.lastOK = time.Now()
}

// Health reports consecutive failures and the time of the last good refresh
func (p *PoolRefresher) Health() (failures int, lastOK time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures, p.lastOK
}
