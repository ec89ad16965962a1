// Package cli implements stakectl, an operator tool that reads the staking
// dashboard and sends contract writes signed with MS_OPERATOR_KEY.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/monistake/monistake-backend/internal/config"
	"github.com/monistake/monistake-backend/internal/log"
	"github.com/monistake/monistake-backend/internal/onchain"
	"github.com/monistake/monistake-backend/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	addressFlag string
	timeoutFlag time.Duration
	jsonFlag    bool

	rootCmd = &cobra.Command{
		Use:           "stakectl",
		Short:         "Inspect and operate the MoniStake staking contract",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

var errNoOperator = errors.New("MS_OPERATOR_KEY is required for writes")

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.PersistentFlags().StringVar(&addressFlag, "address", "", "wallet to inspect (defaults to the operator wallet)")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 3*time.Minute, "overall deadline for the command")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "print JSON instead of tables")

	rootCmd.AddCommand(StatusCmd())
	rootCmd.AddCommand(WriteCmds()...)

	return rootCmd.ExecuteContext(ctx)
}

// session holds the chain-facing components for one command run
type session struct {
	cfg        *config.Config
	logger     *zap.SugaredLogger
	cache      *store.Cache
	client     *onchain.Client
	reader     *onchain.Reader
	dispatcher *onchain.Dispatcher
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := log.NewSugar("cli")
	if err != nil {
		return nil, err
	}

	// single process: snapshots and write records stay in memory
	cache := store.NewMemoryCache(logger, nil)

	client, err := onchain.Dial(ctx, cfg.Chain.RPCURL, onchain.ClientOptions{
		ChainID:      cfg.Chain.ChainID,
		OperatorKey:  cfg.Wallet.OperatorKey,
		DialAttempts: 3,
	}, logger)
	if err != nil {
		cache.Close()
		return nil, err
	}

	reader := onchain.NewReader(client, cache, cfg, logger, nil)
	return &session{
		cfg:        cfg,
		logger:     logger,
		cache:      cache,
		client:     client,
		reader:     reader,
		dispatcher: onchain.NewDispatcher(ctx, client, reader, cache, cfg, logger, nil),
	}, nil
}

func (s *session) Close() {
	s.dispatcher.Close()
	s.client.Close()
	s.cache.Close()
	s.logger.Sync()
}

// owner resolves --address, falling back to the operator wallet. A nil
// result means a pool-only read.
func (s *session) owner() (*common.Address, error) {
	if addressFlag != "" {
		if !common.IsHexAddress(addressFlag) {
			return nil, fmt.Errorf("invalid address %q", addressFlag)
		}
		a := common.HexToAddress(addressFlag)
		return &a, nil
	}
	if a, ok := s.client.OperatorAddress(); ok {
		return &a, nil
	}
	return nil, nil
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeoutFlag)
}
