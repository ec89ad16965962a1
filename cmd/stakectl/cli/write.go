package cli

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/monistake/monistake-backend/internal/calc"
	"github.com/monistake/monistake-backend/internal/onchain"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// WriteCmds returns one subcommand per contract write
func WriteCmds() []*cobra.Command {
	stake := writeCmd(onchain.ActionStake, "stake", "Stake tokens for a lock period")
	stake.Flags().Uint16("lock-days", 0, "lock period in days, one of MS_LOCK_PRESETS")
	stake.Flags().Bool("approve", false, "send an unlimited approval first when the allowance is short")
	_ = stake.MarkFlagRequired("lock-days")

	return []*cobra.Command{
		writeCmd(onchain.ActionApprove, "approve", "Grant the staking contract an unlimited allowance"),
		stake,
		writeCmd(onchain.ActionUnstake, "unstake", "Withdraw staked tokens, early fees apply before unlock"),
		writeCmd(onchain.ActionClaim, "claim", "Claim pending rewards"),
		writeCmd(onchain.ActionSyncRewards, "sync", "Sync rewards received by the contract into the pool"),
		writeCmd(onchain.ActionAddRewards, "donate", "Add tokens to the rewards pool"),
	}
}

func writeCmd(action onchain.Action, use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWrite(cmd, action)
		},
	}
	if action.NeedsAmount() {
		cmd.Flags().String("amount", "", `token amount in display units, or "wei:<integer>"`)
		_ = cmd.MarkFlagRequired("amount")
	}
	return cmd
}

func runWrite(cmd *cobra.Command, action onchain.Action) error {
	ctx, cancel := withTimeout(cmd)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	from, ok := s.client.OperatorAddress()
	if !ok {
		return errNoOperator
	}

	snap, err := s.reader.Refresh(ctx, &from)
	if err != nil {
		return fmt.Errorf("failed to read contract state: %w", err)
	}

	req := onchain.WriteRequest{Action: action, Owner: from}
	if action.NeedsAmount() {
		text, _ := cmd.Flags().GetString("amount")
		req.Amount, err = parseAmount(text, int(snap.Token.Decimals))
		if err != nil {
			return err
		}
	}
	if action == onchain.ActionStake {
		req.LockDays, _ = cmd.Flags().GetUint16("lock-days")
		autoApprove, _ := cmd.Flags().GetBool("approve")
		if autoApprove && snap.Wallet != nil && calc.NeedsApproval(req.Amount, snap.Wallet.Allowance) {
			if err := s.send(ctx, cmd, onchain.WriteRequest{Action: onchain.ActionApprove, Owner: from}); err != nil {
				return err
			}
		}
	}

	return s.send(ctx, cmd, req)
}

// send executes req and blocks until it settles
func (s *session) send(ctx context.Context, cmd *cobra.Command, req onchain.WriteRequest) error {
	rec, err := s.dispatcher.Execute(ctx, req)
	if err != nil {
		return err
	}
	if rec.TxHash != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Submitted %s: %s\n", req.Action, s.cfg.Chain.ExplorerTxURL(rec.TxHash.Hex()))
	}

	rec, err = s.dispatcher.Wait(ctx, rec.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonFlag {
		if err := printJSON(out, rec); err != nil {
			return err
		}
	} else {
		renderRecord(out, rec, s.cfg.Chain.ExplorerTxURL)
	}
	if rec.Status == onchain.StatusFailed {
		return fmt.Errorf("%s failed: %s", req.Action, rec.Error)
	}
	return nil
}

// parseAmount accepts display units ("12.5") or a raw integer with a "wei:" prefix
func parseAmount(text string, decimals int) (*big.Int, error) {
	text = strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(text, "wei:"); ok {
		raw, ok := new(big.Int).SetString(rest, 10)
		if !ok || raw.Sign() <= 0 {
			return nil, fmt.Errorf("invalid raw amount %q", text)
		}
		return raw, nil
	}
	raw := calc.FromDisplayString(text, decimals)
	if raw.Sign() > 0 {
		return raw, nil
	}
	if _, err := decimal.NewFromString(strings.ReplaceAll(text, ",", "")); err != nil {
		return nil, fmt.Errorf("invalid amount %q", text)
	}
	return nil, fmt.Errorf("amount must be greater than zero")
}
