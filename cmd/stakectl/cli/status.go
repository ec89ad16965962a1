package cli

import (
	"time"

	"github.com/monistake/monistake-backend/internal/dashboard"
	"github.com/spf13/cobra"
)

func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pool totals, your position and the lock panel",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx, cancel := withTimeout(cmd)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	owner, err := s.owner()
	if err != nil {
		return err
	}
	snap, err := s.reader.Refresh(ctx, owner)
	if snap == nil {
		return err
	}
	if err != nil {
		s.logger.Warnw("Showing stale snapshot", "error", err)
	}

	view := dashboard.Build(snap, dashboard.Options{
		Now:            time.Now(),
		TokenAddress:   s.cfg.Contracts.Token(),
		StakingAddress: s.cfg.Contracts.Staking(),
		LockPresets:    s.cfg.Staking.LockPresets,
	})

	out := cmd.OutOrStdout()
	if jsonFlag {
		return printJSON(out, view)
	}
	renderView(out, view)
	return nil
}
