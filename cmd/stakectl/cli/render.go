package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/monistake/monistake-backend/internal/dashboard"
	"github.com/monistake/monistake-backend/internal/onchain"
	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	return t
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderView(w io.Writer, v dashboard.View) {
	if v.Stale {
		fmt.Fprintf(w, "Stale data from %s\n\n", v.AsOf.Format(time.RFC3339))
	}

	tiles := newTable(w, "Metric", "Value", "")
	for _, tile := range v.Tiles {
		tiles.Append([]string{tile.Label, tile.Value, tile.Sub})
	}
	tiles.Render()

	meters := newTable(w, "Meter", "Share", "Left", "Right")
	for _, m := range v.Meters {
		meters.Append([]string{m.Title, fmt.Sprintf("%.2f%%", m.Percent), m.LeftLabel, m.RightLabel})
	}
	meters.Render()

	lock := newTable(w, "Lock", "")
	if !v.Connected {
		lock.Append([]string{"Status", v.Lock.Message})
	} else {
		lock.Append([]string{"Wallet", v.Owner})
		lock.Append([]string{"Status", v.Lock.Status})
		lock.Append([]string{"Staked", v.Lock.Staked})
		lock.Append([]string{"Unlock", v.Lock.Unlock})
		lock.Append([]string{"Balance", v.Wallet.Balance})
		lock.Append([]string{"Allowance", v.Wallet.Allowance})
	}
	lock.Render()

	fmt.Fprintln(w, v.Fees.Summary)
	if v.Lock.Notice != "" {
		fmt.Fprintln(w, v.Lock.Notice)
	}
	fmt.Fprintf(w, "Staking %s  Token %s  Buyback %s\n", v.Contracts.StakingShort, v.Contracts.TokenShort, v.Contracts.BuybackShort)
}

func renderRecord(w io.Writer, rec *onchain.WriteRecord, explorer func(string) string) {
	t := newTable(w, "Write", "")
	t.Append([]string{"ID", rec.ID.String()})
	t.Append([]string{"Action", string(rec.Action)})
	t.Append([]string{"Status", string(rec.Status)})
	if rec.TxHash != nil {
		t.Append([]string{"Tx", explorer(rec.TxHash.Hex())})
	}
	if rec.Error != "" {
		t.Append([]string{"Error", rec.Error})
	}
	t.Render()
}
