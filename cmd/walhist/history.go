package walhist

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/vasylcode/walhist/internal/events"
	"github.com/vasylcode/walhist/internal/history"
	"github.com/vasylcode/walhist/internal/model"
	"github.com/vasylcode/walhist/internal/util"
)

var (
	historyPages   int
	historyAll     bool
	historyDecrypt bool
	historyColors  util.ThemeColors
)

func init() {
	historyCmd := &cobra.Command{
		Use:     "history [ticker]",
		Aliases: []string{"h"},
		Short:   "Print the transaction history",
		Long: `Print the transaction history of an asset, newest first and split by day.
Pending transactions are listed on top.`,
		Args: cobra.MaximumNArgs(1),
		Run:  showHistory,
	}

	historyCmd.Flags().IntVarP(&historyPages, "pages", "p", 0, "Number of older pages to load")
	historyCmd.Flags().BoolVarP(&historyAll, "all", "a", false, "Load the whole history")
	historyCmd.Flags().BoolVarP(&historyDecrypt, "decrypt", "d", false, "Decrypt encrypted comments")
	historyCmd.Flags().StringVar(&historyColors.Incoming, "color-in", "green", "Color of incoming amounts")
	historyCmd.Flags().StringVar(&historyColors.Outgoing, "color-out", "red", "Color of outgoing amounts")
	historyCmd.Flags().StringVar(&historyColors.Pending, "color-pending", "yellow", "Color of pending rows")
	historyCmd.Flags().StringVar(&historyColors.Date, "color-date", "brightblue", "Color of date rows")

	rootCmd.AddCommand(historyCmd)
}

func showHistory(cmd *cobra.Command, args []string) {
	s := openStorage()

	ticker := cfg.Ticker
	if len(args) > 0 {
		ticker = args[0]
	}
	symbol := lookupSymbol(s, ticker)

	loop := events.NewLoop()
	e, err := newEngine(cfg, s, loop, nil, logger)
	if err != nil {
		er(fmt.Sprintf("Failed to start history: %v", err))
		return
	}
	defer e.close()

	e.selectSymbol(symbol)
	e.feed.Publish()
	e.feed.Settle(loop)

	h := e.history
	for page := 0; historyAll || page < historyPages; page++ {
		st, ok := h.Transactions(symbol)
		if !ok || st.Exhausted || st.PreviousID.IsZero() {
			break
		}
		h.CheckPreload(0, h.Height())
		e.feed.Settle(loop)
	}

	if historyDecrypt {
		if n := e.decryptAll(); n > 0 {
			e.feed.Settle(loop)
		}
	}

	rows := h.Rows()
	if rows.Len() == 0 {
		fmt.Printf("No transactions for %s\n", symbolLabel(symbol))
		return
	}

	fmt.Printf("History of %s\n", symbolLabel(symbol))
	printRows(os.Stdout, rows, symbol, util.NewTheme(historyColors), cfg.Timezone)
	if st, ok := h.Transactions(symbol); ok && !st.Exhausted && !st.PreviousID.IsZero() {
		fmt.Println("More transactions available, use --pages or --all")
	}
}

// printRows prints rows as a table, one line per row and one per comment
func printRows(w io.Writer, rows *history.RowsState, symbol model.Symbol, theme util.Theme, zone string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Time", "Address", "Amount", "Fee", "Comment"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
	})

	for i := 0; i < rows.Len(); i++ {
		table.Append(rowCells(rows.At(i), symbol, theme))
	}
	table.Render()
	if zone != "" && zone != "Local" {
		fmt.Fprintf(w, "Times in %s\n", zone)
	}
}

func rowCells(row *history.Row, symbol model.Symbol, theme util.Theme) []string {
	if row.Kind == history.RowDate {
		return []string{theme.Date.Sprint(formatDay(row.Day)), "", "", "", ""}
	}

	amount := util.FormatSigned(row.Value) + " " + symbol.Ticker
	when := row.Time.Format("15:04")
	address := util.ShortAddress(row.DisplayAddress())
	if row.Kind == history.RowPending {
		return []string{
			theme.Pending.Sprint("pending"),
			theme.Address.Sprint(address),
			theme.Pending.Sprint(amount),
			"",
			theme.Comment.Sprint(row.Comment.Text),
		}
	}

	if row.IsInit {
		when += " init"
	}
	fee := ""
	if row.Fee != 0 {
		fee = util.FormatAmount(row.Fee)
	}
	if row.Service {
		amount = "service"
	}

	comment := theme.Comment.Sprint(row.Comment.Text)
	if row.Comment.Error {
		comment = theme.Error.Sprint(row.Comment.Text)
	}
	if label := actionLabel(row.Action); label != "" {
		comment = strings.TrimSpace(comment + " " + theme.Action.Sprintf("[%s]", label))
	}

	return []string{
		when,
		theme.Address.Sprint(address),
		theme.Amount(row.Value).Sprint(amount),
		fee,
		comment,
	}
}

func formatDay(day time.Time) string {
	now := time.Now().In(day.Location())
	if day.Year() == now.Year() {
		return day.Format("January 2")
	}
	return day.Format("January 2, 2006")
}
