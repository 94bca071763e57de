package walhist

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vasylcode/walhist/internal/model"
	"github.com/vasylcode/walhist/internal/storage"
	"github.com/vasylcode/walhist/internal/util"
)

var assetColor string

func init() {
	// Asset command
	assetCmd := &cobra.Command{
		Use:     "asset [ticker]",
		Aliases: []string{"a"},
		Short:   "List assets",
		Long:    `List the assets of the ledger with their balances, or show one asset.`,
		Args:    cobra.MaximumNArgs(1),
		Run:     listAssets,
	}

	assetCmd.Flags().StringVar(&assetColor, "color", "brightwhite", "Color of asset names")

	rootCmd.AddCommand(assetCmd)
}

func listAssets(cmd *cobra.Command, args []string) {
	s := openStorage()

	// If a ticker is provided, show that asset only
	if len(args) == 1 {
		symbol, err := s.FindSymbol(args[0])
		if err != nil {
			er(fmt.Sprintf("Failed to get asset: %v", err))
			return
		}
		printAsset(s, symbol, pendingCounts(s))
		return
	}

	symbols := s.Symbols()
	if len(symbols) == 0 {
		fmt.Println("No assets found")
		return
	}

	counts := pendingCounts(s)
	for _, symbol := range symbols {
		printAsset(s, symbol, counts)
	}
}

func pendingCounts(s *storage.Storage) map[model.Symbol]int {
	counts := make(map[model.Symbol]int)
	for _, p := range s.ListPending() {
		counts[p.Symbol]++
	}
	return counts
}

func printAsset(s *storage.Storage, symbol model.Symbol, pending map[model.Symbol]int) {
	name := util.GetTerminalColor(assetColor, color.FgHiWhite).Add(color.Bold).Sprint(symbol.Ticker)
	kind := color.New(color.FgBlue).Sprint(symbol.Kind)

	address := ""
	if symbol.Address != "" {
		address = color.New(color.FgHiBlack).Sprintf(" (%s)", util.ShortAddress(symbol.Address))
	}

	balance := s.Balance(symbol)
	amountColor := color.New(color.FgGreen)
	if balance < 0 {
		amountColor = color.New(color.FgRed)
	}

	pendingStr := ""
	if n := pending[symbol]; n > 0 {
		pendingStr = color.New(color.FgYellow).Sprintf(" %d pending", n)
	}

	fmt.Printf("%s %s%s: %s %s\n",
		name,
		kind,
		address,
		amountColor.Sprint(util.FormatAmount(balance)),
		color.New(color.FgHiBlack).Sprintf("[%d transactions]", len(s.Transactions(symbol))))
	if pendingStr != "" {
		fmt.Printf("  %s\n", pendingStr)
	}
}
