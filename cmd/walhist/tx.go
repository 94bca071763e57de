package walhist

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/vasylcode/walhist/internal/backend"
	"github.com/vasylcode/walhist/internal/model"
	"github.com/vasylcode/walhist/internal/storage"
	"github.com/vasylcode/walhist/internal/util"
)

var (
	txCoin       string
	txKind       string
	txRoot       string
	txFrom       string
	txTo         string
	txAmount     string
	txFee        string
	txStorageFee string
	txNote       string
	txEncrypt    bool
	txTime       string
	txInit       bool
	txTokenOp    string
	txTokenDest  string
	txTokenValue string
	txTokenRoot  string
	txTokenEvent string
)

func init() {
	// Transaction command
	txCmd := &cobra.Command{
		Use:   "tx",
		Short: "Manage transactions",
		Long:  `List, add and delete confirmed and pending transactions.`,
		Run:   listTransactions,
	}

	// Add subcommand
	addTxCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a confirmed transaction",
		Long: `Add a confirmed transaction to the ledger. Use --from for incoming
and --to for outgoing transfers.`,
		Run: addTransaction,
	}

	// Send subcommand
	sendTxCmd := &cobra.Command{
		Use:   "send",
		Short: "Record a pending transaction",
		Long: `Record a transaction that was sent but is not confirmed yet. It is
shown on top of the history until a matching transaction is added.`,
		Run: sendTransaction,
	}

	// Delete subcommand
	delTxCmd := &cobra.Command{
		Use:   "del [ticker] [lt]",
		Short: "Delete a confirmed transaction",
		Long:  `Delete a confirmed transaction by its logical time.`,
		Args:  cobra.ExactArgs(2),
		Run:   deleteTransaction,
	}

	// Cancel subcommand
	cancelTxCmd := &cobra.Command{
		Use:   "cancel [id]",
		Short: "Delete a pending transaction",
		Args:  cobra.ExactArgs(1),
		Run:   cancelTransaction,
	}

	for _, c := range []*cobra.Command{txCmd, addTxCmd, sendTxCmd} {
		c.Flags().StringVarP(&txCoin, "coin", "c", "", "Asset ticker (defaults to the configured ticker)")
		c.Flags().StringVarP(&txKind, "kind", "k", "", "Asset kind: native, token or depool")
		c.Flags().StringVarP(&txRoot, "root", "r", "", "Token root or DePool address")
	}
	for _, c := range []*cobra.Command{addTxCmd, sendTxCmd} {
		c.Flags().StringVarP(&txTo, "to", "t", "", "Destination address")
		c.Flags().StringVarP(&txAmount, "amount", "a", "", "Amount, e.g. 1.5")
		c.Flags().StringVarP(&txNote, "note", "n", "", "Comment")
	}

	addTxCmd.Flags().StringVarP(&txFrom, "from", "f", "", "Source address")
	addTxCmd.Flags().StringVarP(&txFee, "fee", "F", "", "Total fee")
	addTxCmd.Flags().StringVar(&txStorageFee, "storage-fee", "", "Storage part of the fee")
	addTxCmd.Flags().BoolVarP(&txEncrypt, "encrypt", "e", false, "Encrypt the comment with the configured passphrase")
	addTxCmd.Flags().StringVar(&txTime, "time", "", "Time as RFC 3339 or \"2006-01-02 15:04\" (defaults to now)")
	addTxCmd.Flags().BoolVar(&txInit, "init", false, "Mark as the wallet initialization")
	addTxCmd.Flags().StringVar(&txTokenOp, "token-op", "", "Token operation: transfer, swap_back, wallet_deployed or notification")
	addTxCmd.Flags().StringVar(&txTokenDest, "token-dest", "", "Token operation counterparty")
	addTxCmd.Flags().StringVar(&txTokenValue, "token-value", "", "Token operation amount")
	addTxCmd.Flags().StringVar(&txTokenRoot, "token-root", "", "Token root of a deployed wallet")
	addTxCmd.Flags().StringVar(&txTokenEvent, "token-event", "", "Token event address")

	txCmd.AddCommand(addTxCmd)
	txCmd.AddCommand(sendTxCmd)
	txCmd.AddCommand(delTxCmd)
	txCmd.AddCommand(cancelTxCmd)

	rootCmd.AddCommand(txCmd)
}

// txSymbol resolves the asset named by the --coin, --kind and --root flags
func txSymbol(s *storage.Storage) (model.Symbol, error) {
	ticker := txCoin
	if ticker == "" {
		ticker = cfg.Ticker
	}
	switch strings.ToLower(txKind) {
	case "":
		return lookupSymbol(s, ticker), nil
	case string(model.SymbolNative):
		return model.Native(ticker), nil
	case string(model.SymbolToken):
		if txRoot == "" {
			return model.Symbol{}, errors.New("token assets need --root")
		}
		return model.Token(ticker, txRoot), nil
	case string(model.SymbolDePool):
		if txRoot == "" {
			return model.Symbol{}, errors.New("DePool assets need --root")
		}
		return model.DePool(txRoot), nil
	default:
		return model.Symbol{}, fmt.Errorf("unknown asset kind %q", txKind)
	}
}

func parseOptionalAmount(flag, value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	amount, err := util.ParseAmount(value)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", flag, err)
	}
	if amount < 0 {
		return 0, fmt.Errorf("--%s must not be negative", flag)
	}
	return amount, nil
}

func parseTxTime(value string, loc *time.Location) (int64, error) {
	if value == "" {
		return time.Now().Unix(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.Unix(), nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	return t.Unix(), nil
}

func commentData(text string, encrypt bool) (model.MessageData, error) {
	if text == "" {
		return model.MessageData{}, nil
	}
	if !encrypt {
		return model.MessageData{Text: text, Type: model.PlainText}, nil
	}
	if cfg.CommentPassphrase == "" {
		return model.MessageData{}, errors.New("--encrypt needs comment_passphrase in the config or WALHIST_PASSPHRASE")
	}
	return backend.EncryptedComment(backend.Key(cfg.CommentPassphrase), text)
}

func tokenOperation() (model.TokenOperation, error) {
	if txTokenOp == "" {
		return model.TokenOperation{}, nil
	}
	kind := model.TokenOpKind(strings.ToLower(txTokenOp))
	switch kind {
	case model.TokenTransfer, model.TokenSwapBack, model.TokenWalletDeployed, model.TokenNotification:
	default:
		return model.TokenOperation{}, fmt.Errorf("unknown token operation %q", txTokenOp)
	}
	value, err := parseOptionalAmount("token-value", txTokenValue)
	if err != nil {
		return model.TokenOperation{}, err
	}
	return model.TokenOperation{
		Kind:  kind,
		Dest:  txTokenDest,
		Value: value,
		Root:  txTokenRoot,
		Event: txTokenEvent,
	}, nil
}

// buildTransaction assembles a confirmed transaction from the add flags
func buildTransaction(lt int64) (model.Transaction, error) {
	if (txFrom == "") == (txTo == "") {
		return model.Transaction{}, errors.New("exactly one of --from or --to must be specified")
	}
	amount, err := parseOptionalAmount("amount", txAmount)
	if err != nil {
		return model.Transaction{}, err
	}
	fee, err := parseOptionalAmount("fee", txFee)
	if err != nil {
		return model.Transaction{}, err
	}
	storageFee, err := parseOptionalAmount("storage-fee", txStorageFee)
	if err != nil {
		return model.Transaction{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return model.Transaction{}, err
	}
	when, err := parseTxTime(txTime, loc)
	if err != nil {
		return model.Transaction{}, err
	}
	data, err := commentData(txNote, txEncrypt)
	if err != nil {
		return model.Transaction{}, err
	}
	op, err := tokenOperation()
	if err != nil {
		return model.Transaction{}, err
	}

	tx := model.Transaction{
		ID:           model.TransactionID{Lt: lt, Hash: strings.ReplaceAll(uuid.NewString(), "-", "")[:16]},
		Time:         when,
		Fee:          fee,
		StorageFee:   storageFee,
		OtherFee:     fee - storageFee,
		Initializing: txInit,
	}
	if tx.OtherFee < 0 {
		return model.Transaction{}, errors.New("--storage-fee must not exceed --fee")
	}

	message := model.Message{Value: amount, Created: when, Data: data, Token: op}
	if txFrom != "" {
		message.Source = txFrom
		tx.Incoming = message
	} else {
		message.Destination = txTo
		tx.Outgoing = []model.Message{message}
	}
	return tx, nil
}

func addTransaction(cmd *cobra.Command, args []string) {
	s := openStorage()

	symbol, err := txSymbol(s)
	if err != nil {
		er(err)
		return
	}
	tx, err := buildTransaction(s.NextLt(symbol))
	if err != nil {
		er(err)
		return
	}

	if err := s.AddTransaction(symbol, tx); err != nil {
		er(fmt.Sprintf("Failed to add transaction: %v", err))
		return
	}

	fmt.Printf("Transaction %s added to %s\n", tx.ID, symbol)
}

func sendTransaction(cmd *cobra.Command, args []string) {
	s := openStorage()

	if txTo == "" {
		er("Destination must be specified with --to flag")
		return
	}
	amount, err := parseOptionalAmount("amount", txAmount)
	if err != nil {
		er(err)
		return
	}
	if amount <= 0 {
		er("Amount must be greater than zero")
		return
	}
	symbol, err := txSymbol(s)
	if err != nil {
		er(err)
		return
	}

	p := model.PendingTransaction{
		ID:          uuid.NewString(),
		Symbol:      symbol,
		Time:        time.Now().Unix(),
		Destination: txTo,
		Value:       amount,
		Comment:     txNote,
	}
	if err := s.AddPending(p); err != nil {
		er(fmt.Sprintf("Failed to record pending transaction: %v", err))
		return
	}

	fmt.Printf("Pending transaction %s recorded\n", p.ID)
}

func deleteTransaction(cmd *cobra.Command, args []string) {
	s := openStorage()

	symbol, err := s.FindSymbol(args[0])
	if err != nil {
		er(fmt.Sprintf("Failed to delete transaction: %v", err))
		return
	}
	ltText, _, _ := strings.Cut(args[1], ":")
	lt, err := strconv.ParseInt(ltText, 10, 64)
	if err != nil {
		er(fmt.Sprintf("Invalid logical time %q", args[1]))
		return
	}

	for _, tx := range s.Transactions(symbol) {
		if tx.ID.Lt != lt {
			continue
		}
		if err := s.DeleteTransaction(symbol, tx.ID); err != nil {
			er(fmt.Sprintf("Failed to delete transaction: %v", err))
			return
		}
		fmt.Printf("Transaction deleted successfully\n")
		return
	}
	er(fmt.Sprintf("Transaction with lt %d not found in %s", lt, symbol))
}

func cancelTransaction(cmd *cobra.Command, args []string) {
	s := openStorage()

	if err := s.DeletePending(args[0]); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			er(fmt.Sprintf("No pending transaction %s", args[0]))
			return
		}
		er(fmt.Sprintf("Failed to delete pending transaction: %v", err))
		return
	}

	fmt.Printf("Pending transaction deleted successfully\n")
}

func listTransactions(cmd *cobra.Command, args []string) {
	s := openStorage()

	symbol, err := txSymbol(s)
	if err != nil {
		er(err)
		return
	}
	loc, err := cfg.Location()
	if err != nil {
		er(err)
		return
	}

	titleColor := color.New(color.Bold, color.Underline)
	titleColor.Printf("Transactions of %s:\n", symbolLabel(symbol))

	txs := s.Transactions(symbol)
	if len(txs) == 0 {
		fmt.Println("No transactions found")
	} else {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"LT", "Date", "Address", "Value", "Fee", "Comment"})
		table.SetBorder(false)
		table.SetAutoWrapText(false)
		for _, tx := range txs {
			comment := tx.Comment()
			if tx.IsEncrypted() {
				comment = color.New(color.Faint).Sprint("encrypted")
			}
			value := tx.Value()
			table.Append([]string{
				strconv.FormatInt(tx.ID.Lt, 10),
				time.Unix(tx.Time, 0).In(loc).Format("2006-01-02 15:04"),
				util.ShortAddress(tx.Counterparty()),
				util.NewTheme(util.ThemeColors{}).Amount(value).Sprint(util.FormatSigned(value)),
				util.FormatAmount(tx.Fee),
				comment,
			})
		}
		table.Render()
	}

	var pending []model.PendingTransaction
	for _, p := range s.ListPending() {
		if p.Symbol == symbol {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return
	}

	fmt.Println()
	color.New(color.FgYellow, color.Bold).Println("Pending:")
	for _, p := range pending {
		fmt.Printf("  %s %s -> %s %s\n",
			p.ID,
			util.FormatAmount(p.Value),
			util.ShortAddress(p.Destination),
			color.New(color.FgHiBlack).Sprint(time.Unix(p.Time, 0).In(loc).Format("2006-01-02 15:04")))
	}
}
