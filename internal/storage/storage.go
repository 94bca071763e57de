package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vasylcode/walhist/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

// account is the on-disk form of one symbol's confirmed transactions
type account struct {
	Symbol       model.Symbol        `json:"symbol"`
	Transactions []model.Transaction `json:"transactions"`
}

// Storage handles the persistence of the wallet history
type Storage struct {
	dataDir     string
	ledgerFile  string
	pendingFile string
	ownersFile  string
	ledger      map[model.Symbol][]model.Transaction
	pending     []model.PendingTransaction
	owners      map[string]string
}

// DefaultDataDir returns ~/.walhist
func DefaultDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".walhist"), nil
}

// New opens the store in dataDir, creating the directory if needed
func New(dataDir string) (*Storage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Storage{
		dataDir:     dataDir,
		ledgerFile:  filepath.Join(dataDir, "ledger.json"),
		pendingFile: filepath.Join(dataDir, "pending.json"),
		ownersFile:  filepath.Join(dataDir, "owners.json"),
		ledger:      make(map[model.Symbol][]model.Transaction),
		owners:      make(map[string]string),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

// DataDir returns the directory the store lives in
func (s *Storage) DataDir() string {
	return s.dataDir
}

// load loads all data from disk
func (s *Storage) load() error {
	var accounts []account
	if err := readJSON(s.ledgerFile, &accounts); err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	for _, a := range accounts {
		s.ledger[a.Symbol] = sortTransactions(a.Transactions)
	}
	if err := readJSON(s.pendingFile, &s.pending); err != nil {
		return fmt.Errorf("failed to load pending transactions: %w", err)
	}
	if err := readJSON(s.ownersFile, &s.owners); err != nil {
		return fmt.Errorf("failed to load owners: %w", err)
	}
	if s.owners == nil {
		s.owners = make(map[string]string)
	}
	return nil
}

func readJSON(path string, v any) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// saveLedger saves confirmed transactions to disk
func (s *Storage) saveLedger() error {
	accounts := make([]account, 0, len(s.ledger))
	for _, symbol := range s.Symbols() {
		accounts = append(accounts, account{Symbol: symbol, Transactions: s.ledger[symbol]})
	}
	return writeJSON(s.ledgerFile, accounts)
}

// savePending saves pending transactions to disk
func (s *Storage) savePending() error {
	return writeJSON(s.pendingFile, s.pending)
}

// saveOwners saves the owner directory to disk
func (s *Storage) saveOwners() error {
	return writeJSON(s.ownersFile, s.owners)
}

func sortTransactions(list []model.Transaction) []model.Transaction {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].ID.Lt > list[j].ID.Lt
	})
	return list
}

// AddTransaction records a confirmed transaction of symbol
func (s *Storage) AddTransaction(symbol model.Symbol, tx model.Transaction) error {
	for _, existing := range s.ledger[symbol] {
		if existing.ID.Lt == tx.ID.Lt {
			return fmt.Errorf("transaction with lt %d in %s: %w", tx.ID.Lt, symbol, ErrExists)
		}
	}

	s.ledger[symbol] = sortTransactions(append(s.ledger[symbol], tx))
	return s.saveLedger()
}

// DeleteTransaction deletes a confirmed transaction
func (s *Storage) DeleteTransaction(symbol model.Symbol, id model.TransactionID) error {
	list := s.ledger[symbol]
	for i, tx := range list {
		if tx.ID == id {
			s.ledger[symbol] = append(list[:i:i], list[i+1:]...)
			if len(s.ledger[symbol]) == 0 {
				delete(s.ledger, symbol)
			}
			return s.saveLedger()
		}
	}
	return fmt.Errorf("transaction %s in %s: %w", id, symbol, ErrNotFound)
}

// NextLt returns a logical time newer than every transaction of symbol
func (s *Storage) NextLt(symbol model.Symbol) int64 {
	if list := s.ledger[symbol]; len(list) > 0 {
		return list[0].ID.Lt + 1
	}
	return 1
}

// Symbols returns every symbol with confirmed transactions
func (s *Storage) Symbols() []model.Symbol {
	symbols := make([]model.Symbol, 0, len(s.ledger))
	for symbol := range s.ledger {
		symbols = append(symbols, symbol)
	}
	sort.Slice(symbols, func(i, j int) bool {
		return symbols[i].String() < symbols[j].String()
	})
	return symbols
}

// FindSymbol looks a symbol up by ticker, case-sensitive
func (s *Storage) FindSymbol(ticker string) (model.Symbol, error) {
	for _, symbol := range s.Symbols() {
		if symbol.Ticker == ticker {
			return symbol, nil
		}
	}
	for _, p := range s.pending {
		if p.Symbol.Ticker == ticker {
			return p.Symbol, nil
		}
	}
	return model.Symbol{}, fmt.Errorf("symbol %q: %w", ticker, ErrNotFound)
}

// Transactions returns all confirmed transactions of symbol, newest first
func (s *Storage) Transactions(symbol model.Symbol) []model.Transaction {
	list := s.ledger[symbol]
	result := make([]model.Transaction, len(list))
	copy(result, list)
	return result
}

// Balance returns the sum of values minus fees of symbol
func (s *Storage) Balance(symbol model.Symbol) int64 {
	var balance int64
	for _, tx := range s.ledger[symbol] {
		balance += tx.Value() - tx.Fee
	}
	return balance
}

// Latest returns the newest page of symbol. PreviousID is zero when the
// page reaches the oldest transaction.
func (s *Storage) Latest(symbol model.Symbol, limit int) model.TransactionsSlice {
	list, previous := page(s.ledger[symbol], 0, limit)
	return model.TransactionsSlice{List: list, PreviousID: previous}
}

// Page returns up to limit transactions older than before
func (s *Storage) Page(symbol model.Symbol, before model.TransactionID, limit int) model.LoadedSlice {
	list := s.ledger[symbol]
	start := sort.Search(len(list), func(i int) bool {
		return list[i].ID.Lt < before.Lt
	})
	result, previous := page(list, start, limit)
	return model.LoadedSlice{Symbol: symbol, List: result, PreviousID: previous}
}

func page(list []model.Transaction, start, limit int) ([]model.Transaction, model.TransactionID) {
	if start >= len(list) {
		return []model.Transaction{}, model.TransactionID{}
	}
	end := start + limit
	if limit <= 0 || end > len(list) {
		end = len(list)
	}
	result := make([]model.Transaction, end-start)
	copy(result, list[start:end])
	if end == len(list) {
		return result, model.TransactionID{}
	}
	return result, result[len(result)-1].ID
}

// AddPending records a locally submitted transaction
func (s *Storage) AddPending(p model.PendingTransaction) error {
	for _, existing := range s.pending {
		if existing.ID == p.ID {
			return fmt.Errorf("pending transaction %s: %w", p.ID, ErrExists)
		}
	}

	s.pending = append(s.pending, p)
	return s.savePending()
}

// DeletePending deletes a pending transaction
func (s *Storage) DeletePending(id string) error {
	for i, p := range s.pending {
		if p.ID == id {
			s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
			return s.savePending()
		}
	}
	return fmt.Errorf("pending transaction %s: %w", id, ErrNotFound)
}

// ListPending returns all pending transactions, oldest first
func (s *Storage) ListPending() []model.PendingTransaction {
	result := make([]model.PendingTransaction, len(s.pending))
	copy(result, s.pending)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Time < result[j].Time
	})
	return result
}

// AddOwner records the owner name of an address, replacing an older one
func (s *Storage) AddOwner(address, name string) error {
	if address == "" {
		return fmt.Errorf("owner address must not be empty")
	}
	s.owners[address] = name
	return s.saveOwners()
}

// DeleteOwner deletes an owner entry
func (s *Storage) DeleteOwner(address string) error {
	if _, exists := s.owners[address]; !exists {
		return fmt.Errorf("owner of %s: %w", address, ErrNotFound)
	}

	delete(s.owners, address)
	return s.saveOwners()
}

// Owners returns a copy of the owner directory
func (s *Storage) Owners() map[string]string {
	result := make(map[string]string, len(s.owners))
	for address, name := range s.owners {
		result[address] = name
	}
	return result
}
