// Package history merges backend snapshots of an account's transactions into
// an ordered, renderable list of rows and turns pointer input into requests.
//
// Everything in this package runs on a single goroutine. Backend results are
// expected to be delivered on that goroutine, one event at a time.
package history

import (
	"sort"
	"time"

	"github.com/vasylcode/walhist/internal/events"
	"github.com/vasylcode/walhist/internal/model"
	"go.uber.org/zap"
)

// Sources are the backend event streams a History consumes.
// Nil streams are ignored.
type Sources struct {
	State              *events.Stream[model.HistoryState]
	Loaded             *events.Stream[model.LoadedSlice]
	CollectEncrypted   *events.Stream[*[]model.Transaction]
	UpdateDecrypted    *events.Stream[[]model.Transaction]
	UpdateWalletOwners *events.Stream[map[string]string]
	SelectedAsset      *events.Stream[model.SelectedAsset]
}

// Options configure a History
type Options struct {
	Layout           Layout
	PreloadThreshold int
	// Location is used to split rows into calendar days. Defaults to time.Local.
	Location *time.Location
	// Share receives addresses the user clicked to copy.
	Share  func(address string)
	Logger *zap.Logger
}

// OwnerResolutionRequest asks for the owner names of token wallet addresses
type OwnerResolutionRequest struct {
	Symbol    model.Symbol
	Addresses []string
}

// History is the history controller of one wallet
type History struct {
	opts Options
	log  *zap.Logger

	ledger    *ledger
	pending   *reconciler
	owners    *ownerCache
	decrypt   *decryptor
	projector *projector

	rows     map[model.Symbol]*RowsState
	selected model.SelectedAsset
	pointers map[int]*Pointer

	visibleTop    int
	visibleBottom int
	height        int

	lifetime events.Lifetime
	closed   bool

	preloadRequests         *events.Stream[PreloadRequest]
	viewRequests            *events.Stream[model.Transaction]
	decryptRequests         *events.Stream[model.Transaction]
	ownerResolutionRequests *events.Stream[OwnerResolutionRequest]
	newTokenWalletRequests  *events.Stream[string]
	collectTokenRequests    *events.Stream[string]
	executeSwapBackRequests *events.Stream[string]
	heightValue             *events.Stream[int]
}

// New creates a History and subscribes it to src until Close
func New(src Sources, opts Options) *History {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Layout == (Layout{}) {
		opts.Layout = DefaultLayout
	}
	if opts.PreloadThreshold <= 0 {
		opts.PreloadThreshold = DefaultPreloadThreshold
	}

	h := &History{
		opts:     opts,
		log:      opts.Logger.Named("history"),
		pending:  newReconciler(),
		owners:   newOwnerCache(),
		decrypt:  newDecryptor(),
		rows:     make(map[model.Symbol]*RowsState),
		pointers: make(map[int]*Pointer),

		preloadRequests:         events.NewStream[PreloadRequest](),
		viewRequests:            events.NewStream[model.Transaction](),
		decryptRequests:         events.NewStream[model.Transaction](),
		ownerResolutionRequests: events.NewStream[OwnerResolutionRequest](),
		newTokenWalletRequests:  events.NewStream[string](),
		collectTokenRequests:    events.NewStream[string](),
		executeSwapBackRequests: events.NewStream[string](),
		heightValue:             events.NewStream[int](),
	}
	h.ledger = newLedger(h.log)
	h.projector = &projector{
		layout:   opts.Layout,
		location: opts.Location,
		owners:   h.owners,
		decrypt:  h.decrypt,
	}

	events.Attach(&h.lifetime, src.State, h.MergeState)
	events.Attach(&h.lifetime, src.Loaded, h.ApplyLoaded)
	events.Attach(&h.lifetime, src.CollectEncrypted, func(list *[]model.Transaction) {
		*list = append(*list, h.CollectEncrypted()...)
	})
	events.Attach(&h.lifetime, src.UpdateDecrypted, h.UpdateDecrypted)
	events.Attach(&h.lifetime, src.UpdateWalletOwners, h.UpdateWalletOwners)
	events.Attach(&h.lifetime, src.SelectedAsset, h.SelectAsset)
	return h
}

// Close severs every subscription. Later events are ignored.
func (h *History) Close() {
	if h.closed {
		return
	}
	h.closed = true
	h.lifetime.Destroy()
	h.log.Debug("history closed")
}

func (h *History) PreloadRequests() *events.Stream[PreloadRequest] { return h.preloadRequests }
func (h *History) ViewRequests() *events.Stream[model.Transaction]  { return h.viewRequests }
func (h *History) DecryptRequests() *events.Stream[model.Transaction] {
	return h.decryptRequests
}
func (h *History) OwnerResolutionRequests() *events.Stream[OwnerResolutionRequest] {
	return h.ownerResolutionRequests
}
func (h *History) NewTokenWalletRequests() *events.Stream[string]  { return h.newTokenWalletRequests }
func (h *History) CollectTokenRequests() *events.Stream[string]    { return h.collectTokenRequests }
func (h *History) ExecuteSwapBackRequests() *events.Stream[string] { return h.executeSwapBackRequests }
func (h *History) HeightValue() *events.Stream[int]                { return h.heightValue }

// MergeState folds a backend snapshot into the accumulated history
func (h *History) MergeState(state model.HistoryState) {
	if h.closed {
		return
	}
	h.pending.observe(state.PendingTransactions, h.ledger)
	changed := h.ledger.mergeListChanged(state.LastTransactions)
	affected := h.pending.mergePending(state.PendingTransactions, h.ledger)
	for symbol := range changed {
		affected[symbol] = true
	}
	if len(affected) == 0 {
		return
	}
	h.log.Debug("history state merged",
		zap.Int("symbols", len(state.LastTransactions)),
		zap.Int("changed", len(changed)),
		zap.Int("pending", len(h.pending.list)))
	h.refresh(affected)
}

// ApplyLoaded appends a preloaded page
func (h *History) ApplyLoaded(loaded model.LoadedSlice) {
	if h.closed {
		return
	}
	if !h.ledger.appendLoaded(loaded) {
		return
	}
	h.log.Debug("history page loaded",
		zap.Stringer("symbol", loaded.Symbol),
		zap.Int("transactions", len(loaded.List)))
	h.refresh(map[model.Symbol]bool{loaded.Symbol: true})
}

// CollectEncrypted returns every transaction whose comment is still encrypted
func (h *History) CollectEncrypted() []model.Transaction {
	if h.closed {
		return nil
	}
	return h.decrypt.collect()
}

// UpdateDecrypted applies decrypt results correlated by transaction id
func (h *History) UpdateDecrypted(list []model.Transaction) {
	if h.closed {
		return
	}
	changed, revealed := h.decrypt.take(list)
	if len(changed) == 0 {
		return
	}
	affected := make(map[model.Symbol]bool)
	for _, tx := range revealed {
		h.ledger.replace(tx)
	}
	for _, id := range changed {
		for _, symbol := range h.ledger.symbolsOf(id) {
			affected[symbol] = true
		}
	}
	h.log.Debug("comments decrypted",
		zap.Int("changed", len(changed)),
		zap.Int("revealed", len(revealed)))
	h.refresh(affected)
}

// UpdateWalletOwners merges resolved owner names
func (h *History) UpdateWalletOwners(owners map[string]string) {
	if h.closed || h.owners.merge(owners) == 0 {
		return
	}
	affected := make(map[model.Symbol]bool)
	for symbol := range h.rows {
		if symbol.IsToken() {
			affected[symbol] = true
		}
	}
	h.refresh(affected)
}

// SelectAsset switches the rendered symbol
func (h *History) SelectAsset(asset model.SelectedAsset) {
	if h.closed {
		return
	}
	h.selected = asset
	for _, p := range h.pointers {
		p.Cancel()
	}
	symbol := asset.Symbol()
	if _, ok := h.rows[symbol]; !ok {
		h.refresh(map[model.Symbol]bool{symbol: true})
		return
	}
	h.updateHeight()
}

// Selected returns the selected asset
func (h *History) Selected() model.SelectedAsset {
	return h.selected
}

// Rows returns the rows of the selected asset
func (h *History) Rows() *RowsState {
	return h.RowsFor(h.selected.Symbol())
}

// RowsFor returns the rows of symbol, empty if it was never projected
func (h *History) RowsFor(symbol model.Symbol) *RowsState {
	if rows, ok := h.rows[symbol]; ok {
		return rows
	}
	return newRowsState()
}

// Transactions returns the accumulated state of symbol. Callers must not modify it.
func (h *History) Transactions(symbol model.Symbol) (*TransactionsState, bool) {
	return h.ledger.lookup(symbol)
}

// Pending returns the unconfirmed transactions of symbol
func (h *History) Pending(symbol model.Symbol) []model.PendingTransaction {
	return h.pending.forSymbol(symbol)
}

// Owner returns the resolved owner name of a token wallet address
func (h *History) Owner(address string) (string, bool) {
	return h.owners.Name(address)
}

// DecryptPhase returns the decrypt phase of a transaction comment
func (h *History) DecryptPhase(id model.TransactionID) DecryptPhase {
	phase, _ := h.decrypt.phase(id)
	return phase
}

// Height returns the total height of the selected rows
func (h *History) Height() int {
	return h.height
}

func (h *History) refresh(symbols map[model.Symbol]bool) {
	ordered := make([]model.Symbol, 0, len(symbols))
	for symbol := range symbols {
		ordered = append(ordered, symbol)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].String() < ordered[j].String()
	})

	for _, symbol := range ordered {
		rows, ok := h.rows[symbol]
		if !ok {
			rows = newRowsState()
			h.rows[symbol] = rows
		}
		st, _ := h.ledger.lookup(symbol)
		misses := h.projector.refreshRows(rows, symbol, st, h.pending.forSymbol(symbol))
		if len(misses) > 0 && symbol.IsToken() {
			h.ownerResolutionRequests.Fire(OwnerResolutionRequest{Symbol: symbol, Addresses: misses})
		}
	}
	h.updateHeight()
}

func (h *History) updateHeight() {
	height := h.RowsFor(h.selected.Symbol()).Extent()
	if height == h.height {
		return
	}
	h.height = height
	h.heightValue.Fire(height)
	h.checkPreload()
}
