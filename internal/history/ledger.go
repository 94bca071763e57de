package history

import (
	"math"
	"sort"

	"github.com/vasylcode/walhist/internal/model"
	"go.uber.org/zap"
)

// TransactionsState is everything accumulated so far for one symbol.
// List is strictly descending by logical time and PreviousID is always the
// id of its last element (zero while the list is empty).
type TransactionsState struct {
	List              []model.Transaction
	PreviousID        model.TransactionID
	InitTransactionID model.TransactionID
	LatestScannedLt   int64
	LeastScannedLt    int64
	// Exhausted is set once the backend reported there is nothing older to load.
	Exhausted bool

	index map[model.TransactionID]int
}

func newTransactionsState() *TransactionsState {
	return &TransactionsState{
		LeastScannedLt: math.MaxInt64,
		index:          make(map[model.TransactionID]int),
	}
}

// Contains reports whether id is already accumulated
func (s *TransactionsState) Contains(id model.TransactionID) bool {
	_, ok := s.index[id]
	return ok
}

// Find returns the accumulated transaction with the given id
func (s *TransactionsState) Find(id model.TransactionID) (model.Transaction, bool) {
	i, ok := s.index[id]
	if !ok {
		return model.Transaction{}, false
	}
	return s.List[i], true
}

func (s *TransactionsState) reindex() {
	clear(s.index)
	for i, t := range s.List {
		s.index[t.ID] = i
	}
}

func (s *TransactionsState) updateBounds() {
	if len(s.List) == 0 {
		s.PreviousID = model.TransactionID{}
		return
	}
	head, tail := s.List[0], s.List[len(s.List)-1]
	s.PreviousID = tail.ID
	if head.ID.Lt > s.LatestScannedLt {
		s.LatestScannedLt = head.ID.Lt
	}
	if tail.ID.Lt < s.LeastScannedLt {
		s.LeastScannedLt = tail.ID.Lt
	}
}

// computeInitTransactionID marks the oldest transaction that initialized the account
func (s *TransactionsState) computeInitTransactionID() {
	for i := len(s.List) - 1; i >= 0; i-- {
		if s.List[i].Initializing {
			s.InitTransactionID = s.List[i].ID
			return
		}
	}
}

// ledger is the per-symbol accumulator
type ledger struct {
	log    *zap.Logger
	states map[model.Symbol]*TransactionsState
}

func newLedger(log *zap.Logger) *ledger {
	return &ledger{
		log:    log,
		states: make(map[model.Symbol]*TransactionsState),
	}
}

func (l *ledger) lookup(symbol model.Symbol) (*TransactionsState, bool) {
	st, ok := l.states[symbol]
	return st, ok
}

func (l *ledger) state(symbol model.Symbol) *TransactionsState {
	st, ok := l.states[symbol]
	if !ok {
		st = newTransactionsState()
		l.states[symbol] = st
	}
	return st
}

func (l *ledger) latestScannedLt(symbol model.Symbol) int64 {
	if st, ok := l.states[symbol]; ok {
		return st.LatestScannedLt
	}
	return 0
}

// normalize sorts a page newest first and drops repeated ids and logical times
func normalize(list []model.Transaction) []model.Transaction {
	result := make([]model.Transaction, len(list))
	copy(result, list)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ID.Lt > result[j].ID.Lt
	})
	out := result[:0]
	for _, t := range result {
		if len(out) > 0 && out[len(out)-1].ID.Lt == t.ID.Lt {
			continue
		}
		out = append(out, t)
	}
	return out
}

// mergeListChanged folds the latest slices into the accumulated lists and
// reports which symbols actually changed.
func (l *ledger) mergeListChanged(data map[model.Symbol]model.TransactionsSlice) map[model.Symbol]bool {
	changed := make(map[model.Symbol]bool)
	for symbol, slice := range data {
		if l.mergeSlice(symbol, slice) {
			changed[symbol] = true
		}
	}
	return changed
}

func (l *ledger) mergeSlice(symbol model.Symbol, slice model.TransactionsSlice) bool {
	incoming := normalize(slice.List)
	st := l.state(symbol)

	if len(st.List) == 0 {
		if len(incoming) == 0 {
			exhausted := slice.PreviousID.IsZero()
			changed := exhausted != st.Exhausted
			st.Exhausted = exhausted
			return changed
		}
		st.List = incoming
		st.Exhausted = slice.PreviousID.IsZero()
		st.reindex()
		st.updateBounds()
		st.computeInitTransactionID()
		return true
	}

	if len(incoming) == 0 || st.Contains(incoming[0].ID) {
		return false
	}

	head := st.List[0].ID.Lt
	fresh := make([]model.Transaction, 0, len(incoming))
	overlap := false
	for _, t := range incoming {
		if st.Contains(t.ID) || t.ID.Lt <= head {
			overlap = true
			break
		}
		fresh = append(fresh, t)
	}
	if len(fresh) == 0 {
		return false
	}
	if !overlap {
		l.log.Warn("history slice does not reach accumulated head, leaving a gap",
			zap.Stringer("symbol", symbol),
			zap.Int64("head_lt", head),
			zap.Int64("slice_tail_lt", fresh[len(fresh)-1].ID.Lt))
	}

	list := make([]model.Transaction, 0, len(fresh)+len(st.List))
	list = append(list, fresh...)
	list = append(list, st.List...)
	st.List = list
	st.reindex()
	st.updateBounds()
	st.computeInitTransactionID()
	return true
}

// appendLoaded extends a symbol's list backwards with a preloaded page
func (l *ledger) appendLoaded(loaded model.LoadedSlice) bool {
	st := l.state(loaded.Symbol)
	incoming := normalize(loaded.List)

	tail := int64(math.MaxInt64)
	if n := len(st.List); n > 0 {
		tail = st.List[n-1].ID.Lt
	}
	added := 0
	for _, t := range incoming {
		if st.Contains(t.ID) || t.ID.Lt >= tail {
			continue
		}
		st.index[t.ID] = len(st.List)
		st.List = append(st.List, t)
		tail = t.ID.Lt
		added++
	}

	exhausted := st.Exhausted || len(incoming) == 0 || loaded.PreviousID.IsZero()
	changed := added > 0 || exhausted != st.Exhausted
	st.Exhausted = exhausted
	if added > 0 {
		st.updateBounds()
		st.computeInitTransactionID()
	}
	return changed
}

// replace swaps in a new version of an accumulated transaction and returns
// the symbols whose list contained it
func (l *ledger) replace(t model.Transaction) []model.Symbol {
	var symbols []model.Symbol
	for symbol, st := range l.states {
		if i, ok := st.index[t.ID]; ok {
			st.List[i] = t
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

// symbolsOf returns the symbols whose list contains id
func (l *ledger) symbolsOf(id model.TransactionID) []model.Symbol {
	var symbols []model.Symbol
	for symbol, st := range l.states {
		if st.Contains(id) {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}
