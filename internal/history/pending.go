package history

import (
	"sort"

	"github.com/vasylcode/walhist/internal/model"
)

// reconciler keeps the locally submitted transactions that are not confirmed yet.
//
// Each entry remembers refLt, the symbol's latest scanned lt when the entry was
// first observed. A confirmed transaction C confirms a pending entry P of the
// same symbol when C is outgoing, its destination and value equal P's,
// C.Time >= P.Time and C.ID.Lt > refLt. When C could confirm several entries it
// retires the oldest of them only if at least as many unclaimed confirmations
// qualify for all of them; otherwise nothing is retired. Each confirmed
// transaction retires at most one entry.
type reconciler struct {
	list    []model.PendingTransaction
	refLt   map[string]int64
	retired map[string]struct{}
	claimed map[model.TransactionID]string
}

func newReconciler() *reconciler {
	return &reconciler{
		refLt:   make(map[string]int64),
		retired: make(map[string]struct{}),
		claimed: make(map[model.TransactionID]string),
	}
}

// forSymbol returns the pending entries of one symbol, newest first
func (r *reconciler) forSymbol(symbol model.Symbol) []model.PendingTransaction {
	var result []model.PendingTransaction
	for _, p := range r.list {
		if p.Symbol == symbol {
			result = append(result, p)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Time > result[j].Time
	})
	return result
}

// observe records the reference lt of entries seen for the first time. It must
// run before the snapshot carrying the entries is merged into the ledger.
func (r *reconciler) observe(list []model.PendingTransaction, l *ledger) {
	for _, p := range list {
		if _, seen := r.refLt[p.ID]; !seen {
			r.refLt[p.ID] = l.latestScannedLt(p.Symbol)
		}
	}
}

// mergePending replaces the stored list and returns the symbols whose pending
// rows changed. Entries with a confirmed counterpart in the ledger are dropped.
func (r *reconciler) mergePending(list []model.PendingTransaction, l *ledger) map[model.Symbol]bool {
	r.observe(list, l)
	present := make(map[string]struct{}, len(list))
	next := make([]model.PendingTransaction, 0, len(list))
	for _, p := range list {
		present[p.ID] = struct{}{}
		if _, gone := r.retired[p.ID]; gone {
			continue
		}
		next = append(next, p)
	}
	next = r.retire(next, l)

	// The backend dropped these itself; no need to remember them.
	for id := range r.retired {
		if _, ok := present[id]; !ok {
			delete(r.retired, id)
		}
	}
	for id := range r.refLt {
		if _, ok := present[id]; !ok {
			delete(r.refLt, id)
		}
	}

	affected := make(map[model.Symbol]bool)
	if samePending(r.list, next) {
		return affected
	}
	for _, p := range r.list {
		affected[p.Symbol] = true
	}
	for _, p := range next {
		affected[p.Symbol] = true
	}
	r.list = next
	return affected
}

func (r *reconciler) retire(list []model.PendingTransaction, l *ledger) []model.PendingTransaction {
	if len(list) == 0 {
		return list
	}
	bySymbol := make(map[model.Symbol][]int)
	for i, p := range list {
		bySymbol[p.Symbol] = append(bySymbol[p.Symbol], i)
	}

	gone := make(map[int]bool)
	for symbol, indexes := range bySymbol {
		st, ok := l.lookup(symbol)
		if !ok || len(st.List) == 0 {
			continue
		}
		since := list[indexes[0]].Time
		for _, i := range indexes[1:] {
			if list[i].Time < since {
				since = list[i].Time
			}
		}

		// Oldest first so an earlier submission is matched by an earlier confirmation.
		var recent []model.Transaction
		for _, t := range st.List {
			if t.Time < since {
				break
			}
			if _, used := r.claimed[t.ID]; used {
				continue
			}
			if _, _, ok := confirmedTransfer(symbol, t); ok {
				recent = append(recent, t)
			}
		}
		for k := len(recent) - 1; k >= 0; k-- {
			c := recent[k]
			var candidates []int
			for _, i := range indexes {
				if !gone[i] && r.confirms(symbol, c, list[i]) {
					candidates = append(candidates, i)
				}
			}
			if len(candidates) == 0 {
				continue
			}
			if len(candidates) > 1 && r.covering(symbol, recent[:k+1], list, candidates) < len(candidates) {
				continue
			}
			match := candidates[0]
			for _, i := range candidates[1:] {
				if list[i].Time < list[match].Time {
					match = i
				}
			}
			gone[match] = true
			r.claimed[c.ID] = list[match].ID
			r.retired[list[match].ID] = struct{}{}
		}
	}

	if len(gone) == 0 {
		return list
	}
	kept := make([]model.PendingTransaction, 0, len(list)-len(gone))
	for i, p := range list {
		if !gone[i] {
			kept = append(kept, p)
		}
	}
	return kept
}

func (r *reconciler) confirms(symbol model.Symbol, c model.Transaction, p model.PendingTransaction) bool {
	dest, value, ok := confirmedTransfer(symbol, c)
	return ok && p.Destination == dest && p.Value == value &&
		c.Time >= p.Time && c.ID.Lt > r.refLt[p.ID]
}

// covering counts the confirmations that qualify for every candidate
func (r *reconciler) covering(symbol model.Symbol, confirmations []model.Transaction, list []model.PendingTransaction, candidates []int) int {
	n := 0
	for _, c := range confirmations {
		all := true
		for _, i := range candidates {
			if !r.confirms(symbol, c, list[i]) {
				all = false
				break
			}
		}
		if all {
			n++
		}
	}
	return n
}

// confirmedTransfer returns what a pending entry is compared against
func confirmedTransfer(symbol model.Symbol, t model.Transaction) (string, int64, bool) {
	if t.IsIncoming() {
		return "", 0, false
	}
	if symbol.IsToken() {
		op := t.TokenOp()
		if op.Kind == model.TokenTransfer || op.Kind == model.TokenSwapBack {
			return op.Dest, op.Value, true
		}
	}
	out := t.Outgoing[0]
	return out.Destination, out.Value, true
}

func samePending(a, b []model.PendingTransaction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
