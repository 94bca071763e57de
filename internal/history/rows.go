package history

import (
	"time"

	"github.com/vasylcode/walhist/internal/model"
)

// RowKind represents what a row displays
type RowKind int

const (
	RowTransaction RowKind = iota
	RowPending
	RowDate
)

// RowKey identifies a row across rebuilds. Date rows are keyed by the
// transaction they precede.
type RowKey struct {
	Kind    RowKind
	ID      model.TransactionID
	Pending string
}

// Action is a special token action offered by some rows
type Action int

const (
	ActionNone Action = iota
	ActionAddTokenWallet
	ActionCollectTokens
	ActionSwapBack
)

// Comment is the comment line of a row
type Comment struct {
	Text       string
	Phase      DecryptPhase
	Selectable bool
	Error      bool
}

// Empty reports whether the row has no comment line at all
func (c Comment) Empty() bool {
	return c.Text == "" && c.Phase == DecryptNone
}

// Row is one rendered line group of the history
type Row struct {
	Key  RowKey
	Kind RowKind

	Tx      model.Transaction
	Pending model.PendingTransaction
	Day     time.Time

	IsInit  bool
	Service bool
	Token   bool
	Value   int64
	Fee     int64
	Time    time.Time
	// Address is the raw counterparty, Owner its resolved name when known.
	Address string
	Owner   string
	Comment Comment

	Action        Action
	ActionAddress string

	Top    int
	Height int
}

// DisplayAddress returns the owner name if resolved, else the raw address
func (r *Row) DisplayAddress() string {
	if r.Owner != "" {
		return r.Owner
	}
	return r.Address
}

// Bottom returns the first layout unit below the row
func (r *Row) Bottom() int {
	return r.Top + r.Height
}

// Layout holds the heights used to lay rows out, in renderer units
type Layout struct {
	RowHeight     int
	PendingHeight int
	CommentHeight int
	DateHeight    int
}

// DefaultLayout lays every row out on a single terminal line
var DefaultLayout = Layout{
	RowHeight:     1,
	PendingHeight: 1,
	CommentHeight: 1,
	DateHeight:    1,
}

func (l Layout) height(r *Row) int {
	switch r.Kind {
	case RowDate:
		return l.DateHeight
	case RowPending:
		h := l.PendingHeight
		if !r.Comment.Empty() {
			h += l.CommentHeight
		}
		return h
	default:
		h := l.RowHeight
		if !r.Comment.Empty() {
			h += l.CommentHeight
		}
		return h
	}
}

// RowsState is the projection of one symbol. Rows live in an arena indexed
// by key; Pending and Regular hold arena slots in display order.
type RowsState struct {
	arena   []Row
	index   map[RowKey]int
	pending []int
	regular []int
	extent  int
}

func newRowsState() *RowsState {
	return &RowsState{index: make(map[RowKey]int)}
}

func (s *RowsState) reset() {
	s.arena = s.arena[:0]
	clear(s.index)
	s.pending = s.pending[:0]
	s.regular = s.regular[:0]
	s.extent = 0
}

func (s *RowsState) push(row Row, pending bool) {
	slot := len(s.arena)
	s.arena = append(s.arena, row)
	s.index[row.Key] = slot
	if pending {
		s.pending = append(s.pending, slot)
	} else {
		s.regular = append(s.regular, slot)
	}
}

func (s *RowsState) layout(l Layout) {
	top := 0
	for i := 0; i < s.Len(); i++ {
		r := s.At(i)
		r.Top = top
		r.Height = l.height(r)
		top += r.Height
	}
	s.extent = top
}

// Len returns the number of rows, pending and regular together
func (s *RowsState) Len() int {
	return len(s.pending) + len(s.regular)
}

// At returns the i-th row in display order: pending rows first
func (s *RowsState) At(i int) *Row {
	if i < len(s.pending) {
		return &s.arena[s.pending[i]]
	}
	return &s.arena[s.regular[i-len(s.pending)]]
}

// Lookup finds a row by key
func (s *RowsState) Lookup(key RowKey) (*Row, bool) {
	slot, ok := s.index[key]
	if !ok {
		return nil, false
	}
	return &s.arena[slot], true
}

// PendingLen returns the number of pending rows
func (s *RowsState) PendingLen() int {
	return len(s.pending)
}

// Keys returns the row keys in display order
func (s *RowsState) Keys() []RowKey {
	keys := make([]RowKey, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		keys = append(keys, s.At(i).Key)
	}
	return keys
}

// Extent returns the total height of all rows
func (s *RowsState) Extent() int {
	return s.extent
}

// RowAt returns the row covering the layout offset y
func (s *RowsState) RowAt(y int) (*Row, bool) {
	if y < 0 || y >= s.extent {
		return nil, false
	}
	lo, hi := 0, s.Len()-1
	for lo <= hi {
		mid := (lo + hi) / 2
		r := s.At(mid)
		switch {
		case y < r.Top:
			hi = mid - 1
		case y >= r.Bottom():
			lo = mid + 1
		default:
			return r, true
		}
	}
	return nil, false
}
