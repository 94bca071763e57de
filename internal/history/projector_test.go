package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasylcode/walhist/internal/model"
	"go.uber.org/zap/zaptest"
)

func newTestProjector() *projector {
	return &projector{
		layout:   DefaultLayout,
		location: time.UTC,
		owners:   newOwnerCache(),
		decrypt:  newDecryptor(),
	}
}

func project(t *testing.T, p *projector, symbol model.Symbol, s model.TransactionsSlice, pending ...model.PendingTransaction) (*RowsState, []string) {
	l := newLedger(zaptest.NewLogger(t))
	l.mergeSlice(symbol, s)
	st, _ := l.lookup(symbol)
	rows := newRowsState()
	misses := p.refreshRows(rows, symbol, st, pending)
	return rows, misses
}

func kinds(rows *RowsState) []RowKind {
	result := make([]RowKind, 0, rows.Len())
	for i := 0; i < rows.Len(); i++ {
		result = append(result, rows.At(i).Kind)
	}
	return result
}

func TestRefreshShowDates(t *testing.T) {
	hour := int64(time.Hour / time.Second)
	d1, d2, d3 := day0, day0+24*hour, day0+48*hour

	rows, _ := project(t, newTestProjector(), mainSymbol, slice(txID(1),
		inTx(5, d3+12*hour, "a", 1),
		inTx(4, d2+15*hour, "a", 1),
		inTx(3, d2+9*hour, "a", 1),
		inTx(2, d1+20*hour, "a", 1),
		inTx(1, d1+8*hour, "a", 1),
	))

	assert.Equal(t, []RowKind{
		RowDate, RowTransaction,
		RowDate, RowTransaction, RowTransaction,
		RowDate, RowTransaction, RowTransaction,
	}, kinds(rows))

	dates := 0
	for i := 0; i < rows.Len(); i++ {
		row := rows.At(i)
		if row.Kind != RowDate {
			continue
		}
		dates++
		next := rows.At(i + 1)
		assert.Equal(t, RowKey{Kind: RowDate, ID: next.Tx.ID}, row.Key)
		assert.Equal(t, dayOf(next.Time), row.Day)
	}
	assert.Equal(t, 3, dates)
	assert.Equal(t, 8, rows.Extent())
}

func TestRefreshRowsPendingFirst(t *testing.T) {
	p := pendingTx("p1", day0+50, "0xD", 500)
	p.Comment = "rent"
	rows, _ := project(t, newTestProjector(), mainSymbol, slice(txID(1), outTx(1, day0+10, "0xA", 7)), p)

	require.Equal(t, 3, rows.Len())
	assert.Equal(t, 1, rows.PendingLen())
	assert.Equal(t, []RowKey{
		{Kind: RowPending, Pending: "p1"},
		{Kind: RowDate, ID: txID(1)},
		{Kind: RowTransaction, ID: txID(1)},
	}, rows.Keys())

	pending := rows.At(0)
	assert.Equal(t, int64(-500), pending.Value)
	assert.Equal(t, "0xD", pending.Address)
	assert.Equal(t, "rent", pending.Comment.Text)
	assert.Equal(t, 0, pending.Top)
	assert.Equal(t, 2, pending.Height)

	confirmed := rows.At(2)
	assert.Equal(t, int64(-7), confirmed.Value)
	assert.Equal(t, "0xA", confirmed.DisplayAddress())
	assert.Equal(t, 3, confirmed.Top)
	assert.Equal(t, 4, rows.Extent())
}

func TestRefreshRowsInit(t *testing.T) {
	first := inTx(1, day0, "a", 1)
	first.Initializing = true
	rows, _ := project(t, newTestProjector(), mainSymbol, slice(txID(1), inTx(2, day0, "a", 1), first))

	row, ok := rows.Lookup(RowKey{Kind: RowTransaction, ID: txID(1)})
	require.True(t, ok)
	assert.True(t, row.IsInit)
	row, _ = rows.Lookup(RowKey{Kind: RowTransaction, ID: txID(2)})
	assert.False(t, row.IsInit)
}

func TestRefreshRowsTokenOwners(t *testing.T) {
	token := model.Token("TKN", "0xroot")
	p := newTestProjector()
	p.owners.merge(map[string]string{"0xABC": "Alice"})

	rows, misses := project(t, p, token, slice(txID(1),
		tokenTx(3, day0, "0xDEF", 5),
		tokenTx(2, day0, "0xABC", 7),
		tokenTx(1, day0, "0xDEF", 9),
	))

	assert.Equal(t, []string{"0xDEF"}, misses)
	row, _ := rows.Lookup(RowKey{Kind: RowTransaction, ID: txID(2)})
	assert.True(t, row.Token)
	assert.Equal(t, int64(-7), row.Value)
	assert.Equal(t, "Alice", row.DisplayAddress())
	row, _ = rows.Lookup(RowKey{Kind: RowTransaction, ID: txID(3)})
	assert.Equal(t, "0xDEF", row.DisplayAddress())
}

func TestRefreshRowsPendingTokenOwners(t *testing.T) {
	token := model.Token("TKN", "0xroot")
	p := newTestProjector()
	p.owners.merge(map[string]string{"0xABC": "Alice"})

	known := model.PendingTransaction{ID: "p1", Symbol: token, Time: day0 + 20, Destination: "0xABC", Value: 3}
	fresh := model.PendingTransaction{ID: "p2", Symbol: token, Time: day0 + 10, Destination: "0xNEW", Value: 4}
	rows, misses := project(t, p, token, slice(txID(1), tokenTx(1, day0, "0xABC", 9)), known, fresh)

	assert.Equal(t, []string{"0xNEW"}, misses)
	row, _ := rows.Lookup(RowKey{Kind: RowPending, Pending: "p1"})
	assert.Equal(t, "Alice", row.DisplayAddress())
	row, _ = rows.Lookup(RowKey{Kind: RowPending, Pending: "p2"})
	assert.Equal(t, "0xNEW", row.DisplayAddress())

	// native pending destinations are never sent for resolution
	_, misses = project(t, p, mainSymbol, slice(txID(1), inTx(1, day0, "a", 1)), pendingTx("p3", day0, "0xNATIVE", 1))
	assert.Empty(t, misses)
}

func TestRefreshRowsActions(t *testing.T) {
	deployed := inTx(3, day0, "0xW", 1)
	deployed.Incoming.Token = model.TokenOperation{Kind: model.TokenWalletDeployed, Root: "0xroot"}
	notified := inTx(2, day0, "0xW", 1)
	notified.Incoming.Token = model.TokenOperation{Kind: model.TokenNotification, Event: "0xevent"}
	swap := outTx(1, day0, "0xW", 1)
	swap.Outgoing[0].Token = model.TokenOperation{Kind: model.TokenSwapBack, Dest: "0xeth", Value: 3, Event: "0xswap"}

	rows, _ := project(t, newTestProjector(), mainSymbol, slice(txID(1), deployed, notified, swap))

	tests := []struct {
		id      model.TransactionID
		action  Action
		address string
	}{
		{txID(3), ActionAddTokenWallet, "0xroot"},
		{txID(2), ActionCollectTokens, "0xevent"},
		{txID(1), ActionSwapBack, "0xswap"},
	}
	for _, tt := range tests {
		row, ok := rows.Lookup(RowKey{Kind: RowTransaction, ID: tt.id})
		require.True(t, ok)
		assert.Equal(t, tt.action, row.Action)
		assert.Equal(t, tt.address, row.ActionAddress)
	}
}

func TestRowAt(t *testing.T) {
	rows, _ := project(t, newTestProjector(), mainSymbol, slice(txID(1),
		encryptedTx(2, day0),
		inTx(1, day0, "a", 1),
	))
	// date, encrypted row with a comment line, plain row
	assert.Equal(t, 4, rows.Extent())

	tests := []struct {
		y    int
		want RowKey
		ok   bool
	}{
		{-1, RowKey{}, false},
		{0, RowKey{Kind: RowDate, ID: txID(2)}, true},
		{1, RowKey{Kind: RowTransaction, ID: txID(2)}, true},
		{2, RowKey{Kind: RowTransaction, ID: txID(2)}, true},
		{3, RowKey{Kind: RowTransaction, ID: txID(1)}, true},
		{4, RowKey{}, false},
	}
	for _, tt := range tests {
		row, ok := rows.RowAt(tt.y)
		assert.Equal(t, tt.ok, ok, "y=%d", tt.y)
		if ok {
			assert.Equal(t, tt.want, row.Key, "y=%d", tt.y)
		}
	}
}

func TestDecryptor(t *testing.T) {
	d := newDecryptor()
	locked := encryptedTx(2, day0)
	d.track(locked)
	d.track(encryptedTx(3, day0))
	d.track(inTx(1, day0, "a", 1))

	phase, _ := d.phase(txID(1))
	assert.Equal(t, DecryptNone, phase)
	phase, _ = d.phase(txID(2))
	assert.Equal(t, DecryptLocked, phase)
	assert.Equal(t, []int64{3, 2}, ids(d.collect()))

	tx, ok := d.click(txID(2))
	require.True(t, ok)
	assert.Equal(t, locked, tx)
	_, ok = d.click(txID(2))
	assert.False(t, ok)
	assert.Equal(t, []int64{3, 2}, ids(d.collect()))

	revealed := locked
	revealed.Incoming.Data = model.MessageData{Text: "secret", Type: model.DecryptedText}
	changed, list := d.take([]model.Transaction{revealed, encryptedTx(3, day0), inTx(9, day0, "a", 1)})
	assert.Equal(t, []model.TransactionID{txID(2), txID(3)}, changed)
	assert.Equal(t, []model.Transaction{revealed}, list)

	phase, text := d.phase(txID(2))
	assert.Equal(t, DecryptRevealed, phase)
	assert.Equal(t, "secret", text)
	phase, text = d.phase(txID(3))
	assert.Equal(t, DecryptFailed, phase)
	assert.Equal(t, DecryptFailedText, text)
	assert.Empty(t, d.collect())

	changed, _ = d.take([]model.Transaction{revealed})
	assert.Empty(t, changed)
	_, ok = d.click(txID(3))
	assert.False(t, ok)
}

func TestOwnerCache(t *testing.T) {
	c := newOwnerCache()
	assert.Equal(t, 2, c.merge(map[string]string{"0xA": "Alice", "0xB": ""}))

	name, ok := c.Name("0xA")
	assert.True(t, ok)
	assert.Equal(t, "Alice", name)
	_, ok = c.Name("0xB")
	assert.False(t, ok)
	assert.True(t, c.Known("0xB"))

	assert.Equal(t, []string{"0xC"}, c.unresolved(map[string]struct{}{"0xA": {}, "0xB": {}, "0xC": {}, "": {}}))

	// names are never overwritten, but an empty one can be filled
	assert.Equal(t, 1, c.merge(map[string]string{"0xA": "Mallory", "0xB": "Bob"}))
	name, _ = c.Name("0xA")
	assert.Equal(t, "Alice", name)
	name, _ = c.Name("0xB")
	assert.Equal(t, "Bob", name)
	assert.Equal(t, 2, c.Len())
}
