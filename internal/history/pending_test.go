package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vasylcode/walhist/internal/model"
	"go.uber.org/zap/zaptest"
)

func pendingTx(id string, ts int64, dest string, value int64) model.PendingTransaction {
	return model.PendingTransaction{ID: id, Symbol: mainSymbol, Time: ts, Destination: dest, Value: value}
}

func pendingIDs(list []model.PendingTransaction) []string {
	result := make([]string, 0, len(list))
	for _, p := range list {
		result = append(result, p.ID)
	}
	return result
}

func TestMergePending(t *testing.T) {
	tests := []struct {
		name      string
		scanned   []model.Transaction
		confirmed []model.Transaction
		pending   []model.PendingTransaction
		want      []string
	}{
		{
			name:      "nothing confirmed",
			confirmed: nil,
			pending:   []model.PendingTransaction{pendingTx("p1", 100, "0xD", 500)},
			want:      []string{"p1"},
		},
		{
			name:      "matching confirmation retires",
			confirmed: []model.Transaction{outTx(5, 105, "0xD", 500)},
			pending:   []model.PendingTransaction{pendingTx("p1", 100, "0xD", 500)},
			want:      []string{},
		},
		{
			name:      "confirmation older than submission",
			confirmed: []model.Transaction{outTx(5, 99, "0xD", 500)},
			pending:   []model.PendingTransaction{pendingTx("p1", 100, "0xD", 500)},
			want:      []string{"p1"},
		},
		{
			name:    "scanned before first observation",
			scanned: []model.Transaction{outTx(8, 200, "0xD", 500)},
			pending: []model.PendingTransaction{pendingTx("p1", 150, "0xD", 500)},
			want:    []string{"p1"},
		},
		{
			name:      "scanned after first observation",
			scanned:   []model.Transaction{outTx(8, 200, "0xD", 500)},
			confirmed: []model.Transaction{outTx(9, 210, "0xD", 500), outTx(8, 200, "0xD", 500)},
			pending:   []model.PendingTransaction{pendingTx("p1", 150, "0xD", 500)},
			want:      []string{},
		},
		{
			name:      "different value",
			confirmed: []model.Transaction{outTx(5, 105, "0xD", 499)},
			pending:   []model.PendingTransaction{pendingTx("p1", 100, "0xD", 500)},
			want:      []string{"p1"},
		},
		{
			name:      "incoming transfer never confirms",
			confirmed: []model.Transaction{inTx(5, 105, "0xD", 500)},
			pending:   []model.PendingTransaction{pendingTx("p1", 100, "0xD", 500)},
			want:      []string{"p1"},
		},
		{
			name:      "ambiguous keeps both",
			confirmed: []model.Transaction{outTx(5, 105, "0xD", 500)},
			pending: []model.PendingTransaction{
				pendingTx("p1", 100, "0xD", 500),
				pendingTx("p2", 101, "0xD", 500),
			},
			want: []string{"p2", "p1"},
		},
		{
			name:      "two for two",
			confirmed: []model.Transaction{outTx(6, 110, "0xD", 500), outTx(5, 105, "0xD", 500)},
			pending: []model.PendingTransaction{
				pendingTx("p1", 100, "0xD", 500),
				pendingTx("p2", 101, "0xD", 500),
			},
			want: []string{},
		},
		{
			name:      "three entries two confirmations",
			confirmed: []model.Transaction{outTx(6, 110, "0xD", 500), outTx(5, 105, "0xD", 500)},
			pending: []model.PendingTransaction{
				pendingTx("p1", 100, "0xD", 500),
				pendingTx("p2", 101, "0xD", 500),
				pendingTx("p3", 102, "0xD", 500),
			},
			want: []string{"p3", "p2", "p1"},
		},
		{
			name:      "confirmation between submissions",
			confirmed: []model.Transaction{outTx(5, 102, "0xD", 500)},
			pending: []model.PendingTransaction{
				pendingTx("p1", 100, "0xD", 500),
				pendingTx("p2", 103, "0xD", 500),
			},
			want: []string{"p2"},
		},
		{
			name:      "one confirmation per entry",
			confirmed: []model.Transaction{outTx(6, 110, "0xE", 1), outTx(5, 105, "0xD", 500)},
			pending: []model.PendingTransaction{
				pendingTx("p1", 100, "0xD", 500),
				pendingTx("p2", 100, "0xE", 1),
				pendingTx("p3", 100, "0xF", 1),
			},
			want: []string{"p3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(zaptest.NewLogger(t))
			if len(tt.scanned) > 0 {
				l.mergeSlice(mainSymbol, slice(txID(1), tt.scanned...))
			}
			r := newReconciler()
			r.mergePending(tt.pending, l)
			if len(tt.confirmed) > 0 {
				l.mergeSlice(mainSymbol, slice(txID(1), tt.confirmed...))
				r.mergePending(tt.pending, l)
			}
			assert.Equal(t, tt.want, pendingIDs(r.forSymbol(mainSymbol)))
		})
	}
}

func TestMergePendingTwoForTwoPairsInOrder(t *testing.T) {
	l := newLedger(zaptest.NewLogger(t))
	r := newReconciler()
	pending := []model.PendingTransaction{pendingTx("p1", 100, "0xD", 500), pendingTx("p2", 101, "0xD", 500)}
	r.mergePending(pending, l)

	l.mergeSlice(mainSymbol, slice(txID(1), outTx(6, 110, "0xD", 500), outTx(5, 105, "0xD", 500)))
	r.mergePending(pending, l)

	assert.Equal(t, "p1", r.claimed[txID(5)])
	assert.Equal(t, "p2", r.claimed[txID(6)])
}

func TestMergePendingForgetsReference(t *testing.T) {
	l := newLedger(zaptest.NewLogger(t))
	l.mergeSlice(mainSymbol, slice(txID(1), outTx(4, 90, "0xA", 1)))
	r := newReconciler()
	p1 := pendingTx("p1", 100, "0xD", 500)

	r.mergePending([]model.PendingTransaction{p1}, l)
	assert.Equal(t, int64(4), r.refLt["p1"])

	l.mergeSlice(mainSymbol, slice(txID(1), outTx(7, 95, "0xA", 1), outTx(4, 90, "0xA", 1)))
	r.mergePending([]model.PendingTransaction{p1}, l)
	assert.Equal(t, int64(4), r.refLt["p1"])

	r.mergePending(nil, l)
	assert.NotContains(t, r.refLt, "p1")
}

func TestMergePendingRetiredStaysGone(t *testing.T) {
	l := newLedger(zaptest.NewLogger(t))
	r := newReconciler()
	p1 := pendingTx("p1", 100, "0xD", 500)

	affected := r.mergePending([]model.PendingTransaction{p1}, l)
	assert.Equal(t, map[model.Symbol]bool{mainSymbol: true}, affected)
	assert.Empty(t, r.mergePending([]model.PendingTransaction{p1}, l))

	l.mergeSlice(mainSymbol, slice(txID(5), outTx(5, 105, "0xD", 500)))
	affected = r.mergePending([]model.PendingTransaction{p1}, l)
	assert.Equal(t, map[model.Symbol]bool{mainSymbol: true}, affected)
	assert.Empty(t, r.forSymbol(mainSymbol))

	// the backend still lists p1 until its own sync catches up
	assert.Empty(t, r.mergePending([]model.PendingTransaction{p1}, l))
	assert.Empty(t, r.forSymbol(mainSymbol))
	assert.Contains(t, r.retired, "p1")

	assert.Empty(t, r.mergePending(nil, l))
	assert.NotContains(t, r.retired, "p1")
}

func TestMergePendingToken(t *testing.T) {
	token := model.Token("TKN", "0xroot")
	l := newLedger(zaptest.NewLogger(t))
	r := newReconciler()
	p := model.PendingTransaction{ID: "p1", Symbol: token, Time: 100, Destination: "0xD", Value: 42}
	other := pendingTx("p2", 100, "0xD", 42)
	list := []model.PendingTransaction{p, other}
	r.mergePending(list, l)

	l.mergeSlice(token, slice(txID(5), tokenTx(5, 105, "0xD", 42)))
	affected := r.mergePending(list, l)

	assert.Equal(t, map[model.Symbol]bool{token: true, mainSymbol: true}, affected)
	assert.Empty(t, r.forSymbol(token))
	assert.Equal(t, []string{"p2"}, pendingIDs(r.forSymbol(mainSymbol)))
}
