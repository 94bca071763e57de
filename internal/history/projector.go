package history

import (
	"time"

	"github.com/vasylcode/walhist/internal/model"
)

// projector rebuilds RowsState from the accumulated and pending data
type projector struct {
	layout   Layout
	location *time.Location
	owners   *ownerCache
	decrypt  *decryptor
}

// refreshRows rebuilds the rows of one symbol. It returns the token
// counterparties that the owner cache does not know yet.
func (p *projector) refreshRows(rows *RowsState, symbol model.Symbol, st *TransactionsState, pending []model.PendingTransaction) []string {
	rows.reset()
	referenced := make(map[string]struct{})

	p.refreshPending(rows, pending, referenced)

	if st != nil {
		for _, tx := range st.List {
			p.decrypt.track(tx)
			row := p.makeRow(symbol, tx, tx.ID == st.InitTransactionID)
			if row.Token && row.Address != "" {
				referenced[row.Address] = struct{}{}
			}
			rows.push(row, false)
		}
	}
	p.refreshShowDates(rows)
	rows.layout(p.layout)

	return p.owners.unresolved(referenced)
}

func (p *projector) refreshPending(rows *RowsState, pending []model.PendingTransaction, referenced map[string]struct{}) {
	for _, pt := range pending {
		row := Row{
			Key:     RowKey{Kind: RowPending, Pending: pt.ID},
			Kind:    RowPending,
			Pending: pt,
			Value:   -pt.Value,
			Time:    time.Unix(pt.Time, 0).In(p.location),
			Address: pt.Destination,
			Token:   pt.Symbol.IsToken(),
		}
		if pt.Comment != "" {
			row.Comment = Comment{Text: pt.Comment, Selectable: true}
		}
		if row.Token && pt.Destination != "" {
			referenced[pt.Destination] = struct{}{}
			if name, ok := p.owners.Name(pt.Destination); ok {
				row.Owner = name
			}
		}
		rows.push(row, true)
	}
}

func (p *projector) makeRow(symbol model.Symbol, tx model.Transaction, isInit bool) Row {
	row := Row{
		Key:     RowKey{Kind: RowTransaction, ID: tx.ID},
		Kind:    RowTransaction,
		Tx:      tx,
		IsInit:  isInit,
		Service: tx.IsService(),
		Value:   tx.Value(),
		Fee:     tx.Fee,
		Time:    time.Unix(tx.Time, 0).In(p.location),
		Address: tx.Counterparty(),
	}

	op := tx.TokenOp()
	if symbol.IsToken() {
		switch op.Kind {
		case model.TokenTransfer, model.TokenSwapBack:
			row.Token = true
			row.Address = op.Dest
			if tx.IsIncoming() {
				row.Value = op.Value
			} else {
				row.Value = -op.Value
			}
			if name, ok := p.owners.Name(op.Dest); ok {
				row.Owner = name
			}
		}
	}
	switch op.Kind {
	case model.TokenWalletDeployed:
		row.Action, row.ActionAddress = ActionAddTokenWallet, op.Root
	case model.TokenNotification:
		row.Action, row.ActionAddress = ActionCollectTokens, op.Event
	case model.TokenSwapBack:
		if op.Event != "" {
			row.Action, row.ActionAddress = ActionSwapBack, op.Event
		}
	}

	row.Comment = p.comment(tx)
	return row
}

func (p *projector) comment(tx model.Transaction) Comment {
	switch phase, text := p.decrypt.phase(tx.ID); phase {
	case DecryptLocked, DecryptAwaiting:
		return Comment{Text: ClickToDecryptText, Phase: phase}
	case DecryptRevealed:
		return Comment{Text: text, Phase: phase, Selectable: true}
	case DecryptFailed:
		return Comment{Text: text, Phase: phase, Error: true}
	}
	if text := tx.Comment(); text != "" {
		return Comment{Text: text, Selectable: true}
	}
	return Comment{}
}

// refreshShowDates inserts a date row before the first transaction of every
// calendar day, scanning newest first
func (p *projector) refreshShowDates(rows *RowsState) {
	regular := make([]int, 0, len(rows.regular)*2)
	var lastDay time.Time
	for i, slot := range rows.regular {
		tx := &rows.arena[slot]
		day := dayOf(tx.Time)
		if i == 0 || !day.Equal(lastDay) {
			date := Row{
				Key:  RowKey{Kind: RowDate, ID: tx.Tx.ID},
				Kind: RowDate,
				Day:  day,
				Time: day,
			}
			dateSlot := len(rows.arena)
			rows.arena = append(rows.arena, date)
			rows.index[date.Key] = dateSlot
			regular = append(regular, dateSlot)
			lastDay = day
		}
		regular = append(regular, slot)
	}
	rows.regular = regular
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
