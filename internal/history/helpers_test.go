package history

import (
	"fmt"
	"time"

	"github.com/vasylcode/walhist/internal/events"
	"github.com/vasylcode/walhist/internal/model"
)

var mainSymbol = model.Native("MAIN")

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Unix()

func txID(lt int64) model.TransactionID {
	return model.TransactionID{Lt: lt, Hash: fmt.Sprintf("h%d", lt)}
}

func outTx(lt, ts int64, dest string, value int64) model.Transaction {
	return model.Transaction{
		ID:       txID(lt),
		Time:     ts,
		Fee:      1,
		Outgoing: []model.Message{{Destination: dest, Value: value}},
	}
}

func inTx(lt, ts int64, source string, value int64) model.Transaction {
	return model.Transaction{
		ID:       txID(lt),
		Time:     ts,
		Incoming: model.Message{Source: source, Value: value},
	}
}

func tokenTx(lt, ts int64, dest string, value int64) model.Transaction {
	t := outTx(lt, ts, "token-wallet", 100)
	t.Outgoing[0].Token = model.TokenOperation{Kind: model.TokenTransfer, Dest: dest, Value: value}
	return t
}

func encryptedTx(lt, ts int64) model.Transaction {
	t := inTx(lt, ts, "0xS", 10)
	t.Incoming.Data = model.MessageData{Data: []byte{1, 2, 3}, Type: model.EncryptedText}
	return t
}

func slice(prev model.TransactionID, list ...model.Transaction) model.TransactionsSlice {
	return model.TransactionsSlice{List: list, PreviousID: prev}
}

func state(symbol model.Symbol, s model.TransactionsSlice, pending ...model.PendingTransaction) model.HistoryState {
	return model.HistoryState{
		LastTransactions:    map[model.Symbol]model.TransactionsSlice{symbol: s},
		PendingTransactions: pending,
	}
}

func ids(list []model.Transaction) []int64 {
	result := make([]int64, 0, len(list))
	for _, t := range list {
		result = append(result, t.ID.Lt)
	}
	return result
}

func record[T any](s *events.Stream[T]) *[]T {
	var got []T
	s.Subscribe(func(v T) { got = append(got, v) })
	return &got
}

func newSources() Sources {
	return Sources{
		State:              events.NewStream[model.HistoryState](),
		Loaded:             events.NewStream[model.LoadedSlice](),
		CollectEncrypted:   events.NewStream[*[]model.Transaction](),
		UpdateDecrypted:    events.NewStream[[]model.Transaction](),
		UpdateWalletOwners: events.NewStream[map[string]string](),
		SelectedAsset:      events.NewStream[model.SelectedAsset](),
	}
}
