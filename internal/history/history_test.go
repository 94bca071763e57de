package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vasylcode/walhist/internal/model"
	"go.uber.org/zap/zaptest"
)

type HistoryTestSuite struct {
	suite.Suite
	src     Sources
	history *History
	shared  []string
}

func TestHistoryTestSuite(t *testing.T) {
	suite.Run(t, &HistoryTestSuite{})
}

func (suite *HistoryTestSuite) SetupTest() {
	suite.shared = nil
	suite.src = newSources()
	suite.history = New(suite.src, Options{
		Location: time.UTC,
		Logger:   zaptest.NewLogger(suite.T()),
		Share:    func(address string) { suite.shared = append(suite.shared, address) },
	})
	suite.src.SelectedAsset.Fire(model.SelectToken(mainSymbol))
}

func (suite *HistoryTestSuite) TearDownTest() {
	suite.history.Close()
}

func (suite *HistoryTestSuite) click(key RowKey, element Element) {
	hit := Hit{Key: key, Element: element}
	suite.history.Move(0, hit)
	suite.history.Press(0)
	suite.history.Release(0, hit)
}

func (suite *HistoryTestSuite) row(key RowKey) *Row {
	row, ok := suite.history.Rows().Lookup(key)
	suite.Require().True(ok, "row %+v", key)
	return row
}

func (suite *HistoryTestSuite) TestEndToEnd() {
	p1 := model.PendingTransaction{ID: "P1", Symbol: mainSymbol, Time: 100, Destination: "0xD", Value: 500}

	suite.src.State.Fire(state(mainSymbol, slice(model.TransactionID{}), p1))
	suite.Equal([]RowKey{{Kind: RowPending, Pending: "P1"}}, suite.history.Rows().Keys())

	suite.src.State.Fire(state(mainSymbol, slice(txID(5), outTx(5, 105, "0xD", 500)), p1))
	suite.Equal([]RowKey{
		{Kind: RowDate, ID: txID(5)},
		{Kind: RowTransaction, ID: txID(5)},
	}, suite.history.Rows().Keys())
	suite.Empty(suite.history.Pending(mainSymbol))

	preloads := record(suite.history.PreloadRequests())
	suite.history.CheckPreload(0, suite.history.Height())
	suite.Equal([]PreloadRequest{{Symbol: mainSymbol, Cursor: model.TransactionID{Lt: 5, Hash: "h5"}}}, *preloads)
}

func (suite *HistoryTestSuite) TestPendingConfirmedInSameSnapshot() {
	suite.src.State.Fire(state(mainSymbol, slice(txID(3), outTx(3, 90, "0xA", 1))))

	p1 := model.PendingTransaction{ID: "P1", Symbol: mainSymbol, Time: 100, Destination: "0xD", Value: 500}
	suite.src.State.Fire(state(mainSymbol, slice(txID(3), outTx(5, 105, "0xD", 500), outTx(3, 90, "0xA", 1)), p1))

	suite.Empty(suite.history.Pending(mainSymbol))
}

func (suite *HistoryTestSuite) TestMergeStateIdempotent() {
	heights := record(suite.history.HeightValue())
	snapshot := state(mainSymbol, slice(txID(1), inTx(3, day0, "a", 1), inTx(2, day0, "a", 1), inTx(1, day0, "a", 1)))

	suite.src.State.Fire(snapshot)
	keys := suite.history.Rows().Keys()
	first := suite.history.Rows().At(1)

	suite.src.State.Fire(snapshot)
	suite.Equal(keys, suite.history.Rows().Keys())
	suite.Same(first, suite.history.Rows().At(1))
	suite.Equal([]int{4}, *heights)
}

func (suite *HistoryTestSuite) TestMergeStateOrdering() {
	suite.src.State.Fire(state(mainSymbol, slice(txID(1), inTx(1, day0, "a", 1), inTx(3, day0, "a", 1), inTx(2, day0, "a", 1))))
	suite.src.State.Fire(state(mainSymbol, slice(txID(3), inTx(3, day0, "a", 1), inTx(5, day0, "a", 1), inTx(4, day0, "a", 1), inTx(5, day0, "a", 1))))

	st, ok := suite.history.Transactions(mainSymbol)
	suite.Require().True(ok)
	suite.Equal([]int64{5, 4, 3, 2, 1}, ids(st.List))
	suite.Equal(txID(1), st.PreviousID)

	var lts []int64
	rows := suite.history.Rows()
	for i := 0; i < rows.Len(); i++ {
		if row := rows.At(i); row.Kind == RowTransaction {
			lts = append(lts, row.Tx.ID.Lt)
		}
	}
	suite.Equal([]int64{5, 4, 3, 2, 1}, lts)
}

func (suite *HistoryTestSuite) TestPreloadCursorAdvances() {
	suite.src.State.Fire(state(mainSymbol, slice(txID(3), inTx(5, day0, "a", 1), inTx(4, day0, "a", 1), inTx(3, day0, "a", 1))))
	preloads := record(suite.history.PreloadRequests())

	suite.history.CheckPreload(0, 4)
	suite.history.CheckPreload(0, 4)

	suite.src.Loaded.Fire(model.LoadedSlice{
		Symbol:     mainSymbol,
		List:       []model.Transaction{inTx(2, day0, "a", 1), inTx(1, day0, "a", 1)},
		PreviousID: txID(1),
	})
	suite.history.CheckPreload(0, 6)

	var cursors []model.TransactionID
	for _, r := range *preloads {
		suite.Equal(mainSymbol, r.Symbol)
		cursors = append(cursors, r.Cursor)
	}
	suite.Equal([]model.TransactionID{txID(3), txID(3), txID(1), txID(1)}, cursors)
}

func (suite *HistoryTestSuite) TestPreloadThreshold() {
	h := New(newSources(), Options{Location: time.UTC, PreloadThreshold: 1})
	defer h.Close()
	h.SelectAsset(model.SelectToken(mainSymbol))
	preloads := record(h.PreloadRequests())

	h.MergeState(state(mainSymbol, slice(txID(3), inTx(5, day0, "a", 1), inTx(4, day0, "a", 1), inTx(3, day0, "a", 1))))
	suite.Empty(*preloads)

	h.CheckPreload(0, 2)
	suite.Empty(*preloads)

	h.CheckPreload(1, 4)
	suite.Len(*preloads, 1)
}

func (suite *HistoryTestSuite) TestPreloadExhausted() {
	suite.src.State.Fire(state(mainSymbol, slice(model.TransactionID{}, inTx(2, day0, "a", 1), inTx(1, day0, "a", 1))))
	preloads := record(suite.history.PreloadRequests())

	suite.history.CheckPreload(0, 3)
	suite.Empty(*preloads)
}

func (suite *HistoryTestSuite) TestDecryptRevealed() {
	tx := encryptedTx(2, day0)
	suite.src.State.Fire(state(mainSymbol, slice(txID(2), tx)))
	requests := record(suite.history.DecryptRequests())
	views := record(suite.history.ViewRequests())
	key := RowKey{Kind: RowTransaction, ID: tx.ID}

	comment := suite.row(key).Comment
	suite.Equal(DecryptLocked, comment.Phase)
	suite.Equal(ClickToDecryptText, comment.Text)
	suite.False(comment.Selectable)

	var collected []model.Transaction
	suite.src.CollectEncrypted.Fire(&collected)
	suite.Equal([]model.Transaction{tx}, collected)

	suite.click(key, ElementComment)
	suite.Equal([]model.Transaction{tx}, *requests)
	suite.Equal(DecryptAwaiting, suite.history.DecryptPhase(tx.ID))
	suite.Equal(DecryptAwaiting, suite.row(key).Comment.Phase)

	suite.click(key, ElementComment)
	suite.Len(*requests, 1)
	suite.Empty(*views)

	revealed := tx
	revealed.Incoming.Data = model.MessageData{Text: "secret", Type: model.DecryptedText}
	suite.src.UpdateDecrypted.Fire([]model.Transaction{revealed})

	comment = suite.row(key).Comment
	suite.Equal(DecryptRevealed, comment.Phase)
	suite.Equal("secret", comment.Text)
	suite.True(comment.Selectable)
	suite.False(comment.Error)
	suite.Empty(suite.history.CollectEncrypted())

	suite.click(key, ElementComment)
	suite.Equal([]model.Transaction{revealed}, *views)
	suite.Len(*requests, 1)
}

func (suite *HistoryTestSuite) TestDecryptFailed() {
	tx := encryptedTx(2, day0)
	suite.src.State.Fire(state(mainSymbol, slice(txID(2), tx)))
	requests := record(suite.history.DecryptRequests())
	views := record(suite.history.ViewRequests())
	key := RowKey{Kind: RowTransaction, ID: tx.ID}

	suite.click(key, ElementComment)
	suite.src.UpdateDecrypted.Fire([]model.Transaction{tx})

	comment := suite.row(key).Comment
	suite.Equal(DecryptFailed, comment.Phase)
	suite.Equal(DecryptFailedText, comment.Text)
	suite.False(comment.Selectable)
	suite.True(comment.Error)

	suite.click(key, ElementComment)
	suite.Len(*requests, 1)
	suite.Empty(*views)
}

func (suite *HistoryTestSuite) TestOwnerResolutionConverges() {
	token := model.Token("TKN", "0xroot")
	other := model.Token("OTH", "0xother")
	requests := record(suite.history.OwnerResolutionRequests())
	suite.src.SelectedAsset.Fire(model.SelectToken(token))

	suite.src.State.Fire(state(token, slice(txID(1),
		tokenTx(3, day0, "0xABC", 1),
		tokenTx(2, day0, "0xDEF", 1),
		tokenTx(1, day0, "0xABC", 1),
	)))
	suite.Require().Len(*requests, 1)
	suite.Equal(OwnerResolutionRequest{Symbol: token, Addresses: []string{"0xABC", "0xDEF"}}, (*requests)[0])

	suite.src.UpdateWalletOwners.Fire(map[string]string{"0xABC": "Alice"})
	suite.Equal("Alice", suite.row(RowKey{Kind: RowTransaction, ID: txID(3)}).DisplayAddress())
	suite.Equal("0xDEF", suite.row(RowKey{Kind: RowTransaction, ID: txID(2)}).DisplayAddress())

	suite.src.State.Fire(state(other, slice(txID(7), tokenTx(7, day0, "0xABC", 1))))
	suite.src.UpdateWalletOwners.Fire(map[string]string{"0xGHI": "Gus"})

	suite.Require().NotEmpty(*requests)
	for _, r := range (*requests)[1:] {
		suite.NotContains(r.Addresses, "0xABC")
	}
	name, ok := suite.history.Owner("0xABC")
	suite.True(ok)
	suite.Equal("Alice", name)
}

func (suite *HistoryTestSuite) TestClicks() {
	deployed := inTx(3, day0, "0xW", 1)
	deployed.Incoming.Token = model.TokenOperation{Kind: model.TokenWalletDeployed, Root: "0xroot"}
	notified := inTx(2, day0, "0xW", 1)
	notified.Incoming.Token = model.TokenOperation{Kind: model.TokenNotification, Event: "0xevent"}
	swap := outTx(1, day0, "0xW", 1)
	swap.Outgoing[0].Token = model.TokenOperation{Kind: model.TokenSwapBack, Dest: "0xeth", Value: 3, Event: "0xswap"}
	pending := model.PendingTransaction{ID: "P1", Symbol: mainSymbol, Time: day0 - 10, Destination: "0xP", Value: 1}

	suite.src.State.Fire(state(mainSymbol, slice(txID(1), deployed, notified, swap), pending))

	views := record(suite.history.ViewRequests())
	wallets := record(suite.history.NewTokenWalletRequests())
	collects := record(suite.history.CollectTokenRequests())
	swaps := record(suite.history.ExecuteSwapBackRequests())

	suite.click(RowKey{Kind: RowTransaction, ID: txID(3)}, ElementRow)
	suite.click(RowKey{Kind: RowTransaction, ID: txID(3)}, ElementAddress)
	suite.click(RowKey{Kind: RowTransaction, ID: txID(3)}, ElementAction)
	suite.click(RowKey{Kind: RowTransaction, ID: txID(2)}, ElementAction)
	suite.click(RowKey{Kind: RowTransaction, ID: txID(1)}, ElementAction)
	suite.click(RowKey{Kind: RowPending, Pending: "P1"}, ElementRow)
	suite.click(RowKey{Kind: RowPending, Pending: "P1"}, ElementAddress)
	suite.click(RowKey{Kind: RowDate, ID: txID(3)}, ElementRow)
	suite.click(RowKey{Kind: RowTransaction, ID: txID(99)}, ElementRow)

	suite.Equal([]model.Transaction{deployed}, *views)
	suite.Equal([]string{"0xW", "0xP"}, suite.shared)
	suite.Equal([]string{"0xroot"}, *wallets)
	suite.Equal([]string{"0xevent"}, *collects)
	suite.Equal([]string{"0xswap"}, *swaps)
}

func (suite *HistoryTestSuite) TestCancel() {
	suite.src.State.Fire(state(mainSymbol, slice(txID(1), inTx(1, day0, "a", 1))))
	views := record(suite.history.ViewRequests())
	hit := Hit{Key: RowKey{Kind: RowTransaction, ID: txID(1)}, Element: ElementRow}

	suite.history.Move(0, hit)
	suite.history.Move(1, hit)
	suite.True(suite.history.Press(0))
	suite.True(suite.history.Press(1))

	suite.history.Cancel(0)
	suite.Equal(PointerIdle, suite.history.Pointer(0).State())
	suite.Equal(PointerPressed, suite.history.Pointer(1).State())

	suite.history.CancelAll()
	suite.history.Release(0, hit)
	suite.history.Release(1, hit)
	suite.Empty(*views)
}

func (suite *HistoryTestSuite) TestSelectDePool() {
	pool := model.DePool("0xpool")
	heights := record(suite.history.HeightValue())

	suite.src.State.Fire(model.HistoryState{LastTransactions: map[model.Symbol]model.TransactionsSlice{
		mainSymbol: slice(txID(1), inTx(1, day0, "a", 1)),
		pool:       slice(txID(2), inTx(3, day0, "a", 1), inTx(2, day0+86400, "a", 1)),
	}})
	suite.src.SelectedAsset.Fire(model.SelectDePool("0xpool"))

	suite.Equal(pool, suite.history.Selected().Symbol())
	suite.Equal(model.AssetDePool, suite.history.Selected().Kind())
	suite.Equal(4, suite.history.Rows().Len())
	suite.Equal([]int{2, 4}, *heights)
}

func (suite *HistoryTestSuite) TestCloseSeversSubscriptions() {
	suite.history.Close()

	suite.Zero(suite.src.State.Len())
	suite.Zero(suite.src.Loaded.Len())
	suite.Zero(suite.src.CollectEncrypted.Len())
	suite.Zero(suite.src.UpdateDecrypted.Len())
	suite.Zero(suite.src.UpdateWalletOwners.Len())
	suite.Zero(suite.src.SelectedAsset.Len())

	suite.src.State.Fire(state(mainSymbol, slice(txID(1), inTx(1, day0, "a", 1))))
	suite.history.MergeState(state(mainSymbol, slice(txID(1), inTx(1, day0, "a", 1))))
	suite.Zero(suite.history.Rows().Len())
	_, ok := suite.history.Transactions(mainSymbol)
	suite.False(ok)

	suite.history.Close()
}
