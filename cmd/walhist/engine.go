package walhist

import (
	"fmt"

	"github.com/vasylcode/walhist/internal/backend"
	"github.com/vasylcode/walhist/internal/config"
	"github.com/vasylcode/walhist/internal/events"
	"github.com/vasylcode/walhist/internal/history"
	"github.com/vasylcode/walhist/internal/model"
	"github.com/vasylcode/walhist/internal/storage"
	"go.uber.org/zap"
)

// engine is a history controller wired to a feed over the ledger store
type engine struct {
	history  *history.History
	feed     *backend.Feed
	collect  *events.Stream[*[]model.Transaction]
	selected *events.Stream[model.SelectedAsset]

	disconnect func()
}

func newEngine(c *config.Config, s *storage.Storage, poster events.Poster, share func(string), log *zap.Logger) (*engine, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}

	var key *[32]byte
	if c.CommentPassphrase != "" {
		key = backend.Key(c.CommentPassphrase)
	}

	feed := backend.New(backend.Options{
		Store:    s,
		Poster:   poster,
		Key:      key,
		PageSize: c.PageSize,
		Workers:  c.Workers,
		Logger:   log,
	})

	e := &engine{
		feed:     feed,
		collect:  events.NewStream[*[]model.Transaction](),
		selected: events.NewStream[model.SelectedAsset](),
	}

	src := feed.Sources()
	src.CollectEncrypted = e.collect
	src.SelectedAsset = e.selected
	e.history = history.New(src, history.Options{
		Layout: history.Layout{
			RowHeight:     c.Layout.RowHeight,
			PendingHeight: c.Layout.PendingHeight,
			CommentHeight: c.Layout.CommentHeight,
			DateHeight:    c.Layout.DateHeight,
		},
		PreloadThreshold: c.PreloadThreshold,
		Location:         loc,
		Share:            share,
		Logger:           log,
	})
	e.disconnect = feed.Connect(e.history)
	return e, nil
}

// selectSymbol fires the selection of symbol
func (e *engine) selectSymbol(symbol model.Symbol) {
	e.selected.Fire(assetOf(symbol))
}

// decryptAll asks the feed to open every locked comment
func (e *engine) decryptAll() int {
	return e.feed.DecryptAll(e.collect)
}

func (e *engine) close() {
	e.disconnect()
	e.history.Close()
	e.feed.Close()
}

// assetOf maps a store symbol to the selection that shows it
func assetOf(symbol model.Symbol) model.SelectedAsset {
	if symbol.Kind == model.SymbolDePool {
		return model.SelectDePool(symbol.Address)
	}
	return model.SelectToken(symbol)
}

// lookupSymbol finds ticker in the store, falling back to the native coin
func lookupSymbol(s *storage.Storage, ticker string) model.Symbol {
	symbol, err := s.FindSymbol(ticker)
	if err != nil {
		logger.Debug("symbol not in store, using native", zap.String("ticker", ticker))
		return model.Native(ticker)
	}
	return symbol
}

func symbolLabel(symbol model.Symbol) string {
	switch symbol.Kind {
	case model.SymbolToken:
		return fmt.Sprintf("%s (token)", symbol.Ticker)
	case model.SymbolDePool:
		return fmt.Sprintf("DePool %s", symbol.Address)
	default:
		return symbol.Ticker
	}
}

func actionLabel(a history.Action) string {
	switch a {
	case history.ActionAddTokenWallet:
		return "Add token wallet"
	case history.ActionCollectTokens:
		return "Collect tokens"
	case history.ActionSwapBack:
		return "Swap back"
	default:
		return ""
	}
}
