package history

import "github.com/vasylcode/walhist/internal/model"

// DefaultPreloadThreshold is how close, in layout units, the visible bottom
// may get to the end of the rows before the next page is requested
const DefaultPreloadThreshold = 10

// PreloadRequest asks the backend for the page older than Cursor
type PreloadRequest struct {
	Symbol model.Symbol
	Cursor model.TransactionID
}

// CheckPreload records the visible range and requests the next page when
// its bottom is within the preload threshold of the end of the rows.
// It fires on every qualifying call; suppressing duplicates is up to the
// consumer of PreloadRequests.
func (h *History) CheckPreload(visibleTop, visibleBottom int) {
	if h.closed {
		return
	}
	h.visibleTop, h.visibleBottom = visibleTop, visibleBottom
	h.checkPreload()
}

func (h *History) checkPreload() {
	symbol := h.selected.Symbol()
	st, ok := h.ledger.lookup(symbol)
	if !ok || st.Exhausted || st.PreviousID.IsZero() {
		return
	}
	extent := 0
	if rows, ok := h.rows[symbol]; ok {
		extent = rows.Extent()
	}
	if extent-h.visibleBottom >= h.opts.PreloadThreshold {
		return
	}
	h.preloadRequests.Fire(PreloadRequest{Symbol: symbol, Cursor: st.PreviousID})
}
