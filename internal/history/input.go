package history

import (
	"github.com/vasylcode/walhist/internal/model"
	"go.uber.org/zap"
)

// Element is the clickable part of a row under the pointer
type Element int

const (
	ElementNone Element = iota
	ElementRow
	ElementAddress
	ElementComment
	ElementAction
)

// Hit is what the renderer found under the pointer
type Hit struct {
	Key     RowKey
	Element Element
}

// Valid reports whether the hit points at a clickable row part
func (h Hit) Valid() bool {
	return h.Element != ElementNone
}

// PointerState is the state of a Pointer
type PointerState int

const (
	PointerIdle PointerState = iota
	PointerHovering
	PointerPressed
)

func (s PointerState) String() string {
	switch s {
	case PointerHovering:
		return "hovering"
	case PointerPressed:
		return "pressed"
	default:
		return "idle"
	}
}

// Pointer tracks press/release of one pointer device over the rows.
// A click is produced only when release happens over the same row and
// element that were pressed.
type Pointer struct {
	state   PointerState
	hovered Hit
	pressed Hit
}

// State returns the current state
func (p *Pointer) State() PointerState {
	return p.state
}

// Hovered returns the hit under the pointer
func (p *Pointer) Hovered() Hit {
	return p.hovered
}

// Pressed returns the hit that was pressed, valid only while PointerPressed
func (p *Pointer) Pressed() Hit {
	return p.pressed
}

// Move updates what is under the pointer. A pressed pointer stays pressed.
func (p *Pointer) Move(hit Hit) {
	p.hovered = hit
	if p.state == PointerPressed {
		return
	}
	if hit.Valid() {
		p.state = PointerHovering
	} else {
		p.state = PointerIdle
	}
}

// Press starts a press on the hovered hit
func (p *Pointer) Press() bool {
	if p.state != PointerHovering {
		return false
	}
	p.state = PointerPressed
	p.pressed = p.hovered
	return true
}

// Release ends a press at hit and returns the clicked hit, if any
func (p *Pointer) Release(hit Hit) (Hit, bool) {
	p.hovered = hit
	if p.state != PointerPressed {
		p.Move(hit)
		return Hit{}, false
	}
	pressed := p.pressed
	p.state = PointerIdle
	p.pressed = Hit{}
	if hit.Valid() && hit == pressed {
		return pressed, true
	}
	return Hit{}, false
}

// Cancel drops any hover or press
func (p *Pointer) Cancel() {
	p.state = PointerIdle
	p.hovered = Hit{}
	p.pressed = Hit{}
}

func (h *History) pointer(device int) *Pointer {
	p, ok := h.pointers[device]
	if !ok {
		p = &Pointer{}
		h.pointers[device] = p
	}
	return p
}

// Pointer returns the state of one pointer device
func (h *History) Pointer(device int) *Pointer {
	return h.pointer(device)
}

// Move reports what is under a pointer device
func (h *History) Move(device int, hit Hit) {
	if h.closed {
		return
	}
	h.pointer(device).Move(h.resolve(hit))
}

// Press starts a press of a pointer device over the hovered row part
func (h *History) Press(device int) bool {
	if h.closed {
		return false
	}
	return h.pointer(device).Press()
}

// Release ends a press and performs the click when it completes one
func (h *History) Release(device int, hit Hit) {
	if h.closed {
		return
	}
	clicked, ok := h.pointer(device).Release(h.resolve(hit))
	if !ok {
		return
	}
	row, ok := h.Rows().Lookup(clicked.Key)
	if !ok {
		return
	}
	h.click(row, clicked.Element)
}

// Cancel drops the hover and press of a pointer device
func (h *History) Cancel(device int) {
	if p, ok := h.pointers[device]; ok {
		p.Cancel()
	}
}

// CancelAll drops the hover and press of every pointer device
func (h *History) CancelAll() {
	for _, p := range h.pointers {
		p.Cancel()
	}
}

// resolve drops hits on rows that no longer exist
func (h *History) resolve(hit Hit) Hit {
	if !hit.Valid() {
		return Hit{}
	}
	if _, ok := h.Rows().Lookup(hit.Key); !ok {
		return Hit{}
	}
	return hit
}

func (h *History) click(row *Row, element Element) {
	switch row.Kind {
	case RowDate:
		return
	case RowPending:
		if element == ElementAddress {
			h.share(row.Address)
		}
		return
	}

	switch element {
	case ElementAddress:
		h.share(row.Address)
	case ElementComment:
		switch row.Comment.Phase {
		case DecryptLocked:
			tx, ok := h.decrypt.click(row.Tx.ID)
			if !ok {
				return
			}
			h.log.Debug("decrypt requested", zap.Stringer("id", tx.ID))
			h.decryptRequests.Fire(tx)
			h.refresh(h.symbolsOf(tx.ID))
		case DecryptAwaiting, DecryptFailed:
		default:
			h.viewRequests.Fire(row.Tx)
		}
	case ElementAction:
		switch row.Action {
		case ActionAddTokenWallet:
			h.newTokenWalletRequests.Fire(row.ActionAddress)
		case ActionCollectTokens:
			h.collectTokenRequests.Fire(row.ActionAddress)
		case ActionSwapBack:
			h.executeSwapBackRequests.Fire(row.ActionAddress)
		default:
			h.viewRequests.Fire(row.Tx)
		}
	default:
		h.viewRequests.Fire(row.Tx)
	}
}

func (h *History) share(address string) {
	if address == "" || h.opts.Share == nil {
		return
	}
	h.opts.Share(address)
}

func (h *History) symbolsOf(id model.TransactionID) map[model.Symbol]bool {
	symbols := make(map[model.Symbol]bool)
	for _, symbol := range h.ledger.symbolsOf(id) {
		symbols[symbol] = true
	}
	return symbols
}
