package history

import (
	"sort"

	"github.com/vasylcode/walhist/internal/model"
)

// DecryptPhase is where an encrypted comment is in its decrypt lifecycle
type DecryptPhase int

const (
	// DecryptNone means the comment was never encrypted
	DecryptNone DecryptPhase = iota
	DecryptLocked
	DecryptAwaiting
	DecryptRevealed
	DecryptFailed
)

func (p DecryptPhase) String() string {
	switch p {
	case DecryptLocked:
		return "locked"
	case DecryptAwaiting:
		return "awaiting"
	case DecryptRevealed:
		return "revealed"
	case DecryptFailed:
		return "failed"
	default:
		return "none"
	}
}

// Terminal reports whether the phase never changes again
func (p DecryptPhase) Terminal() bool {
	return p == DecryptRevealed || p == DecryptFailed
}

const (
	ClickToDecryptText = "Click to decrypt"
	DecryptFailedText  = "Decryption failed"
)

type decryptEntry struct {
	phase DecryptPhase
	text  string
	tx    model.Transaction
}

// decryptor tracks every encrypted comment seen by a projection pass.
// A failed decrypt is final for the entry; nothing is re-requested.
type decryptor struct {
	entries map[model.TransactionID]*decryptEntry
}

func newDecryptor() *decryptor {
	return &decryptor{entries: make(map[model.TransactionID]*decryptEntry)}
}

// track registers tx if it carries an encrypted comment
func (d *decryptor) track(tx model.Transaction) {
	if _, ok := d.entries[tx.ID]; ok || !tx.IsEncrypted() {
		return
	}
	d.entries[tx.ID] = &decryptEntry{phase: DecryptLocked, tx: tx}
}

func (d *decryptor) phase(id model.TransactionID) (DecryptPhase, string) {
	e, ok := d.entries[id]
	if !ok {
		return DecryptNone, ""
	}
	return e.phase, e.text
}

// click moves a locked entry to awaiting and returns the transaction to decrypt
func (d *decryptor) click(id model.TransactionID) (model.Transaction, bool) {
	e, ok := d.entries[id]
	if !ok || e.phase != DecryptLocked {
		return model.Transaction{}, false
	}
	e.phase = DecryptAwaiting
	return e.tx, true
}

// collect returns every transaction whose comment is still encrypted, newest first
func (d *decryptor) collect() []model.Transaction {
	var result []model.Transaction
	for _, e := range d.entries {
		if !e.phase.Terminal() {
			result = append(result, e.tx)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.Lt > result[j].ID.Lt
	})
	return result
}

// take applies decrypt results. It returns the ids whose phase changed and the
// successfully decrypted transactions.
func (d *decryptor) take(list []model.Transaction) ([]model.TransactionID, []model.Transaction) {
	var changed []model.TransactionID
	var revealed []model.Transaction
	for _, tx := range list {
		e, ok := d.entries[tx.ID]
		if !ok || e.phase.Terminal() {
			continue
		}
		if tx.IsEncrypted() {
			e.phase = DecryptFailed
			e.text = DecryptFailedText
		} else {
			e.phase = DecryptRevealed
			e.text = tx.Comment()
			e.tx = tx
			revealed = append(revealed, tx)
		}
		changed = append(changed, tx.ID)
	}
	return changed, revealed
}
