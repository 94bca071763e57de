package model

import (
	"fmt"
	"strings"
)

// TransactionID identifies a confirmed transaction of an account.
// Lt is the logical time counter and the primary ordering key.
type TransactionID struct {
	Lt   int64  `json:"lt"`
	Hash string `json:"hash"`
}

// IsZero reports whether the id is the "no id" sentinel
func (id TransactionID) IsZero() bool {
	return id.Lt == 0 && id.Hash == ""
}

func (id TransactionID) String() string {
	return fmt.Sprintf("%d:%s", id.Lt, id.Hash)
}

// MessageDataType tells how the payload of a message should be read
type MessageDataType string

const (
	PlainText     MessageDataType = "plain"
	EncryptedText MessageDataType = "encrypted"
	DecryptedText MessageDataType = "decrypted"
	RawBody       MessageDataType = "raw"
)

// MessageData is the comment payload carried by a message
type MessageData struct {
	Text string          `json:"text,omitempty"`
	Data []byte          `json:"data,omitempty"`
	Type MessageDataType `json:"type,omitempty"`
}

// TokenOpKind represents the kind of a decoded token operation
type TokenOpKind string

const (
	TokenNone           TokenOpKind = ""
	TokenTransfer       TokenOpKind = "transfer"
	TokenSwapBack       TokenOpKind = "swap_back"
	TokenWalletDeployed TokenOpKind = "wallet_deployed"
	TokenNotification   TokenOpKind = "notification"
)

// TokenOperation is a token contract call decoded from a message body.
// Which fields are meaningful depends on Kind:
//
//	TokenTransfer       Dest, Value
//	TokenSwapBack       Dest, Value, Event
//	TokenWalletDeployed Root
//	TokenNotification   Event
type TokenOperation struct {
	Kind  TokenOpKind `json:"kind,omitempty"`
	Dest  string      `json:"dest,omitempty"`
	Value int64       `json:"value,omitempty"`
	Root  string      `json:"root,omitempty"`
	Event string      `json:"event,omitempty"`
}

// Message represents an incoming or outgoing transfer
type Message struct {
	Source      string         `json:"source,omitempty"`
	Destination string         `json:"destination,omitempty"`
	Value       int64          `json:"value"`
	Created     int64          `json:"created,omitempty"`
	Data        MessageData    `json:"data"`
	Token       TokenOperation `json:"token"`
}

// Transaction represents a confirmed transaction of the account
type Transaction struct {
	ID           TransactionID `json:"id"`
	Time         int64         `json:"time"`
	Fee          int64         `json:"fee,omitempty"`
	StorageFee   int64         `json:"storage_fee,omitempty"`
	OtherFee     int64         `json:"other_fee,omitempty"`
	Incoming     Message       `json:"incoming"`
	Outgoing     []Message     `json:"outgoing,omitempty"`
	Initializing bool          `json:"initializing,omitempty"`
}

// IsIncoming reports whether the transaction has no outgoing transfers
func (t *Transaction) IsIncoming() bool {
	return len(t.Outgoing) == 0
}

func (t *Transaction) messages() []*Message {
	if t.IsIncoming() {
		return []*Message{&t.Incoming}
	}
	result := make([]*Message, 0, len(t.Outgoing))
	for i := range t.Outgoing {
		result = append(result, &t.Outgoing[i])
	}
	return result
}

// IsEncrypted reports whether any comment of the transaction is still encrypted
func (t *Transaction) IsEncrypted() bool {
	for _, m := range t.messages() {
		if m.Data.Type == EncryptedText {
			return true
		}
	}
	return false
}

// Comment returns the readable comment text, joined when several transfers carry one
func (t *Transaction) Comment() string {
	parts := make([]string, 0, 1)
	for _, m := range t.messages() {
		switch m.Data.Type {
		case PlainText, DecryptedText, "":
			if m.Data.Text != "" {
				parts = append(parts, m.Data.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// Counterparty returns the other side of the first transfer
func (t *Transaction) Counterparty() string {
	if t.IsIncoming() {
		return t.Incoming.Source
	}
	return t.Outgoing[0].Destination
}

// CounterpartyOf returns the other side as shown for symbol: the token
// recipient for token transfers, else the wallet counterparty
func (t *Transaction) CounterpartyOf(symbol Symbol) string {
	if symbol.IsToken() {
		switch op := t.TokenOp(); op.Kind {
		case TokenTransfer, TokenSwapBack:
			return op.Dest
		}
	}
	return t.Counterparty()
}

// Value returns the signed balance change without fees
func (t *Transaction) Value() int64 {
	if t.IsIncoming() {
		return t.Incoming.Value
	}
	var sum int64
	for _, m := range t.Outgoing {
		sum -= m.Value
	}
	return sum
}

// TokenOp returns the first token operation carried by the transaction
func (t *Transaction) TokenOp() TokenOperation {
	for _, m := range t.messages() {
		if m.Token.Kind != TokenNone {
			return m.Token
		}
	}
	return TokenOperation{}
}

// IsService reports whether the transaction moved no value and carried no comment
func (t *Transaction) IsService() bool {
	return t.Value() == 0 && t.Comment() == "" && !t.IsEncrypted() && t.TokenOp().Kind == TokenNone
}

// PendingTransaction represents a locally submitted transaction awaiting confirmation
type PendingTransaction struct {
	ID                string `json:"id"`
	Symbol            Symbol `json:"symbol"`
	Time              int64  `json:"time"`
	Destination       string `json:"destination"`
	Value             int64  `json:"value"`
	Comment           string `json:"comment,omitempty"`
	SentUntilSyncTime int64  `json:"sent_until_sync_time,omitempty"`
}

// SymbolKind represents the asset class of a Symbol
type SymbolKind string

const (
	SymbolNative SymbolKind = "native"
	SymbolToken  SymbolKind = "token"
	SymbolDePool SymbolKind = "depool"
)

// Symbol identifies an asset class. It is comparable and used as a map key.
type Symbol struct {
	Kind    SymbolKind `json:"kind"`
	Ticker  string     `json:"ticker"`
	Address string     `json:"address,omitempty"`
}

// Native returns the symbol of the native coin
func Native(ticker string) Symbol {
	return Symbol{Kind: SymbolNative, Ticker: ticker}
}

// Token returns the symbol of a token identified by its root contract
func Token(ticker, root string) Symbol {
	return Symbol{Kind: SymbolToken, Ticker: ticker, Address: root}
}

// DePool returns the symbol of a staking-pool participation
func DePool(address string) Symbol {
	return Symbol{Kind: SymbolDePool, Ticker: "DePool", Address: address}
}

// IsToken reports whether the symbol is a token
func (s Symbol) IsToken() bool {
	return s.Kind == SymbolToken
}

func (s Symbol) String() string {
	if s.Address == "" {
		return s.Ticker
	}
	return s.Ticker + "@" + s.Address
}

// TransactionsSlice is a page of confirmed transactions, newest first,
// and the cursor of the next older page
type TransactionsSlice struct {
	List       []Transaction `json:"list"`
	PreviousID TransactionID `json:"previous_id"`
}

// LoadedSlice is the answer to a preload request
type LoadedSlice struct {
	Symbol     Symbol        `json:"symbol"`
	List       []Transaction `json:"list"`
	PreviousID TransactionID `json:"previous_id"`
}

// HistoryState is a full snapshot of what the backend currently knows
type HistoryState struct {
	LastTransactions    map[Symbol]TransactionsSlice `json:"last_transactions"`
	PendingTransactions []PendingTransaction         `json:"pending_transactions"`
}
