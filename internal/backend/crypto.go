package backend

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/vasylcode/walhist/internal/model"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrDecrypt is returned when a comment cannot be opened with the key
var ErrDecrypt = errors.New("cannot decrypt comment")

// Key derives the comment key from a passphrase
func Key(passphrase string) *[32]byte {
	key := blake2b.Sum256([]byte(passphrase))
	return &key
}

// Seal encrypts a comment. The nonce is prepended to the box.
func Seal(key *[32]byte, plaintext string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(plaintext), &nonce, key), nil
}

// Open decrypts a box produced by Seal
func Open(key *[32]byte, box []byte) (string, error) {
	if len(box) < nonceSize+secretbox.Overhead {
		return "", ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// EncryptedComment builds the message payload of an encrypted comment
func EncryptedComment(key *[32]byte, text string) (model.MessageData, error) {
	box, err := Seal(key, text)
	if err != nil {
		return model.MessageData{}, err
	}
	return model.MessageData{Data: box, Type: model.EncryptedText}, nil
}

// decryptTransaction opens every encrypted comment of tx. The result is still
// encrypted when any comment could not be opened.
func decryptTransaction(key *[32]byte, tx model.Transaction) model.Transaction {
	open := func(m model.Message) model.Message {
		if m.Data.Type != model.EncryptedText || key == nil {
			return m
		}
		text, err := Open(key, m.Data.Data)
		if err != nil {
			return m
		}
		m.Data = model.MessageData{Text: text, Type: model.DecryptedText}
		return m
	}

	tx.Incoming = open(tx.Incoming)
	if len(tx.Outgoing) > 0 {
		outgoing := make([]model.Message, len(tx.Outgoing))
		for i, m := range tx.Outgoing {
			outgoing[i] = open(m)
		}
		tx.Outgoing = outgoing
	}
	return tx
}
